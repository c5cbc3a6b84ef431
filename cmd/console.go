// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive TUI for sending commands to an RMsg client",
	Long: `Talk to an RMsg client device through an interactive terminal UI.

Features:
  - Command input with the same syntax as 'send' (e.g. "SDV P=1 V=0")
  - Token list: pick a mnemonic to start a command
  - Traffic log with confirmations, remarks and round-trip times
  - Statistics tracking
  - Automatic reconnection on connection loss

Tab switches between the command input and the token list.

Supports both serial and WebSocket connections.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// connectionManager handles connection lifecycle and reconnection. The
// session is shared by the reader loop and the UI, so every use of it
// holds mu.
type connectionManager struct {
	role     rmsg.Role
	mu       sync.Mutex
	stream   *connStream
	sess     *rmsg.Session
	connInfo string
	p        *tea.Program
	ctx      context.Context
}

func (cm *connectionManager) setSession(sess *rmsg.Session, stream *connStream, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.sess = sess
	cm.stream = stream
	cm.connInfo = connInfo
}

func (cm *connectionManager) getStream() *connStream {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.stream
}

// send writes m on the current session
func (cm *connectionManager) send(m *rmsg.Message) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.sess == nil {
		return ErrConnectionClosed
	}
	return cm.sess.SendMessage(m)
}

func runConsole(cmd *cobra.Command, args []string) error {
	role, err := opts.localRole()
	if err != nil {
		return err
	}
	sess, stream, connInfo, err := openSession(role)
	if err != nil {
		return err
	}
	quietLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cm := &connectionManager{role: role, ctx: ctx}
	cm.setSession(sess, stream, connInfo)

	m := initialConsoleModel(cm.send, sess.Tokens(), connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.readerLoop()

	_, err = p.Run()
	cancel()
	cm.getStream().Close()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// readerLoop handles reading from the connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		err := cm.readFromConnection()
		if cm.ctx.Err() != nil {
			return
		}

		cm.p.Send(connectionLostMsg{err: err})
		if !cm.reconnect() {
			return
		}
	}
}

// readFromConnection polls the session until the connection fails or the
// console shuts down, forwarding received messages to the TUI in batches
func (cm *connectionManager) readFromConnection() error {
	stream := cm.getStream()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var batch consoleBatchMsg
	waitErr := make(chan error, 1)
	go func() {
		for {
			if err := stream.Wait(cm.ctx); err != nil {
				waitErr <- err
				return
			}
			cm.mu.Lock()
			for {
				msg, err := cm.sess.Poll()
				if err != nil || msg == nil {
					break
				}
				batch.add(consoleFrame{
					time: time.Now(),
					raw:  cm.sess.Decoder().Raw(),
					msg:  msg,
				})
			}
			cm.mu.Unlock()
		}
	}()

	for {
		select {
		case err := <-waitErr:
			cm.flush(&batch)
			return err
		case <-ticker.C:
			cm.flush(&batch)
		}
	}
}

func (cm *connectionManager) flush(batch *consoleBatchMsg) {
	cm.mu.Lock()
	frames := batch.take()
	cm.mu.Unlock()
	if len(frames) > 0 {
		cm.p.Send(consoleBatchMsg{frames: frames})
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if stream := cm.getStream(); stream != nil {
		stream.Close()
	}
	cm.setSession(nil, cm.getStream(), "")

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.ctx.Done():
			return false
		case <-time.After(backoff):
		}

		sess, stream, connInfo, err := openSession(cm.role)
		if err == nil {
			cm.setSession(sess, stream, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}
		logger.WithError(err).Debug("reconnect failed")

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// isConnectionEnd reports whether err is the normal end of a connection
func isConnectionEnd(err error) bool {
	return err == nil || errors.Is(err, ErrConnectionClosed) || errors.Is(err, context.Canceled)
}
