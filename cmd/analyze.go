// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect and analyze malformed frames and protocol errors",
	Long: `Track frame errors and malformed traffic with statistics.

This command validates each frame and detects:
  - Discarded frames (too short, too long, interrupted by a new start)
  - Unrecognized mnemonics
  - Shape mismatches (host commands and client replies with the wrong
    parameters for their token)
  - Device errors (ERR replies from the client)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	analyzeCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	analyzeCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// syncTracker ignores decoder errors until the first valid frame, counting
// the bytes skipped on the way.
type syncTracker struct {
	synchronized bool
	skipped      int
}

// observe returns whether ev should be reported, and whether it completed
// synchronization.
func (t *syncTracker) observe(ev frameEvent) (report, synced bool) {
	if t.synchronized {
		return true, false
	}
	t.skipped += ev.skipped
	if ev.err != nil {
		t.skipped += len(ev.raw)
		return false, false
	}
	t.synchronized = true
	return true, true
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive, got %d", statsInterval)
	}

	decoder, tokens, err := newSniffDecoder()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	stream := newConnStream(conn)
	defer stream.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if useTUI {
		err = runAnalyzeTUI(ctx, stream, decoder, tokens, connInfo)
	} else {
		err = runAnalyzeText(ctx, stream, decoder, tokens, connInfo)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrConnectionClosed) {
		return nil
	}
	return err
}

// printFrameError prints a discarded frame in highlighted format
func printFrameError(ev frameEvent) {
	fmt.Printf("[%s] \033[1;31mFRAME ERROR:\033[0m %v\n", ev.time.Format("15:04:05.000"), ev.err)
	if len(ev.raw) > 0 {
		fmt.Printf("  Raw: %q\n", ev.raw)
	}
	fmt.Printf("  >>> FRAME DISCARDED <<<\n\n")
}

// printShapeError prints a frame whose parameters do not match its token
func printShapeError(ev frameEvent, shapeErr error, tokens *rmsg.TokenTable) {
	fmt.Printf("[%s] \033[1;33mSHAPE ERROR:\033[0m %s from %s\n",
		ev.time.Format("15:04:05.000"), rmsg.FormatTokenName(ev.msg.Token, tokens), ev.origin)
	fmt.Printf("  Raw: %s\n", ev.raw)
	fmt.Printf("  Issue: \033[1;31m%v\033[0m\n", shapeErr)
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// printDeviceError prints an ERR reply from the client
func printDeviceError(ev frameEvent, devErr *rmsg.DeviceError, tokens *rmsg.TokenTable) {
	fmt.Printf("[%s] \033[1;35mDEVICE ERROR:\033[0m %s rejected: %s (%d)\n\n",
		ev.time.Format("15:04:05.000"), rmsg.FormatTokenName(devErr.Token, tokens), devErr.Code, devErr.Value)
}

// runAnalyzeText runs analysis in text mode
func runAnalyzeText(ctx context.Context, stream *connStream, decoder *rmsg.Decoder, tokens *rmsg.TokenTable, connInfo string) error {
	fmt.Printf("rmsgstat - Analyze Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	validator := newFrameValidator(tokens)
	stats := rmsg.NewStatistics()
	var tracker syncTracker

	// Frames are pumped on their own goroutine so the ticker can interleave
	events := make(chan frameEvent, 16)
	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- pumpFrames(ctx, stream, decoder, func(ev frameEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case ev := <-events:
			report, synced := tracker.observe(ev)
			if synced {
				stats.AddSkipped(tracker.skipped)
				if tracker.skipped > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d bytes\n\n", tracker.skipped)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}
			if !report {
				continue
			}
			if !synced {
				stats.AddSkipped(ev.skipped)
			}

			if ev.err != nil {
				stats.Update(nil, ev.err, nil)
				printFrameError(ev)
				continue
			}

			shapeErr := ev.validate(validator)
			stats.Update(ev.msg, nil, shapeErr)
			var devErr *rmsg.DeviceError
			switch {
			case shapeErr != nil:
				printShapeError(ev, shapeErr, tokens)
			case ev.msg.Token == rmsg.TokError:
				if _, err := rmsg.ParseConfirmation(ev.msg); errors.As(err, &devErr) {
					printDeviceError(ev, devErr, tokens)
				}
			case showAll:
				fmt.Print(rmsg.FormatFrame(ev.time, ev.origin, ev.raw, ev.msg, tokens))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case err := <-pumpErr:
			fmt.Println()
			fmt.Print(stats.String())
			return err
		}
	}
}

// runAnalyzeTUI runs analysis in TUI mode
func runAnalyzeTUI(ctx context.Context, stream *connStream, decoder *rmsg.Decoder, tokens *rmsg.TokenTable, connInfo string) error {
	quietLogging()

	validator := newFrameValidator(tokens)
	m := initialModel(connInfo, statsInterval, showAll, tokens)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	go func() {
		var tracker syncTracker
		err := pumpFrames(ctx, stream, decoder, func(ev frameEvent) bool {
			report, synced := tracker.observe(ev)
			if synced {
				p.Send(syncMsg{skippedBytes: tracker.skipped})
			}
			if !report {
				return true
			}
			msg := frameMsg{event: ev}
			if ev.err == nil {
				msg.shapeErr = ev.validate(validator)
			}
			if !synced {
				msg.skipped = ev.skipped
			}
			p.Send(msg)
			return true
		})
		p.Send(connectionEndedMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
