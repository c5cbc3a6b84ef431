// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"io"
	"sync"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
)

// connStream adapts a Connection to rmsg.Stream. A reader goroutine moves
// incoming bytes into a buffer so Available and ReadByte never block.
type connStream struct {
	conn Connection

	mu  sync.Mutex
	buf []byte
	err error

	notify chan struct{}
	done   chan struct{}
}

var _ rmsg.Stream = (*connStream)(nil)

func newConnStream(conn Connection) *connStream {
	s := &connStream{
		conn:   conn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *connStream) readLoop() {
	defer close(s.done)
	buf := make([]byte, 128)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.buf = append(s.buf, buf[:n]...)
			s.mu.Unlock()
			s.signal()
		}
		if err != nil {
			logger.WithError(err).Debug("reader stopped")
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
	}
}

func (s *connStream) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Available returns the number of buffered bytes.
func (s *connStream) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// ReadByte returns the next buffered byte, or io.EOF when the buffer is empty.
func (s *connStream) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	b := s.buf[0]
	s.buf = s.buf[1:]
	return b, nil
}

// WriteLine writes p and the line terminator in a single write.
func (s *connStream) WriteLine(p []byte) error {
	line := make([]byte, 0, len(p)+len(rmsg.LineTerminator))
	line = append(line, p...)
	line = append(line, rmsg.LineTerminator...)
	_, err := s.conn.Write(line)
	return err
}

// Wait blocks until bytes are buffered, the connection ends or ctx is done.
// It returns the read error once the connection has ended and the buffer
// is drained.
func (s *connStream) Wait(ctx context.Context) error {
	if s.Available() > 0 {
		return nil
	}
	select {
	case <-s.notify:
		return nil
	case <-s.done:
		if s.Available() > 0 {
			return nil
		}
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error that ended the reader, if any.
func (s *connStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the reader goroutine exits.
func (s *connStream) Done() <-chan struct{} {
	return s.done
}

func (s *connStream) Close() error {
	return s.conn.Close()
}
