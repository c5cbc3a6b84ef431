// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"io"
	"strings"
	"sync"
)

// ByteSource is the inbound half of a stream. Available must not block.
type ByteSource interface {
	io.ByteReader
	Available() int
}

// Stream is the byte stream collaborator a Session talks through, usually
// a serial port adapter.
type Stream interface {
	ByteSource

	// WriteLine writes p followed by LineTerminator.
	WriteLine(p []byte) error
}

// MemoryStream is an in-memory Stream. Inbound bytes are supplied with
// Feed; written lines are collected and, when connected with Pipe, fed
// to the peer stream. It is safe for concurrent use.
type MemoryStream struct {
	mu   sync.Mutex
	in   []byte
	out  []string
	peer *MemoryStream
}

// NewMemoryStream returns an empty stream.
func NewMemoryStream() *MemoryStream {
	return &MemoryStream{}
}

// Pipe returns two connected streams: lines written to one are readable
// from the other.
func Pipe() (*MemoryStream, *MemoryStream) {
	a, b := NewMemoryStream(), NewMemoryStream()
	a.peer, b.peer = b, a
	return a, b
}

// Feed appends inbound bytes.
func (s *MemoryStream) Feed(p []byte) {
	s.mu.Lock()
	s.in = append(s.in, p...)
	s.mu.Unlock()
}

// FeedString appends inbound bytes from a string.
func (s *MemoryStream) FeedString(str string) {
	s.Feed([]byte(str))
}

// Available returns the number of unread inbound bytes.
func (s *MemoryStream) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.in)
}

// ReadByte reads one inbound byte, returning io.EOF when none is buffered.
func (s *MemoryStream) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.in) == 0 {
		return 0, io.EOF
	}
	b := s.in[0]
	s.in = s.in[1:]
	return b, nil
}

// WriteLine records p as a written line and forwards it to the peer.
func (s *MemoryStream) WriteLine(p []byte) error {
	s.mu.Lock()
	s.out = append(s.out, string(p))
	peer := s.peer
	s.mu.Unlock()

	if peer != nil {
		peer.Feed(append(append([]byte(nil), p...), LineTerminator...))
	}
	return nil
}

// Lines returns the lines written so far, terminators excluded.
func (s *MemoryStream) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.out))
	copy(out, s.out)
	return out
}

// Output returns everything written so far as it appeared on the wire.
func (s *MemoryStream) Output() string {
	var b strings.Builder
	for _, l := range s.Lines() {
		b.WriteString(l)
		b.WriteString(LineTerminator)
	}
	return b.String()
}
