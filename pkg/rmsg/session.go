// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Session ties an encoder and a decoder to a command stream and a debug
// stream for one endpoint role.
//
// A Session is single-owner: Poll and the send methods must not be called
// concurrently.
type Session struct {
	cfg   Config
	cmd   Stream
	debug Stream
	enc   *Encoder // Begin/Append/Send
	reply *Encoder // Canned messages, never clobbers enc
	dec   *Decoder
	log   logrus.FieldLogger

	remark    strings.Builder
	remarking bool
}

// NewSession creates a session on cmd. Remarks go to debug, or to cmd when
// debug is nil.
func NewSession(cmd, debug Stream, cfg Config) (*Session, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: nil command stream", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if debug == nil {
		debug = cmd
	}
	return &Session{
		cfg:   cfg,
		cmd:   cmd,
		debug: debug,
		enc:   NewEncoder(cfg),
		reply: NewEncoder(cfg),
		dec:   NewDecoder(cfg),
		log:   cfg.Logger.WithField("role", cfg.Role.String()),
	}, nil
}

// Role returns the session's role.
func (s *Session) Role() Role {
	return s.cfg.Role
}

// Tokens returns the session's token table.
func (s *Session) Tokens() *TokenTable {
	return s.cfg.Tokens
}

// Decoder returns the session's decoder, for access to Raw and Skipped.
func (s *Session) Decoder() *Decoder {
	return s.dec
}

// Begin starts an outbound message, discarding any unfinished one.
func (s *Session) Begin(tok Token) error {
	return s.enc.Begin(tok)
}

// Append adds a parameter to the outbound message.
func (s *Session) Append(key byte, format Format, values ...int) error {
	return s.enc.Append(key, format, values...)
}

// Send finalizes the outbound message and writes it to the command stream.
func (s *Session) Send() error {
	frame, err := s.enc.Finalize()
	if err != nil {
		return err
	}
	return s.write(s.cmd, frame)
}

// SendMessage encodes m and writes it to the command stream.
func (s *Session) SendMessage(m *Message) error {
	frame, err := s.reply.EncodeMessage(m)
	if err != nil {
		return err
	}
	return s.write(s.cmd, frame)
}

// SendVersion sends a version report "VER V=ver M=freeMem".
func (s *Session) SendVersion(version, freeMem int) error {
	return s.SendMessage(NewVersionMessage(version, freeMem))
}

// SendConfirmation sends ACK for tok when code is CodeNone, otherwise ERR
// with the code and value. Every processed command is answered with
// exactly one confirmation.
func (s *Session) SendConfirmation(tok Token, code ErrorCode, value int) error {
	return s.SendMessage(NewConfirmation(tok, code, value))
}

// ComposeRemark returns the remark frame for string resource index.
func (s *Session) ComposeRemark(index int) ([]byte, error) {
	if index < 0 || index >= len(s.cfg.Remarks) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrRemarkIndex, index, len(s.cfg.Remarks))
	}
	return s.reply.EncodeRemark(s.cfg.Remarks[index])
}

// SendRemark sends the remark string resource index to the debug stream.
func (s *Session) SendRemark(index int) error {
	frame, err := s.ComposeRemark(index)
	if err != nil {
		return err
	}
	return s.write(s.debug, frame)
}

// SendRemarkText sends a free-text remark to the debug stream.
func (s *Session) SendRemarkText(text string) error {
	frame, err := s.reply.EncodeRemark(text)
	if err != nil {
		return err
	}
	return s.write(s.debug, frame)
}

// BeginRemark starts a remark assembled piecewise with AppendRemark.
func (s *Session) BeginRemark() {
	s.remark.Reset()
	s.remarking = true
}

// AppendRemark appends text to the remark started with BeginRemark.
func (s *Session) AppendRemark(text string) error {
	if !s.remarking {
		return ErrNoOpenMessage
	}
	s.remark.WriteString(text)
	return nil
}

// EndRemark sends the assembled remark to the debug stream.
func (s *Session) EndRemark() error {
	if !s.remarking {
		return ErrNoOpenMessage
	}
	s.remarking = false
	return s.SendRemarkText(s.remark.String())
}

func (s *Session) write(w Stream, frame []byte) error {
	if err := w.WriteLine(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.log.WithField("frame", string(frame)).Trace("sent")
	return nil
}

// Poll checks the command stream for a complete frame without blocking.
//
// Returns nil, nil when no message is complete yet. Malformed frames are
// discarded silently. A frame with an unrecognized mnemonic is answered
// with a CommandNotRecognized confirmation and reported as a message with
// token TokNone.
func (s *Session) Poll() (*Message, error) {
	for {
		msg, err := s.dec.Poll(s.cmd)
		if err == nil {
			if msg != nil {
				s.log.WithField("frame", string(s.dec.Raw())).Trace("received")
			}
			return msg, nil
		}

		var frameErr *FrameError
		switch {
		case errors.As(err, &frameErr):
			s.log.WithError(err).Debug("frame discarded")
			continue
		case errors.Is(err, ErrUnknownToken):
			s.log.WithError(err).Warn("unrecognized command")
			if err := s.SendConfirmation(TokNone, CodeCommandNotRecognized, 0); err != nil {
				return nil, err
			}
			return &Message{Token: TokNone}, nil
		default:
			return nil, err
		}
	}
}

// Await polls every interval until match accepts a message or ctx ends.
// Messages rejected by match are dropped.
func (s *Session) Await(ctx context.Context, interval time.Duration, match func(*Message) bool) (*Message, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		msg, err := s.Poll()
		if err != nil {
			return nil, err
		}
		if msg != nil && (match == nil || match(msg)) {
			return msg, nil
		}
		if msg != nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Request sends m and waits for the reply carrying the same token or a
// confirmation referring to it. An ERR confirmation is returned as
// *DeviceError together with the reply.
func (s *Session) Request(ctx context.Context, m *Message, interval time.Duration) (*Message, error) {
	if err := s.SendMessage(m); err != nil {
		return nil, err
	}
	reply, err := s.Await(ctx, interval, func(r *Message) bool {
		if r.Token == m.Token {
			return true
		}
		tok, _ := ParseConfirmation(r)
		return tok == m.Token
	})
	if err != nil {
		return nil, err
	}
	if reply.Token == TokError {
		_, devErr := ParseConfirmation(reply)
		return reply, devErr
	}
	return reply, nil
}
