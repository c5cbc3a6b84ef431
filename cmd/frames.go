// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"time"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
)

// frameEvent is one decoder outcome: a message or the reason a frame was
// discarded.
type frameEvent struct {
	time    time.Time
	origin  rmsg.Role
	raw     []byte
	msg     *rmsg.Message
	err     error
	skipped int // Bytes skipped before this frame
}

// newSniffDecoder returns a decoder accepting frames from both directions.
func newSniffDecoder() (*rmsg.Decoder, *rmsg.TokenTable, error) {
	cfg, err := opts.protocolConfig(rmsg.RoleHost, logger)
	if err != nil {
		return nil, nil, err
	}
	cfg.Sniff = true
	return rmsg.NewDecoder(cfg), cfg.Tokens, nil
}

// pumpFrames decodes frames from s and hands every outcome to fn until fn
// returns false, ctx is done or the connection ends.
func pumpFrames(ctx context.Context, s *connStream, d *rmsg.Decoder, fn func(frameEvent) bool) error {
	for {
		if err := s.Wait(ctx); err != nil {
			return err
		}
		for {
			msg, err := d.Poll(s)
			if msg == nil && err == nil {
				break
			}
			ev := frameEvent{
				time:    time.Now(),
				origin:  d.Origin(),
				raw:     d.Raw(),
				msg:     msg,
				err:     err,
				skipped: d.Skipped(),
			}
			if !fn(ev) {
				return nil
			}
		}
	}
}

// newFrameValidator returns a validator for sniffed traffic. Remark text
// and user token parameters are free form, so those are accepted with
// any shape.
func newFrameValidator(tokens *rmsg.TokenTable) *rmsg.Validator {
	v := rmsg.NewValidator()
	anyShape := func(*rmsg.Message, bool) error { return nil }
	v.Register(rmsg.TokRemark, anyShape)
	for tok := rmsg.TokDummy + 1; tok <= tokens.LastIndex(); tok++ {
		v.Register(tok, anyShape)
	}
	return v
}

// validate checks a decoded frame in the direction it travelled: host
// frames are commands, client frames are replies.
func (ev frameEvent) validate(v *rmsg.Validator) error {
	if ev.msg == nil {
		return nil
	}
	return v.Validate(ev.msg, ev.origin == rmsg.RoleHost)
}
