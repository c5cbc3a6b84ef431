// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Config configures encoders, decoders and sessions.
type Config struct {
	// Role decides which start character is emitted and expected.
	Role Role

	// Tokens is the token table. Nil means DefaultTokens.
	Tokens *TokenTable

	// MaxInLen caps the body of an inbound frame. Bodies of MaxInLen or
	// more bytes are discarded. Zero means DefaultMaxInLen; Validate
	// rejects negative values.
	MaxInLen int

	// MaxOutLen caps the total length of an outbound frame.
	MaxOutLen int

	// Strict surfaces Append rejections as errors. When false, a rejected
	// Append is a silent no-op as in the legacy firmware API.
	Strict bool

	// Sniff makes the decoder accept frames from both roles.
	Sniff bool

	// Remarks is the remark string table. Nil means DefaultRemarks().
	// Sessions keep their own copy.
	Remarks []string

	// Logger receives protocol diagnostics. Nil discards them.
	Logger logrus.FieldLogger
}

// DefaultConfig returns the configuration of a strict client endpoint.
func DefaultConfig() Config {
	return Config{
		Role:      RoleClient,
		Tokens:    DefaultTokens,
		MaxInLen:  DefaultMaxInLen,
		MaxOutLen: DefaultMaxOutLen,
		Strict:    true,
		Remarks:   DefaultRemarks(),
	}
}

// withDefaults fills zero fields with their defaults. Non-positive
// lengths fall back to the defaults and the remark table is copied.
func (c Config) withDefaults() Config {
	if c.Tokens == nil {
		c.Tokens = DefaultTokens
	}
	if c.MaxInLen <= 0 {
		c.MaxInLen = DefaultMaxInLen
	}
	if c.MaxOutLen <= 0 {
		c.MaxOutLen = DefaultMaxOutLen
	}
	if c.Remarks == nil {
		c.Remarks = DefaultRemarks()
	} else {
		c.Remarks = append([]string(nil), c.Remarks...)
	}
	if c.Logger == nil {
		c.Logger = discardLogger()
	}
	return c
}

// Validate checks the configuration limits.
func (c Config) Validate() error {
	if c.MaxInLen < 0 || c.MaxOutLen < 0 {
		return fmt.Errorf("%w: negative frame length", ErrInvalidConfig)
	}
	c = c.withDefaults()
	if c.Role != RoleClient && c.Role != RoleHost {
		return fmt.Errorf("%w: role %d", ErrInvalidConfig, c.Role)
	}
	if c.MaxInLen <= MinInLen {
		return fmt.Errorf("%w: max_in_len %d must exceed %d", ErrInvalidConfig, c.MaxInLen, MinInLen)
	}
	if shortest := TokenStrLength + 2; c.MaxOutLen < shortest {
		return fmt.Errorf("%w: max_out_len %d below minimum frame %d", ErrInvalidConfig, c.MaxOutLen, shortest)
	}
	for i, r := range c.Remarks {
		if err := checkRemarkText(r); err != nil {
			return fmt.Errorf("%w: remark %d: %v", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
