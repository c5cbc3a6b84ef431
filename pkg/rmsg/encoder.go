// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Encoder builds outbound frames.
//
// A frame is built with Begin, any number of Append calls and Finalize.
// Begin always discards an unfinished message. The encoder is not safe
// for concurrent use.
type Encoder struct {
	tokens  *TokenTable
	start   byte
	maxLen  int
	strict  bool
	log     logrus.FieldLogger
	buf     []byte
	nParams int
	open    bool
}

// NewEncoder creates an encoder emitting frames for cfg.Role.
func NewEncoder(cfg Config) *Encoder {
	cfg = cfg.withDefaults()
	return &Encoder{
		tokens: cfg.Tokens,
		start:  cfg.Role.StartChr(),
		maxLen: cfg.MaxOutLen,
		strict: cfg.Strict,
		log:    cfg.Logger,
		buf:    make([]byte, 0, cfg.MaxOutLen),
	}
}

// IsOpen reports whether a message has been begun but not finalized.
func (e *Encoder) IsOpen() bool {
	return e.open
}

// Begin starts a new message for tok, discarding any unfinished one.
// On an invalid token the encoder is left unstarted.
func (e *Encoder) Begin(tok Token) error {
	if e.open {
		e.log.WithField("pending", string(e.buf)).Debug("discarding unfinished message")
	}
	e.buf = e.buf[:0]
	e.nParams = 0
	e.open = false

	if !e.tokens.Valid(tok) {
		return fmt.Errorf("%w: %d (last %d)", ErrInvalidToken, tok, e.tokens.LastIndex())
	}
	e.buf = append(e.buf, e.start)
	e.buf = append(e.buf, e.tokens.Mnemonic(tok)...)
	e.open = true
	return nil
}

// Append adds " key format values" to the open message.
//
// Rejections (no open message, bad key, bad format, limits) are returned
// in strict mode and dropped otherwise. Exceeding the maximum frame length
// is returned in both modes.
func (e *Encoder) Append(key byte, format Format, values ...int) error {
	err := e.append(key, format, values)
	if err == nil {
		return nil
	}
	if e.strict || isLengthError(err) {
		return err
	}
	e.log.WithError(err).WithField("key", string(key)).Debug("append ignored")
	return nil
}

func (e *Encoder) append(key byte, format Format, values []int) error {
	if !e.open {
		return ErrNoOpenMessage
	}
	if e.nParams >= MaxParams {
		return fmt.Errorf("%w: max %d", ErrTooManyParams, MaxParams)
	}
	if err := checkParameter(key, format, values); err != nil {
		return err
	}

	n := len(e.buf)
	e.buf = append(e.buf, SpacerChr, key, byte(format))
	e.buf = AppendValues(e.buf, format, values)

	// One byte is reserved for the end character
	if len(e.buf)+1 > e.maxLen {
		length := len(e.buf) + 1
		e.buf = e.buf[:n]
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLong, length, e.maxLen)
	}
	e.nParams++
	return nil
}

// Finalize closes the open message and returns a copy of the frame.
// Returns ErrNoOpenMessage if nothing was begun or it was already finalized.
func (e *Encoder) Finalize() ([]byte, error) {
	if !e.open {
		return nil, ErrNoOpenMessage
	}
	e.buf = append(e.buf, EndChr)
	e.open = false

	frame := make([]byte, len(e.buf))
	copy(frame, e.buf)
	return frame, nil
}

// EncodeMessage converts a message into a frame. Every parameter is
// checked regardless of the strict setting.
func (e *Encoder) EncodeMessage(m *Message) ([]byte, error) {
	if err := e.Begin(m.Token); err != nil {
		return nil, err
	}
	for _, p := range m.Params {
		if err := e.append(p.Key, p.Format, p.Values); err != nil {
			e.open = false
			return nil, fmt.Errorf("parameter %q: %w", p.Key, err)
		}
	}
	return e.Finalize()
}

// EncodeRemark builds a free-text remark frame "REM text". It does not
// touch a message being built with Begin and Append.
func (e *Encoder) EncodeRemark(text string) ([]byte, error) {
	if err := checkRemarkText(text); err != nil {
		return nil, err
	}
	length := 1 + TokenStrLength + 1 + len(text) + 1
	if length > e.maxLen {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLong, length, e.maxLen)
	}
	frame := make([]byte, 0, length)
	frame = append(frame, e.start)
	frame = append(frame, e.tokens.Mnemonic(TokRemark)...)
	frame = append(frame, SpacerChr)
	frame = append(frame, text...)
	frame = append(frame, EndChr)
	return frame, nil
}

// Encode converts a message into a frame emitted by role, using the
// default token table and limits.
func Encode(role Role, m *Message) ([]byte, error) {
	cfg := DefaultConfig()
	cfg.Role = role
	return NewEncoder(cfg).EncodeMessage(m)
}

// AppendValues renders values in the given format.
//
// Decimal values are comma separated. Word values are 4 hex digits and
// byte values are clamped to [0,255] and rendered as 2 hex digits, both
// without separator.
func AppendValues(dst []byte, format Format, values []int) []byte {
	switch format {
	case FormatDecimal:
		for i, v := range values {
			if i > 0 {
				dst = append(dst, SepChr)
			}
			dst = strconv.AppendInt(dst, int64(v), 10)
		}
	case FormatWord:
		for _, v := range values {
			dst = fmt.Appendf(dst, "%04X", uint16(v))
		}
	case FormatByte:
		for _, v := range values {
			dst = fmt.Appendf(dst, "%02X", clampByte(v))
		}
	}
	return dst
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func checkRemarkText(text string) error {
	if len(text) > DefaultMaxOutLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidRemark, len(text))
	}
	if strings.ContainsAny(text, ";\r\n") {
		return fmt.Errorf("%w: %q contains a frame or line terminator", ErrInvalidRemark, text)
	}
	return nil
}

func isLengthError(err error) bool {
	return errors.Is(err, ErrFrameTooLong)
}
