// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"fmt"
	"math"
)

// Format selects how parameter values are rendered on the wire.
type Format byte

// Parameter formats
const (
	FormatDecimal Format = '=' // 12,3456,79
	FormatWord    Format = ':' // 000C0D80
	FormatByte    Format = '.' // 0CFF
)

// Valid reports whether f is one of the three recognized formats.
func (f Format) Valid() bool {
	return f == FormatDecimal || f == FormatWord || f == FormatByte
}

func (f Format) String() string {
	switch f {
	case FormatDecimal:
		return "decimal"
	case FormatWord:
		return "word-hex"
	case FormatByte:
		return "byte-hex"
	default:
		return fmt.Sprintf("unknown(%q)", byte(f))
	}
}

// Parameter is one keyed group of values within a message.
type Parameter struct {
	Key    byte
	Format Format
	Values []int
}

// Message is the structured form of one frame.
type Message struct {
	Token  Token
	Params []Parameter
}

// NewMessage returns an empty message for tok.
func NewMessage(tok Token) *Message {
	return &Message{Token: tok}
}

// Add appends a parameter, enforcing the message limits.
//
// Lowercase keys are accepted but the decoder uppercases keys, so a message
// only survives an encode/decode round trip unchanged when its keys are
// not lowercase letters.
func (m *Message) Add(key byte, format Format, values ...int) error {
	if len(m.Params) >= MaxParams {
		return fmt.Errorf("%w: max %d", ErrTooManyParams, MaxParams)
	}
	if err := checkParameter(key, format, values); err != nil {
		return err
	}
	v := make([]int, len(values))
	copy(v, values)
	m.Params = append(m.Params, Parameter{Key: key, Format: format, Values: v})
	return nil
}

// Param returns the first parameter with the given key.
func (m *Message) Param(key byte) (Parameter, bool) {
	for _, p := range m.Params {
		if p.Key == key {
			return p, true
		}
	}
	return Parameter{}, false
}

// Value returns values[i] of the parameter with the given key.
func (m *Message) Value(key byte, i int) (int, bool) {
	p, ok := m.Param(key)
	if !ok || i < 0 || i >= len(p.Values) {
		return 0, false
	}
	return p.Values[i], true
}

// Reset clears the message to TokNone with no parameters.
func (m *Message) Reset() {
	m.Token = TokNone
	m.Params = nil
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	out := &Message{Token: m.Token}
	if m.Params != nil {
		out.Params = make([]Parameter, len(m.Params))
		for i, p := range m.Params {
			out.Params[i] = Parameter{Key: p.Key, Format: p.Format, Values: append([]int(nil), p.Values...)}
		}
	}
	return out
}

// Equal reports whether both messages carry the same token and parameters.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Token != o.Token || len(m.Params) != len(o.Params) {
		return false
	}
	for i := range m.Params {
		a, b := m.Params[i], o.Params[i]
		if a.Key != b.Key || a.Format != b.Format || len(a.Values) != len(b.Values) {
			return false
		}
		for j := range a.Values {
			if a.Values[j] != b.Values[j] {
				return false
			}
		}
	}
	return true
}

// checkParameter validates a parameter for encoding.
func checkParameter(key byte, format Format, values []int) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if !format.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, byte(format))
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: key %q", ErrNoValues, key)
	}
	if len(values) > MaxDataPerParam {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyValues, len(values), MaxDataPerParam)
	}
	if format == FormatDecimal {
		for _, v := range values {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return fmt.Errorf("%w: %d does not fit 32 bits", ErrValueOutOfRange, v)
			}
		}
	}
	if format == FormatWord {
		for _, v := range values {
			if v < 0 || v > 0xFFFF {
				return fmt.Errorf("%w: %d does not fit a word", ErrValueOutOfRange, v)
			}
		}
	}
	return nil
}

// validKey reports whether key can appear as a parameter key on the wire.
func validKey(key byte) bool {
	if key <= ' ' || key >= 0x7F {
		return false
	}
	switch key {
	case EndChr, StartChrClient, StartChrHost:
		return false
	}
	return true
}
