// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import "fmt"

// NewVersionMessage returns "VER V=version M=freeMem".
func NewVersionMessage(version, freeMem int) *Message {
	return &Message{Token: TokVersion, Params: []Parameter{
		{Key: 'V', Format: FormatDecimal, Values: []int{version}},
		{Key: 'M', Format: FormatDecimal, Values: []int{freeMem}},
	}}
}

// NewAckMessage returns "ACK C=tok".
func NewAckMessage(tok Token) *Message {
	return &Message{Token: TokAck, Params: []Parameter{
		{Key: 'C', Format: FormatDecimal, Values: []int{int(tok)}},
	}}
}

// NewErrorMessage returns "ERR C=tok E=code,value".
func NewErrorMessage(tok Token, code ErrorCode, value int) *Message {
	return &Message{Token: TokError, Params: []Parameter{
		{Key: 'C', Format: FormatDecimal, Values: []int{int(tok)}},
		{Key: 'E', Format: FormatDecimal, Values: []int{int(code), value}},
	}}
}

// NewConfirmation returns an ACK when code is CodeNone, otherwise an ERR.
func NewConfirmation(tok Token, code ErrorCode, value int) *Message {
	if code == CodeNone {
		return NewAckMessage(tok)
	}
	return NewErrorMessage(tok, code, value)
}

// ParseConfirmation extracts the token a confirmation refers to.
//
// An ACK returns the token and nil. An ERR returns the token and a
// *DeviceError. Anything else, including a malformed ACK or ERR, returns
// TokNone and an error wrapping ErrNotConfirmation.
func ParseConfirmation(m *Message) (Token, error) {
	if m == nil {
		return TokNone, ErrNotConfirmation
	}
	switch m.Token {
	case TokAck, TokError:
	default:
		return TokNone, fmt.Errorf("%w: %s", ErrNotConfirmation, m.Token)
	}
	if err := Validate(m, false); err != nil {
		return TokNone, fmt.Errorf("%w: %v", ErrNotConfirmation, err)
	}

	c, _ := m.Value('C', 0)
	if c < 0 || c > int(TokNone) {
		return TokNone, fmt.Errorf("%w: token %d out of range", ErrNotConfirmation, c)
	}
	tok := Token(c)
	if m.Token == TokAck {
		return tok, nil
	}
	code, _ := m.Value('E', 0)
	value, _ := m.Value('E', 1)
	return tok, &DeviceError{Token: tok, Code: ErrorCode(code), Value: value}
}
