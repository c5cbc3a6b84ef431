// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"errors"
	"testing"
)

func msg(tok Token, params ...Parameter) *Message {
	return &Message{Token: tok, Params: params}
}

func dec(key byte, values ...int) Parameter {
	return Parameter{Key: key, Format: FormatDecimal, Values: values}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		msg       *Message
		asCommand bool
		want      bool
	}{
		{"REM bare command", msg(TokRemark), true, true},
		{"REM bare reply", msg(TokRemark), false, true},
		{"REM with params", msg(TokRemark, dec('A', 1)), false, false},
		{"NONE bare", msg(TokNone), false, true},
		{"STA bare command", msg(TokStatus), true, true},
		{"STA with params", msg(TokStatus, dec('A', 1)), true, false},
		{"DUM anything", msg(TokDummy, dec('A', 1, 2), dec('B', 3)), true, true},
		{"DUM bare reply", msg(TokDummy), false, true},
		{"VER bare command", msg(TokVersion), true, true},
		{"VER command with params", msg(TokVersion, dec('V', 1), dec('M', 2)), true, false},
		{"VER reply", msg(TokVersion, dec('V', 12), dec('M', 3456)), false, true},
		{"VER bare reply", msg(TokVersion), false, false},
		{"VER reply swapped keys", msg(TokVersion, dec('M', 1), dec('V', 2)), false, false},
		{"VER reply two values", msg(TokVersion, dec('V', 1, 2), dec('M', 2)), false, false},
		{"ERR reply", msg(TokError, dec('C', 7), dec('E', 6, 0)), false, true},
		{"ERR as command", msg(TokError, dec('C', 7), dec('E', 6, 0)), true, true},
		{"ERR missing E", msg(TokError, dec('C', 7)), false, false},
		{"ERR E one value", msg(TokError, dec('C', 7), dec('E', 6)), false, false},
		{"ACK reply", msg(TokAck, dec('C', 7)), false, true},
		{"ACK as command", msg(TokAck, dec('C', 7)), true, true},
		{"ACK two values", msg(TokAck, dec('C', 7, 8)), false, false},
		{"ACK bare", msg(TokAck), false, false},
		{"user token has no rule", msg(TokSetDigitalValue, dec('P', 1)), true, false},
		{"out of table token", msg(Token(42)), true, false},
		{"nil message", nil, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Check(tt.msg, tt.asCommand); got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate_ShapeError(t *testing.T) {
	err := Validate(msg(TokVersion), false)
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("Validate() error = %v, want *ShapeError", err)
	}
	if shapeErr.Token != TokVersion || shapeErr.AsCommand {
		t.Errorf("ShapeError = %+v", shapeErr)
	}
	if shapeErr.Error() != "VER as reply: expected 2 parameters, got 0" {
		t.Errorf("Error() = %q", shapeErr.Error())
	}
}

func TestValidator_Register(t *testing.T) {
	v := NewValidator()
	v.Register(TokSetDigitalValue, ExpectParams('P', 2, 'V', 2))

	if !v.Check(msg(TokSetDigitalValue, dec('P', 1, 2), dec('V', 0, 1)), true) {
		t.Error("registered rule rejected a matching message")
	}
	if v.Check(msg(TokSetDigitalValue, dec('P', 1)), true) {
		t.Error("registered rule accepted a mismatching message")
	}
	if Check(msg(TokSetDigitalValue, dec('P', 1, 2), dec('V', 0, 1)), true) {
		t.Error("Register leaked into the default validator")
	}
}

func TestCheck_DoesNotModify(t *testing.T) {
	m := msg(TokError, dec('C', 7), dec('E', 6, 0))
	before := m.Clone()
	Check(m, false)
	Check(m, true)
	if !m.Equal(before) {
		t.Errorf("Check modified the message: %+v", m)
	}
}
