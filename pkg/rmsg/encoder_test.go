// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"errors"
	"testing"
)

func hostConfig() Config {
	cfg := DefaultConfig()
	cfg.Role = RoleHost
	return cfg
}

func TestEncoder_BeginAppendFinalize(t *testing.T) {
	type param struct {
		key    byte
		format Format
		values []int
	}
	tests := []struct {
		name   string
		role   Role
		token  Token
		params []param
		want   string
	}{
		{
			name:  "bare command",
			role:  RoleHost,
			token: TokVersion,
			want:  ">VER;",
		},
		{
			name:  "bare reply",
			role:  RoleClient,
			token: TokStatus,
			want:  "<STA;",
		},
		{
			name:   "decimal list",
			role:   RoleHost,
			token:  TokSetDigitalValue,
			params: []param{{'V', FormatDecimal, []int{12, 3456, 79}}},
			want:   ">SDV V=12,3456,79;",
		},
		{
			name:   "negative decimal",
			role:   RoleHost,
			token:  TokServoToggle,
			params: []param{{'A', FormatDecimal, []int{-90, 0}}},
			want:   ">SDT A=-90,0;",
		},
		{
			name:   "word hex",
			role:   RoleHost,
			token:  TokI2CWrite,
			params: []param{{'W', FormatWord, []int{12, 3456, 0xFFFF}}},
			want:   ">I2W W:000C0D80FFFF;",
		},
		{
			name:   "byte hex clamps",
			role:   RoleHost,
			token:  TokI2CWrite,
			params: []param{{'B', FormatByte, []int{12, 300, -1}}},
			want:   ">I2W B.0CFF00;",
		},
		{
			name:  "three parameters",
			role:  RoleClient,
			token: TokError,
			params: []param{
				{'C', FormatDecimal, []int{10}},
				{'E', FormatDecimal, []int{20, 2}},
				{'D', FormatByte, []int{1}},
			},
			want: "<ERR C=10 E=20,2 D.01;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Role = tt.role
			e := NewEncoder(cfg)
			if err := e.Begin(tt.token); err != nil {
				t.Fatalf("Begin() error = %v", err)
			}
			for _, p := range tt.params {
				if err := e.Append(p.key, p.format, p.values...); err != nil {
					t.Fatalf("Append(%c) error = %v", p.key, err)
				}
			}
			frame, err := e.Finalize()
			if err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			if string(frame) != tt.want {
				t.Errorf("frame = %q, want %q", frame, tt.want)
			}
		})
	}
}

func TestEncoder_FinalizeIdempotence(t *testing.T) {
	e := NewEncoder(hostConfig())

	if _, err := e.Finalize(); !errors.Is(err, ErrNoOpenMessage) {
		t.Errorf("Finalize() before Begin error = %v, want ErrNoOpenMessage", err)
	}

	if err := e.Begin(TokStatus); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	first, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if string(first) != ">STA;" {
		t.Errorf("frame = %q", first)
	}
	if e.IsOpen() {
		t.Error("encoder still open after Finalize")
	}
	if _, err := e.Finalize(); !errors.Is(err, ErrNoOpenMessage) {
		t.Errorf("second Finalize() error = %v, want ErrNoOpenMessage", err)
	}
	if string(first) != ">STA;" {
		t.Errorf("returned frame changed to %q", first)
	}
}

func TestEncoder_BeginDiscardsUnfinished(t *testing.T) {
	e := NewEncoder(hostConfig())
	_ = e.Begin(TokSetDigitalValue)
	_ = e.Append('P', FormatDecimal, 1, 2)
	if err := e.Begin(TokVersion); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	frame, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if string(frame) != ">VER;" {
		t.Errorf("frame = %q, want %q", frame, ">VER;")
	}
}

func TestEncoder_InvalidToken(t *testing.T) {
	for _, tok := range []Token{TokRecord + 1, 200, TokNone} {
		e := NewEncoder(hostConfig())
		if err := e.Begin(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Begin(%d) error = %v, want ErrInvalidToken", tok, err)
		}
		if e.IsOpen() {
			t.Errorf("Begin(%d) left the encoder open", tok)
		}
		if err := e.Append('A', FormatDecimal, 1); !errors.Is(err, ErrNoOpenMessage) {
			t.Errorf("Append() after failed Begin error = %v, want ErrNoOpenMessage", err)
		}
	}
}

func TestEncoder_StrictRejections(t *testing.T) {
	tests := []struct {
		name    string
		key     byte
		format  Format
		values  []int
		wantErr error
	}{
		{"space key", ' ', FormatDecimal, []int{1}, ErrInvalidKey},
		{"end char key", ';', FormatDecimal, []int{1}, ErrInvalidKey},
		{"start char key", '>', FormatDecimal, []int{1}, ErrInvalidKey},
		{"unknown format", 'A', Format('?'), []int{1}, ErrInvalidFormat},
		{"no values", 'A', FormatDecimal, nil, ErrNoValues},
		{"too many values", 'A', FormatByte, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, ErrTooManyValues},
		{"word too large", 'A', FormatWord, []int{0x10000}, ErrValueOutOfRange},
		{"negative word", 'A', FormatWord, []int{-1}, ErrValueOutOfRange},
		{"decimal beyond 32 bits", 'A', FormatDecimal, []int{1 << 40}, ErrValueOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder(hostConfig())
			_ = e.Begin(TokDummy)
			if err := e.Append(tt.key, tt.format, tt.values...); !errors.Is(err, tt.wantErr) {
				t.Errorf("Append() error = %v, want %v", err, tt.wantErr)
			}
			frame, _ := e.Finalize()
			if string(frame) != ">DUM;" {
				t.Errorf("rejected Append modified the frame: %q", frame)
			}
		})
	}
}

func TestEncoder_TooManyParams(t *testing.T) {
	e := NewEncoder(hostConfig())
	_ = e.Begin(TokDummy)
	for _, key := range []byte("ABC") {
		if err := e.Append(key, FormatDecimal, 1); err != nil {
			t.Fatalf("Append(%c) error = %v", key, err)
		}
	}
	if err := e.Append('D', FormatDecimal, 1); !errors.Is(err, ErrTooManyParams) {
		t.Errorf("fourth Append() error = %v, want ErrTooManyParams", err)
	}
	frame, _ := e.Finalize()
	if string(frame) != ">DUM A=1 B=1 C=1;" {
		t.Errorf("frame = %q", frame)
	}
}

func TestEncoder_Permissive(t *testing.T) {
	cfg := hostConfig()
	cfg.Strict = false
	e := NewEncoder(cfg)

	if err := e.Append('A', FormatDecimal, 1); err != nil {
		t.Errorf("Append() without Begin error = %v, want nil in permissive mode", err)
	}
	_ = e.Begin(TokDummy)
	if err := e.Append('A', Format('?'), 1); err != nil {
		t.Errorf("Append() with bad format error = %v, want nil in permissive mode", err)
	}
	if err := e.Append('B', FormatDecimal, 2); err != nil {
		t.Errorf("Append() error = %v", err)
	}
	frame, _ := e.Finalize()
	if string(frame) != ">DUM B=2;" {
		t.Errorf("frame = %q, want %q", frame, ">DUM B=2;")
	}
}

func TestEncoder_FrameTooLong(t *testing.T) {
	for _, strict := range []bool{true, false} {
		cfg := hostConfig()
		cfg.Strict = strict
		cfg.MaxOutLen = 20
		e := NewEncoder(cfg)
		_ = e.Begin(TokSetDigitalValue)

		err := e.Append('V', FormatDecimal, 1, 2, 3, 4, 5, 6, 7, 8)
		if !errors.Is(err, ErrFrameTooLong) {
			t.Errorf("strict=%v: Append() error = %v, want ErrFrameTooLong", strict, err)
		}
		// Exactly at the limit: ">SDV V=1,2,3,4,5,67;" is 20 bytes
		if err := e.Append('V', FormatDecimal, 1, 2, 3, 4, 5, 67); err != nil {
			t.Errorf("strict=%v: Append() at limit error = %v", strict, err)
		}
		frame, err := e.Finalize()
		if err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
		if len(frame) != 20 {
			t.Errorf("strict=%v: frame %q has length %d, want 20", strict, frame, len(frame))
		}
	}
}

func TestEncodeMessage(t *testing.T) {
	m := NewMessage(TokSetDigitalValue)
	if err := m.Add('P', FormatDecimal, 1, 2); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := m.Add('V', FormatDecimal, 0, 1); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	frame, err := Encode(RoleHost, m)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(frame) != ">SDV P=1,2 V=0,1;" {
		t.Errorf("frame = %q", frame)
	}

	bad := &Message{Token: TokDummy, Params: []Parameter{{Key: 'A', Format: FormatDecimal}}}
	cfg := hostConfig()
	cfg.Strict = false
	if _, err := NewEncoder(cfg).EncodeMessage(bad); !errors.Is(err, ErrNoValues) {
		t.Errorf("EncodeMessage() error = %v, want ErrNoValues even in permissive mode", err)
	}
}

func TestEncodeRemark(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	_ = e.Begin(TokSetDigitalValue)
	_ = e.Append('P', FormatDecimal, 3)

	frame, err := e.EncodeRemark("Ready")
	if err != nil {
		t.Fatalf("EncodeRemark() error = %v", err)
	}
	if string(frame) != "<REM Ready;" {
		t.Errorf("frame = %q", frame)
	}
	if _, err := e.EncodeRemark("a;b"); !errors.Is(err, ErrInvalidRemark) {
		t.Errorf("EncodeRemark() error = %v, want ErrInvalidRemark", err)
	}

	pending, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if string(pending) != "<SDV P=3;" {
		t.Errorf("remark clobbered the open message: %q", pending)
	}
}
