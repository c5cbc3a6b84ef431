// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"errors"
	"math"
	"strings"
	"testing"
)

// decodeAs decodes one frame with a decoder for the given role.
func decodeAs(t *testing.T, role Role, frame string) (*Message, error) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Role = role
	return NewDecoder(cfg).DecodeFrame([]byte(frame))
}

func TestDecoder_Frames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  *Message
	}{
		{
			name:  "bare command",
			frame: ">VER;",
			want:  &Message{Token: TokVersion},
		},
		{
			name:  "lowercase mnemonic",
			frame: ">sdv;",
			want:  &Message{Token: TokSetDigitalValue},
		},
		{
			name:  "decimal list",
			frame: ">SDV V=12,3456,79;",
			want: &Message{Token: TokSetDigitalValue, Params: []Parameter{
				{Key: 'V', Format: FormatDecimal, Values: []int{12, 3456, 79}},
			}},
		},
		{
			name:  "lowercase key",
			frame: ">sdv p=1,2 v=0,1;",
			want: &Message{Token: TokSetDigitalValue, Params: []Parameter{
				{Key: 'P', Format: FormatDecimal, Values: []int{1, 2}},
				{Key: 'V', Format: FormatDecimal, Values: []int{0, 1}},
			}},
		},
		{
			name:  "negative and signed values",
			frame: ">SDT A=-90,+5;",
			want: &Message{Token: TokServoToggle, Params: []Parameter{
				{Key: 'A', Format: FormatDecimal, Values: []int{-90, 5}},
			}},
		},
		{
			name:  "any single separator",
			frame: ">SDT A=1/2|3;",
			want: &Message{Token: TokServoToggle, Params: []Parameter{
				{Key: 'A', Format: FormatDecimal, Values: []int{1, 2, 3}},
			}},
		},
		{
			name:  "empty separator stops the list",
			frame: ">SDT A=1,,2;",
			want: &Message{Token: TokServoToggle, Params: []Parameter{
				{Key: 'A', Format: FormatDecimal, Values: []int{1}},
			}},
		},
		{
			name:  "unparsable first value keeps the parameter",
			frame: ">SDT A=X B=2;",
			want: &Message{Token: TokServoToggle, Params: []Parameter{
				{Key: 'A', Format: FormatDecimal},
				{Key: 'B', Format: FormatDecimal, Values: []int{2}},
			}},
		},
		{
			name:  "values capped at eight",
			frame: ">DUM A=1,2,3,4,5,6,7,8,9,10;",
			want: &Message{Token: TokDummy, Params: []Parameter{
				{Key: 'A', Format: FormatDecimal, Values: []int{1, 2, 3, 4, 5, 6, 7, 8}},
			}},
		},
		{
			name:  "decimal saturates",
			frame: ">DUM A=99999999999,-99999999999;",
			want: &Message{Token: TokDummy, Params: []Parameter{
				{Key: 'A', Format: FormatDecimal, Values: []int{math.MaxInt32, math.MinInt32}},
			}},
		},
		{
			name:  "word hex",
			frame: ">I2W W:000C0D80;",
			want: &Message{Token: TokI2CWrite, Params: []Parameter{
				{Key: 'W', Format: FormatWord, Values: []int{12, 3456}},
			}},
		},
		{
			name:  "byte hex lowercase",
			frame: ">I2W b.0cff;",
			want: &Message{Token: TokI2CWrite, Params: []Parameter{
				{Key: 'B', Format: FormatByte, Values: []int{12, 255}},
			}},
		},
		{
			name:  "short hex chunk ends the list",
			frame: ">I2W W:000C0D8;",
			want: &Message{Token: TokI2CWrite, Params: []Parameter{
				{Key: 'W', Format: FormatWord, Values: []int{12}},
			}},
		},
		{
			name:  "invalid hex chunk ends the list",
			frame: ">I2W B.0CXY01;",
			want: &Message{Token: TokI2CWrite, Params: []Parameter{
				{Key: 'B', Format: FormatByte, Values: []int{12}},
			}},
		},
		{
			name:  "unknown format yields no values",
			frame: ">DUM A?12;",
			want: &Message{Token: TokDummy, Params: []Parameter{
				{Key: 'A', Format: Format('?')},
			}},
		},
		{
			name:  "short fields ignored",
			frame: ">DUM A= B=1;",
			want: &Message{Token: TokDummy, Params: []Parameter{
				{Key: 'B', Format: FormatDecimal, Values: []int{1}},
			}},
		},
		{
			name:  "repeated spaces",
			frame: ">DUM   A=1    B=2;",
			want: &Message{Token: TokDummy, Params: []Parameter{
				{Key: 'A', Format: FormatDecimal, Values: []int{1}},
				{Key: 'B', Format: FormatDecimal, Values: []int{2}},
			}},
		},
		{
			name:  "stops after three parameters",
			frame: ">DUM A=1 B=2 C=3 D=4;",
			want: &Message{Token: TokDummy, Params: []Parameter{
				{Key: 'A', Format: FormatDecimal, Values: []int{1}},
				{Key: 'B', Format: FormatDecimal, Values: []int{2}},
				{Key: 'C', Format: FormatDecimal, Values: []int{3}},
			}},
		},
		{
			name:  "body too short for parameters",
			frame: ">VER A=;",
			want:  &Message{Token: TokVersion},
		},
		{
			name:  "leading noise skipped",
			frame: "\r\nxx<ACK C=3;>STA;",
			want:  &Message{Token: TokStatus},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAs(t, RoleClient, tt.frame)
			if err != nil {
				t.Fatalf("DecodeFrame(%q) error = %v", tt.frame, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("DecodeFrame(%q) = %+v, want %+v", tt.frame, got, tt.want)
			}
		})
	}
}

func TestDecoder_LengthBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{"three byte body accepted", ">STA;", nil},
		{"two byte body discarded", ">ST;", ErrFrameTooShort},
		{"empty body discarded", ">;", ErrFrameTooShort},
		{"126 byte body accepted", ">DUM" + strings.Repeat(" ", 123) + ";", nil},
		{"127 byte body discarded", ">DUM" + strings.Repeat(" ", 124) + ";", ErrFrameTooLong},
		{"longer body discarded", ">DUM" + strings.Repeat(" ", 300) + ";", ErrFrameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := decodeAs(t, RoleClient, tt.frame)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("DecodeFrame() error = %v", err)
				}
				if msg == nil {
					t.Fatal("DecodeFrame() returned no message")
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodeFrame() error = %v, want %v", err, tt.wantErr)
			}
			var frameErr *FrameError
			if !errors.As(err, &frameErr) {
				t.Errorf("error %T is not a *FrameError", err)
			}
			if msg != nil {
				t.Errorf("discarded frame returned message %+v", msg)
			}
		})
	}
}

func TestDecoder_UnknownToken(t *testing.T) {
	_, err := decodeAs(t, RoleHost, "<ZZZ;")
	if !errors.Is(err, ErrUnknownToken) {
		t.Errorf("DecodeFrame(<ZZZ;) error = %v, want ErrUnknownToken", err)
	}
}

func TestDecoder_RoleFiltering(t *testing.T) {
	// A client only listens to host frames and vice versa
	if _, err := decodeAs(t, RoleClient, "<VER;"); !errors.Is(err, ErrIncomplete) {
		t.Errorf("client decoding <VER; error = %v, want ErrIncomplete", err)
	}
	if _, err := decodeAs(t, RoleHost, ">VER;"); !errors.Is(err, ErrIncomplete) {
		t.Errorf("host decoding >VER; error = %v, want ErrIncomplete", err)
	}

	msg, err := Decode([]byte("<ACK C=3;"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.Token != TokAck {
		t.Errorf("Decode() token = %s, want ACK", msg.Token)
	}
}

func TestDecoder_Poll(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		d := NewDecoder(DefaultConfig())
		msg, err := d.Poll(NewMemoryStream())
		if msg != nil || err != nil {
			t.Errorf("Poll() = %v, %v, want nil, nil", msg, err)
		}
	})

	t.Run("split across polls", func(t *testing.T) {
		d := NewDecoder(DefaultConfig())
		s := NewMemoryStream()
		s.FeedString(">VE")
		if msg, err := d.Poll(s); msg != nil || err != nil {
			t.Fatalf("Poll() = %v, %v, want nil, nil", msg, err)
		}
		if !d.Collecting() {
			t.Error("decoder not collecting after a partial frame")
		}
		s.FeedString("R;")
		msg, err := d.Poll(s)
		if err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if msg == nil || msg.Token != TokVersion {
			t.Fatalf("Poll() = %+v, want VER", msg)
		}
		if string(d.Raw()) != ">VER;" {
			t.Errorf("Raw() = %q", d.Raw())
		}
	})

	t.Run("start character inside a frame is body", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Role = RoleHost
		d := NewDecoder(cfg)
		s := NewMemoryStream()
		s.FeedString("<REM temp<5 ok;")
		msg, err := d.Poll(s)
		if err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if msg == nil || msg.Token != TokRemark {
			t.Fatalf("Poll() = %+v, want REM", msg)
		}
		if string(d.Raw()) != "<REM temp<5 ok;" {
			t.Errorf("Raw() = %q, want %q", d.Raw(), "<REM temp<5 ok;")
		}
	})

	t.Run("stops after one frame", func(t *testing.T) {
		d := NewDecoder(DefaultConfig())
		s := NewMemoryStream()
		s.FeedString(">VER;>STA;")
		first, _ := d.Poll(s)
		if first == nil || first.Token != TokVersion {
			t.Fatalf("first Poll() = %+v, want VER", first)
		}
		if s.Available() != len(">STA;") {
			t.Errorf("Available() = %d after first frame", s.Available())
		}
		second, _ := d.Poll(s)
		if second == nil || second.Token != TokStatus {
			t.Errorf("second Poll() = %+v, want STA", second)
		}
	})

	t.Run("skipped bytes", func(t *testing.T) {
		d := NewDecoder(DefaultConfig())
		s := NewMemoryStream()
		s.FeedString("noise>VER;")
		if msg, _ := d.Poll(s); msg == nil {
			t.Fatal("Poll() returned no message")
		}
		if d.Skipped() != 5 {
			t.Errorf("Skipped() = %d, want 5", d.Skipped())
		}
	})
}

func TestDecoder_Sniff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sniff = true
	d := NewDecoder(cfg)
	s := NewMemoryStream()
	s.FeedString(">VER;\r\n<VER V=1 M=2;\r\n")

	msg, err := d.Poll(s)
	if err != nil || msg == nil {
		t.Fatalf("Poll() = %v, %v", msg, err)
	}
	if d.Origin() != RoleHost {
		t.Errorf("Origin() = %s, want host", d.Origin())
	}
	msg, err = d.Poll(s)
	if err != nil || msg == nil {
		t.Fatalf("Poll() = %v, %v", msg, err)
	}
	if d.Origin() != RoleClient {
		t.Errorf("Origin() = %s, want client", d.Origin())
	}
	if v, _ := msg.Value('M', 0); v != 2 {
		t.Errorf("M = %d, want 2", v)
	}
}

func TestDecoder_ReturnsOwnedMessages(t *testing.T) {
	d := NewDecoder(DefaultConfig())
	first, _ := d.DecodeFrame([]byte(">DUM A=1;"))
	second, _ := d.DecodeFrame([]byte(">DUM A=2;"))
	if v, _ := first.Value('A', 0); v != 1 {
		t.Errorf("first message changed to A=%d", v)
	}
	if v, _ := second.Value('A', 0); v != 2 {
		t.Errorf("second message A=%d, want 2", v)
	}
}
