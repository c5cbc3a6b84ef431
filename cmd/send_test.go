// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string // Encoded as host frame
		wantErr error
	}{
		{name: "bare mnemonic", args: []string{"VER"}, want: ">VER;"},
		{name: "lowercase keys", args: []string{"SDV", "p=1,2", "v=0,1"}, want: ">SDV P=1,2 V=0,1;"},
		{name: "byte hex", args: []string{"I2W", "A.20", "D.0CFF"}, want: ">I2W A.20 D.0CFF;"},
		{name: "word hex", args: []string{"SDT", "P=3", "T:03E8"}, want: ">SDT P=3 T:03E8;"},
		{name: "negative decimal", args: []string{"DUM", "X=-5"}, want: ">DUM X=-5;"},
		{name: "unknown mnemonic", args: []string{"XYZ"}, wantErr: rmsg.ErrUnknownToken},
		{name: "too many params", args: []string{"DUM", "A=1", "B=2", "C=3", "D=4"}, wantErr: rmsg.ErrTooManyParams},
		{name: "invalid format", args: []string{"DUM", "A?1"}, wantErr: rmsg.ErrInvalidFormat},
		{name: "no values", args: []string{"DUM", "A=x"}, wantErr: rmsg.ErrNoValues},
		{name: "trailing garbage", args: []string{"SDV", "P=1,2,x9"}, wantErr: errInvalidValues},
		{name: "decimal out of range", args: []string{"DUM", "A=4294967296"}, wantErr: errInvalidValues},
		{name: "odd hex digits", args: []string{"I2W", "D.0CF"}, wantErr: errInvalidValues},
		{name: "bad hex chunk", args: []string{"I2W", "D.0CZZ"}, wantErr: errInvalidValues},
		{name: "nine decimals", args: []string{"DUM", "A=1,2,3,4,5,6,7,8,9"}, wantErr: rmsg.ErrTooManyValues},
		{name: "nine words", args: []string{"DUM", "A:000100020003000400050006000700080009"}, wantErr: rmsg.ErrTooManyValues},
		{name: "eight decimals", args: []string{"DUM", "A=1,2,3,4,5,6,7,8"}, want: ">DUM A=1,2,3,4,5,6,7,8;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := parseCommand(tt.args, rmsg.DefaultTokens)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseCommand() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCommand() error = %v", err)
			}
			frame, err := rmsg.Encode(rmsg.RoleHost, m)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(frame) != tt.want {
				t.Errorf("frame = %q, want %q", frame, tt.want)
			}
		})
	}
}

func TestParseCommand_Malformed(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "empty", args: nil},
		{name: "short mnemonic", args: []string{"VE"}},
		{name: "long mnemonic", args: []string{"VERS"}},
		{name: "short param", args: []string{"SDV", "P="}},
		{name: "embedded space", args: []string{"SDV", "P=1, 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if m, err := parseCommand(tt.args, rmsg.DefaultTokens); err == nil {
				t.Errorf("parseCommand(%q) = %+v, want error", tt.args, m)
			}
		})
	}
}
