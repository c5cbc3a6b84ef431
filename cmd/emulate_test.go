// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
)

// newTestEmulator returns an emulator on the client end of a pipe and the
// host end to feed it from.
func newTestEmulator(t *testing.T, reject ...string) (*emulator, *rmsg.Session, *rmsg.MemoryStream, *rmsg.MemoryStream) {
	t.Helper()
	hostStream, clientStream := rmsg.Pipe()

	hostCfg := rmsg.DefaultConfig()
	hostCfg.Role = rmsg.RoleHost
	host, err := rmsg.NewSession(hostStream, nil, hostCfg)
	if err != nil {
		t.Fatalf("NewSession(host) error = %v", err)
	}
	client, err := rmsg.NewSession(clientStream, nil, rmsg.DefaultConfig())
	if err != nil {
		t.Fatalf("NewSession(client) error = %v", err)
	}

	emu, err := newEmulator(client, reject)
	if err != nil {
		t.Fatalf("newEmulator() error = %v", err)
	}
	emu.firmwareVersion = 3
	emu.freeMemory = 512
	emu.notReady = false
	emu.echo = false
	return emu, host, hostStream, clientStream
}

// exchange sends frame from the host side and lets the emulator answer
// every command it received. It returns the client's output lines.
func exchange(t *testing.T, emu *emulator, hostStream, clientStream *rmsg.MemoryStream, frame string) []string {
	t.Helper()
	before := len(clientStream.Lines())
	if err := hostStream.WriteLine([]byte(frame)); err != nil {
		t.Fatalf("WriteLine() error = %v", err)
	}
	for {
		m, err := emu.sess.Poll()
		if err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if m == nil {
			break
		}
		if _, err := emu.handle(m); err != nil {
			t.Fatalf("handle() error = %v", err)
		}
	}
	return clientStream.Lines()[before:]
}

func TestEmulator_Replies(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  []string
	}{
		{name: "version", frame: ">VER;", want: []string{"<VER V=3 M=512;"}},
		{name: "version with params", frame: ">VER X=1;", want: []string{"<ERR C=1 E=4,1;"}},
		{name: "status", frame: ">STA;", want: []string{"<REM Ready;", "<ACK C=4;"}},
		{name: "dummy", frame: ">DUM A=1,2,3;", want: []string{"<ACK C=5;"}},
		{name: "user command", frame: ">SDV P=1,2 V=0,1;", want: []string{"<ACK C=7;"}},
		{name: "unrecognized", frame: ">XYZ;", want: []string{"<ERR C=255 E=1,0;"}},
		{name: "remark ignored", frame: ">REM hello;", want: nil},
		{name: "ack ignored", frame: ">ACK C=3;", want: nil},
		{name: "client frame ignored", frame: "<VER;", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emu, _, hostStream, clientStream := newTestEmulator(t)
			got := exchange(t, emu, hostStream, clientStream, tt.frame)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("replies = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmulator_RejectAndNotReady(t *testing.T) {
	emu, _, hostStream, clientStream := newTestEmulator(t, "sdm", " CLR")

	if got := exchange(t, emu, hostStream, clientStream, ">SDM P=1 M=1;"); !reflect.DeepEqual(got, []string{"<ERR C=6 E=5,0;"}) {
		t.Errorf("rejected SDM replies = %q", got)
	}
	if got := exchange(t, emu, hostStream, clientStream, ">CLR;"); !reflect.DeepEqual(got, []string{"<ERR C=9 E=5,0;"}) {
		t.Errorf("rejected CLR replies = %q", got)
	}

	emu.notReady = true
	if got := exchange(t, emu, hostStream, clientStream, ">SDV P=1 V=1;"); !reflect.DeepEqual(got, []string{"<ERR C=7 E=6,0;"}) {
		t.Errorf("not ready SDV replies = %q", got)
	}
	if got := exchange(t, emu, hostStream, clientStream, ">STA;"); !reflect.DeepEqual(got, []string{"<ERR C=4 E=6,0;"}) {
		t.Errorf("not ready STA replies = %q", got)
	}
	// VER is answered regardless
	if got := exchange(t, emu, hostStream, clientStream, ">VER;"); !reflect.DeepEqual(got, []string{"<VER V=3 M=512;"}) {
		t.Errorf("not ready VER replies = %q", got)
	}
}

func TestEmulator_Echo(t *testing.T) {
	emu, _, hostStream, clientStream := newTestEmulator(t)
	emu.echo = true

	got := exchange(t, emu, hostStream, clientStream, ">SDV P=1,2 V=0,1;")
	want := []string{"<REM exec SDV P=1,2 V=0,1;", "<ACK C=7;", "<REM ...done;"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("replies = %q, want %q", got, want)
	}
}

func TestNewEmulator_UnknownReject(t *testing.T) {
	_, clientStream := rmsg.Pipe()
	client, err := rmsg.NewSession(clientStream, nil, rmsg.DefaultConfig())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if _, err := newEmulator(client, []string{"XYZ"}); !errors.Is(err, rmsg.ErrUnknownToken) {
		t.Errorf("newEmulator() error = %v, want ErrUnknownToken", err)
	}
}

func TestEmulator_HostRequest(t *testing.T) {
	emu, host, _, _ := newTestEmulator(t)

	// Answer the host's request once it is on the wire
	if err := host.SendMessage(rmsg.NewMessage(rmsg.TokVersion)); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	m, err := emu.sess.Poll()
	if err != nil || m == nil {
		t.Fatalf("Poll() = %v, %v", m, err)
	}
	if _, err := emu.handle(m); err != nil {
		t.Fatalf("handle() error = %v", err)
	}

	reply, err := host.Poll()
	if err != nil || reply == nil {
		t.Fatalf("host Poll() = %v, %v", reply, err)
	}
	if !rmsg.Check(reply, false) {
		t.Errorf("reply %+v does not validate", reply)
	}
	if v, _ := reply.Value('V', 0); v != 3 {
		t.Errorf("V = %d, want 3", v)
	}
}
