// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	"github.com/spf13/cobra"
)

var (
	emulateNotReady bool
	emulateReject   []string
	emulateEcho     bool
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Act as an RMsg client device",
	Long: `Answer host commands the way an RMsg client device does.

The emulator announces itself with the "Ready" remark and then answers:
  VER  - version report (V=firmware version, M=free memory)
  STA  - "Ready" remark followed by an acknowledgement
  DUM  - acknowledgement
  user - acknowledgement, or an error with --not-ready / --reject
  ???  - ERR C=255 E=1,0 for unrecognized mnemonics

Useful for testing host software and the other rmsgstat commands without
hardware, e.g. over a virtual serial port pair.`,
	RunE: runEmulate,
}

func init() {
	rootCmd.AddCommand(emulateCmd)
	emulateCmd.Flags().IntVar(&opts.FirmwareVersion, "firmware-version", opts.FirmwareVersion, "Version reported in VER replies")
	emulateCmd.Flags().IntVar(&opts.FreeMemory, "free-memory", opts.FreeMemory, "Free memory reported in VER replies")
	emulateCmd.Flags().BoolVar(&emulateNotReady, "not-ready", false, "Reject user commands with DEVICE_NOT_READY")
	emulateCmd.Flags().StringSliceVar(&emulateReject, "reject", nil, "Mnemonics to reject with COMMAND_NOT_IMPLEMENTED")
	emulateCmd.Flags().BoolVar(&emulateEcho, "echo", false, "Echo every executed command as a remark")
}

// emulator holds the behavior of an emulated client device.
type emulator struct {
	sess            *rmsg.Session
	firmwareVersion int
	freeMemory      int
	notReady        bool
	reject          map[rmsg.Token]bool
	echo            bool
}

func newEmulator(sess *rmsg.Session, reject []string) (*emulator, error) {
	e := &emulator{
		sess:            sess,
		firmwareVersion: opts.FirmwareVersion,
		freeMemory:      opts.FreeMemory,
		notReady:        emulateNotReady,
		reject:          make(map[rmsg.Token]bool),
		echo:            emulateEcho,
	}
	for _, mnemonic := range reject {
		tok := sess.Tokens().Lookup(strings.TrimSpace(mnemonic))
		if tok == rmsg.TokNone {
			return nil, fmt.Errorf("%w: %q", rmsg.ErrUnknownToken, mnemonic)
		}
		e.reject[tok] = true
	}
	return e, nil
}

// handle answers one command. It returns a short description of what was
// done for display.
func (e *emulator) handle(m *rmsg.Message) (string, error) {
	switch m.Token {
	case rmsg.TokNone:
		return "unrecognized, rejected", nil

	case rmsg.TokRemark, rmsg.TokAck, rmsg.TokError:
		// Informational frames from the host are not confirmed
		return "ignored", nil

	case rmsg.TokVersion:
		if !rmsg.Check(m, true) {
			return "malformed", e.sess.SendConfirmation(m.Token, rmsg.CodeInvalidOrTooFewParameters, len(m.Params))
		}
		return fmt.Sprintf("version %d reported", e.firmwareVersion), e.sess.SendVersion(e.firmwareVersion, e.freeMemory)

	case rmsg.TokStatus:
		if !rmsg.Check(m, true) {
			return "malformed", e.sess.SendConfirmation(m.Token, rmsg.CodeInvalidOrTooFewParameters, len(m.Params))
		}
		if e.notReady {
			return "not ready", e.sess.SendConfirmation(m.Token, rmsg.CodeDeviceNotReady, 0)
		}
		if err := e.sess.SendRemark(rmsg.StrReady); err != nil {
			return "", err
		}
		return "ready", e.sess.SendConfirmation(m.Token, rmsg.CodeNone, 0)
	}

	if e.reject[m.Token] {
		return "not implemented", e.sess.SendConfirmation(m.Token, rmsg.CodeCommandNotImplemented, 0)
	}
	if e.notReady {
		return "not ready", e.sess.SendConfirmation(m.Token, rmsg.CodeDeviceNotReady, 0)
	}
	if e.echo {
		if err := e.echoCommand(m); err != nil {
			logger.WithError(err).Warn("echo skipped")
		}
	}
	if err := e.sess.SendConfirmation(m.Token, rmsg.CodeNone, 0); err != nil {
		return "", err
	}
	if e.echo {
		if err := e.sess.SendRemark(rmsg.StrDone); err != nil {
			return "", err
		}
	}
	return "acknowledged", nil
}

func (e *emulator) echoCommand(m *rmsg.Message) error {
	e.sess.BeginRemark()
	if err := e.sess.AppendRemark("exec " + rmsg.FormatTokenName(m.Token, e.sess.Tokens())); err != nil {
		return err
	}
	if len(m.Params) > 0 {
		if err := e.sess.AppendRemark(" " + rmsg.FormatParams(m.Params)); err != nil {
			return err
		}
	}
	return e.sess.EndRemark()
}

func runEmulate(cmd *cobra.Command, args []string) error {
	sess, stream, connInfo, err := openSession(rmsg.RoleClient)
	if err != nil {
		return err
	}
	defer stream.Close()

	emu, err := newEmulator(sess, emulateReject)
	if err != nil {
		return err
	}

	fmt.Printf("rmsgstat - Client Emulator\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Firmware version: %d, free memory: %d bytes\n", emu.firmwareVersion, emu.freeMemory)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := sess.SendRemark(rmsg.StrReady); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for {
		if err := stream.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrConnectionClosed) {
				return nil
			}
			return err
		}
		for {
			m, err := sess.Poll()
			if err != nil {
				return err
			}
			if m == nil {
				break
			}
			result, err := emu.handle(m)
			if err != nil {
				return err
			}
			fmt.Printf("[%s] %-24s %s\n", time.Now().Format("15:04:05.000"), sess.Decoder().Raw(), result)
		}
	}
}
