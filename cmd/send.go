// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	"github.com/spf13/cobra"
)

var (
	sendTimeout int
	sendNoWait  bool
)

var sendCmd = &cobra.Command{
	Use:   "send MNEMONIC [KEY=VALUES...]",
	Short: "Send one command and wait for its confirmation",
	Long: `Send a single command and wait for the device to confirm it.

The command is written the way it appears on the wire, without framing:

  rmsgstat send SDV P=1,2 V=0,1
  rmsgstat send I2W A.20 D.0CFF
  rmsgstat send VER

Formats: '=' decimal (comma separated), ':' 4-digit hex words, '.' 2-digit
hex bytes. The reply is either the command's own reply (VER), or an ACK or
ERR confirmation referring to the command.

Exit codes:
  0 - Command acknowledged (or sent, with --no-wait)
  1 - Command rejected, timed out or invalid
  2 - Connection error`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendTimeout, "timeout", 5, "Timeout in seconds to wait for the confirmation")
	sendCmd.Flags().BoolVar(&sendNoWait, "no-wait", false, "Send without waiting for a confirmation")
}

// parseCommand turns "SDV P=1,2 V=0,1" style arguments into a message.
func parseCommand(args []string, tokens *rmsg.TokenTable) (*rmsg.Message, error) {
	if len(args) == 0 {
		return nil, errors.New("missing mnemonic")
	}
	if len(args[0]) != rmsg.TokenStrLength {
		return nil, fmt.Errorf("mnemonic %q must be %d characters", args[0], rmsg.TokenStrLength)
	}
	if len(args)-1 > rmsg.MaxParams {
		return nil, fmt.Errorf("%w: %d given (max %d)", rmsg.ErrTooManyParams, len(args)-1, rmsg.MaxParams)
	}
	for _, p := range args[1:] {
		if len(p) < rmsg.MinParamStrLength {
			return nil, fmt.Errorf("parameter %q is too short", p)
		}
		if strings.ContainsRune(p, rmsg.SpacerChr) {
			return nil, fmt.Errorf("parameter %q contains a space", p)
		}
	}

	m, err := rmsg.ParseBody([]byte(strings.Join(args, " ")), tokens)
	if err != nil {
		return nil, err
	}
	for i, p := range m.Params {
		if !p.Format.Valid() {
			return nil, fmt.Errorf("%w: %q in parameter %c", rmsg.ErrInvalidFormat, byte(p.Format), p.Key)
		}
		if len(p.Values) == 0 {
			return nil, fmt.Errorf("%w: parameter %c", rmsg.ErrNoValues, p.Key)
		}
		if err := checkValueText(p, args[i+1][2:]); err != nil {
			return nil, fmt.Errorf("parameter %c: %w", p.Key, err)
		}
	}
	return m, nil
}

// errInvalidValues reports value text the decoder would silently drop.
var errInvalidValues = errors.New("invalid parameter values")

// checkValueText verifies that p.Values accounts for all of text.
func checkValueText(p rmsg.Parameter, text string) error {
	var n int
	switch p.Format {
	case rmsg.FormatDecimal:
		pieces := strings.Split(text, ",")
		for _, piece := range pieces {
			if _, err := strconv.ParseInt(piece, 10, 32); err != nil {
				return fmt.Errorf("%w: %q", errInvalidValues, piece)
			}
		}
		n = len(pieces)
	default:
		width := 2
		if p.Format == rmsg.FormatWord {
			width = 4
		}
		if len(text)%width != 0 {
			return fmt.Errorf("%w: %q is not a multiple of %d hex digits", errInvalidValues, text, width)
		}
		n = len(text) / width
	}
	if n > rmsg.MaxDataPerParam {
		return fmt.Errorf("%w: %d (max %d)", rmsg.ErrTooManyValues, n, rmsg.MaxDataPerParam)
	}
	if n != len(p.Values) {
		return fmt.Errorf("%w: %q", errInvalidValues, text)
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	role, err := opts.localRole()
	if err != nil {
		return err
	}
	cfg, err := opts.protocolConfig(role, logger)
	if err != nil {
		return err
	}
	m, err := parseCommand(args, cfg.Tokens)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid command: %v\n", err)
		os.Exit(1)
	}

	sess, stream, connInfo, err := openSession(role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer stream.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	if sendNoWait {
		if err := sess.SendMessage(m); err != nil {
			fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Sent %s\n", rmsg.FormatTokenName(m.Token, cfg.Tokens))
		return nil
	}

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(sendTimeout)*time.Second)
	defer cancel()
	reply, err := sess.Request(ctx, m, pollInterval)
	rtt := time.Since(startTime).Round(time.Millisecond)

	var devErr *rmsg.DeviceError
	switch {
	case errors.As(err, &devErr):
		fmt.Printf("REJECTED after %v: %s\n", rtt, rmsg.FormatParams(reply.Params))
		fmt.Print(rmsg.FormatMessage(reply, cfg.Tokens))
		os.Exit(1)
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No confirmation within %d seconds\n", sendTimeout)
		os.Exit(1)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("OK after %v\n", rtt)
	fmt.Print(rmsg.FormatMessage(reply, cfg.Tokens))
	return nil
}
