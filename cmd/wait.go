// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	"github.com/spf13/cobra"
)

var (
	waitTimeout int
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Test connection by waiting for a valid RMsg frame",
	Long: `Wait for a valid RMsg frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any frame
from either direction whose mnemonic is known. Bytes outside frames and
malformed frames are ignored.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking that a device is talking before running other commands.`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().IntVar(&waitTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runWait(cmd *cobra.Command, args []string) error {
	decoder, tokens, err := newSniffDecoder()
	if err != nil {
		return err
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	stream := newConnStream(conn)
	defer stream.Close()

	fmt.Printf("rmsgstat - Wait\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", waitTimeout)
	fmt.Printf("Waiting for valid RMsg frame...\n\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(waitTimeout)*time.Second)
	defer cancel()

	var got *frameEvent
	discarded := 0
	err = pumpFrames(ctx, stream, decoder, func(ev frameEvent) bool {
		if ev.err != nil {
			discarded++
			return true
		}
		got = &ev
		return false
	})

	if got != nil {
		if got.skipped > 0 || discarded > 0 {
			fmt.Printf("(skipped %d bytes and %d malformed frames before sync)\n", got.skipped, discarded)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Frame:  %s\n", got.raw)
		fmt.Printf("  Origin: %s\n", got.origin)
		fmt.Printf("  Token:  %s (%d)\n", rmsg.FormatTokenName(got.msg.Token, tokens), got.msg.Token)
		if len(got.msg.Params) > 0 {
			fmt.Printf("  Params: %s\n", rmsg.FormatParams(got.msg.Params))
		}
		os.Exit(0)
	}

	if ctx.Err() != nil {
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", waitTimeout)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
	os.Exit(2)
	return nil
}
