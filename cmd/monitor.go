// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	"github.com/spf13/cobra"
)

var (
	monitorCapture string
	monitorErrors  bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display frames in human-readable format",
	Long: `Continuously decode and display RMsg frames as they arrive.

Frames from both directions are shown with a timestamp, their origin, the raw
frame and the decoded parameters. Use --capture to also record every frame
to a CBOR capture file that can be inspected later with 'replay'.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorCapture, "capture", "", "Record frames to a CBOR capture file")
	monitorCmd.Flags().BoolVar(&monitorErrors, "errors", true, "Show discarded frames")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	decoder, tokens, err := newSniffDecoder()
	if err != nil {
		return err
	}

	var capture *rmsg.CaptureWriter
	if monitorCapture != "" {
		f, err := os.Create(monitorCapture)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		defer f.Close()
		if capture, err = rmsg.NewCaptureWriter(f); err != nil {
			return err
		}
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	stream := newConnStream(conn)
	defer stream.Close()

	fmt.Printf("rmsgstat - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if capture != nil {
		fmt.Printf("Capture: %s\n", monitorCapture)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = pumpFrames(ctx, stream, decoder, func(ev frameEvent) bool {
		if capture != nil {
			if err := capture.Write(rmsg.NewCaptureRecord(ev.time, ev.origin, ev.raw, ev.msg, ev.err)); err != nil {
				logger.WithError(err).Error("capture write failed")
			}
		}
		if ev.err != nil {
			if monitorErrors {
				fmt.Printf("[%s] [ERROR] %v\n", ev.time.Format("15:04:05.000"), ev.err)
			}
			return true
		}
		fmt.Print(rmsg.FormatFrame(ev.time, ev.origin, ev.raw, ev.msg, tokens))
		return true
	})

	if capture != nil {
		fmt.Printf("\n%d frames captured\n", capture.Count())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrConnectionClosed) {
		return nil
	}
	return err
}
