// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	"github.com/spf13/cobra"
)

var (
	replayStats  bool
	replayErrors bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Display frames from a capture file",
	Long: `Read a CBOR capture file written by 'monitor --capture' and display its
frames the way 'monitor' does.

With --stats the frames are also validated (host frames as commands, client
frames as replies) and a statistics summary is printed at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayStats, "stats", false, "Print a statistics summary")
	replayCmd.Flags().BoolVar(&replayErrors, "errors", true, "Show discarded frames")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := opts.protocolConfig(rmsg.RoleHost, logger)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	stats, err := replayCapture(f, os.Stdout, cfg.Tokens, replayErrors)
	if err != nil {
		return err
	}
	if replayStats {
		fmt.Println()
		fmt.Print(stats.String())
	}
	return nil
}

// replayCapture prints every record of the capture on w and returns the
// statistics of the replayed traffic.
func replayCapture(r io.Reader, w io.Writer, tokens *rmsg.TokenTable, showErrors bool) (*rmsg.Statistics, error) {
	reader := rmsg.NewCaptureReader(r)
	validator := newFrameValidator(tokens)
	stats := rmsg.NewStatistics()

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		if rec.Error != "" {
			stats.Update(nil, captureError(rec), nil)
			if showErrors {
				fmt.Fprintf(w, "[%s] [ERROR] %s\n", rec.Time.Format("15:04:05.000"), rec.Error)
			}
			continue
		}

		ev := frameEvent{time: rec.Time, origin: rec.Role(), raw: rec.Raw, msg: rec.Message()}
		stats.Update(ev.msg, nil, ev.validate(validator))
		fmt.Fprint(w, rmsg.FormatFrame(ev.time, ev.origin, ev.raw, ev.msg, tokens))
	}
}

// captureSentinels are the decoder errors a capture record can name
var captureSentinels = []error{
	rmsg.ErrFrameTooShort,
	rmsg.ErrFrameTooLong,
	rmsg.ErrUnknownToken,
}

// captureError restores the decoder error recorded in rec
func captureError(rec rmsg.CaptureRecord) error {
	for _, sentinel := range captureSentinels {
		if strings.HasPrefix(rec.Error, sentinel.Error()) {
			return fmt.Errorf("%w (recorded: %s)", sentinel, rec.Error)
		}
	}
	return errors.New(rec.Error)
}
