// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// logOutput is the open --log-file, if any
var logOutput *os.File

// setupLogging applies the log level and output. RMSG_LOG_LEVEL overrides
// the configuration file but not the --log-level flag.
func setupLogging(flagChanged bool) error {
	level := opts.LogLevel
	if env := os.Getenv("RMSG_LOG_LEVEL"); env != "" && !flagChanged {
		level = env
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	closeLogging()
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		logOutput = f
		logger.SetOutput(f)
	}
	return nil
}

// closeLogging closes the log file and sends further logs to stderr.
func closeLogging() {
	logger.SetOutput(os.Stderr)
	if logOutput != nil {
		if err := logOutput.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
		}
		logOutput = nil
	}
}

// quietLogging silences stderr logging while a full screen UI owns the
// terminal. A --log-file destination is kept.
func quietLogging() {
	if logFile == "" {
		logger.SetOutput(io.Discard)
	}
}
