// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	opts = defaultSettings()

	configPath string
	logFile    string

	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "rmsgstat",
	Short: "RMsg Protocol Analyzer",
	Long: `rmsgstat - A CLI tool for talking to, monitoring and analyzing RMsg devices.

RMsg is a half-duplex text protocol for short commands and replies over a
serial link. Host frames start with '>', client frames with '<':

  >SDV P=1,2 V=0,1;
  <ACK C=7;

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings can also be read from a TOML file given with --config. Flags given
on the command line take precedence over the file.

For WebSocket authentication, the password is read from the RMSG_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&opts.Port, "port", "p", opts.Port, "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&opts.Baud, "baud", "b", opts.Baud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", opts.URL, "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&opts.Username, "username", opts.Username, "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&opts.NoSSLVerify, "no-ssl-verify", opts.NoSSLVerify, "Skip TLS certificate verification (wss:// only)")

	// Protocol flags
	rootCmd.PersistentFlags().StringVar(&opts.Role, "role", opts.Role, "Local endpoint role: host or client")
	rootCmd.PersistentFlags().IntVar(&opts.MaxInLen, "max-in", opts.MaxInLen, "Maximum inbound frame body length")
	rootCmd.PersistentFlags().IntVar(&opts.MaxOutLen, "max-out", opts.MaxOutLen, "Maximum outbound frame length")
	rootCmd.PersistentFlags().BoolVar(&opts.Strict, "strict", opts.Strict, "Report rejected parameters instead of dropping them")

	// Ambient flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level (trace, debug, info, warn, error); also RMSG_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
}

// setup loads the configuration file and configures logging before any
// command runs.
func setup(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		if err := loadConfigFile(configPath, &opts, cmd.Flags().Changed); err != nil {
			return err
		}
	}
	return setupLogging(cmd.Flags().Changed("log-level"))
}

// Execute runs the root command
func Execute() error {
	defer closeLogging()
	return rootCmd.Execute()
}
