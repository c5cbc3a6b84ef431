// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// rmsgstat - RMsg Protocol Analyzer
//
// A CLI tool for talking to, monitoring and analyzing devices that speak
// the RMsg framed text protocol over serial or WebSocket links.

package main

import (
	"os"

	"github.com/Thermoquad/rmsgstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
