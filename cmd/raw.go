// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var rawDuration int

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Display raw bytes and test connection stability",
	Long: `Display the bytes received on the connection without decoding them.

Every read is shown with a timestamp, as hex and as quoted text. Nothing is
sent. Useful for debugging wiring, baud rates and bridge stability before
looking at frames.

With --duration the command stops after the given number of seconds and
reports whether the connection stayed up.

Exit codes:
  0 - Test completed normally
  1 - Connection dropped during the test
  2 - Connection error`,
	RunE: runRaw,
}

func init() {
	rootCmd.AddCommand(rawCmd)
	rawCmd.Flags().IntVar(&rawDuration, "duration", 0, "Test duration in seconds (0 runs until interrupted)")
}

func runRaw(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("rmsgstat - Raw Bytes\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if rawDuration > 0 {
		fmt.Printf("Duration: %d seconds\n", rawDuration)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	startTime := time.Now()
	var deadline <-chan time.Time
	if rawDuration > 0 {
		deadline = time.After(time.Duration(rawDuration) * time.Second)
	}
	bytesReceived := 0
	readsReceived := 0

	for {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			readsReceived++
			fmt.Printf("[%s] %3d bytes: %x  %s\n",
				time.Now().Format("15:04:05.000"), len(data), data, strconv.Quote(string(data)))

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			printRawResults(time.Since(startTime), readsReceived, bytesReceived)
			fmt.Printf("Result: FAILED (connection error)\n")
			os.Exit(1)

		case <-deadline:
			printRawResults(time.Since(startTime), readsReceived, bytesReceived)
			fmt.Printf("Result: PASSED (connection stable)\n")
			return nil
		}
	}
}

func printRawResults(elapsed time.Duration, reads, bytes int) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Reads: %d\n", reads)
	fmt.Printf("Bytes received: %d\n", bytes)
}
