// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	"github.com/spf13/cobra"
)

var (
	versionTimeout int
	versionCount   int
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Query the device version with VER commands",
	Long: `Send VER commands to the device and wait for version reports.

Each VER command must be answered with a version report carrying exactly one
version value (V) and one free memory value (M):

  >VER;
  <VER V=12 M=3456;

This is useful for verifying:
  - The connection is established (serial or WebSocket bridge)
  - The device parses commands
  - Replies have the expected shape
  - Round trip times

Exit codes:
  0 - All queries answered with a valid report
  1 - One or more queries failed, timed out or had a malformed reply
  2 - Connection error`,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().IntVar(&versionTimeout, "timeout", 5, "Timeout in seconds for each query")
	versionCmd.Flags().IntVar(&versionCount, "count", 3, "Number of queries to send")
}

func runVersion(cmd *cobra.Command, args []string) error {
	sess, stream, connInfo, err := openSession(rmsg.RoleHost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer stream.Close()

	fmt.Printf("rmsgstat - Version Query\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per query\n", versionTimeout)
	fmt.Printf("Count: %d queries\n\n", versionCount)

	successCount := 0
	failCount := 0

	for i := 1; i <= versionCount; i++ {
		fmt.Printf("Query %d/%d: ", i, versionCount)

		startTime := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(versionTimeout)*time.Second)
		reply, err := sess.Request(ctx, rmsg.NewMessage(rmsg.TokVersion), pollInterval)
		cancel()
		rtt := time.Since(startTime)

		var devErr *rmsg.DeviceError
		switch {
		case errors.As(err, &devErr):
			fmt.Printf("REJECTED: %s (%d)\n", devErr.Code, devErr.Value)
			failCount++
		case errors.Is(err, context.DeadlineExceeded):
			fmt.Printf("TIMEOUT (no response in %ds)\n", versionTimeout)
			failCount++
		case err != nil:
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		default:
			if shapeErr := rmsg.Validate(reply, false); shapeErr != nil {
				fmt.Printf("MALFORMED: %v\n", shapeErr)
				failCount++
				break
			}
			version, _ := reply.Value('V', 0)
			freeMem, _ := reply.Value('M', 0)
			fmt.Printf("version=%d, free memory=%d bytes, rtt=%v\n", version, freeMem, rtt.Round(time.Millisecond))
			successCount++
		}

		// Small delay between queries
		if i < versionCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Version query statistics ---\n")
	fmt.Printf("%d queries sent, %d valid reports received, %.0f%% loss\n",
		versionCount, successCount, float64(failCount)/float64(versionCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
