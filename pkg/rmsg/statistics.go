// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidFrames     uint64
	DiscardedShort  uint64
	DiscardedLong   uint64
	UnknownTokens   uint64
	ShapeMismatches uint64
	OtherErrors     uint64
	SkippedBytes    uint64

	// Per-token counts of valid frames
	ByToken map[Token]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		ByToken:        make(map[Token]uint64),
	}
}

// Update records one decoder outcome. shapeErr is the result of validating
// msg and is ignored when decodeErr is set.
func (s *Statistics) Update(msg *Message, decodeErr error, shapeErr error) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrFrameTooShort):
			s.DiscardedShort++
		case errors.Is(decodeErr, ErrFrameTooLong):
			s.DiscardedLong++
		case errors.Is(decodeErr, ErrUnknownToken):
			s.UnknownTokens++
		default:
			s.OtherErrors++
		}
		return
	}

	if shapeErr != nil {
		s.ShapeMismatches++
		return
	}
	s.ValidFrames++
	if msg != nil {
		if s.ByToken == nil {
			s.ByToken = make(map[Token]uint64)
		}
		s.ByToken[msg.Token]++
	}
}

// AddSkipped records bytes seen outside any frame.
func (s *Statistics) AddSkipped(n int) {
	if n > 0 {
		s.SkippedBytes += uint64(n)
	}
}

// Errors returns the number of frames that were not valid.
func (s *Statistics) Errors() uint64 {
	return s.DiscardedShort + s.DiscardedLong + s.UnknownTokens + s.ShapeMismatches + s.OtherErrors
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

func (s *Statistics) percent(n uint64) float64 {
	if s.TotalFrames == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(s.TotalFrames)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()
	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, s.percent(s.ValidFrames))

	if s.ShapeMismatches > 0 {
		result += fmt.Sprintf("Shape Mismatch:  %8d (%.1f%%)\n", s.ShapeMismatches, s.percent(s.ShapeMismatches))
	}
	if s.UnknownTokens > 0 {
		result += fmt.Sprintf("Unknown Tokens:  %8d (%.1f%%)\n", s.UnknownTokens, s.percent(s.UnknownTokens))
	}
	if discarded := s.DiscardedShort + s.DiscardedLong; discarded > 0 {
		result += fmt.Sprintf("Discarded:       %8d (%.1f%%)\n", discarded, s.percent(discarded))
		if s.DiscardedShort > 0 {
			result += fmt.Sprintf("  Too Short:        %5d\n", s.DiscardedShort)
		}
		if s.DiscardedLong > 0 {
			result += fmt.Sprintf("  Too Long:         %5d\n", s.DiscardedLong)
		}
	}
	if s.OtherErrors > 0 {
		result += fmt.Sprintf("Other Errors:    %8d (%.1f%%)\n", s.OtherErrors, s.percent(s.OtherErrors))
	}
	if s.SkippedBytes > 0 {
		result += fmt.Sprintf("Skipped Bytes:   %8d\n", s.SkippedBytes)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
