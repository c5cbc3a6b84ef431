// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// Device information gathered from client replies
type deviceInfo struct {
	timestamp    time.Time
	version      int
	freeMemory   int
	hasVersion   bool
	lastRemark   string
	lastConfirm  string
	confirmError bool
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	tokens        *rmsg.TokenTable
	stats         *rmsg.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	skippedBytes  int
	width         int
	height        int
	quitting      bool
	ended         error
	device        *deviceInfo
}

// Messages
type tickMsg time.Time
type frameMsg struct {
	event    frameEvent
	shapeErr error
	skipped  int // Bytes skipped before this frame, once synchronized
}
type syncMsg struct {
	skippedBytes int
}
type connectionEndedMsg struct {
	err error
}

// formatUptime formats a duration in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	for _, u := range []struct {
		n    uint64
		name string
	}{{days, "day"}, {hours, "hour"}, {minutes, "minute"}} {
		if u.n == 1 {
			parts = append(parts, "1 "+u.name)
		} else if u.n > 1 {
			parts = append(parts, fmt.Sprintf("%d %ss", u.n, u.name))
		}
	}
	if seconds > 0 || len(parts) == 0 {
		if seconds == 1 {
			parts = append(parts, "1 second")
		} else {
			parts = append(parts, fmt.Sprintf("%d seconds", seconds))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, statsInterval int, showAll bool, tokens *rmsg.TokenTable) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		tokens:        tokens,
		stats:         rmsg.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.skippedBytes = msg.skippedBytes
		m.stats.AddSkipped(msg.skippedBytes)
		if msg.skippedBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", msg.skippedBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case frameMsg:
		m.handleFrame(msg)

	case connectionEndedMsg:
		m.ended = msg.err
		if msg.err != nil && !errors.Is(msg.err, ErrConnectionClosed) {
			m.addLogEntry(fmt.Sprintf("Connection ended: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}
	}

	return m, nil
}

func (m *model) handleFrame(msg frameMsg) {
	ev := msg.event
	m.stats.AddSkipped(msg.skipped)

	if ev.err != nil {
		m.stats.Update(nil, ev.err, nil)
		m.addLogEntry(fmt.Sprintf("FRAME ERROR: %v", ev.err), true)
		return
	}

	m.stats.Update(ev.msg, nil, msg.shapeErr)
	name := rmsg.FormatTokenName(ev.msg.Token, m.tokens)
	if msg.shapeErr != nil {
		m.addLogEntry(fmt.Sprintf("%s from %s: %v", name, ev.origin, msg.shapeErr), true)
		return
	}

	if ev.origin == rmsg.RoleClient {
		m.updateDevice(ev)
	}
	if ev.msg.Token == rmsg.TokError {
		var devErr *rmsg.DeviceError
		if _, err := rmsg.ParseConfirmation(ev.msg); errors.As(err, &devErr) {
			m.addLogEntry(fmt.Sprintf("%s rejected: %s (%d)",
				rmsg.FormatTokenName(devErr.Token, m.tokens), devErr.Code, devErr.Value), true)
			return
		}
	}
	if m.showAll {
		m.addLogEntry(fmt.Sprintf("%-6s %s", ev.origin, ev.raw), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// updateDevice records what the client reported about itself
func (m *model) updateDevice(ev frameEvent) {
	if m.device == nil {
		m.device = &deviceInfo{}
	}
	d := m.device
	d.timestamp = ev.time

	switch ev.msg.Token {
	case rmsg.TokVersion:
		d.version, _ = ev.msg.Value('V', 0)
		d.freeMemory, _ = ev.msg.Value('M', 0)
		d.hasVersion = true
	case rmsg.TokRemark:
		d.lastRemark = string(ev.raw)
	case rmsg.TokAck, rmsg.TokError:
		tok, err := rmsg.ParseConfirmation(ev.msg)
		d.confirmError = err != nil
		if err != nil {
			d.lastConfirm = fmt.Sprintf("ERR for %s", rmsg.FormatTokenName(tok, m.tokens))
		} else {
			d.lastConfirm = fmt.Sprintf("ACK for %s", rmsg.FormatTokenName(tok, m.tokens))
		}
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("RMSGSTAT - ANALYZE"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset stats | 'q' quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	if !m.synchronized {
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	} else {
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skippedBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", m.skippedBytes)))
		}
	}
	running := uint64(time.Since(m.stats.StartTime).Milliseconds())
	s.WriteString(headerStyle.Render("   Running: " + formatUptime(running)))
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	totalErrors := m.stats.Errors()
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if discarded := m.stats.DiscardedShort + m.stats.DiscardedLong; discarded > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			statsLabelStyle.Render("Discarded:"), errorStyle.Render(fmt.Sprintf("%d", discarded)),
			headerStyle.Render("too short"), m.stats.DiscardedShort,
			headerStyle.Render("too long"), m.stats.DiscardedLong,
		))
	}

	if m.stats.UnknownTokens > 0 || m.stats.ShapeMismatches > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Unknown Tokens:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.UnknownTokens)),
			statsLabelStyle.Render("Shape Mismatch:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.ShapeMismatches)),
		))
	}

	if m.stats.SkippedBytes > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Skipped Bytes:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.SkippedBytes)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Device section (only shown once the client has replied)
	if m.device != nil {
		s.WriteString(statsLabelStyle.Render("Client Device:"))
		s.WriteString("\n")

		deviceContent := strings.Builder{}
		if m.device.hasVersion {
			deviceContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
				statsLabelStyle.Render("Version:"), statsValueStyle.Render(fmt.Sprintf("%d", m.device.version)),
				statsLabelStyle.Render("Free Memory:"), statsValueStyle.Render(fmt.Sprintf("%d bytes", m.device.freeMemory)),
			))
		}
		if m.device.lastConfirm != "" {
			style := statsValueStyle
			if m.device.confirmError {
				style = errorStyle
			}
			deviceContent.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render("Last Confirmation:"), style.Render(m.device.lastConfirm)))
		}
		if m.device.lastRemark != "" {
			deviceContent.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render("Last Remark:"), statsValueStyle.Render(m.device.lastRemark)))
		}
		deviceContent.WriteString(headerStyle.Render("Last seen " + m.device.timestamp.Format("15:04:05.000")))

		s.WriteString(boxStyle.Render(deviceContent.String()))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 15 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
