// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/rmsgstat/pkg/rmsg"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const replyTimeout = 3 * time.Second

// Focus states
const (
	focusInput = iota
	focusTokenList
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// tokenItem is one mnemonic in the token list
type tokenItem struct {
	token    rmsg.Token
	mnemonic string
}

// Implement list.Item interface
func (t tokenItem) Title() string       { return t.mnemonic }
func (t tokenItem) Description() string { return tokenDescription(t.token) }
func (t tokenItem) FilterValue() string { return t.mnemonic }

func tokenDescription(tok rmsg.Token) string {
	switch tok {
	case rmsg.TokRemark:
		return "remark"
	case rmsg.TokVersion:
		return "version report"
	case rmsg.TokError:
		return "error confirmation"
	case rmsg.TokAck:
		return "acknowledgement"
	case rmsg.TokStatus:
		return "status"
	case rmsg.TokDummy:
		return "no-op"
	}
	return fmt.Sprintf("user command %d", tok)
}

// pendingCommand is a sent command awaiting its reply
type pendingCommand struct {
	token  rmsg.Token
	sentAt time.Time
}

// consoleModel is the Bubble Tea model for the console TUI
type consoleModel struct {
	send     func(*rmsg.Message) error
	tokens   *rmsg.TokenTable
	connInfo string

	input     textinput.Model
	tokenList list.Model
	focused   int
	history   []string
	histIdx   int

	pending *pendingCommand

	stats         *rmsg.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type consoleTickMsg time.Time

type consoleFrame struct {
	time time.Time
	raw  []byte
	msg  *rmsg.Message
}

type consoleBatchMsg struct {
	frames []consoleFrame
}

func (b *consoleBatchMsg) add(f consoleFrame) {
	b.frames = append(b.frames, f)
}

func (b *consoleBatchMsg) take() []consoleFrame {
	frames := b.frames
	b.frames = nil
	return frames
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialConsoleModel(send func(*rmsg.Message) error, tokens *rmsg.TokenTable, connInfo string) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "VER"
	ti.Prompt = "> "
	ti.CharLimit = rmsg.DefaultMaxOutLen
	ti.Width = 50
	ti.Focus()

	items := make([]list.Item, 0, tokens.Len())
	for i, mnemonic := range tokens.Mnemonics() {
		items = append(items, tokenItem{token: rmsg.Token(i), mnemonic: mnemonic})
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	tokenList := list.New(items, delegate, 26, 14)
	tokenList.Title = "Tokens"
	tokenList.SetShowStatusBar(false)
	tokenList.SetShowHelp(false)
	tokenList.SetFilteringEnabled(false)

	return consoleModel{
		send:          send,
		tokens:        tokens,
		connInfo:      connInfo,
		input:         ti,
		tokenList:     tokenList,
		focused:       focusInput,
		stats:         rmsg.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, consoleTickCmd())
}

func consoleTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return consoleTickMsg(t)
	})
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tokenList.SetHeight(max(m.height-10, 6))

	case consoleTickMsg:
		m.stats.CalculateRates()
		if m.pending != nil && time.Since(m.pending.sentAt) > replyTimeout {
			m.addLogEntry(fmt.Sprintf("No reply to %s", rmsg.FormatTokenName(m.pending.token, m.tokens)), true)
			m.pending = nil
		}
		return m, consoleTickCmd()

	case consoleBatchMsg:
		for _, f := range msg.frames {
			m.processFrame(f)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.pending = nil
		if isConnectionEnd(msg.err) {
			m.addLogEntry("Connection lost - reconnecting...", true)
		} else {
			m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)
		}

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	var cmd tea.Cmd
	if m.focused == focusInput {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m consoleModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		if m.focused == focusInput {
			m.focused = focusTokenList
			m.input.Blur()
		} else {
			m.focused = focusInput
			m.input.Focus()
		}
		return m, nil

	case "enter":
		if m.focused == focusTokenList {
			if item, ok := m.tokenList.SelectedItem().(tokenItem); ok {
				m.input.SetValue(item.mnemonic + " ")
				m.input.CursorEnd()
			}
			m.focused = focusInput
			m.input.Focus()
			return m, nil
		}
		m.submit()
		return m, nil

	case "up", "down":
		if m.focused == focusInput {
			m.recall(msg.String() == "up")
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.focused == focusTokenList {
		m.tokenList, cmd = m.tokenList.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// submit parses and sends the command in the input field
func (m *consoleModel) submit() {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return
	}
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return
	}

	msg, err := parseCommand(strings.Fields(line), m.tokens)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	if err := m.send(msg); err != nil {
		m.addLogEntry(fmt.Sprintf("Send failed: %v", err), true)
		return
	}

	m.addLogEntry("→ "+line, false)
	m.pending = &pendingCommand{token: msg.Token, sentAt: time.Now()}
	m.history = append(m.history, line)
	m.histIdx = len(m.history)
	m.input.SetValue("")
}

// recall steps through previously sent commands
func (m *consoleModel) recall(older bool) {
	if len(m.history) == 0 {
		return
	}
	if older && m.histIdx > 0 {
		m.histIdx--
	} else if !older && m.histIdx < len(m.history) {
		m.histIdx++
	}
	if m.histIdx == len(m.history) {
		m.input.SetValue("")
		return
	}
	m.input.SetValue(m.history[m.histIdx])
	m.input.CursorEnd()
}

func (m *consoleModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *consoleModel) processFrame(f consoleFrame) {
	msg := f.msg
	if msg.Token == rmsg.TokNone {
		m.stats.Update(nil, rmsg.ErrUnknownToken, nil)
		m.addLogEntry("← unrecognized mnemonic (answered with ERR)", true)
		return
	}
	shapeErr := rmsg.Validate(msg, false)
	if msg.Token > rmsg.TokDummy {
		shapeErr = nil
	}
	m.stats.Update(msg, nil, shapeErr)
	if shapeErr != nil {
		m.addLogEntry(fmt.Sprintf("← %s (%v)", f.raw, shapeErr), true)
		return
	}

	switch msg.Token {
	case rmsg.TokAck, rmsg.TokError:
		tok, err := rmsg.ParseConfirmation(msg)
		var devErr *rmsg.DeviceError
		detail := fmt.Sprintf("accepted %s", rmsg.FormatTokenName(tok, m.tokens))
		if errors.As(err, &devErr) {
			detail = fmt.Sprintf("rejected %s: %s (%d)", rmsg.FormatTokenName(tok, m.tokens), devErr.Code, devErr.Value)
		}
		m.addLogEntry(fmt.Sprintf("← %s  %s%s", f.raw, detail, m.complete(tok, f.time)), err != nil)

	case rmsg.TokVersion:
		v, _ := msg.Value('V', 0)
		mem, _ := msg.Value('M', 0)
		m.addLogEntry(fmt.Sprintf("← %s  version %d, %d bytes free%s", f.raw, v, mem, m.complete(msg.Token, f.time)), false)

	default:
		m.addLogEntry(fmt.Sprintf("← %s", f.raw), false)
	}
}

// complete clears the pending command if tok answers it and returns the
// round-trip suffix for the log
func (m *consoleModel) complete(tok rmsg.Token, at time.Time) string {
	if m.pending == nil || m.pending.token != tok {
		return ""
	}
	rtt := at.Sub(m.pending.sentAt)
	m.pending = nil
	return fmt.Sprintf(" [%.1fms]", float64(rtt.Microseconds())/1000.0)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("RMSGSTAT CONSOLE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Esc=quit Tab=switch ↑↓=history", connStatus)))
	s.WriteString("\n\n")

	// Token list | traffic log
	leftWidth := 26
	rightWidth := max(m.width-leftWidth-6, 20)

	listStyle := boxStyle.Width(leftWidth)
	if m.focused == focusTokenList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	tokenPanel := listStyle.Render(m.tokenList.View())
	logPanel := boxStyle.Width(rightWidth).Render(m.renderEventLog(headerStyle, errorStyle, warningStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tokenPanel, " ", logPanel))
	s.WriteString("\n")

	// Command input
	inputStyle := boxStyle.Width(m.width - 4)
	if m.focused == focusInput {
		inputStyle = focusedBoxStyle.Width(m.width - 4)
	}
	inputContent := m.input.View()
	if m.pending != nil {
		inputContent += headerStyle.Render(fmt.Sprintf("  waiting for %s...", rmsg.FormatTokenName(m.pending.token, m.tokens)))
	}
	s.WriteString(inputStyle.Render(inputContent))
	s.WriteString("\n")

	// Statistics bar
	m.stats.CalculateRates()
	var validPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
	}
	s.WriteString(fmt.Sprintf(" %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Received:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), func() string {
			if n := m.stats.Errors(); n > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", n))
			}
			return statsValueStyle.Render("0")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
	))

	return s.String()
}

func (m consoleModel) renderEventLog(headerStyle, errorStyle, warningStyle lipgloss.Style) string {
	var s strings.Builder

	logHeight := max(m.height-10, 6)
	startIdx := max(len(m.errorLog)-logHeight, 0)

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("(no traffic yet)"))
		return s.String()
	}
	for i := startIdx; i < len(m.errorLog); i++ {
		entry := m.errorLog[i]
		style := warningStyle
		if entry.isError {
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(entry.message)))
	}
	return s.String()
}
