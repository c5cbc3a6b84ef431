// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a decoded frame into a human-readable string
func FormatFrame(ts time.Time, origin Role, raw []byte, m *Message, tokens *TokenTable) string {
	timestamp := ts.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %-6s %s\n", timestamp, origin, string(raw))
	if m != nil {
		result += FormatMessage(m, tokens)
	}
	return result
}

// FormatMessage formats a message with one line per parameter and a
// decoded summary for the core tokens.
func FormatMessage(m *Message, tokens *TokenTable) string {
	result := fmt.Sprintf("  %s (%d)\n", FormatTokenName(m.Token, tokens), m.Token)
	for _, p := range m.Params {
		result += fmt.Sprintf("    %s\n", FormatParam(p))
	}
	if detail := formatDetail(m, tokens); detail != "" {
		result += "  " + detail + "\n"
	}
	return result
}

// FormatTokenName returns the mnemonic of tok, "NONE" for TokNone or
// "UNKNOWN" for ids outside the table.
func FormatTokenName(tok Token, tokens *TokenTable) string {
	if tok == TokNone {
		return "NONE"
	}
	if tokens == nil {
		tokens = DefaultTokens
	}
	if !tokens.Valid(tok) {
		return "UNKNOWN"
	}
	return tokens.Mnemonic(tok)
}

// FormatParam renders a parameter the way it appears on the wire, with the
// decimal values alongside for hex formats.
func FormatParam(p Parameter) string {
	wire := string(AppendValues([]byte{p.Key, byte(p.Format)}, p.Format, p.Values))
	if p.Format == FormatDecimal || len(p.Values) == 0 {
		return fmt.Sprintf("%-24s [%s]", wire, p.Format)
	}
	return fmt.Sprintf("%-24s [%s] %s", wire, p.Format, formatInts(p.Values))
}

// FormatParams renders all parameters on one line, space separated.
func FormatParams(params []Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = string(AppendValues([]byte{p.Key, byte(p.Format)}, p.Format, p.Values))
	}
	return strings.Join(parts, " ")
}

func formatInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}

func formatDetail(m *Message, tokens *TokenTable) string {
	switch m.Token {
	case TokVersion:
		v, okV := m.Value('V', 0)
		mem, okM := m.Value('M', 0)
		if okV && okM {
			return fmt.Sprintf("Version: %d, Free memory: %d bytes", v, mem)
		}
	case TokAck, TokError:
		tok, err := ParseConfirmation(m)
		var devErr *DeviceError
		switch {
		case errors.As(err, &devErr):
			if tok == TokNone {
				return fmt.Sprintf("Rejected unrecognized command: %s (%d)", devErr.Code, devErr.Value)
			}
			return fmt.Sprintf("Rejected %s: %s (%d)", FormatTokenName(tok, tokens), devErr.Code, devErr.Value)
		case err == nil:
			return fmt.Sprintf("Accepted %s", FormatTokenName(tok, tokens))
		}
	}
	return ""
}
