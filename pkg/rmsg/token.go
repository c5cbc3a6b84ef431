// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"fmt"
	"strconv"
	"strings"
)

// Token identifies the kind of a message.
type Token uint8

// Core tokens, present in every table
const (
	TokRemark  Token = 0 // REM
	TokVersion Token = 1 // VER
	TokError   Token = 2 // ERR
	TokAck     Token = 3 // ACK
	TokStatus  Token = 4 // STA
	TokDummy   Token = 5 // DUM
)

// Default user tokens (Robot Controller shield)
const (
	TokSetDigitalMode  Token = 6  // SDM
	TokSetDigitalValue Token = 7  // SDV
	TokServoToggle     Token = 8  // SDT
	TokClear           Token = 9  // CLR
	TokI2CWrite        Token = 10 // I2W
	TokI2CRead         Token = 11 // I2R
	TokRecord          Token = 12 // REC
)

// TokNone is the sentinel for "no token recognized".
const TokNone Token = 255

var coreMnemonics = []string{"REM", "VER", "ERR", "ACK", "STA", "DUM"}

var defaultUserMnemonics = []string{"SDM", "SDV", "SDT", "CLR", "I2W", "I2R", "REC"}

// TokenTable maps token ids to their mnemonics. A table is immutable once
// built and safe to share.
type TokenTable struct {
	mnemonics []string
}

// DefaultTokens is the table with the core tokens and the default user tokens.
var DefaultTokens = MustTokenTable(defaultUserMnemonics...)

// NewTokenTable builds a table of the core tokens followed by user tokens.
// User tokens are numbered from TokDummy+1 in the given order.
func NewTokenTable(user ...string) (*TokenTable, error) {
	all := make([]string, 0, len(coreMnemonics)+len(user))
	all = append(all, coreMnemonics...)
	for _, m := range user {
		all = append(all, strings.ToUpper(strings.TrimSpace(m)))
	}
	if len(all)-1 >= int(TokNone) {
		return nil, fmt.Errorf("%w: %d tokens (max %d)", ErrTokenTable, len(all), int(TokNone))
	}

	seen := make(map[string]bool, len(all))
	for _, m := range all {
		if !validMnemonic(m) {
			return nil, fmt.Errorf("%w: invalid mnemonic %q", ErrTokenTable, m)
		}
		if seen[m] {
			return nil, fmt.Errorf("%w: duplicate mnemonic %q", ErrTokenTable, m)
		}
		seen[m] = true
	}
	return &TokenTable{mnemonics: all}, nil
}

// MustTokenTable is like NewTokenTable but panics on error.
func MustTokenTable(user ...string) *TokenTable {
	t, err := NewTokenTable(user...)
	if err != nil {
		panic(fmt.Sprintf("rmsg: %v", err))
	}
	return t
}

func validMnemonic(m string) bool {
	if len(m) != TokenStrLength {
		return false
	}
	for i := 0; i < len(m); i++ {
		c := m[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// LastIndex returns the highest valid token id.
func (t *TokenTable) LastIndex() Token {
	return Token(len(t.mnemonics) - 1)
}

// Len returns the number of tokens in the table.
func (t *TokenTable) Len() int {
	return len(t.mnemonics)
}

// Valid reports whether tok is a token of this table.
func (t *TokenTable) Valid(tok Token) bool {
	return int(tok) < len(t.mnemonics)
}

// Lookup returns the token for a mnemonic, matched case-insensitively.
// Returns TokNone if no token matches.
func (t *TokenTable) Lookup(mnemonic string) Token {
	for i, m := range t.mnemonics {
		if strings.EqualFold(m, mnemonic) {
			return Token(i)
		}
	}
	return TokNone
}

// Mnemonic returns the mnemonic for tok, or "" if tok is not in the table.
func (t *TokenTable) Mnemonic(tok Token) string {
	if !t.Valid(tok) {
		return ""
	}
	return t.mnemonics[tok]
}

// Mnemonics returns a copy of all mnemonics in id order.
func (t *TokenTable) Mnemonics() []string {
	out := make([]string, len(t.mnemonics))
	copy(out, t.mnemonics)
	return out
}

// LookupToken looks up a mnemonic in the default table.
func LookupToken(mnemonic string) Token {
	return DefaultTokens.Lookup(mnemonic)
}

// Mnemonic returns the token's mnemonic in the default table.
func (t Token) Mnemonic() string {
	return DefaultTokens.Mnemonic(t)
}

func (t Token) String() string {
	if m := DefaultTokens.Mnemonic(t); m != "" {
		return m
	}
	if t == TokNone {
		return "NONE"
	}
	return "TOK" + strconv.Itoa(int(t))
}
