// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import "fmt"

// ShapeError describes why a message does not match its token's shape.
type ShapeError struct {
	Token     Token
	AsCommand bool
	Message   string
}

// Error implements the error interface
func (e *ShapeError) Error() string {
	ctx := "reply"
	if e.AsCommand {
		ctx = "command"
	}
	return fmt.Sprintf("%s as %s: %s", e.Token, ctx, e.Message)
}

// Rule checks the parameter shape of one token. It must not modify m.
type Rule func(m *Message, asCommand bool) error

// Validator checks messages against per-token shape rules.
type Validator struct {
	rules map[Token]Rule
}

// NewValidator returns a validator with the built-in rules for the core
// tokens. Tokens without a rule never validate.
func NewValidator() *Validator {
	return &Validator{rules: map[Token]Rule{
		TokRemark:  ruleNoParams,
		TokNone:    ruleNoParams,
		TokStatus:  ruleNoParams,
		TokDummy:   ruleAny,
		TokVersion: ruleVersion,
		TokError:   ruleError,
		TokAck:     ruleAck,
	}}
}

var defaultValidator = NewValidator()

// Register sets the rule for tok, replacing any existing rule.
func (v *Validator) Register(tok Token, rule Rule) {
	v.rules[tok] = rule
}

// Validate returns nil if m matches the shape mandated for its token, or a
// *ShapeError describing the mismatch.
func (v *Validator) Validate(m *Message, asCommand bool) error {
	if m == nil {
		return &ShapeError{Token: TokNone, AsCommand: asCommand, Message: "nil message"}
	}
	rule, ok := v.rules[m.Token]
	if !ok {
		return &ShapeError{Token: m.Token, AsCommand: asCommand, Message: "no shape rule defined"}
	}
	if err := rule(m, asCommand); err != nil {
		return &ShapeError{Token: m.Token, AsCommand: asCommand, Message: err.Error()}
	}
	return nil
}

// Check reports whether m matches the shape mandated for its token.
func (v *Validator) Check(m *Message, asCommand bool) bool {
	return v.Validate(m, asCommand) == nil
}

// Check validates m against the built-in rules.
func Check(m *Message, asCommand bool) bool {
	return defaultValidator.Check(m, asCommand)
}

// Validate validates m against the built-in rules.
func Validate(m *Message, asCommand bool) error {
	return defaultValidator.Validate(m, asCommand)
}

func ruleAny(*Message, bool) error {
	return nil
}

func ruleNoParams(m *Message, _ bool) error {
	if len(m.Params) != 0 {
		return fmt.Errorf("expected no parameters, got %d", len(m.Params))
	}
	return nil
}

func ruleVersion(m *Message, asCommand bool) error {
	if asCommand {
		return ruleNoParams(m, asCommand)
	}
	return expectParams(m, 'V', 1, 'M', 1)
}

// ERR and ACK are only sent as replies; their shape is the same in both
// contexts.
func ruleError(m *Message, _ bool) error {
	return expectParams(m, 'C', 1, 'E', 2)
}

func ruleAck(m *Message, _ bool) error {
	return expectParams(m, 'C', 1)
}

// ExpectParams builds a rule requiring exactly the given parameters in
// order, as alternating key and value count pairs.
func ExpectParams(pairs ...int) Rule {
	return func(m *Message, _ bool) error {
		return expectParamCounts(m, pairs)
	}
}

func expectParams(m *Message, pairs ...int) error {
	return expectParamCounts(m, pairs)
}

func expectParamCounts(m *Message, pairs []int) error {
	want := len(pairs) / 2
	if len(m.Params) != want {
		return fmt.Errorf("expected %d parameters, got %d", want, len(m.Params))
	}
	for i := 0; i < want; i++ {
		key, count := byte(pairs[2*i]), pairs[2*i+1]
		p := m.Params[i]
		if p.Key != key {
			return fmt.Errorf("parameter %d: expected key %q, got %q", i+1, key, p.Key)
		}
		if len(p.Values) != count {
			return fmt.Errorf("parameter %c: expected %d values, got %d", key, count, len(p.Values))
		}
	}
	return nil
}
