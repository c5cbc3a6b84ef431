// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Decoder implements the RMsg frame decoder state machine
type Decoder struct {
	tokens *TokenTable
	expect byte
	sniff  bool
	maxIn  int
	log    logrus.FieldLogger

	state   int
	start   byte
	buffer  []byte // Frame body, start and end characters excluded
	raw     []byte // Last complete frame including framing
	idle    int    // Bytes skipped since the last start character
	skipped int    // Bytes skipped before the current frame
}

// NewDecoder creates a decoder accepting frames sent by the peer of cfg.Role,
// or by either role when cfg.Sniff is set.
func NewDecoder(cfg Config) *Decoder {
	cfg = cfg.withDefaults()
	return &Decoder{
		tokens: cfg.Tokens,
		expect: cfg.Role.PeerStartChr(),
		sniff:  cfg.Sniff,
		maxIn:  cfg.MaxInLen,
		log:    cfg.Logger,
		state:  stateIdle,
		buffer: make([]byte, 0, cfg.MaxInLen),
		raw:    make([]byte, 0, cfg.MaxInLen+2),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
	d.idle = 0
	d.skipped = 0
}

// Raw returns a copy of the last frame that reached its end character,
// framing included. It is empty after an overlong frame.
func (d *Decoder) Raw() []byte {
	out := make([]byte, len(d.raw))
	copy(out, d.raw)
	return out
}

// Origin returns the role that sent the last frame
func (d *Decoder) Origin() Role {
	return roleForStart(d.start)
}

// Skipped returns the number of bytes discarded while waiting for the
// start of the current or last frame
func (d *Decoder) Skipped() int {
	return d.skipped
}

// Collecting reports whether a frame start has been seen
func (d *Decoder) Collecting() bool {
	return d.state == stateCollecting
}

func (d *Decoder) isStart(b byte) bool {
	if d.sniff {
		return b == StartChrClient || b == StartChrHost
	}
	return b == d.expect
}

// DecodeByte processes a single byte through the decoder state machine.
//
// Returns a freshly allocated message once a frame is complete, or nil if
// the frame is incomplete. Discarded frames are reported as *FrameError and
// unrecognized mnemonics as an error wrapping ErrUnknownToken.
func (d *Decoder) DecodeByte(b byte) (*Message, error) {
	switch d.state {
	case stateIdle:
		if d.isStart(b) {
			d.begin(b)
		} else {
			d.idle++
		}
		return nil, nil

	case stateCollecting:
		if b == EndChr {
			d.state = stateIdle
			return d.complete()
		}
		d.buffer = append(d.buffer, b)
		if len(d.buffer) >= d.maxIn {
			n := len(d.buffer)
			d.state = stateIdle
			d.buffer = d.buffer[:0]
			d.raw = d.raw[:0]
			return nil, &FrameError{Err: ErrFrameTooLong, Length: n}
		}
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

func (d *Decoder) begin(b byte) {
	d.state = stateCollecting
	d.start = b
	d.buffer = d.buffer[:0]
	d.skipped = d.idle
	d.idle = 0
}

func (d *Decoder) complete() (*Message, error) {
	d.raw = append(d.raw[:0], d.start)
	d.raw = append(d.raw, d.buffer...)
	d.raw = append(d.raw, EndChr)
	defer func() {
		d.buffer = d.buffer[:0]
	}()

	if len(d.buffer) < MinInLen {
		return nil, &FrameError{Err: ErrFrameTooShort, Length: len(d.buffer)}
	}
	return ParseBody(d.buffer, d.tokens)
}

// Poll drains the bytes currently available from src through the state
// machine. It returns as soon as a frame completes or is discarded, and
// returns nil, nil when src runs dry. It never waits for more bytes; a
// frame split across polls continues on the next call.
func (d *Decoder) Poll(src ByteSource) (*Message, error) {
	for src.Available() > 0 {
		b, err := src.ReadByte()
		if err != nil {
			return nil, err
		}
		msg, err := d.DecodeByte(b)
		if err != nil || msg != nil {
			return msg, err
		}
	}
	return nil, nil
}

// DecodeFrame resets the decoder and decodes one complete frame.
func (d *Decoder) DecodeFrame(frame []byte) (*Message, error) {
	d.Reset()
	for _, b := range frame {
		msg, err := d.DecodeByte(b)
		if err != nil || msg != nil {
			return msg, err
		}
	}
	return nil, ErrIncomplete
}

// Decode decodes one frame from either role using the default table.
func Decode(frame []byte) (*Message, error) {
	cfg := DefaultConfig()
	cfg.Sniff = true
	return NewDecoder(cfg).DecodeFrame(frame)
}

// ParseBody parses a frame body (start and end characters excluded).
//
// The first TokenStrLength characters are the mnemonic. Parameters start
// after the separator position and are split on spaces; fields shorter
// than MinParamStrLength are ignored. Parsing stops after MaxParams
// parameters.
func ParseBody(body []byte, tokens *TokenTable) (*Message, error) {
	if tokens == nil {
		tokens = DefaultTokens
	}
	if len(body) < TokenStrLength {
		return nil, &FrameError{Err: ErrFrameTooShort, Length: len(body)}
	}

	mnemonic := string(body[:TokenStrLength])
	tok := tokens.Lookup(mnemonic)
	if tok == TokNone {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, mnemonic)
	}

	msg := &Message{Token: tok}
	if len(body) < TokenStrLength+MinParamStrLength+1 {
		return msg, nil
	}

	rest := upperASCII(body[TokenStrLength+1:])
	fields := strings.FieldsFunc(rest, func(r rune) bool { return r == SpacerChr })
	for _, field := range fields {
		if len(field) < MinParamStrLength {
			continue
		}
		p := Parameter{Key: field[0], Format: Format(field[1])}
		switch p.Format {
		case FormatDecimal:
			p.Values = parseDecimal(field[2:])
		case FormatWord:
			p.Values = parseHex(field[2:], 4)
		case FormatByte:
			p.Values = parseHex(field[2:], 2)
		}
		msg.Params = append(msg.Params, p)
		if len(msg.Params) == MaxParams {
			break
		}
	}
	return msg, nil
}

// parseDecimal parses a separated list of signed integers. A value is an
// optional sign followed by digits; exactly one separator character is
// skipped between values. Parsing stops at the first unparsable value or
// after MaxDataPerParam values. Out of range values saturate at 32 bits.
func parseDecimal(s string) []int {
	var values []int
	for {
		v, n := scanInt(s)
		if n == 0 {
			break
		}
		values = append(values, v)
		if len(values) == MaxDataPerParam || n == len(s) {
			break
		}
		s = s[n+1:]
	}
	return values
}

// scanInt scans a leading signed decimal integer and returns it with the
// number of bytes consumed, or 0 consumed if there is none.
func scanInt(s string) (int, int) {
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	digits := i
	var v int64
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		if v <= math.MaxInt32 {
			v = v*10 + int64(s[i]-'0')
		}
		i++
	}
	if i == digits {
		return 0, 0
	}
	if neg {
		v = -v
	}
	if v > math.MaxInt32 {
		v = math.MaxInt32
	}
	if v < math.MinInt32 {
		v = math.MinInt32
	}
	return int(v), i
}

// parseHex parses fixed-width hex chunks without separator. A short or
// invalid chunk ends the list.
func parseHex(s string, width int) []int {
	var values []int
	for len(s) >= width && len(values) < MaxDataPerParam {
		v, err := strconv.ParseUint(s[:width], 16, 16)
		if err != nil {
			break
		}
		values = append(values, int(v))
		s = s[width:]
	}
	return values
}

// upperASCII uppercases ASCII letters only; other bytes pass through.
func upperASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
