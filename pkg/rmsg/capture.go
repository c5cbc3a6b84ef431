// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CaptureParam is the capture form of a Parameter.
type CaptureParam struct {
	Key    uint8 `cbor:"0,keyasint"`
	Format uint8 `cbor:"1,keyasint"`
	Values []int `cbor:"2,keyasint,omitempty"`
}

// CaptureRecord is one entry of a capture file: a frame as seen on the
// wire together with its decoded form or the reason it was discarded.
type CaptureRecord struct {
	Time   time.Time      `cbor:"0,keyasint"`
	Origin string         `cbor:"1,keyasint"`
	Raw    []byte         `cbor:"2,keyasint"`
	Token  uint8          `cbor:"3,keyasint"`
	Params []CaptureParam `cbor:"4,keyasint,omitempty"`
	Error  string         `cbor:"5,keyasint,omitempty"`
}

// NewCaptureRecord builds a record from a decoder outcome. A nil m is
// stored with token TokNone.
func NewCaptureRecord(ts time.Time, origin Role, raw []byte, m *Message, decodeErr error) CaptureRecord {
	rec := CaptureRecord{
		Time:   ts,
		Origin: origin.String(),
		Raw:    append([]byte(nil), raw...),
		Token:  uint8(TokNone),
	}
	if m != nil {
		rec.Token = uint8(m.Token)
		for _, p := range m.Params {
			rec.Params = append(rec.Params, CaptureParam{
				Key:    p.Key,
				Format: uint8(p.Format),
				Values: append([]int(nil), p.Values...),
			})
		}
	}
	if decodeErr != nil {
		rec.Error = decodeErr.Error()
	}
	return rec
}

// Message returns the decoded message, or nil if the frame was discarded.
func (r CaptureRecord) Message() *Message {
	if r.Error != "" {
		return nil
	}
	m := &Message{Token: Token(r.Token)}
	for _, p := range r.Params {
		m.Params = append(m.Params, Parameter{
			Key:    p.Key,
			Format: Format(p.Format),
			Values: append([]int(nil), p.Values...),
		})
	}
	return m
}

// Role returns the role that sent the frame.
func (r CaptureRecord) Role() Role {
	role, err := ParseRole(r.Origin)
	if err != nil {
		return RoleClient
	}
	return role
}

// CaptureWriter writes capture records as a CBOR sequence.
type CaptureWriter struct {
	enc   *cbor.Encoder
	count int
}

// NewCaptureWriter creates a writer on w.
func NewCaptureWriter(w io.Writer) (*CaptureWriter, error) {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return &CaptureWriter{enc: em.NewEncoder(w)}, nil
}

// Write appends one record.
func (c *CaptureWriter) Write(rec CaptureRecord) error {
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	c.count++
	return nil
}

// Count returns the number of records written.
func (c *CaptureWriter) Count() int {
	return c.count
}

// CaptureReader reads a CBOR sequence of capture records.
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a reader on r.
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the sequence.
func (c *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return CaptureRecord{}, io.EOF
		}
		return CaptureRecord{}, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}

// ReadCapture reads all records from r.
func ReadCapture(r io.Reader) ([]CaptureRecord, error) {
	cr := NewCaptureReader(r)
	var out []CaptureRecord
	for {
		rec, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
