// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rmsg implements the RMsg framed text protocol.
//
// RMsg is a lightweight half-duplex command/reply protocol between a host
// and a client device over a serial link. A frame looks like
//
//	>SDV P=1,2 V=0,1;
//	<ACK C=7;
//
// This package provides the token table, message model, encoder, decoder,
// shape validator and a session facade tying them to a byte stream.
package rmsg

// Framing characters
const (
	StartChrClient = '<' // Frames emitted by the client
	StartChrHost   = '>' // Frames emitted by the host
	EndChr         = ';'
	SpacerChr      = ' '
	SepChr         = ','
)

// LineTerminator is written after every frame by the stream.
const LineTerminator = "\r\n"

// Token and parameter limits
const (
	TokenStrLength    = 3
	MinParamStrLength = 3
	MaxParams         = 3
	MaxDataPerParam   = 8
)

// Frame length limits (body length, start and end characters excluded)
const (
	MinInLen         = 3
	DefaultMaxInLen  = 127
	DefaultMaxOutLen = 127
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateCollecting
)

// Role selects which start character an endpoint emits and expects.
type Role int

// Role values
const (
	RoleClient Role = iota
	RoleHost
)

// StartChr returns the start character emitted by this role.
func (r Role) StartChr() byte {
	if r == RoleHost {
		return StartChrHost
	}
	return StartChrClient
}

// PeerStartChr returns the start character this role expects to receive.
func (r Role) PeerStartChr() byte {
	if r == RoleHost {
		return StartChrClient
	}
	return StartChrHost
}

// Peer returns the opposite role.
func (r Role) Peer() Role {
	if r == RoleHost {
		return RoleClient
	}
	return RoleHost
}

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "client"
}

// ParseRole parses "client" or "host".
func ParseRole(s string) (Role, error) {
	switch s {
	case "client", "":
		return RoleClient, nil
	case "host":
		return RoleHost, nil
	}
	return RoleClient, ErrInvalidRole
}

// roleForStart maps a start character back to the role that emits it.
func roleForStart(b byte) Role {
	if b == StartChrHost {
		return RoleHost
	}
	return RoleClient
}

// ErrorCode is the device error code carried in ERR replies.
type ErrorCode int

// Error code values
const (
	CodeNone                       ErrorCode = 0
	CodeCommandNotRecognized       ErrorCode = 1
	CodeAtLeastOneInvalidParameter ErrorCode = 3
	CodeInvalidOrTooFewParameters  ErrorCode = 4
	CodeCommandNotImplemented      ErrorCode = 5
	CodeDeviceNotReady             ErrorCode = 6
	CodeTransportError             ErrorCode = 20 // Value holds the bus sub-code
)

// Transport error sub-codes (I2C bus)
const (
	TransportDataTooLong = 1
	TransportAddressNACK = 2
	TransportDataNACK    = 3
	TransportOther       = 4
)

// Remark string resources
const (
	StrReady = 0
	StrDone  = 1
)

// DefaultRemarks returns a fresh copy of the built-in remark string table.
func DefaultRemarks() []string {
	return []string{"Ready", "...done"}
}

// MaxRemarkLength caps a single remark string resource.
const MaxRemarkLength = 32
