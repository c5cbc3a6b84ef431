// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rmsg

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrUnknownToken    = errors.New("token not recognized")
	ErrNoOpenMessage   = errors.New("no message open")
	ErrInvalidKey      = errors.New("invalid parameter key")
	ErrInvalidFormat   = errors.New("invalid parameter format")
	ErrTooManyParams   = errors.New("too many parameters")
	ErrTooManyValues   = errors.New("too many values")
	ErrNoValues        = errors.New("parameter has no values")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFrameTooLong    = errors.New("frame too long")
	ErrFrameTooShort   = errors.New("frame too short")
	ErrIncomplete      = errors.New("incomplete frame")
	ErrRemarkIndex     = errors.New("remark index out of range")
	ErrInvalidRemark   = errors.New("invalid remark text")
	ErrTokenTable      = errors.New("invalid token table")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrNotConfirmation = errors.New("not a confirmation")
)

// FrameError reports a candidate frame that was discarded by the decoder.
type FrameError struct {
	Err    error // ErrFrameTooShort or ErrFrameTooLong
	Length int   // Body length at the time of discard
}

// Error implements the error interface
func (e *FrameError) Error() string {
	return fmt.Sprintf("%v: body length %d", e.Err, e.Length)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// DeviceError is the Go form of an ERR reply.
type DeviceError struct {
	Token Token // Token the reply refers to (TokNone for unrecognized commands)
	Code  ErrorCode
	Value int
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Code == CodeTransportError {
		return fmt.Sprintf("device error for token %d: %s (sub-code %d)", e.Token, e.Code, e.Value)
	}
	return fmt.Sprintf("device error for token %d: %s (value %d)", e.Token, e.Code, e.Value)
}

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "NONE"
	case CodeCommandNotRecognized:
		return "COMMAND_NOT_RECOGNIZED"
	case CodeAtLeastOneInvalidParameter:
		return "AT_LEAST_ONE_INVALID_PARAMETER"
	case CodeInvalidOrTooFewParameters:
		return "INVALID_OR_TOO_FEW_PARAMETERS"
	case CodeCommandNotImplemented:
		return "COMMAND_NOT_IMPLEMENTED"
	case CodeDeviceNotReady:
		return "DEVICE_NOT_READY"
	case CodeTransportError:
		return "TRANSPORT_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
}
