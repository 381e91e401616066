/*
Copyright 2024 The Vexel Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package vexelerrors provides the typed errors used throughout the Vexel
// client: a hierarchical 32-bit code space shared with the server, plus the
// client-side codes the engine assigns to failures it detects itself.
package vexelerrors

import (
	"errors"
	"fmt"
	"strconv"
)

// Severity of a server-reported error.
type Severity uint8

const (
	SeverityError Severity = 120
	SeverityFatal Severity = 200
	SeverityPanic Severity = 255
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	case SeverityPanic:
		return "PANIC"
	default:
		return "SEVERITY(" + strconv.Itoa(int(s)) + ")"
	}
}

// Well-known attribute keys on server-reported errors.
const (
	FieldHint            = 0x00_01
	FieldDetails         = 0x00_02
	FieldServerTraceback = 0x01_01

	// Positional attributes; layout may still change server-side.
	FieldPositionStart = 0xFF_F1
	FieldPositionEnd   = 0xFF_F2
	FieldLine          = 0xFF_F3
	FieldColumn        = 0xFF_F4
)

// Error is the error type returned from the protocol engine, both for
// structured server error responses and for failures the client detects
// before or after a round trip.
type Error struct {
	Severity Severity
	Code     Code
	Message  string

	// Attributes carries the numeric-key header map of a server error
	// response. Nil for client-generated errors.
	Attributes map[uint16][]byte

	wrapped error
}

// New returns an Error with the given client or server code.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Severity: SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Wrap returns an Error with the given code whose Unwrap yields err.
func Wrap(code Code, err error, format string, args ...any) *Error {
	e := New(code, format, args...)
	e.wrapped = err
	return e
}

func (e *Error) Error() string {
	return e.Code.Name() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is matches against another *Error by code category, so that
// errors.Is(err, vexelerrors.New(CodeQuery, "")) holds for any query-class
// error.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return e.Code.Matches(te.Code)
}

// ShouldRetry and ShouldReconnect expose the tags of the error's code class.
func (e *Error) ShouldRetry() bool     { return e.Code.ShouldRetry() }
func (e *Error) ShouldReconnect() bool { return e.Code.ShouldReconnect() }

// Hint returns the server-provided hint attribute, if any.
func (e *Error) Hint() string { return e.strAttr(FieldHint) }

// Details returns the server-provided details attribute, if any.
func (e *Error) Details() string { return e.strAttr(FieldDetails) }

// ServerTraceback returns the server-side traceback attribute, if any.
func (e *Error) ServerTraceback() string { return e.strAttr(FieldServerTraceback) }

// Line returns the 1-based source line of the error position, or -1.
func (e *Error) Line() int { return e.intAttr(FieldLine) }

// Column returns the 1-based source column of the error position, or -1.
func (e *Error) Column() int { return e.intAttr(FieldColumn) }

// Position returns the 0-based character offset of the error, or -1.
func (e *Error) Position() int { return e.intAttr(FieldPositionStart) }

func (e *Error) strAttr(key uint16) string {
	if v, ok := e.Attributes[key]; ok {
		return string(v)
	}
	return ""
}

func (e *Error) intAttr(key uint16) int {
	v, ok := e.Attributes[key]
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return -1
	}
	return n
}

// CodeOf extracts the Code from any error produced by this module.
// Non-Error values map to CodeClient.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeClient
}
