// Copyright © 2024 The gatbcore Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package gatberr defines the closed set of error kinds the counting and
// graph core can raise, per the propagation policy of the specification.
package gatberr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is a closed set of error categories. New kinds are never added at
// runtime; callers switch on Kind to decide whether a failure is fatal,
// skippable or retryable.
type Kind int

const (
	// IoError covers open/read/write/remove failures on any backing file.
	IoError Kind = iota
	// FormatError covers an unrecognized bank format or a corrupt record.
	FormatError
	// ConfigError covers an impossible resource budget or a k outside the
	// supported range.
	ConfigError
	// ResourceExhausted covers a partition that cannot fit in memory even
	// in hash mode.
	ResourceExhausted
	// Corruption covers a checksum or size mismatch in persisted data.
	Corruption
	// Cancelled covers a run stopped via a cancellation token.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "IoError"
	case FormatError:
		return "FormatError"
	case ConfigError:
		return "ConfigError"
	case ResourceExhausted:
		return "ResourceExhausted"
	case Corruption:
		return "Corruption"
	case Cancelled:
		return "Cancelled"
	default:
		return "UnknownError"
	}
}

// Error is a typed error carrying the phase in which it occurred and, when
// known, the offending input, so the CLI can print the single terminal
// message the specification requires.
type Error struct {
	Kind    Kind
	Phase   string
	Input   string
	cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: phase=%s", e.Kind, e.Phase)
	if e.Input != "" {
		msg += fmt.Sprintf(" input=%s", e.Input)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// New builds a typed error for the given phase, optionally wrapping cause.
func New(kind Kind, phase string, cause error) *Error {
	return &Error{Kind: kind, Phase: phase, cause: cause}
}

// WithInput attaches the offending input path/identifier to the error.
func (e *Error) WithInput(input string) *Error {
	e.Input = input
	return e
}

// Wrap decorates cause with phase/kind context using pkg/errors, the idiom
// used throughout the retrieval pack's CLI tools.
func Wrap(kind Kind, phase string, cause error, format string, args ...interface{}) *Error {
	if cause == nil {
		return nil
	}
	return New(kind, phase, errors.Wrapf(cause, format, args...))
}

// MultiError composes the per-worker failures collected at a pass boundary
// into a single error, per the dispatcher's propagation policy.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	s := fmt.Sprintf("%d worker errors:", len(m.Errors))
	for _, e := range m.Errors {
		s += "\n  - " + e.Error()
	}
	return s
}

// Add appends a non-nil error to the composite.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrOrNil returns nil if no error was collected, the single error if
// exactly one was collected, or the composite MultiError otherwise.
func (m *MultiError) ErrOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	if len(m.Errors) == 1 {
		return m.Errors[0]
	}
	return m
}
