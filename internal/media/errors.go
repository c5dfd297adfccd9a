// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package media

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind string

const (
	KindNoVideoSource     Kind = "no_video_source"
	KindFormatMismatch    Kind = "format_mismatch"
	KindInvalidRange      Kind = "invalid_range"
	KindInsufficientSpace Kind = "insufficient_space"
	KindCancelled         Kind = "cancelled"
	KindUnexpected        Kind = "unexpected"
)

func (k Kind) String() string { return string(k) }

// Sentinels for errors.Is, one per kind
var (
	ErrNoVideoSource     = errors.New("no video source")
	ErrFormatMismatch    = errors.New("format mismatch")
	ErrInvalidRange      = errors.New("invalid range")
	ErrInsufficientSpace = errors.New("insufficient space")
	ErrCancelled         = errors.New("cancelled")
	ErrUnexpected        = errors.New("unexpected failure")
)

var sentinels = map[Kind]error{
	KindNoVideoSource:     ErrNoVideoSource,
	KindFormatMismatch:    ErrFormatMismatch,
	KindInvalidRange:      ErrInvalidRange,
	KindInsufficientSpace: ErrInsufficientSpace,
	KindCancelled:         ErrCancelled,
	KindUnexpected:        ErrUnexpected,
}

// Error is a classified failure. Body carries the payload (a diagnostic
// for Unexpected, the offending value for validation kinds).
type Error struct {
	Kind Kind
	Body string
	Err  error
}

// NewError creates a classified error
func NewError(kind Kind, body string) *Error {
	return &Error{Kind: kind, Body: body}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, err error, body string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Body: body, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf reports the kind of err. Unclassified errors are Unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Classify returns err unchanged when it already carries a kind,
// otherwise it wraps it as Unexpected.
func Classify(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(KindUnexpected, err, fmt.Sprintf(format, args...))
}

func NoVideoSource(format string, args ...interface{}) error {
	return NewError(KindNoVideoSource, fmt.Sprintf(format, args...))
}

func FormatMismatch(format string, args ...interface{}) error {
	return NewError(KindFormatMismatch, fmt.Sprintf(format, args...))
}

func InvalidRange(format string, args ...interface{}) error {
	return NewError(KindInvalidRange, fmt.Sprintf(format, args...))
}

func InsufficientSpace(format string, args ...interface{}) error {
	return NewError(KindInsufficientSpace, fmt.Sprintf(format, args...))
}

func Cancelled(body string) error {
	return NewError(KindCancelled, body)
}
