package project

import (
	"errors"
	"fmt"
)

// Parse failures
var (
	ErrDuplicatePath     = errors.New("duplicate path")
	ErrUnlabeledContent  = errors.New("unlabeled content block")
	ErrEmptyProject      = errors.New("no file blocks found")
	ErrUnterminatedBlock = errors.New("unterminated file block")
)

// Sanitize failures
var (
	ErrTraversal     = errors.New("path escapes target root")
	ErrAbsolutePath  = errors.New("absolute path")
	ErrInvalidPath   = errors.New("invalid path")
	ErrTooLarge      = errors.New("file exceeds size limit")
	ErrQuotaExceeded = errors.New("project exceeds quota")
)

// ParseError reports why a response could not be trusted
type ParseError struct {
	Err     error
	Path    string
	Line    int
	Excerpt string
}

func (e *ParseError) Error() string {
	msg := e.Err.Error()
	if e.Path != "" {
		msg += fmt.Sprintf(" %q", e.Path)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Excerpt != "" {
		msg += fmt.Sprintf(": %q", e.Excerpt)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SanitizeError reports the entry that caused the batch to be rejected
type SanitizeError struct {
	Err    error
	Path   string
	Detail string
}

func (e *SanitizeError) Error() string {
	msg := e.Err.Error()
	if e.Path != "" {
		msg += fmt.Sprintf(" %q", e.Path)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *SanitizeError) Unwrap() error {
	return e.Err
}

const maxExcerpt = 80

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= maxExcerpt {
		return s
	}
	return string(r[:maxExcerpt]) + "..."
}
