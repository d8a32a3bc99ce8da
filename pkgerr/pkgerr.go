// Package pkgerr defines the error taxonomy shared by every stage of the
// crawler: transient vs. permanent I/O, malformed upstream payloads, PDS3
// parse errors, invariant violations, and storage failures. Each category
// is a distinct type so callers can branch on it with errors.As instead of
// string-matching messages.
package pkgerr

import (
	"fmt"
)

// Transient marks an error that is safe to retry (network errors, 5xx,
// 429). The fetcher unwraps these to decide whether to back off and retry.
type Transient struct {
	Err error
}

func (e *Transient) Error() string { return "transient: " + e.Err.Error() }
func (e *Transient) Unwrap() error { return e.Err }

// Permanent marks a non-retriable HTTP failure (4xx other than 429, or a
// request that cannot be built). A transport error such as a DNS failure
// is not made Permanent: it stays Transient even after the retry cap has
// been exhausted.
type Permanent struct {
	Err error
}

func (e *Permanent) Error() string { return "permanent: " + e.Err.Error() }
func (e *Permanent) Unwrap() error { return e.Err }

// Malformed marks an upstream response that didn't match its expected
// content type (non-JSON where JSON was expected, truncated HTML). The
// file is retained under quarantine rather than discarded.
type Malformed struct {
	Path string
	Err  error
}

func (e *Malformed) Error() string {
	return fmt.Sprintf("malformed response at %s: %v", e.Path, e.Err)
}
func (e *Malformed) Unwrap() error { return e.Err }

// ParseError reports a PDS3 grammar rejection with file/line/token
// context.
type ParseError struct {
	File  string
	Line  int
	Col   int
	Token string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s:%d:%d: %s (near %q)", e.File, e.Line, e.Col, e.Msg, e.Token)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
}

// Invariant is a ParseError raised specifically for a missing required
// sub-object, kept as a distinct constructor so callers can tell the two
// apart without parsing the message.
func Invariant(file string, line int, kind string) *ParseError {
	return &ParseError{File: file, Line: line, Msg: "missing required " + kind}
}

// Storage marks a disk-level failure (permission denied, disk full) that
// is fatal to the current phase but not to the whole run; the driver
// catches it, records it against the collection, and moves on.
type Storage struct {
	Op  string
	Err error
}

func (e *Storage) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *Storage) Unwrap() error { return e.Err }
