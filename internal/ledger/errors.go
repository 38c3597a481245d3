package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRow matches every *MalformedRowError via errors.Is.
var ErrMalformedRow = errors.New("malformed row")

// errSkipRow marks rows that are dropped silently (blank lines, repeated headers).
var errSkipRow = errors.New("skip row")

// MalformedRowError describes a rejected input line.
type MalformedRowError struct {
	File   string
	Line   int
	Column string
	Value  string
	Reason string
}

func (e *MalformedRowError) Error() string {
	var b strings.Builder
	b.WriteString("malformed row")
	if e.File != "" {
		fmt.Fprintf(&b, ": %s", e.File)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ": column %s", e.Column)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if e.Value != "" {
		fmt.Fprintf(&b, " (%q)", e.Value)
	}
	return b.String()
}

// Is reports ErrMalformedRow as a match.
func (e *MalformedRowError) Is(target error) bool {
	return target == ErrMalformedRow
}
