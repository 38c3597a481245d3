package identity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPlayer matches every *UnknownPlayerError via errors.Is.
var ErrUnknownPlayer = errors.New("unknown player")

// UnmatchedName is a raw name with no alias, and where it was seen.
type UnmatchedName struct {
	Raw  string
	Line int
}

// UnknownPlayerError lists every name that could not be resolved in strict mode.
type UnknownPlayerError struct {
	Names []UnmatchedName
}

func (e *UnknownPlayerError) Error() string {
	raws := make([]string, len(e.Names))
	for i, n := range e.Names {
		raws[i] = fmt.Sprintf("%q", n.Raw)
	}
	return "unknown player: no alias for " + strings.Join(raws, ", ")
}

// Is reports ErrUnknownPlayer as a match.
func (e *UnknownPlayerError) Is(target error) bool {
	return target == ErrUnknownPlayer
}
