// Package kind implements the composite kind grammar and the per-family
// kind tables that map actions to task kinds.
//
// A kind is either a bare base ("container") or a base joined to an action
// by a single separator ("container+job"). Each segment is made of ASCII
// letters, digits, '.', '_' or '-'.
package kind

import (
	"errors"
	"fmt"
	"strings"
)

// Kind errors
var (
	ErrInvalidKind   = errors.New("invalid kind")
	ErrUnknownAction = errors.New("unknown action")
)

// Separator joins a family base to an action.
const Separator = "+"

// Composite is a kind string of the form base or base+action.
type Composite string

// Parse validates s against the kind grammar.
func Parse(s string) (Composite, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty kind", ErrInvalidKind)
	}

	parts := strings.Split(s, Separator)
	if len(parts) > 2 {
		return "", fmt.Errorf("%w: %q contains more than one %q", ErrInvalidKind, s, Separator)
	}
	for _, p := range parts {
		if !validSegment(p) {
			return "", fmt.Errorf("%w: %q has an invalid segment %q", ErrInvalidKind, s, p)
		}
	}
	return Composite(s), nil
}

// MustParse is Parse for package-level kind constants. It panics on error.
func MustParse(s string) Composite {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Valid reports whether s satisfies the kind grammar.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Join builds base+action. An empty action yields the bare base.
func Join(base, action string) Composite {
	if action == "" {
		return Composite(base)
	}
	return Composite(base + Separator + action)
}

// Base returns the family part of the kind.
func (c Composite) Base() string {
	base, _, _ := strings.Cut(string(c), Separator)
	return base
}

// Action returns the verb part of the kind, or "" for a bare kind.
func (c Composite) Action() string {
	_, action, _ := strings.Cut(string(c), Separator)
	return action
}

// IsComposite reports whether the kind carries an action.
func (c Composite) IsComposite() bool {
	return strings.Contains(string(c), Separator)
}

func (c Composite) String() string {
	return string(c)
}

func validSegment(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '.', ch == '_', ch == '-':
		default:
			return false
		}
	}
	return true
}
