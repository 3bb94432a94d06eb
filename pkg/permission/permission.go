package permission

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Wildcard matches any concrete value in a permission segment
const Wildcard = "*"

var (
	// ErrInvalidPermission is returned when a permission string does not parse
	ErrInvalidPermission = errors.New("invalid permission")

	// ErrInvalidRequest is returned when a request tuple is malformed
	ErrInvalidRequest = errors.New("invalid request shape")
)

var segmentPattern = regexp.MustCompile(`^[a-z_]+$`)

// Scope represents the breadth of data a permission applies to
type Scope string

const (
	ScopeOwn          Scope = "own"
	ScopeOrganization Scope = "organization"
	ScopeGlobal       Scope = "global"
)

// Valid reports whether the scope is one of the closed set
func (s Scope) Valid() bool {
	switch s {
	case ScopeOwn, ScopeOrganization, ScopeGlobal:
		return true
	}
	return false
}

// Scopes returns the closed set of scopes
func Scopes() []Scope {
	return []Scope{ScopeOwn, ScopeOrganization, ScopeGlobal}
}

// Permission is a parsed resource:action:scope predicate
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Scope    string `json:"scope"`
}

// String returns the canonical resource:action:scope form
func (p Permission) String() string {
	return p.Resource + ":" + p.Action + ":" + p.Scope
}

// MarshalText renders the permission in its string form
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses the permission from its string form
func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Parse parses a permission string
func Parse(s string) (Permission, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Permission{}, fmt.Errorf("%w %q: expected resource:action:scope", ErrInvalidPermission, s)
	}

	for i, part := range parts {
		if part == "" {
			return Permission{}, fmt.Errorf("%w %q: segment %d is empty", ErrInvalidPermission, s, i+1)
		}
		if part != Wildcard && !segmentPattern.MatchString(part) {
			return Permission{}, fmt.Errorf("%w %q: segment %q must match [a-z_]+ or be *", ErrInvalidPermission, s, part)
		}
	}

	if parts[2] != Wildcard && !Scope(parts[2]).Valid() {
		return Permission{}, fmt.Errorf("%w %q: unknown scope %q", ErrInvalidPermission, s, parts[2])
	}

	return Permission{Resource: parts[0], Action: parts[1], Scope: parts[2]}, nil
}

// MustParse parses a permission string and panics on error
func MustParse(s string) Permission {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseAll parses a list of permission strings, stopping at the first error
func ParseAll(values []string) ([]Permission, error) {
	perms := make([]Permission, 0, len(values))
	for _, v := range values {
		p, err := Parse(v)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// Matches reports whether the permission grants the request
func (p Permission) Matches(r Request) bool {
	return segmentMatches(p.Resource, r.Resource) &&
		segmentMatches(p.Action, r.Action) &&
		segmentMatches(p.Scope, string(r.Scope))
}

// Matches reports whether permission p grants request r
func Matches(p Permission, r Request) bool {
	return p.Matches(r)
}

func segmentMatches(granted, requested string) bool {
	return granted == Wildcard || granted == requested
}
