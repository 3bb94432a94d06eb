package permission

import (
	"fmt"
)

// Request is the concrete tuple being asked about
type Request struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Scope    Scope  `json:"scope"`
}

// String returns the request in resource:action:scope form
func (r Request) String() string {
	return r.Resource + ":" + r.Action + ":" + string(r.Scope)
}

// Validate checks that the request is a well-formed concrete tuple
func (r Request) Validate() error {
	if r.Resource == "" || r.Action == "" || r.Scope == "" {
		return fmt.Errorf("%w: resource, action and scope are required", ErrInvalidRequest)
	}
	if !segmentPattern.MatchString(r.Resource) {
		return fmt.Errorf("%w: invalid resource %q", ErrInvalidRequest, r.Resource)
	}
	if !segmentPattern.MatchString(r.Action) {
		return fmt.Errorf("%w: invalid action %q", ErrInvalidRequest, r.Action)
	}
	if !r.Scope.Valid() {
		return fmt.Errorf("%w: invalid scope %q", ErrInvalidRequest, r.Scope)
	}
	return nil
}

// ParseRequest parses a concrete resource:action:scope tuple
func ParseRequest(s string) (Request, error) {
	p, err := Parse(s)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	r := Request{Resource: p.Resource, Action: p.Action, Scope: Scope(p.Scope)}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}
