package scope

import (
	"encoding/json"
	"slices"
	"strings"
)

const (
	// All grants every capability.
	All = "*"
	// Read grants the read verb on every resource.
	Read = "read"
	// Write grants the write verb on every resource.
	Write = "write"
)

// Scope is an immutable set of granted capabilities.
// The zero value grants nothing.
type Scope struct {
	values []string
}

// New builds a scope from the given capabilities. Empty entries and duplicates are dropped.
func New(values ...string) Scope {
	out := make([]string, 0, len(values))

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}

		out = append(out, v)
	}

	return Scope{values: out}
}

// Parse reads a scope from its textual form: capabilities separated by spaces or commas,
// as sent in an OAuth2 "scope" parameter.
func Parse(s string) Scope {
	return New(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})...)
}

// Values returns a copy of the capabilities in the scope.
func (s Scope) Values() []string {
	return slices.Clone(s.values)
}

// Len returns the number of capabilities in the scope.
func (s Scope) Len() int {
	return len(s.values)
}

// IsEmpty reports whether the scope grants nothing.
func (s Scope) IsEmpty() bool {
	return len(s.values) == 0
}

// Union returns a new scope holding the capabilities of both scopes.
func (s Scope) Union(other Scope) Scope {
	return New(append(s.Values(), other.values...)...)
}

// Equal reports whether both scopes hold the same capabilities in the same order.
func (s Scope) Equal(other Scope) bool {
	return slices.Equal(s.values, other.values)
}

// String renders the scope as space separated capabilities.
func (s Scope) String() string {
	return strings.Join(s.values, " ")
}

// MarshalJSON encodes a single capability as a JSON string and anything else as an array.
func (s Scope) MarshalJSON() ([]byte, error) {
	if len(s.values) == 1 {
		return json.Marshal(s.values[0])
	}

	if s.values == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(s.values)
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (s *Scope) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = New(single)
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}

	*s = New(many...)

	return nil
}
