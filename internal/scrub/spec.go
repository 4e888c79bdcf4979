// Package scrub replaces secrets, integration parameters and test inputs in
// recorded traffic with stable placeholder tokens, and puts them back for
// replay.
//
// Values are resolved into a flat list of PlaceholderSpec by Resolve before
// any traffic is touched. Apply then works on that list only; it never reads
// the process environment.
package scrub

import "fmt"

// Kind says where a placeholder value came from.
type Kind string

const (
	KindCredential Kind = "credential"
	KindParameter  Kind = "parameter"
	KindInput      Kind = "input"
)

// SchemeType is the type of a provider security scheme.
type SchemeType string

const (
	SchemeAPIKey SchemeType = "apiKey"
	SchemeHTTP   SchemeType = "http"
)

// Location is where an API key is sent.
type Location string

const (
	InHeader Location = "header"
	InQuery  Location = "query"
	InPath   Location = "path"
	InBody   Location = "body"
)

// HTTPScheme is the authorization scheme of an http security scheme.
type HTTPScheme string

const (
	HTTPBasic  HTTPScheme = "basic"
	HTTPBearer HTTPScheme = "bearer"
	HTTPDigest HTTPScheme = "digest"
)

// SecurityScheme declares how a provider authenticates requests.
type SecurityScheme struct {
	ID     string     `yaml:"id" json:"id"`
	Type   SchemeType `yaml:"type" json:"type"`
	In     Location   `yaml:"in,omitempty" json:"in,omitempty"`
	Name   string     `yaml:"name,omitempty" json:"name,omitempty"`
	Scheme HTTPScheme `yaml:"scheme,omitempty" json:"scheme,omitempty"`
}

// Validate checks that the scheme has the fields its type needs.
func (s SecurityScheme) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("security scheme id is required")
	}
	switch s.Type {
	case SchemeAPIKey:
		switch s.In {
		case InHeader, InQuery, InPath, InBody:
		default:
			return fmt.Errorf("security scheme %q: apiKey location %q must be one of header, query, path, body", s.ID, s.In)
		}
		if s.Name == "" && s.In != InPath {
			return fmt.Errorf("security scheme %q: apiKey in %s requires a name", s.ID, s.In)
		}
	case SchemeHTTP:
		switch s.Scheme {
		case HTTPBasic, HTTPBearer, HTTPDigest:
		default:
			return fmt.Errorf("security scheme %q: http scheme %q must be one of basic, bearer, digest", s.ID, s.Scheme)
		}
	default:
		return fmt.Errorf("security scheme %q: unknown type %q", s.ID, s.Type)
	}
	return nil
}

// authorizationOnly reports whether values of this scheme may only be
// replaced in the Authorization header and its raw echoes.
func (s SecurityScheme) authorizationOnly() bool {
	return s.Type == SchemeHTTP
}

// PlaceholderSpec is one resolved value and the token that stands in for it
// inside recordings.
type PlaceholderSpec struct {
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	Value       string `json:"-"`
	Placeholder string `json:"placeholder"`

	// Scheme is set for credentials and controls where they are replaced.
	Scheme *SecurityScheme `json:"scheme,omitempty"`
}

func (s PlaceholderSpec) authorizationOnly() bool {
	return s.Kind == KindCredential && s.Scheme != nil && s.Scheme.authorizationOnly()
}
