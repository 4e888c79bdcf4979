package match

import (
	"errors"
	"fmt"
)

// Kind identifies which part of an interaction a DiffError is about.
type Kind string

const (
	KindLength         Kind = "LENGTH"
	KindMethod         Kind = "METHOD"
	KindStatus         Kind = "STATUS"
	KindBaseURL        Kind = "BASE_URL"
	KindPath           Kind = "PATH"
	KindRequestHeader  Kind = "REQUEST_HEADER"
	KindResponseHeader Kind = "RESPONSE_HEADER"
	KindRequestBody    Kind = "REQUEST_BODY"
	KindResponse       Kind = "RESPONSE"
)

// Kinds lists every Kind in declaration order.
var Kinds = []Kind{
	KindLength, KindMethod, KindStatus, KindBaseURL, KindPath,
	KindRequestHeader, KindResponseHeader, KindRequestBody, KindResponse,
}

// DiffError is one structural difference between recorded and new traffic.
// DiffErrors are findings, not Go errors.
type DiffError struct {
	Kind Kind `json:"kind"`

	// Index is the position of the interaction pair. -1 for LENGTH.
	Index int `json:"index"`

	// Header names the header for REQUEST_HEADER and RESPONSE_HEADER.
	Header string `json:"header,omitempty"`

	Old string `json:"old,omitempty"`
	New string `json:"new,omitempty"`

	// Message carries validator diagnostics for body and response differences.
	Message string `json:"message,omitempty"`
}

func (e DiffError) String() string {
	subject := string(e.Kind)
	if e.Header != "" {
		subject += " " + e.Header
	}
	if e.Index >= 0 {
		subject = fmt.Sprintf("[%d] %s", e.Index, subject)
	}

	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", subject, e.Message)
	case e.Old != "" || e.New != "":
		return fmt.Sprintf("%s: %q -> %q", subject, e.Old, e.New)
	default:
		return subject
	}
}

// ErrDecodeUnsupported is matched by every *DecodeUnsupportedError via errors.Is.
var ErrDecodeUnsupported = errors.New("unsupported content encoding")

// DecodeUnsupportedError reports a content encoding the matcher cannot decode.
// Unsupported encodings are never skipped silently.
type DecodeUnsupportedError struct {
	Encoding string
	Index    int
}

func (e *DecodeUnsupportedError) Error() string {
	return fmt.Sprintf("DECODE_UNSUPPORTED: interaction %d: content encoding %q is not supported", e.Index, e.Encoding)
}

// Is makes errors.Is(err, ErrDecodeUnsupported) true.
func (e *DecodeUnsupportedError) Is(target error) bool {
	return target == ErrDecodeUnsupported
}

// DecodeError reports a payload that claims an encoding but cannot be decoded.
type DecodeError struct {
	Encoding string
	Index    int
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("DECODE_FAILED: interaction %d: %s payload: %v", e.Index, e.Encoding, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
