package dataddo

import (
	"fmt"
	"strings"
)

const (
	tokenLength    = 64
	objectIDLength = 24
)

// Token is a validated Dataddo API token.
type Token struct {
	value string
}

// NewToken validates s as a 64 character hexadecimal API token.
func NewToken(s string) (Token, error) {
	if reason := checkHex(s, tokenLength); reason != "" {
		return Token{}, &InvalidTokenError{Reason: reason}
	}
	return Token{value: s}, nil
}

// String returns the token exactly as it was supplied.
func (t Token) String() string { return t.value }

// IsZero reports whether t was never constructed.
func (t Token) IsZero() bool { return t.value == "" }

// Redacted masks everything but the last four characters.
func (t Token) Redacted() string {
	if len(t.value) <= 4 {
		return strings.Repeat("*", len(t.value))
	}
	return strings.Repeat("*", len(t.value)-4) + t.value[len(t.value)-4:]
}

// Kind tags an ObjectID with the API object it refers to.
type Kind int

const (
	KindUnknown Kind = iota
	KindSource
	KindEndpoint
	KindFlow
)

// String returns the lower-case kind name used in URLs and config files.
func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindEndpoint:
		return "endpoint"
	case KindFlow:
		return "flow"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps "source", "endpoint" or "flow" (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source":
		return KindSource, nil
	case "endpoint":
		return KindEndpoint, nil
	case "flow":
		return KindFlow, nil
	default:
		return KindUnknown, fmt.Errorf("unknown identifier kind %q", s)
	}
}

// ObjectID is a validated 24 character hexadecimal identifier tagged with its Kind.
type ObjectID struct {
	kind  Kind
	value string
}

// NewObjectID validates s and tags it with kind.
func NewObjectID(kind Kind, s string) (ObjectID, error) {
	switch kind {
	case KindSource, KindEndpoint, KindFlow:
	default:
		return ObjectID{}, &UnsupportedIdentifierError{Kind: kind}
	}
	if reason := checkHex(s, objectIDLength); reason != "" {
		return ObjectID{}, &InvalidIdentifierError{Kind: kind, Value: s, Reason: reason}
	}
	return ObjectID{kind: kind, value: s}, nil
}

// NewSourceID validates s as a source identifier.
func NewSourceID(s string) (ObjectID, error) { return NewObjectID(KindSource, s) }

// NewEndpointID validates s as an endpoint identifier.
func NewEndpointID(s string) (ObjectID, error) { return NewObjectID(KindEndpoint, s) }

// NewFlowID validates s as a flow identifier.
func NewFlowID(s string) (ObjectID, error) { return NewObjectID(KindFlow, s) }

// Kind returns the object kind fixed at construction.
func (id ObjectID) Kind() Kind { return id.kind }

// String returns the identifier as supplied.
func (id ObjectID) String() string { return id.value }

// IsZero reports whether id was never constructed.
func (id ObjectID) IsZero() bool { return id.value == "" }

// checkHex returns a non-empty reason when s is not a hex string of exactly n characters.
func checkHex(s string, n int) string {
	if s == "" {
		return "must be specified"
	}
	if len(s) != n {
		return fmt.Sprintf("must be %d characters long, got %d", n, len(s))
	}
	for i := 0; i < len(s); i++ {
		if !isHex(s[i]) {
			return "must be hexadecimal"
		}
	}
	return ""
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
