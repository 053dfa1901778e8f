package dataddo

import "fmt"

// InvalidTokenError reports a token that is empty, not 64 characters long or not hexadecimal.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return "invalid token: " + e.Reason
}

// InvalidIdentifierError reports an object ID that failed validation.
type InvalidIdentifierError struct {
	Kind   Kind
	Value  string
	Reason string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s id %q: %s", e.Kind, e.Value, e.Reason)
}

// UnsupportedIdentifierError is returned for identifiers whose kind has no URL path.
type UnsupportedIdentifierError struct {
	Kind Kind
}

func (e *UnsupportedIdentifierError) Error() string {
	return fmt.Sprintf("unsupported identifier kind %q, use source, endpoint or flow", e.Kind.String())
}

// UnexpectedStatusError carries the status code of a non-200 response.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected response status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected response status %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError reports a response body that could not be mapped to a DataResponse.
type MalformedResponseError struct {
	Field string
	Cause error
}

func (e *MalformedResponseError) Error() string {
	msg := "malformed response"
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}
