// Package compliq implements the client side of the COMPLiQ ingestion
// API: endpoint resolution, multipart request construction, base64 file
// decoding, and normalization of every upstream outcome into a uniform
// result envelope.
package compliq

import "fmt"

// ValidationError reports tool parameters that violate policy before
// any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// DecodeError reports a fileBase64 value that is not valid base64.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "invalid base64 payload: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
