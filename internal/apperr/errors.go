package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the job runner and the entrypoint.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindUpstream      Kind = "upstream"
	KindParse         Kind = "parse"
	KindCredential    Kind = "credential"
)

// Credential error subtypes
const (
	SubtypeMissing = "missing"
	SubtypeInvalid = "invalid"
)

// Sentinels for errors.Is. A credential error matches both ErrCredential
// and the sentinel of its subtype.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrUpstream          = errors.New("upstream error")
	ErrParse             = errors.New("parse error")
	ErrCredential        = errors.New("credential error")
	ErrCredentialMissing = errors.New("credential missing")
	ErrCredentialInvalid = errors.New("credential invalid")
)

// Error is the single error type used across the application.
type Error struct {
	Kind    Kind
	Subtype string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the package sentinels against the error kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrUpstream:
		return e.Kind == KindUpstream
	case ErrParse:
		return e.Kind == KindParse
	case ErrCredential:
		return e.Kind == KindCredential
	case ErrCredentialMissing:
		return e.Kind == KindCredential && e.Subtype == SubtypeMissing
	case ErrCredentialInvalid:
		return e.Kind == KindCredential && e.Subtype == SubtypeInvalid
	}
	return false
}

// Configuration reports a missing or malformed setting.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Upstream reports a failed call to the model or mail provider.
func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Cause: cause}
}

// Parse reports a model response that does not match the expected schema.
func Parse(message string, cause error) *Error {
	return &Error{Kind: KindParse, Message: message, Cause: cause}
}

// CredentialMissing reports an absent token file.
func CredentialMissing(message string, cause error) *Error {
	return &Error{Kind: KindCredential, Subtype: SubtypeMissing, Message: message, Cause: cause}
}

// CredentialInvalid reports a token that is neither valid nor refreshable.
func CredentialInvalid(message string, cause error) *Error {
	return &Error{Kind: KindCredential, Subtype: SubtypeInvalid, Message: message, Cause: cause}
}
