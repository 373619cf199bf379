package ingest

import (
	"fmt"

	"phototag/internal/services"
)

// Kind classifies an ingestion failure.
type Kind string

const (
	// KindInvalidFormat means the upload is not an accepted image.
	KindInvalidFormat Kind = "invalid_format"
	// KindStorageFailure means the bytes or records could not be persisted.
	KindStorageFailure Kind = "storage_failure"
)

// Error is returned by Pipeline.Ingest. errors.Is matches it against
// services.ErrInvalidFormat or services.ErrStorageFailure by kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind marker and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.marker()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *Error) marker() error {
	if e.Kind == KindInvalidFormat {
		return services.ErrInvalidFormat
	}
	return services.ErrStorageFailure
}

func invalidFormat(message string, err error) *Error {
	return &Error{Kind: KindInvalidFormat, Message: message, Err: err}
}

func storageFailure(message string, err error) *Error {
	return &Error{Kind: KindStorageFailure, Message: message, Err: err}
}
