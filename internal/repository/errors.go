package repository

import (
	"errors"
	"fmt"
)

// Error kinds for a failed load. Match with errors.Is.
var (
	ErrSourceNotFound = errors.New("dataset not found")
	ErrReadFailure    = errors.New("could not read dataset")
	ErrDecodeFailure  = errors.New("could not decode dataset")
)

// DataError describes a failed load attempt against a source
type DataError struct {
	Kind   error  // one of the Err* kinds above
	Source string // dataset path or DSN
	Err    error  // underlying cause, may be nil
}

func (e *DataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is/As
func (e *DataError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound builds a DataError of kind ErrSourceNotFound
func NotFound(source string, err error) error {
	return &DataError{Kind: ErrSourceNotFound, Source: source, Err: err}
}

// ReadFailure builds a DataError of kind ErrReadFailure
func ReadFailure(source string, err error) error {
	return &DataError{Kind: ErrReadFailure, Source: source, Err: err}
}

// DecodeFailure builds a DataError of kind ErrDecodeFailure
func DecodeFailure(source string, err error) error {
	return &DataError{Kind: ErrDecodeFailure, Source: source, Err: err}
}
