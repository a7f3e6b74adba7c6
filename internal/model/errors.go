package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData means the price source returned an empty or unusable series.
	ErrNoData = errors.New("no price data")

	// ErrInsufficientHistory means fewer bars than the indicator warm-up needs.
	ErrInsufficientHistory = errors.New("insufficient history for indicator warm-up")

	// ErrInvalidParameter matches every *InvalidParameterError via errors.Is.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// InvalidParameterError rejects a request before any bar is processed.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidParameter) match.
func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// InvalidParam builds an *InvalidParameterError.
func InvalidParam(field, format string, args ...any) error {
	return &InvalidParameterError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
