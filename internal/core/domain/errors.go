package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
	ErrNotFound     = errors.New("not found")

	ErrMalformedResponse = errors.New("malformed response")
	ErrCircuitOpen       = errors.New("circuit open")

	// ErrContentMissing is the only failure the triage pipeline reports to its caller.
	ErrContentMissing = errors.New("email content is required")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
