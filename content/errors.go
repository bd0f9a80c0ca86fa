package content

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is matched by every *ConfigError.
	ErrConfig = errors.New("content: invalid configuration")
	// ErrNotFound is returned when an identifier does not resolve to a document.
	ErrNotFound = errors.New("content: document not found")
	// ErrInvalidCursor is returned for a cursor the source did not issue.
	ErrInvalidCursor = errors.New("content: invalid cursor")
)

// ConfigError reports a missing or malformed client setting.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("content: missing required setting %s", e.Field)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// TransportError wraps a failed exchange with the content source: network
// errors, unexpected status codes and undecodable responses.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("content: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("content: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err wraps a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
