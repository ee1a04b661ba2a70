package provider

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingCredential is returned before any network call when no API key is supplied
	ErrMissingCredential = errors.New("missing API key")
	// ErrUnknownProvider is returned for provider ids outside the configured profiles
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderError is a non-2xx response or an unreadable response envelope
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s returned status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when a configured provider timeout elapses
type TimeoutError struct {
	Provider string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not respond within %s", e.Provider, e.After)
}
