package llm

import (
	"errors"
	"fmt"
)

// ErrNoProviders is returned when the gateway has no configured providers
// or every provider in the chain failed.
var ErrNoProviders = errors.New("no llm providers available")

// ProviderError wraps a failure from a single provider. Terminal errors
// (malformed requests, auth failures) should not be retried on the same
// provider, though the gateway may still fall through to the next one.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// Terminal reports whether retrying the same provider is pointless.
// 429 and 5xx are retryable; other 4xx are not.
func (e *ProviderError) Terminal() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != 429
}

// ProviderTimeout marks a provider call that exceeded its deadline.
type ProviderTimeout struct {
	Provider string
}

func (e *ProviderTimeout) Error() string {
	return fmt.Sprintf("provider %s: timed out", e.Provider)
}
