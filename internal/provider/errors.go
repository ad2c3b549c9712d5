package provider

import "fmt"

// ConfigurationError reports a missing or malformed provider option,
// raised eagerly during construction.
type ConfigurationError struct {
	Provider string
	Detail   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s: configuration error: %s", e.Provider, e.Detail)
}

// AuthenticationError reports rejected credentials. The pool discards the
// provider for the remainder of the run; it does not re-initialize the
// session.
type AuthenticationError struct {
	Provider string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("provider %s: authentication failed: %v", e.Provider, e.Err)
}
func (e *AuthenticationError) Unwrap() error { return e.Err }

// ServiceUnavailable reports a transient upstream failure (5xx, network
// reset). The pool retries the call once, immediately and without a
// backoff delay; a provider whose calls still fail this way on two
// consecutive pool calls is discarded.
type ServiceUnavailable struct {
	Provider string
	Err      error
}

func (e *ServiceUnavailable) Error() string {
	return fmt.Sprintf("provider %s: service unavailable: %v", e.Provider, e.Err)
}
func (e *ServiceUnavailable) Unwrap() error { return e.Err }

// DownloadLimitExceeded reports an exhausted download quota. The pool
// discards the provider for the remainder of the run.
type DownloadLimitExceeded struct {
	Provider string
}

func (e *DownloadLimitExceeded) Error() string {
	return fmt.Sprintf("provider %s: download limit exceeded", e.Provider)
}

// TooManyRequests reports a rate-limit rejection. Handled identically to
// DownloadLimitExceeded: immediate discard for this run.
type TooManyRequests struct {
	Provider string
}

func (e *TooManyRequests) Error() string {
	return fmt.Sprintf("provider %s: too many requests", e.Provider)
}

// NotInitializedProviderError reports a call to list/download before
// Initialize succeeded. It is a programming error and propagates.
type NotInitializedProviderError struct {
	Provider string
}

func (e *NotInitializedProviderError) Error() string {
	return fmt.Sprintf("provider %s: used before initialize succeeded", e.Provider)
}

// ProviderError is the generic catch-all upstream failure. The pool
// discards the provider for the remainder of the run.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}
func (e *ProviderError) Unwrap() error { return e.Err }

// InvalidSubtitleError reports that downloaded content failed
// is_valid(); the specific candidate is rejected and the caller should
// try the next one.
type InvalidSubtitleError struct {
	Provider   string
	SubtitleID string
}

func (e *InvalidSubtitleError) Error() string {
	return fmt.Sprintf("provider %s: subtitle %s failed validation", e.Provider, e.SubtitleID)
}
