package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the client-visible error categories. The HTTP handlers are
// the only place where kinds are translated to status codes and JSON
// envelopes; adapters and stores attach a kind and optional detail, never a
// presentation string.
type Kind string

const (
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindCredentialMissing   Kind = "CREDENTIAL_MISSING"
	KindCredentialRejected  Kind = "CREDENTIAL_REJECTED"
	KindProviderRejected    Kind = "PROVIDER_REJECTED"
	KindProviderRateLimited Kind = "PROVIDER_RATE_LIMITED"
	KindGenerationFailed    Kind = "GENERATION_FAILED"
	KindGenerationTimedOut  Kind = "GENERATION_TIMED_OUT"
	KindMissingImageData    Kind = "MISSING_IMAGE_DATA"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindStorageUnavailable  Kind = "STORAGE_UNAVAILABLE"
	KindInternal            Kind = "INTERNAL"
)

// Error carries an error kind plus a human-readable message and optional
// upstream detail. UpstreamStatus, when non-zero, is the HTTP status the
// provider answered with and is relayed to the client for upstream failures.
type Error struct {
	Kind           Kind
	Message        string
	Details        string
	UpstreamStatus int
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// E builds a domain error from a kind and message.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef builds a domain error with a formatted message.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetails returns a copy of the error carrying upstream detail.
func (e *Error) WithDetails(details string) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// WithUpstreamStatus returns a copy of the error carrying the provider's
// HTTP status.
func (e *Error) WithUpstreamStatus(status int) *Error {
	clone := *e
	clone.UpstreamStatus = status
	return &clone
}

// KindOf extracts the kind from an error chain, defaulting to INTERNAL.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// AsError extracts a *Error from the chain, or wraps err as INTERNAL with a
// generic message so internal detail never leaks to the client.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return E(KindInternal, "unexpected internal error")
}

// HTTPStatus maps an error kind to the status the relay answers with.
// Upstream failures prefer the provider's own status when one was recorded.
func HTTPStatus(err error) int {
	de := AsError(err)
	switch de.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindCredentialMissing:
		return http.StatusUnauthorized
	case KindCredentialRejected:
		return http.StatusForbidden
	case KindProviderRateLimited:
		return http.StatusTooManyRequests
	case KindProviderRejected:
		if de.UpstreamStatus >= 400 && de.UpstreamStatus < 500 {
			return de.UpstreamStatus
		}
		return http.StatusBadRequest
	case KindGenerationTimedOut:
		return http.StatusGatewayTimeout
	case KindGenerationFailed, KindMissingImageData:
		return http.StatusBadGateway
	case KindUpstreamUnavailable:
		if de.UpstreamStatus >= 500 {
			return de.UpstreamStatus
		}
		return http.StatusBadGateway
	case KindStorageUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// FromProviderStatus classifies a non-success provider HTTP status. The raw
// body is preserved as detail so the client can show provider-supplied
// context for rejected prompts.
func FromProviderStatus(status int, body string) *Error {
	var e *Error
	switch {
	case status == http.StatusTooManyRequests:
		e = E(KindProviderRateLimited, "provider rate limit reached, try again later")
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		e = E(KindCredentialRejected, "provider rejected the API key")
	case status == http.StatusRequestEntityTooLarge:
		e = E(KindProviderRejected, "request payload too large for provider")
	case status >= 400 && status < 500:
		e = E(KindProviderRejected, "provider rejected the request")
	default:
		e = E(KindUpstreamUnavailable, "provider is unavailable")
	}
	return e.WithDetails(body).WithUpstreamStatus(status)
}
