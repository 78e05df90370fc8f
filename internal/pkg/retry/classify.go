package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Kind is the closed set of failure classes for external-service calls.
type Kind int

const (
	KindMediaNotFound Kind = iota + 1
	KindServiceUnavailable
	KindTimeout
	KindNetworkError
	KindAuthentication
	KindPermission
	KindRateLimit
	KindInvalidRequest
	KindUnknown
)

// String returns the log name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMediaNotFound:
		return "media_not_found"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindTimeout:
		return "timeout"
	case KindNetworkError:
		return "network_error"
	case KindAuthentication:
		return "authentication_error"
	case KindPermission:
		return "permission_error"
	case KindRateLimit:
		return "rate_limit"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown_error"
	}
}

// Retryable reports whether calls failing with this kind may be attempted
// again. Not-found, auth, permission and invalid-request failures are final.
func (k Kind) Retryable() bool {
	switch k {
	case KindMediaNotFound, KindAuthentication, KindPermission, KindInvalidRequest:
		return false
	default:
		return true
	}
}

// SuggestedDelay is the wait before a *background* re-attempt of the failed
// operation. It deliberately differs from the short in-call retry delay.
func (k Kind) SuggestedDelay() time.Duration {
	switch k {
	case KindServiceUnavailable:
		return 300 * time.Second
	case KindRateLimit:
		return 900 * time.Second
	case KindTimeout:
		return 180 * time.Second
	case KindNetworkError:
		return 120 * time.Second
	case KindUnknown:
		return 600 * time.Second
	default:
		return 0
	}
}

// ClassifiedError pairs an underlying failure with its kind so callers can
// branch on data instead of re-parsing messages.
type ClassifiedError struct {
	Kind Kind
	Err  error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying at all.
func (e *ClassifiedError) Retryable() bool {
	return e.Kind.Retryable()
}

// SuggestedDelay is the background re-attempt delay for this failure.
func (e *ClassifiedError) SuggestedDelay() time.Duration {
	return e.Kind.SuggestedDelay()
}

// httpStatusError is implemented by client errors that carry an HTTP status.
type httpStatusError interface {
	error
	HTTPStatus() int
}

// Classify assigns a failure kind to an error. The HTTP status code wins when
// the error carries one; otherwise the message is matched against known
// failure phrases.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var already *ClassifiedError
	if errors.As(err, &already) {
		return already
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Kind: KindTimeout, Err: err}
	}

	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.HTTPStatus(); {
		case code == 404:
			return &ClassifiedError{Kind: KindMediaNotFound, Err: err}
		case code == 401:
			return &ClassifiedError{Kind: KindAuthentication, Err: err}
		case code == 403:
			return &ClassifiedError{Kind: KindPermission, Err: err}
		case code == 429:
			return &ClassifiedError{Kind: KindRateLimit, Err: err}
		case code == 400:
			return &ClassifiedError{Kind: KindInvalidRequest, Err: err}
		case code >= 500:
			return &ClassifiedError{Kind: KindServiceUnavailable, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &ClassifiedError{Kind: KindTimeout, Err: err}
		}
		return &ClassifiedError{Kind: KindNetworkError, Err: err}
	}

	return &ClassifiedError{Kind: classifyMessage(err.Error()), Err: err}
}

func classifyMessage(msg string) Kind {
	m := strings.ToLower(msg)

	switch {
	case containsAny(m, "timeout", "timed out", "deadline exceeded"):
		return KindTimeout
	case containsAny(m, "rate limit", "too many requests", "status=429"):
		return KindRateLimit
	case containsAny(m, "connection refused", "connection reset", "no such host",
		"broken pipe", "network is unreachable", "dial tcp"):
		return KindNetworkError
	case containsAny(m, "service unavailable", "bad gateway", "status=502",
		"status=503", "status=504"):
		return KindServiceUnavailable
	case containsAny(m, "unauthorized", "invalid api key", "status=401"):
		return KindAuthentication
	case containsAny(m, "forbidden", "status=403"):
		return KindPermission
	case containsAny(m, "not found", "status=404"):
		return KindMediaNotFound
	case containsAny(m, "bad request", "invalid request", "status=400"):
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
