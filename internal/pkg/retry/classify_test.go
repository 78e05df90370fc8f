package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStatusError mimics a client error carrying an HTTP status.
type testStatusError struct {
	code int
}

func (e *testStatusError) Error() string   { return fmt.Sprintf("upstream answered %d", e.code) }
func (e *testStatusError) HTTPStatus() int { return e.code }

// testNetError mimics a net.Error.
type testNetError struct {
	timeout bool
}

func (e *testNetError) Error() string   { return "dial tcp 10.0.0.1:5055: i/o problem" }
func (e *testNetError) Timeout() bool   { return e.timeout }
func (e *testNetError) Temporary() bool { return false }

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassifyPassesThroughClassifiedErrors(t *testing.T) {
	original := &ClassifiedError{Kind: KindRateLimit, Err: errors.New("slow down")}
	wrapped := fmt.Errorf("poll failed: %w", original)

	got := Classify(wrapped)
	assert.Same(t, original, got)
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{404, KindMediaNotFound},
		{401, KindAuthentication},
		{403, KindPermission},
		{429, KindRateLimit},
		{400, KindInvalidRequest},
		{500, KindServiceUnavailable},
		{502, KindServiceUnavailable},
		{503, KindServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.code), func(t *testing.T) {
			got := Classify(&testStatusError{code: tt.code})
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestClassifyContextDeadline(t *testing.T) {
	got := Classify(fmt.Errorf("request aborted: %w", context.DeadlineExceeded))
	require.NotNil(t, got)
	assert.Equal(t, KindTimeout, got.Kind)
}

func TestClassifyNetErrors(t *testing.T) {
	got := Classify(&testNetError{timeout: true})
	require.NotNil(t, got)
	assert.Equal(t, KindTimeout, got.Kind)

	got = Classify(&testNetError{timeout: false})
	require.NotNil(t, got)
	assert.Equal(t, KindNetworkError, got.Kind)
}

func TestClassifyMessages(t *testing.T) {
	tests := []struct {
		msg  string
		want Kind
	}{
		{"request timed out after 30s", KindTimeout},
		{"rate limit exceeded, try later", KindRateLimit},
		{"connect: connection refused", KindNetworkError},
		{"lookup jellyseerr: no such host", KindNetworkError},
		{"503 service unavailable", KindServiceUnavailable},
		{"invalid api key", KindAuthentication},
		{"forbidden for this user", KindPermission},
		{"media not found", KindMediaNotFound},
		{"bad request: mediaId missing", KindInvalidRequest},
		{"something inexplicable", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got := Classify(errors.New(tt.msg))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestKindRetryable(t *testing.T) {
	notRetryable := []Kind{KindMediaNotFound, KindAuthentication, KindPermission, KindInvalidRequest}
	for _, k := range notRetryable {
		assert.False(t, k.Retryable(), k.String())
	}

	retryable := []Kind{KindServiceUnavailable, KindTimeout, KindNetworkError, KindRateLimit, KindUnknown}
	for _, k := range retryable {
		assert.True(t, k.Retryable(), k.String())
	}
}

func TestKindSuggestedDelay(t *testing.T) {
	tests := []struct {
		kind Kind
		want time.Duration
	}{
		{KindServiceUnavailable, 300 * time.Second},
		{KindRateLimit, 900 * time.Second},
		{KindTimeout, 180 * time.Second},
		{KindNetworkError, 120 * time.Second},
		{KindUnknown, 600 * time.Second},
		{KindMediaNotFound, 0},
		{KindInvalidRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.SuggestedDelay())
		})
	}
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	cerr := &ClassifiedError{Kind: KindUnknown, Err: inner}

	assert.True(t, errors.Is(cerr, inner))
	assert.Equal(t, "unknown_error: boom", cerr.Error())
}
