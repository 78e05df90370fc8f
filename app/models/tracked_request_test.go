package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFingerprint(t *testing.T) {
	fp := RequestFingerprint(603, MediaTypeMovie, 42)
	require.Len(t, fp, 64)

	// Deterministic.
	assert.Equal(t, fp, RequestFingerprint(603, MediaTypeMovie, 42))

	// Every identity field contributes.
	assert.NotEqual(t, fp, RequestFingerprint(604, MediaTypeMovie, 42))
	assert.NotEqual(t, fp, RequestFingerprint(603, MediaTypeTV, 42))
	assert.NotEqual(t, fp, RequestFingerprint(603, MediaTypeMovie, 43))
}

func TestTrackedRequestBeforeCreate(t *testing.T) {
	req := &TrackedRequest{
		MediaID:     603,
		MediaType:   MediaTypeMovie,
		RequesterID: 42,
		IsActive:    true,
	}

	require.NoError(t, req.BeforeCreate(nil))

	assert.NotEmpty(t, req.PublicID)
	assert.Equal(t, RequestFingerprint(603, MediaTypeMovie, 42), req.Fingerprint)
	require.NotNil(t, req.ActiveToken)
	assert.True(t, *req.ActiveToken)
}

func TestTrackedRequestBeforeCreateKeepsValues(t *testing.T) {
	req := &TrackedRequest{
		PublicID:    "fixed-public-id",
		Fingerprint: "fixed-fingerprint",
		MediaID:     603,
		MediaType:   MediaTypeMovie,
		RequesterID: 42,
	}

	require.NoError(t, req.BeforeCreate(nil))

	assert.Equal(t, "fixed-public-id", req.PublicID)
	assert.Equal(t, "fixed-fingerprint", req.Fingerprint)
	// An inactive row carries no slot in the unique index.
	assert.Nil(t, req.ActiveToken)
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(StatusAvailable))

	for _, status := range []int{StatusPendingApproval, StatusApproved, StatusProcessing, StatusPartiallyAvailable, StatusCancelled} {
		assert.False(t, IsTerminalStatus(status), StatusName(status))
	}
}

func TestIsCancellableStatus(t *testing.T) {
	for _, status := range []int{StatusPendingApproval, StatusApproved, StatusProcessing, StatusPartiallyAvailable} {
		assert.True(t, IsCancellableStatus(status), StatusName(status))
	}

	assert.False(t, IsCancellableStatus(StatusAvailable))
	assert.False(t, IsCancellableStatus(StatusCancelled))
	assert.False(t, IsCancellableStatus(0))
}

func TestStatusName(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{StatusPendingApproval, "Pending Approval"},
		{StatusApproved, "Approved"},
		{StatusProcessing, "Processing"},
		{StatusPartiallyAvailable, "Partially Available"},
		{StatusAvailable, "Available"},
		{StatusCancelled, "Cancelled"},
		{99, "Unknown (99)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusName(tt.status))
		})
	}
}

func TestTrackedRequestOwnedBy(t *testing.T) {
	req := &TrackedRequest{RequesterID: 42}

	assert.True(t, req.OwnedBy(42))
	assert.False(t, req.OwnedBy(99))
}
