package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTrackerSettings(t *testing.T) {
	s := DefaultTrackerSettings()

	assert.Equal(t, 60*time.Second, s.PollInterval)
	assert.Equal(t, 600*time.Second, s.FailedRetryInterval)
	assert.Equal(t, 300*time.Second, s.HealthInterval)
	assert.Equal(t, 1800*time.Second, s.MaintenanceInterval)
	assert.Equal(t, 10, s.RetryBatchLimit)
	assert.Equal(t, 30, s.CleanupAfterDays)

	require.NoError(t, s.Validate())
}

func TestGetTrackerSettingsFallsBackToDefaults(t *testing.T) {
	trackerSettingsMu.Lock()
	trackerSettings = nil
	trackerSettingsMu.Unlock()

	s := GetTrackerSettings()
	require.NotNil(t, s)
	assert.Equal(t, DefaultTrackerSettings(), s)
}

func TestTrackerSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TrackerSettings)
		wantErr bool
	}{
		{"defaults pass", func(s *TrackerSettings) {}, false},
		{"poll interval below floor", func(s *TrackerSettings) { s.PollInterval = 5 * time.Second }, true},
		{"zero batch limit", func(s *TrackerSettings) { s.RetryBatchLimit = 0 }, true},
		{"oversized batch limit", func(s *TrackerSettings) { s.RetryBatchLimit = 500 }, true},
		{"zero cleanup days", func(s *TrackerSettings) { s.CleanupAfterDays = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultTrackerSettings()
			tt.mutate(s)

			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
