package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/internal/pkg/security"
	"github.com/trackarr/trackarr/internal/pkg/tracker"
)

func availableUpdate() tracker.StatusUpdate {
	externalID := int64(501)
	return tracker.StatusUpdate{
		Request: &models.TrackedRequest{
			ID:                1,
			ExternalRequestID: &externalID,
			RequesterID:       42,
			MediaType:         models.MediaTypeMovie,
			Title:             "The Matrix",
			Year:              "1999",
		},
		OldStatus: models.StatusProcessing,
		NewStatus: models.StatusAvailable,
	}
}

func TestWebhookNotifierStatusChangePayload(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	err := n.NotifyStatusChanges(context.Background(), []tracker.StatusUpdate{availableUpdate()})
	require.NoError(t, err)

	assert.Equal(t, "<@42>", got.Content)
	require.Len(t, got.Embeds, 1)

	e := got.Embeds[0]
	assert.Equal(t, "📥 Media Available", e.Title)
	assert.Equal(t, "**The Matrix (1999)**", e.Description)
	assert.Equal(t, colorGreen, e.Color)
	assert.NotEmpty(t, e.Timestamp)

	require.Len(t, e.Fields, 4)
	assert.Equal(t, "Media Type", e.Fields[0].Name)
	assert.Equal(t, "Movie", e.Fields[0].Value)
	assert.Equal(t, "Request ID", e.Fields[1].Name)
	assert.Equal(t, "501", e.Fields[1].Value)
	assert.Equal(t, "Status Change", e.Fields[2].Name)
	assert.Equal(t, "🔄 → 📥", e.Fields[2].Value)
	assert.Equal(t, "Ready to Watch!", e.Fields[3].Name)
}

func TestWebhookNotifierApprovedNoteField(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	update := availableUpdate()
	update.OldStatus = models.StatusPendingApproval
	update.NewStatus = models.StatusApproved

	n := NewWebhookNotifier(server.URL)
	require.NoError(t, n.NotifyStatusChanges(context.Background(), []tracker.StatusUpdate{update}))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "✅ Request Approved", e.Title)
	require.Len(t, e.Fields, 4)
	assert.Equal(t, "Next Steps", e.Fields[3].Name)
}

func TestWebhookNotifierNoUpdatesNoPost(t *testing.T) {
	var posts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	require.NoError(t, n.NotifyStatusChanges(context.Background(), nil))
	assert.Equal(t, int32(0), atomic.LoadInt32(&posts))
}

func TestWebhookNotifierContinuesAfterFailedPost(t *testing.T) {
	var posts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&posts, 1) == 1 {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	err := n.NotifyStatusChanges(context.Background(), []tracker.StatusUpdate{availableUpdate(), availableUpdate()})

	// The first failure is reported, the second update still went out.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
	assert.Equal(t, int32(2), atomic.LoadInt32(&posts))
}

func TestWebhookNotifierHealthAlert(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	require.NoError(t, n.NotifyHealthAlert(context.Background(), "jellyseerr", false, "connection refused"))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "🚨 Service Alert", e.Title)
	assert.Contains(t, e.Description, "**jellyseerr**")
	assert.Equal(t, colorRed, e.Color)
	require.Len(t, e.Fields, 2)
	assert.Equal(t, "Error Details", e.Fields[0].Name)
	assert.Equal(t, "connection refused", e.Fields[0].Value)
	assert.Equal(t, "Impact", e.Fields[1].Name)
}

func TestWebhookNotifierRecoveryAlert(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	require.NoError(t, n.NotifyHealthAlert(context.Background(), "database", true, ""))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "✅ Service Restored", e.Title)
	assert.Equal(t, colorGreen, e.Color)
	assert.Empty(t, e.Fields)
}

func TestWebhookNotifierSignsPayload(t *testing.T) {
	var body []byte
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		body, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		signature = r.Header.Get("X-Trackarr-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	n.Secret = "hook-secret"
	require.NoError(t, n.NotifyStatusChanges(context.Background(), []tracker.StatusUpdate{availableUpdate()}))

	require.NotEmpty(t, signature)
	assert.NoError(t, security.VerifyPayload(body, signature, "hook-secret"))
	assert.Error(t, security.VerifyPayload(body, signature, "wrong-secret"))
}

func TestWebhookNotifierOmitsSignatureWithoutSecret(t *testing.T) {
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-Trackarr-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	require.NoError(t, n.NotifyHealthAlert(context.Background(), "jellyseerr", true, ""))
	assert.Empty(t, signature)
}

func TestFromEnv(t *testing.T) {
	clearEnv := func(t *testing.T) {
		t.Setenv("WEBHOOK_URL", "")
		t.Setenv("WEBHOOK_SECRET", "")
		t.Setenv("ALERT_EMAIL_TO", "")
	}

	t.Run("without url notifications are disabled", func(t *testing.T) {
		clearEnv(t)
		_, ok := FromEnv().(NopNotifier)
		assert.True(t, ok)
	})

	t.Run("with url a webhook notifier is built", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("WEBHOOK_URL", "https://discord.com/api/webhooks/1/abc")
		n, ok := FromEnv().(*WebhookNotifier)
		require.True(t, ok)
		assert.Equal(t, "https://discord.com/api/webhooks/1/abc", n.URL)
		assert.Empty(t, n.Secret)
	})

	t.Run("webhook secret is picked up", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("WEBHOOK_URL", "https://discord.com/api/webhooks/1/abc")
		t.Setenv("WEBHOOK_SECRET", "hook-secret")
		n, ok := FromEnv().(*WebhookNotifier)
		require.True(t, ok)
		assert.Equal(t, "hook-secret", n.Secret)
	})

	t.Run("alert address alone builds a mail notifier", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALERT_EMAIL_TO", "ops@example.com")
		n, ok := FromEnv().(*EmailNotifier)
		require.True(t, ok)
		assert.Equal(t, "ops@example.com", n.To)
	})

	t.Run("both channels fan out", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("WEBHOOK_URL", "https://discord.com/api/webhooks/1/abc")
		t.Setenv("ALERT_EMAIL_TO", "ops@example.com")
		f, ok := FromEnv().(Fanout)
		require.True(t, ok)
		assert.Len(t, f, 2)
	})
}

func TestNopNotifier(t *testing.T) {
	n := NopNotifier{}
	assert.NoError(t, n.NotifyStatusChanges(context.Background(), []tracker.StatusUpdate{availableUpdate()}))
	assert.NoError(t, n.NotifyHealthAlert(context.Background(), "jellyseerr", false, "boom"))
}
