package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/trackarr/trackarr/app/models"
	"github.com/trackarr/trackarr/internal/pkg/env"
	"github.com/trackarr/trackarr/internal/pkg/security"
	"github.com/trackarr/trackarr/internal/pkg/tracker"
)

// Discord embed colors.
const (
	colorOrange = 0xE67E22
	colorGreen  = 0x2ECC71
	colorBlue   = 0x3498DB
	colorGold   = 0xF1C40F
	colorRed    = 0xE74C3C
)

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

type statusStyle struct {
	title string
	color int
	note  string
}

var statusStyles = map[int]statusStyle{
	models.StatusPendingApproval:    {title: "⏳ Request Pending", color: colorOrange},
	models.StatusApproved:           {title: "✅ Request Approved", color: colorGreen, note: "Your request has been approved and will be downloaded soon."},
	models.StatusProcessing:         {title: "🔄 Request Processing", color: colorBlue, note: "Your request is currently being downloaded."},
	models.StatusPartiallyAvailable: {title: "🎬 Partially Available", color: colorGold, note: "Some episodes/parts are now available."},
	models.StatusAvailable:          {title: "📥 Media Available", color: colorGreen, note: "Your requested media is now available in the library."},
}

var statusEmoji = map[int]string{
	models.StatusPendingApproval:    "⏳",
	models.StatusApproved:           "✅",
	models.StatusProcessing:         "🔄",
	models.StatusPartiallyAvailable: "🎬",
	models.StatusAvailable:          "📥",
	models.StatusCancelled:          "🚫",
}

// WebhookNotifier posts Discord-compatible embeds to a webhook URL. When a
// Secret is set every payload carries an X-Trackarr-Signature header so
// self-hosted receivers can verify the sender.
type WebhookNotifier struct {
	URL        string
	Secret     string
	HTTPClient *http.Client
}

// NewWebhookNotifier builds a notifier for the given webhook URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// FromEnv builds the notifier stack from the environment: a webhook notifier
// when WEBHOOK_URL is set, an alert mailer when ALERT_EMAIL_TO is set, both
// fanned out when both are configured, otherwise the nop notifier.
func FromEnv() Notifier {
	var notifiers []Notifier

	if url := strings.TrimSpace(env.GetEnv("WEBHOOK_URL", "")); url != "" {
		n := NewWebhookNotifier(url)
		n.Secret = strings.TrimSpace(env.GetEnv("WEBHOOK_SECRET", ""))
		notifiers = append(notifiers, n)
	}
	if to := strings.TrimSpace(env.GetEnv("ALERT_EMAIL_TO", "")); to != "" {
		notifiers = append(notifiers, NewEmailNotifier(to))
	}

	switch len(notifiers) {
	case 0:
		log.Info("[Notify] WEBHOOK_URL not set, notifications disabled")
		return NopNotifier{}
	case 1:
		return notifiers[0]
	default:
		return Fanout(notifiers)
	}
}

// NotifyStatusChanges posts one embed per update. A single failed post is
// logged and does not stop the rest of the batch.
func (n *WebhookNotifier) NotifyStatusChanges(ctx context.Context, updates []tracker.StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	log.Infof("[Notify] Sending %d status update notifications", len(updates))

	var firstErr error
	for _, u := range updates {
		if err := n.post(ctx, n.statusPayload(u)); err != nil {
			log.Errorf("[Notify] Status update for request %d failed: %v", u.Request.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NotifyHealthAlert posts a service outage or recovery embed.
func (n *WebhookNotifier) NotifyHealthAlert(ctx context.Context, serviceName string, healthy bool, errMsg string) error {
	var e embed
	if healthy {
		e = embed{
			Title:       "✅ Service Restored",
			Description: fmt.Sprintf("**%s** is now back online and functioning normally.", serviceName),
			Color:       colorGreen,
		}
	} else {
		e = embed{
			Title:       "🚨 Service Alert",
			Description: fmt.Sprintf("**%s** is currently experiencing issues.", serviceName),
			Color:       colorRed,
		}
		if errMsg != "" {
			if len(errMsg) > 1024 {
				errMsg = errMsg[:1024]
			}
			e.Fields = append(e.Fields, embedField{Name: "Error Details", Value: errMsg})
		}
		e.Fields = append(e.Fields, embedField{
			Name:  "Impact",
			Value: "Some bot functions may be temporarily unavailable.",
		})
	}
	e.Timestamp = time.Now().UTC().Format(time.RFC3339)

	return n.post(ctx, webhookPayload{Embeds: []embed{e}})
}

func (n *WebhookNotifier) statusPayload(u tracker.StatusUpdate) webhookPayload {
	req := u.Request
	style, ok := statusStyles[u.NewStatus]
	if !ok {
		style = statusStyle{title: "📢 Status Update", color: colorBlue}
	}

	externalID := int64(0)
	if req.ExternalRequestID != nil {
		externalID = *req.ExternalRequestID
	}

	e := embed{
		Title:       style.title,
		Description: fmt.Sprintf("**%s (%s)**", req.Title, req.Year),
		Color:       style.color,
		Fields: []embedField{
			{Name: "Media Type", Value: mediaTypeLabel(req.MediaType), Inline: true},
			{Name: "Request ID", Value: fmt.Sprintf("%d", externalID), Inline: true},
			{Name: "Status Change", Value: fmt.Sprintf("%s → %s", emojiFor(u.OldStatus), emojiFor(u.NewStatus)), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if style.note != "" {
		name := "Status"
		if u.NewStatus == models.StatusAvailable {
			name = "Ready to Watch!"
		} else if u.NewStatus == models.StatusApproved {
			name = "Next Steps"
		}
		e.Fields = append(e.Fields, embedField{Name: name, Value: style.note})
	}

	return webhookPayload{
		Content: fmt.Sprintf("<@%d>", req.RequesterID),
		Embeds:  []embed{e},
	}
}

func emojiFor(status int) string {
	if e, ok := statusEmoji[status]; ok {
		return e
	}
	return "❔"
}

func mediaTypeLabel(mediaType string) string {
	switch mediaType {
	case models.MediaTypeMovie:
		return "Movie"
	case models.MediaTypeTV:
		return "TV"
	case models.MediaTypeAnime:
		return "Anime"
	}
	return mediaType
}

func (n *WebhookNotifier) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.Secret != "" {
		sig, err := security.SignPayload(body, n.Secret)
		if err != nil {
			return fmt.Errorf("sign webhook payload: %w", err)
		}
		req.Header.Set("X-Trackarr-Signature", sig)
	}

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned status=%d body=%s", resp.StatusCode, string(data))
	}
	return nil
}
