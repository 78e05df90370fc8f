package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/trackarr/trackarr/internal/pkg/mail"
	"github.com/trackarr/trackarr/internal/pkg/tracker"
)

// EmailNotifier mails service alerts to an operator address. Status changes
// are not mailed, those belong in the chat channel the request came from.
type EmailNotifier struct {
	To string
}

// NewEmailNotifier builds a notifier that mails alerts to the given address.
func NewEmailNotifier(to string) *EmailNotifier {
	return &EmailNotifier{To: to}
}

// NotifyStatusChanges is a no-op for the mail channel.
func (n *EmailNotifier) NotifyStatusChanges(context.Context, []tracker.StatusUpdate) error {
	return nil
}

// NotifyHealthAlert mails an outage or recovery notice.
func (n *EmailNotifier) NotifyHealthAlert(ctx context.Context, serviceName string, healthy bool, errMsg string) error {
	subject, body := healthAlertMessage(serviceName, healthy, errMsg, time.Now().UTC())
	return mail.SendMail(n.To, subject, body)
}

func healthAlertMessage(serviceName string, healthy bool, errMsg string, at time.Time) (subject, body string) {
	stamp := at.Format(time.RFC3339)
	if healthy {
		subject = fmt.Sprintf("[Trackarr] %s recovered", serviceName)
		body = fmt.Sprintf("Service %s is back online.\n\nTime: %s\n", serviceName, stamp)
		return subject, body
	}

	subject = fmt.Sprintf("[Trackarr] %s is down", serviceName)
	body = fmt.Sprintf("Service %s is failing its health checks.\n\nTime: %s\n", serviceName, stamp)
	if errMsg != "" {
		body += fmt.Sprintf("Last error: %s\n", errMsg)
	}
	body += "\nRequest tracking may be degraded until the service recovers.\n"
	return subject, body
}
