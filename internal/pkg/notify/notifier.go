package notify

import (
	"context"

	"github.com/trackarr/trackarr/internal/pkg/tracker"
)

// Notifier delivers status changes and service alerts to users. The engine
// never calls a notifier; the scheduler wires the two together.
type Notifier interface {
	NotifyStatusChanges(ctx context.Context, updates []tracker.StatusUpdate) error
	NotifyHealthAlert(ctx context.Context, serviceName string, healthy bool, errMsg string) error
}

// NopNotifier drops everything. Used when no webhook is configured.
type NopNotifier struct{}

func (NopNotifier) NotifyStatusChanges(context.Context, []tracker.StatusUpdate) error {
	return nil
}

func (NopNotifier) NotifyHealthAlert(context.Context, string, bool, string) error {
	return nil
}
