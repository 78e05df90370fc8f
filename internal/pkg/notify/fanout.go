package notify

import (
	"context"

	"github.com/trackarr/trackarr/internal/pkg/tracker"
)

// Fanout delivers every notification to all wrapped notifiers. One failing
// channel does not silence the others; the first error is reported.
type Fanout []Notifier

func (f Fanout) NotifyStatusChanges(ctx context.Context, updates []tracker.StatusUpdate) error {
	var firstErr error
	for _, n := range f {
		if err := n.NotifyStatusChanges(ctx, updates); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f Fanout) NotifyHealthAlert(ctx context.Context, serviceName string, healthy bool, errMsg string) error {
	var firstErr error
	for _, n := range f {
		if err := n.NotifyHealthAlert(ctx, serviceName, healthy, errMsg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
