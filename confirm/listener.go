package confirm

import (
	"context"
	"time"

	"github.com/goliatone/go-sns-webhook/core"
)

// Event describes a completed confirmation visit. Result carries the HTTP
// status and body text of the confirmation response, including error bodies;
// a failed visit is still an event.
type Event struct {
	ID         string
	MessageID  string
	TopicARN   string
	Type       string
	Result     Outcome
	Payload    core.Payload
	OccurredAt time.Time
}

// Listener observes confirmation events. Listener failures are logged by the
// approver and never fail the confirmation itself.
type Listener interface {
	SubscriptionApproved(ctx context.Context, event Event) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, event Event) error

func (f ListenerFunc) SubscriptionApproved(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) SubscriptionApproved(context.Context, Event) error { return nil }

var (
	_ Listener = ListenerFunc(nil)
	_ Listener = NopListener{}
)
