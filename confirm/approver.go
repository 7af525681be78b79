package confirm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-sns-webhook/core"
)

// maxConfirmationBodyBytes bounds how much of the confirmation response body
// is retained on the outcome.
const maxConfirmationBodyBytes = 1 << 20

// Outcome records the confirmation visit. Body is captured for both success
// and error responses; ConfirmedAt is the wall-clock time of the visit.
type Outcome struct {
	SubscribeURL string
	StatusCode   int
	Body         string
	ConfirmedAt  time.Time
}

// Succeeded reports whether the confirmation endpoint answered 2xx.
func (o Outcome) Succeeded() bool {
	return o.StatusCode >= 200 && o.StatusCode < 300
}

// Approver completes subscription and unsubscribe confirmations. The
// SubscribeURL host must match Pattern before any request leaves the
// process.
type Approver struct {
	// HTTPClient visits the SubscribeURL. Defaults to http.DefaultClient
	// when nil.
	HTTPClient core.HTTPClient

	// Pattern allow-lists confirmation hosts. Required; hosts that do not
	// match are refused with an invalid domain error and no network call.
	Pattern *regexp.Regexp

	// Listener observes confirmation events. Optional.
	Listener Listener

	Logger core.Logger

	// Now stamps events and outcomes. Defaults to time.Now.
	Now func() time.Time
}

// AllowedDomain reports whether host matches the allow-list pattern. A nil
// pattern allows nothing; the gate fails closed.
func AllowedDomain(pattern *regexp.Regexp, host string) bool {
	if pattern == nil {
		return false
	}
	return pattern.MatchString(strings.TrimSpace(host))
}

// Approve visits the payload's SubscribeURL and returns the visit outcome.
// The domain gate runs before any network traffic. A non-2xx response is not
// an error: the status and body land on the outcome and the caller decides.
func (a *Approver) Approve(ctx context.Context, payload core.Payload) (Outcome, error) {
	if a == nil {
		return Outcome{}, internalError("confirm: approver is not configured")
	}
	subscribeURL, ok := payload.Field(core.FieldSubscribeURL)
	if !ok || strings.TrimSpace(subscribeURL) == "" {
		return Outcome{}, missingFieldError("confirm: envelope field SubscribeURL is required")
	}
	subscribeURL = strings.TrimSpace(subscribeURL)

	parsed, err := url.Parse(subscribeURL)
	if err != nil {
		return Outcome{}, core.WrapError(err,
			goerrors.CategoryBadInput,
			"confirm: subscribe url is malformed",
			core.ErrorInvalidDomain,
		)
	}
	if !AllowedDomain(a.Pattern, parsed.Hostname()) {
		return Outcome{}, invalidDomainError(
			fmt.Sprintf("confirm: subscribe host %q is outside the allowed pattern", parsed.Hostname()),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subscribeURL, nil)
	if err != nil {
		return Outcome{}, core.WrapError(err,
			goerrors.CategoryInternal,
			"confirm: confirmation request build failed",
			core.ErrorInternal,
		)
	}
	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Outcome{}, core.WrapError(err,
			goerrors.CategoryExternal,
			"confirm: confirmation request failed",
			core.ErrorTransportFailed,
		)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxConfirmationBodyBytes))
	if readErr != nil {
		body = []byte(fmt.Sprintf("body read failed: %v", readErr))
	}

	outcome := Outcome{
		SubscribeURL: subscribeURL,
		StatusCode:   resp.StatusCode,
		Body:         string(body),
		ConfirmedAt:  a.now(),
	}
	a.logger().Info("subscription confirmation visited",
		"message_id", payload.MessageID(),
		"type", payload.Type(),
		"status", outcome.StatusCode,
	)
	a.notify(ctx, payload, outcome)
	return outcome, nil
}

func (a *Approver) notify(ctx context.Context, payload core.Payload, outcome Outcome) {
	if a.Listener == nil {
		return
	}
	event := Event{
		ID:         uuid.NewString(),
		MessageID:  payload.MessageID(),
		TopicARN:   payload.TopicARN(),
		Type:       payload.Type(),
		Result:     outcome,
		Payload:    payload.Clone(),
		OccurredAt: a.now(),
	}
	if err := a.Listener.SubscriptionApproved(ctx, event); err != nil {
		a.logger().Error("subscription listener failed",
			"event_id", event.ID,
			"message_id", event.MessageID,
			"error", err,
		)
	}
}

func (a *Approver) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Approver) logger() core.Logger {
	return glog.Ensure(a.Logger)
}
