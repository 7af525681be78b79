package inbound

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-sns-webhook/confirm"
	"github.com/goliatone/go-sns-webhook/core"
)

// RedriveJobID names the queued job that retries a failed delivery.
const RedriveJobID = "sns_webhook.redrive_delivery"

// Verifier checks envelope signatures. False means reject; the dispatcher
// never sees why.
type Verifier interface {
	Verify(ctx context.Context, payload core.Payload) bool
}

// Approver completes subscription and unsubscribe confirmations.
type Approver interface {
	Approve(ctx context.Context, payload core.Payload) (confirm.Outcome, error)
}

// Handler consumes verified notification payloads.
type Handler interface {
	HandleNotification(ctx context.Context, payload core.Payload) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, payload core.Payload) error

func (f HandlerFunc) HandleNotification(ctx context.Context, payload core.Payload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// RetryPolicy schedules the next attempt for a failed delivery.
type RetryPolicy interface {
	NextAttemptAt(now time.Time, attempts int) time.Time
}

// ExponentialRetryPolicy doubles the delay per attempt, capped at Max.
type ExponentialRetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

func (p ExponentialRetryPolicy) NextAttemptAt(now time.Time, attempts int) time.Time {
	base := p.Base
	if base <= 0 {
		base = 30 * time.Second
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if p.Max > 0 && delay >= p.Max {
			delay = p.Max
			break
		}
	}
	if p.Max > 0 && delay > p.Max {
		delay = p.Max
	}
	return now.Add(delay)
}

// Request is one inbound HTTP delivery. Payload may be pre-parsed; when nil
// the dispatcher parses Body.
type Request struct {
	Headers map[string]string
	Body    []byte
	Payload core.Payload
}

// Result is the dispatch outcome the HTTP layer translates into a response.
type Result struct {
	Accepted   bool
	StatusCode int
	Body       string
	Metadata   map[string]any
}

// Dispatcher is the inbound pipeline: parse, verify, claim, route.
type Dispatcher struct {
	Verifier Verifier
	Approver Approver
	Handler  Handler
	Ledger   DeliveryLedger

	// RetryPolicy schedules failed deliveries. Defaults to an exponential
	// policy when nil.
	RetryPolicy RetryPolicy

	// Enqueuer optionally re-drives retry_ready deliveries through a job
	// queue.
	Enqueuer core.JobEnqueuer

	// ClaimLease bounds how long a processing claim blocks duplicates.
	ClaimLease time.Duration

	// MaxAttempts caps retries before a delivery goes dead. Zero disables
	// the cap.
	MaxAttempts int

	Logger core.Logger
	Now    func() time.Time
}

// Dispatch runs one delivery through the pipeline. Unverifiable envelopes
// are rejected with 401; duplicate MessageIds are acknowledged with 200 and
// not reprocessed.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if d == nil {
		return Result{}, inboundInternal("inbound: dispatcher is nil", nil)
	}

	payload := req.Payload
	if payload == nil {
		parsed, err := core.ParsePayload(req.Body)
		if err != nil {
			return Result{Accepted: false, StatusCode: http.StatusBadRequest},
				inboundWrapError(err,
					goerrors.CategoryBadInput,
					"inbound: envelope parse failed",
					http.StatusBadRequest,
					core.ErrorBadInput,
					nil,
				)
		}
		payload = parsed
	}
	messageID := payload.MessageID()
	if messageID == "" {
		return Result{Accepted: false, StatusCode: http.StatusBadRequest},
			inboundBadInput("inbound: envelope MessageId is required", map[string]any{
				"type": payload.Type(),
			})
	}

	if d.Verifier == nil {
		return Result{}, inboundInternal("inbound: verifier is required", nil)
	}
	if !d.Verifier.Verify(ctx, payload) {
		return Result{
				Accepted:   false,
				StatusCode: http.StatusUnauthorized,
				Metadata: map[string]any{
					"message_id": messageID,
					"type":       payload.Type(),
					"rejected":   true,
				},
			}, inboundError(
				"inbound: envelope signature verification failed",
				goerrors.CategoryAuth,
				http.StatusUnauthorized,
				core.ErrorUnauthorized,
				map[string]any{"message_id": messageID, "type": payload.Type()},
			)
	}

	record := DeliveryRecord{}
	if d.Ledger != nil {
		var accepted bool
		var err error
		record, accepted, err = d.Ledger.Claim(ctx, messageID, payload, d.claimLease())
		if err != nil {
			return Result{}, inboundWrapError(err,
				goerrors.CategoryOperation,
				"inbound: delivery claim failed",
				http.StatusInternalServerError,
				core.ErrorOperationFailed,
				map[string]any{"message_id": messageID},
			)
		}
		if !accepted {
			d.logger().Info("duplicate delivery acknowledged",
				"message_id", messageID,
				"status", record.Status,
			)
			return Result{
				Accepted:   true,
				StatusCode: http.StatusOK,
				Metadata: map[string]any{
					"message_id": messageID,
					"type":       payload.Type(),
					"deduped":    true,
					"status":     record.Status,
				},
			}, nil
		}
	}

	if payload.IsConfirmation() {
		return d.dispatchConfirmation(ctx, payload, record)
	}
	return d.dispatchNotification(ctx, payload, record)
}

func (d *Dispatcher) dispatchConfirmation(
	ctx context.Context,
	payload core.Payload,
	record DeliveryRecord,
) (Result, error) {
	messageID := payload.MessageID()
	if d.Approver == nil {
		err := inboundInternal("inbound: approver is required for confirmations",
			map[string]any{"message_id": messageID})
		d.failClaim(ctx, record, err)
		return Result{}, err
	}

	outcome, err := d.Approver.Approve(ctx, payload)
	if err != nil {
		wrapped := inboundWrapError(err,
			goerrors.CategoryOperation,
			"inbound: subscription confirmation failed",
			core.HTTPStatusFor(categoryOf(err)),
			textCodeOf(err),
			map[string]any{"message_id": messageID, "type": payload.Type()},
		)
		d.failClaim(ctx, record, wrapped)
		return Result{Accepted: false, StatusCode: core.HTTPStatusFor(categoryOf(err))}, wrapped
	}
	if !outcome.Succeeded() {
		failure := inboundError(
			fmt.Sprintf("inbound: confirmation endpoint returned status %d", outcome.StatusCode),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			core.ErrorTransportFailed,
			map[string]any{
				"message_id":  messageID,
				"status_code": outcome.StatusCode,
			},
		)
		d.failClaim(ctx, record, failure)
		return Result{
			Accepted:   false,
			StatusCode: http.StatusBadGateway,
			Body:       outcome.Body,
			Metadata: map[string]any{
				"message_id":  messageID,
				"type":        payload.Type(),
				"status_code": outcome.StatusCode,
			},
		}, failure
	}

	if err := d.completeClaim(ctx, record); err != nil {
		return Result{}, err
	}
	return Result{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Body:       outcome.Body,
		Metadata: map[string]any{
			"message_id": messageID,
			"type":       payload.Type(),
			"confirmed":  true,
		},
	}, nil
}

func (d *Dispatcher) dispatchNotification(
	ctx context.Context,
	payload core.Payload,
	record DeliveryRecord,
) (Result, error) {
	messageID := payload.MessageID()
	if d.Handler != nil {
		if err := d.Handler.HandleNotification(ctx, payload); err != nil {
			wrapped := inboundWrapError(err,
				goerrors.CategoryOperation,
				"inbound: notification handler failed",
				http.StatusBadGateway,
				core.ErrorOperationFailed,
				map[string]any{"message_id": messageID},
			)
			d.failClaim(ctx, record, wrapped)
			return Result{Accepted: false, StatusCode: http.StatusBadGateway}, wrapped
		}
	}

	if err := d.completeClaim(ctx, record); err != nil {
		return Result{}, err
	}
	return Result{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"message_id": messageID,
			"type":       payload.Type(),
		},
	}, nil
}

func (d *Dispatcher) completeClaim(ctx context.Context, record DeliveryRecord) error {
	if d.Ledger == nil || record.ClaimID == "" {
		return nil
	}
	if err := d.Ledger.Complete(ctx, record.ClaimID); err != nil {
		return inboundWrapError(err,
			goerrors.CategoryOperation,
			"inbound: complete delivery claim",
			http.StatusInternalServerError,
			core.ErrorOperationFailed,
			map[string]any{"claim_id": record.ClaimID, "message_id": record.DeliveryID},
		)
	}
	return nil
}

func (d *Dispatcher) failClaim(ctx context.Context, record DeliveryRecord, cause error) {
	if d.Ledger == nil || record.ClaimID == "" {
		return
	}
	nextAttemptAt := d.retryPolicy().NextAttemptAt(d.now(), record.Attempts)
	failed, err := d.Ledger.Fail(ctx, record.ClaimID, cause, nextAttemptAt, d.MaxAttempts)
	if err != nil {
		d.logger().Error("delivery claim fail mark failed",
			"claim_id", record.ClaimID,
			"message_id", record.DeliveryID,
			"error", err,
		)
		return
	}
	if failed.Status == DeliveryStatusDead {
		d.logger().Error("delivery exhausted retries",
			"message_id", failed.DeliveryID,
			"attempts", failed.Attempts,
		)
		return
	}
	d.enqueueRedrive(ctx, failed)
}

func (d *Dispatcher) enqueueRedrive(ctx context.Context, record DeliveryRecord) {
	if d.Enqueuer == nil {
		return
	}
	msg := &core.JobExecutionMessage{
		JobID: RedriveJobID,
		Parameters: map[string]any{
			"delivery_id":     record.DeliveryID,
			"attempts":        record.Attempts,
			"next_attempt_at": record.NextAttemptAt.Format(time.RFC3339Nano),
		},
		IdempotencyKey: fmt.Sprintf("%s::%s::%d", RedriveJobID, record.DeliveryID, record.Attempts),
		DedupPolicy:    "drop",
	}
	if err := d.Enqueuer.Enqueue(ctx, msg); err != nil {
		d.logger().Error("delivery redrive enqueue failed",
			"message_id", record.DeliveryID,
			"error", err,
		)
	}
}

func (d *Dispatcher) claimLease() time.Duration {
	if d != nil && d.ClaimLease > 0 {
		return d.ClaimLease
	}
	return 10 * time.Minute
}

func (d *Dispatcher) retryPolicy() RetryPolicy {
	if d != nil && d.RetryPolicy != nil {
		return d.RetryPolicy
	}
	return ExponentialRetryPolicy{Base: 30 * time.Second, Max: 15 * time.Minute}
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) logger() core.Logger {
	return glog.Ensure(d.Logger)
}

func categoryOf(err error) goerrors.Category {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category
	}
	return goerrors.CategoryOperation
}

func textCodeOf(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr.TextCode
	}
	return core.ErrorOperationFailed
}
