package inbound

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-sns-webhook/confirm"
	"github.com/goliatone/go-sns-webhook/core"
)

type stubVerifier struct {
	ok    bool
	calls int
}

func (v *stubVerifier) Verify(context.Context, core.Payload) bool {
	v.calls++
	return v.ok
}

type stubApprover struct {
	outcome confirm.Outcome
	err     error
	calls   int
}

func (a *stubApprover) Approve(context.Context, core.Payload) (confirm.Outcome, error) {
	a.calls++
	return a.outcome, a.err
}

type stubHandler struct {
	err   error
	calls int
}

func (h *stubHandler) HandleNotification(context.Context, core.Payload) error {
	h.calls++
	return h.err
}

type stubEnqueuer struct {
	messages []*core.JobExecutionMessage
	err      error
}

func (e *stubEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	e.messages = append(e.messages, msg)
	return e.err
}

func notificationRequest(messageID string) Request {
	return Request{Payload: core.Payload{
		core.FieldType:      core.TypeNotification,
		core.FieldMessageID: messageID,
		core.FieldMessage:   "hello",
	}}
}

func confirmationRequest(messageID string) Request {
	return Request{Payload: core.Payload{
		core.FieldType:         core.TypeSubscriptionConfirmation,
		core.FieldMessageID:    messageID,
		core.FieldSubscribeURL: "https://sns.us-east-1.amazonaws.com/?Action=ConfirmSubscription",
	}}
}

func TestDispatcher_Dispatch_NotificationHappyPath(t *testing.T) {
	handler := &stubHandler{}
	ledger := NewMemoryLedger()
	dispatcher := &Dispatcher{
		Verifier: &stubVerifier{ok: true},
		Handler:  handler,
		Ledger:   ledger,
	}

	result, err := dispatcher.Dispatch(context.Background(), notificationRequest("msg_1"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result: %+v", result)
	}
	if handler.calls != 1 {
		t.Fatalf("expected one handler call, got %d", handler.calls)
	}
	record, err := ledger.Get(context.Background(), "msg_1")
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if record.Status != DeliveryStatusProcessed {
		t.Fatalf("expected processed delivery, got %s", record.Status)
	}
}

func TestDispatcher_Dispatch_RejectsUnverifiedEnvelope(t *testing.T) {
	verifier := &stubVerifier{ok: false}
	handler := &stubHandler{}
	ledger := NewMemoryLedger()
	dispatcher := &Dispatcher{Verifier: verifier, Handler: handler, Ledger: ledger}

	result, err := dispatcher.Dispatch(context.Background(), notificationRequest("msg_1"))
	if err == nil {
		t.Fatalf("expected verification rejection")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != core.ErrorUnauthorized {
		t.Fatalf("expected %s, got %v", core.ErrorUnauthorized, err)
	}
	if result.Accepted || result.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected result: %+v", result)
	}
	if handler.calls != 0 {
		t.Fatalf("rejected envelopes must not reach the handler")
	}
	if _, ledgerErr := ledger.Get(context.Background(), "msg_1"); !errors.Is(ledgerErr, ErrDeliveryNotFound) {
		t.Fatalf("rejected envelopes must not be claimed, got %v", ledgerErr)
	}
}

func TestDispatcher_Dispatch_DuplicateMessageIDIsAcknowledgedOnce(t *testing.T) {
	handler := &stubHandler{}
	dispatcher := &Dispatcher{
		Verifier: &stubVerifier{ok: true},
		Handler:  handler,
		Ledger:   NewMemoryLedger(),
	}

	for i := 0; i < 3; i++ {
		result, err := dispatcher.Dispatch(context.Background(), notificationRequest("msg_dup"))
		if err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
		if !result.Accepted || result.StatusCode != http.StatusOK {
			t.Fatalf("dispatch %d: unexpected result %+v", i, result)
		}
		if i > 0 && result.Metadata["deduped"] != true {
			t.Fatalf("dispatch %d: expected deduped metadata, got %+v", i, result.Metadata)
		}
	}
	if handler.calls != 1 {
		t.Fatalf("duplicates must process once, got %d handler calls", handler.calls)
	}
}

func TestDispatcher_Dispatch_RoutesConfirmationsToApprover(t *testing.T) {
	approver := &stubApprover{outcome: confirm.Outcome{StatusCode: http.StatusOK, Body: "ok"}}
	handler := &stubHandler{}
	ledger := NewMemoryLedger()
	dispatcher := &Dispatcher{
		Verifier: &stubVerifier{ok: true},
		Approver: approver,
		Handler:  handler,
		Ledger:   ledger,
	}

	result, err := dispatcher.Dispatch(context.Background(), confirmationRequest("msg_confirm"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !result.Accepted || result.Metadata["confirmed"] != true {
		t.Fatalf("unexpected result: %+v", result)
	}
	if approver.calls != 1 || handler.calls != 0 {
		t.Fatalf("confirmations must route to the approver only: approver=%d handler=%d",
			approver.calls, handler.calls)
	}
	record, _ := ledger.Get(context.Background(), "msg_confirm")
	if record.Status != DeliveryStatusProcessed {
		t.Fatalf("expected processed confirmation, got %s", record.Status)
	}
}

func TestDispatcher_Dispatch_HandlerFailureSchedulesRetryAndRedrive(t *testing.T) {
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	handler := &stubHandler{err: errors.New("downstream down")}
	enqueuer := &stubEnqueuer{}
	ledger := NewMemoryLedger()
	ledger.Now = func() time.Time { return now }
	dispatcher := &Dispatcher{
		Verifier:    &stubVerifier{ok: true},
		Handler:     handler,
		Ledger:      ledger,
		Enqueuer:    enqueuer,
		RetryPolicy: ExponentialRetryPolicy{Base: time.Minute},
		MaxAttempts: 3,
		Now:         func() time.Time { return now },
	}

	result, err := dispatcher.Dispatch(context.Background(), notificationRequest("msg_retry"))
	if err == nil {
		t.Fatalf("expected handler failure to propagate")
	}
	if result.Accepted || result.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected result: %+v", result)
	}

	record, getErr := ledger.Get(context.Background(), "msg_retry")
	if getErr != nil {
		t.Fatalf("get delivery: %v", getErr)
	}
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready, got %s", record.Status)
	}
	if !record.NextAttemptAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected retry time %v", record.NextAttemptAt)
	}

	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one redrive message, got %d", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.JobID != RedriveJobID || msg.Parameters["delivery_id"] != "msg_retry" {
		t.Fatalf("unexpected redrive message: %+v", msg)
	}
	if msg.IdempotencyKey == "" || msg.DedupPolicy != "drop" {
		t.Fatalf("redrive message must dedupe: %+v", msg)
	}
}

func TestDispatcher_Dispatch_ExhaustedDeliveryGoesDeadWithoutRedrive(t *testing.T) {
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	handler := &stubHandler{err: errors.New("still down")}
	enqueuer := &stubEnqueuer{}
	ledger := NewMemoryLedger()
	ledger.Now = func() time.Time { return now }
	dispatcher := &Dispatcher{
		Verifier:    &stubVerifier{ok: true},
		Handler:     handler,
		Ledger:      ledger,
		Enqueuer:    enqueuer,
		RetryPolicy: ExponentialRetryPolicy{Base: time.Minute},
		MaxAttempts: 2,
		Now:         func() time.Time { return now },
	}

	for i := 0; i < 2; i++ {
		if _, err := dispatcher.Dispatch(context.Background(), notificationRequest("msg_dead")); err == nil {
			t.Fatalf("dispatch %d: expected failure", i)
		}
		now = now.Add(5 * time.Minute)
	}

	record, _ := ledger.Get(context.Background(), "msg_dead")
	if record.Status != DeliveryStatusDead {
		t.Fatalf("expected dead delivery, got %s", record.Status)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("dead deliveries must not redrive, got %d messages", len(enqueuer.messages))
	}
}

func TestDispatcher_Dispatch_ConfirmationFailureCapturesEndpointBody(t *testing.T) {
	approver := &stubApprover{
		outcome: confirm.Outcome{StatusCode: http.StatusInternalServerError, Body: "token expired"},
	}
	ledger := NewMemoryLedger()
	dispatcher := &Dispatcher{
		Verifier: &stubVerifier{ok: true},
		Approver: approver,
		Ledger:   ledger,
	}

	result, err := dispatcher.Dispatch(context.Background(), confirmationRequest("msg_fail"))
	if err == nil {
		t.Fatalf("expected confirmation failure")
	}
	if result.Body != "token expired" || result.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected result: %+v", result)
	}
	record, _ := ledger.Get(context.Background(), "msg_fail")
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready, got %s", record.Status)
	}
}

func TestDispatcher_Dispatch_ParsesRawBody(t *testing.T) {
	handler := &stubHandler{}
	dispatcher := &Dispatcher{
		Verifier: &stubVerifier{ok: true},
		Handler:  handler,
		Ledger:   NewMemoryLedger(),
	}

	body := []byte(`{"Type":"Notification","MessageId":"msg_raw","Message":"hello"}`)
	result, err := dispatcher.Dispatch(context.Background(), Request{Body: body})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !result.Accepted || handler.calls != 1 {
		t.Fatalf("unexpected result: %+v handler=%d", result, handler.calls)
	}

	if _, err := dispatcher.Dispatch(context.Background(), Request{Body: []byte("not-json")}); err == nil {
		t.Fatalf("expected parse rejection")
	}
}
