package snswebhook

import (
	"context"
	"testing"

	snscommand "github.com/goliatone/go-sns-webhook/command"
	snsquery "github.com/goliatone/go-sns-webhook/query"

	"github.com/goliatone/go-sns-webhook/confirm"
	"github.com/goliatone/go-sns-webhook/core"
	"github.com/goliatone/go-sns-webhook/inbound"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.ApproveSubscription == nil || commands.ProcessInbound == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.VerifyNotification == nil || queries.GetDelivery == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{verified: true}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	payload := core.Payload{
		core.FieldType:         core.TypeSubscriptionConfirmation,
		core.FieldMessageID:    "confirm_1",
		core.FieldSubscribeURL: "https://sns.us-east-1.amazonaws.com/?Action=ConfirmSubscription",
	}
	if err := facade.Commands().ApproveSubscription.Execute(context.Background(), snscommand.ApproveSubscriptionMessage{
		Payload: payload,
	}); err != nil {
		t.Fatalf("execute approve subscription: %v", err)
	}
	if svc.lastApproved.MessageID() != "confirm_1" {
		t.Fatalf("unexpected approve delegation payload: %+v", svc.lastApproved)
	}

	verified, err := facade.Queries().VerifyNotification.Query(context.Background(), snsquery.VerifyNotificationMessage{
		Payload: core.Payload{core.FieldType: core.TypeNotification, core.FieldMessageID: "msg_1"},
	})
	if err != nil {
		t.Fatalf("query verify notification: %v", err)
	}
	if !verified || svc.verifyCalls != 1 {
		t.Fatalf("expected verification delegation, got verified=%v calls=%d", verified, svc.verifyCalls)
	}

	record, err := facade.Queries().GetDelivery.Query(context.Background(), snsquery.GetDeliveryMessage{
		DeliveryID: "msg_1",
	})
	if err != nil {
		t.Fatalf("query get delivery: %v", err)
	}
	if record.Status != inbound.DeliveryStatusProcessed {
		t.Fatalf("unexpected delivery record: %+v", record)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	verified     bool
	verifyCalls  int
	lastApproved core.Payload
}

func (s *stubFacadeService) ApproveSubscription(_ context.Context, payload core.Payload) (confirm.Outcome, error) {
	s.lastApproved = payload
	return confirm.Outcome{SubscribeURL: payload[core.FieldSubscribeURL], StatusCode: 200}, nil
}

func (s *stubFacadeService) Dispatch(context.Context, inbound.Request) (inbound.Result, error) {
	return inbound.Result{Accepted: true, StatusCode: 200}, nil
}

func (s *stubFacadeService) VerifyNotification(context.Context, core.Payload) bool {
	s.verifyCalls++
	return s.verified
}

func (s *stubFacadeService) GetDelivery(_ context.Context, deliveryID string) (inbound.DeliveryRecord, error) {
	return inbound.DeliveryRecord{
		DeliveryID: deliveryID,
		Status:     inbound.DeliveryStatusProcessed,
	}, nil
}
