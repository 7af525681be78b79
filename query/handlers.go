package query

import (
	"context"

	"github.com/goliatone/go-sns-webhook/core"
	"github.com/goliatone/go-sns-webhook/inbound"
)

type NotificationVerifier interface {
	VerifyNotification(ctx context.Context, payload core.Payload) bool
}

type DeliveryReader interface {
	GetDelivery(ctx context.Context, deliveryID string) (inbound.DeliveryRecord, error)
}

type VerifyNotificationQuery struct {
	verifier NotificationVerifier
}

func NewVerifyNotificationQuery(verifier NotificationVerifier) *VerifyNotificationQuery {
	return &VerifyNotificationQuery{verifier: verifier}
}

func (q *VerifyNotificationQuery) Query(ctx context.Context, msg VerifyNotificationMessage) (bool, error) {
	if q == nil || q.verifier == nil {
		return false, queryDependencyError("query: notification verifier is required")
	}
	return q.verifier.VerifyNotification(ctx, msg.Payload), nil
}

type GetDeliveryQuery struct {
	reader DeliveryReader
}

func NewGetDeliveryQuery(reader DeliveryReader) *GetDeliveryQuery {
	return &GetDeliveryQuery{reader: reader}
}

func (q *GetDeliveryQuery) Query(ctx context.Context, msg GetDeliveryMessage) (inbound.DeliveryRecord, error) {
	if q == nil || q.reader == nil {
		return inbound.DeliveryRecord{}, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.GetDelivery(ctx, msg.DeliveryID)
}
