package query

import (
	"strings"

	"github.com/goliatone/go-sns-webhook/core"
)

const (
	TypeVerifyNotification = "sns_webhook.query.notification.verify"
	TypeGetDelivery        = "sns_webhook.query.delivery.get"
)

type VerifyNotificationMessage struct {
	Payload core.Payload
}

func (VerifyNotificationMessage) Type() string { return TypeVerifyNotification }

func (m VerifyNotificationMessage) Validate() error {
	if len(m.Payload) == 0 {
		return queryInvalidInputError("query: payload is required")
	}
	if !core.KnownType(m.Payload.Type()) {
		return queryInvalidInputError("query: payload type is not a known envelope type")
	}
	return nil
}

type GetDeliveryMessage struct {
	DeliveryID string
}

func (GetDeliveryMessage) Type() string { return TypeGetDelivery }

func (m GetDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return queryInvalidInputError("query: delivery id is required")
	}
	return nil
}
