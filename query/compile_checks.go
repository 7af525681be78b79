package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-sns-webhook/inbound"
)

var (
	_ gocmd.Querier[VerifyNotificationMessage, bool]            = (*VerifyNotificationQuery)(nil)
	_ gocmd.Querier[GetDeliveryMessage, inbound.DeliveryRecord] = (*GetDeliveryQuery)(nil)
)
