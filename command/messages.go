package command

import (
	"fmt"

	"github.com/goliatone/go-sns-webhook/core"
	"github.com/goliatone/go-sns-webhook/inbound"
)

const (
	TypeApproveSubscription = "sns_webhook.command.subscription.approve"
	TypeProcessInbound      = "sns_webhook.command.inbound.process"
)

type ApproveSubscriptionMessage struct {
	Payload core.Payload
}

func (ApproveSubscriptionMessage) Type() string { return TypeApproveSubscription }

func (m ApproveSubscriptionMessage) Validate() error {
	if len(m.Payload) == 0 {
		return commandInvalidInputError("command: confirmation payload is required")
	}
	if !m.Payload.IsConfirmation() {
		return commandInvalidInputError(
			fmt.Sprintf("command: payload type %q is not a confirmation", m.Payload.Type()),
		)
	}
	if _, ok := m.Payload.Field(core.FieldSubscribeURL); !ok {
		return commandValidationError(core.FieldSubscribeURL, "subscribe url is required")
	}
	return nil
}

type ProcessInboundMessage struct {
	Request inbound.Request
}

func (ProcessInboundMessage) Type() string { return TypeProcessInbound }

func (m ProcessInboundMessage) Validate() error {
	if len(m.Request.Body) == 0 && len(m.Request.Payload) == 0 {
		return commandInvalidInputError("command: inbound request body or payload is required")
	}
	return nil
}
