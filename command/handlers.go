package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-sns-webhook/confirm"
	"github.com/goliatone/go-sns-webhook/core"
	"github.com/goliatone/go-sns-webhook/inbound"
)

type ApprovingService interface {
	ApproveSubscription(ctx context.Context, payload core.Payload) (confirm.Outcome, error)
}

type DispatchingService interface {
	Dispatch(ctx context.Context, req inbound.Request) (inbound.Result, error)
}

type ApproveSubscriptionCommand struct {
	service ApprovingService
}

func NewApproveSubscriptionCommand(service ApprovingService) *ApproveSubscriptionCommand {
	return &ApproveSubscriptionCommand{service: service}
}

func (c *ApproveSubscriptionCommand) Execute(ctx context.Context, msg ApproveSubscriptionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscription approval service is required")
	}
	out, err := c.service.ApproveSubscription(ctx, msg.Payload)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ProcessInboundCommand struct {
	service DispatchingService
}

func NewProcessInboundCommand(service DispatchingService) *ProcessInboundCommand {
	return &ProcessInboundCommand{service: service}
}

func (c *ProcessInboundCommand) Execute(ctx context.Context, msg ProcessInboundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: inbound dispatch service is required")
	}
	out, err := c.service.Dispatch(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
