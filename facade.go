package snswebhook

import (
	"fmt"

	snscommand "github.com/goliatone/go-sns-webhook/command"
	snsquery "github.com/goliatone/go-sns-webhook/query"
)

// CommandQueryService is the surface the facade exposes through go-command
// handlers.
type CommandQueryService interface {
	snscommand.ApprovingService
	snscommand.DispatchingService
	snsquery.NotificationVerifier
	snsquery.DeliveryReader
}

var _ CommandQueryService = (*Service)(nil)

type Commands struct {
	ApproveSubscription *snscommand.ApproveSubscriptionCommand
	ProcessInbound      *snscommand.ProcessInboundCommand
}

type Queries struct {
	VerifyNotification *snsquery.VerifyNotificationQuery
	GetDelivery        *snsquery.GetDeliveryQuery
}

// Facade bundles the command and query handlers around one service.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("snswebhook: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			ApproveSubscription: snscommand.NewApproveSubscriptionCommand(service),
			ProcessInbound:      snscommand.NewProcessInboundCommand(service),
		},
		queries: Queries{
			VerifyNotification: snsquery.NewVerifyNotificationQuery(service),
			GetDelivery:        snsquery.NewGetDeliveryQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
