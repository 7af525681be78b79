package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ApproveSubscriptionMessage] = (*ApproveSubscriptionCommand)(nil)
	_ gocmd.Commander[ProcessInboundMessage]      = (*ProcessInboundCommand)(nil)
)
