package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type deliveryRecord struct {
	bun.BaseModel `bun:"table:sns_webhook_deliveries,alias:swd"`

	ID             string     `bun:"id,pk"`
	DeliveryID     string     `bun:"delivery_id,notnull"`
	ClaimID        string     `bun:"claim_id"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	LastError      string     `bun:"last_error"`
	Payload        []byte     `bun:"payload"`
	NextAttemptAt  *time.Time `bun:"next_attempt_at,nullzero"`
	LeaseExpiresAt *time.Time `bun:"lease_expires_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type subscriptionEventRecord struct {
	bun.BaseModel `bun:"table:sns_subscription_events,alias:sse"`

	ID           string    `bun:"id,pk"`
	EventID      string    `bun:"event_id,notnull"`
	MessageID    string    `bun:"message_id,notnull"`
	TopicARN     string    `bun:"topic_arn"`
	Type         string    `bun:"type,notnull"`
	SubscribeURL string    `bun:"subscribe_url,notnull"`
	StatusCode   int       `bun:"status_code,notnull"`
	Body         string    `bun:"body"`
	Payload      []byte    `bun:"payload"`
	ConfirmedAt  time.Time `bun:"confirmed_at,nullzero,notnull"`
	OccurredAt   time.Time `bun:"occurred_at,nullzero,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
