package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-sns-webhook/confirm"
	"github.com/goliatone/go-sns-webhook/core"
)

// SubscriptionEventStore persists confirmation events. It plugs into the
// approver as its confirm.Listener.
type SubscriptionEventStore struct {
	db   *bun.DB
	repo repository.Repository[*subscriptionEventRecord]
}

var _ confirm.Listener = (*SubscriptionEventStore)(nil)

func NewSubscriptionEventStore(db *bun.DB) (*SubscriptionEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*subscriptionEventRecord](db, subscriptionEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid subscription event repository wiring: %w", err)
		}
	}
	return &SubscriptionEventStore{db: db, repo: repo}, nil
}

// SubscriptionApproved implements confirm.Listener by recording the event.
func (s *SubscriptionEventStore) SubscriptionApproved(ctx context.Context, event confirm.Event) error {
	return s.Record(ctx, event)
}

func (s *SubscriptionEventStore) Record(ctx context.Context, event confirm.Event) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: subscription event store is not configured")
	}
	eventID := strings.TrimSpace(event.ID)
	if eventID == "" {
		eventID = uuid.NewString()
	}
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("sqlstore: encode subscription event payload: %w", err)
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	record := &subscriptionEventRecord{
		ID:           uuid.NewString(),
		EventID:      eventID,
		MessageID:    event.MessageID,
		TopicARN:     event.TopicARN,
		Type:         event.Type,
		SubscribeURL: event.Result.SubscribeURL,
		StatusCode:   event.Result.StatusCode,
		Body:         event.Result.Body,
		Payload:      payloadBytes,
		ConfirmedAt:  event.Result.ConfirmedAt.UTC(),
		OccurredAt:   occurredAt.UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		// Duplicate event ids are replays of the same confirmation.
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

func (s *SubscriptionEventStore) Get(ctx context.Context, eventID string) (confirm.Event, error) {
	if s == nil || s.db == nil {
		return confirm.Event{}, fmt.Errorf("sqlstore: subscription event store is not configured")
	}
	record := &subscriptionEventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.event_id = ?", strings.TrimSpace(eventID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return confirm.Event{}, fmt.Errorf("sqlstore: subscription event %q not found", eventID)
		}
		return confirm.Event{}, err
	}
	return subscriptionEventToDomain(record), nil
}

// ListByTopic returns events for a topic, newest first.
func (s *SubscriptionEventStore) ListByTopic(
	ctx context.Context,
	topicARN string,
	limit int,
) ([]confirm.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: subscription event store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records := []*subscriptionEventRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.topic_arn = ?", strings.TrimSpace(topicARN)).
		OrderExpr("?TableAlias.occurred_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]confirm.Event, 0, len(records))
	for _, record := range records {
		events = append(events, subscriptionEventToDomain(record))
	}
	return events, nil
}

func subscriptionEventToDomain(record *subscriptionEventRecord) confirm.Event {
	if record == nil {
		return confirm.Event{}
	}
	event := confirm.Event{
		ID:        record.EventID,
		MessageID: record.MessageID,
		TopicARN:  record.TopicARN,
		Type:      record.Type,
		Result: confirm.Outcome{
			SubscribeURL: record.SubscribeURL,
			StatusCode:   record.StatusCode,
			Body:         record.Body,
			ConfirmedAt:  record.ConfirmedAt,
		},
		OccurredAt: record.OccurredAt,
	}
	if len(record.Payload) > 0 {
		payload := core.Payload{}
		if err := json.Unmarshal(record.Payload, &payload); err == nil {
			event.Payload = payload
		}
	}
	return event
}
