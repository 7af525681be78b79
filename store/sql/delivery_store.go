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

	"github.com/goliatone/go-sns-webhook/core"
	"github.com/goliatone/go-sns-webhook/inbound"
)

// DeliveryStore is the SQL-backed inbound.DeliveryLedger. Dedupe rides on
// the unique index over delivery_id: concurrent claims race on the insert
// and the loser re-reads the winner's row.
type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryRecord]

	// Now is injectable for lease and retry tests.
	Now func() time.Time
}

var _ inbound.DeliveryLedger = (*DeliveryStore)(nil)

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryRecord](db, deliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{db: db, repo: repo}, nil
}

func (s *DeliveryStore) Claim(
	ctx context.Context,
	deliveryID string,
	payload core.Payload,
	lease time.Duration,
) (inbound.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return inbound.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return inbound.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery id is required")
	}
	now := s.now()
	if lease <= 0 {
		lease = 10 * time.Minute
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return inbound.DeliveryRecord{}, false, fmt.Errorf("sqlstore: encode delivery payload: %w", err)
	}

	claimID := uuid.NewString()
	leaseExpires := now.Add(lease)
	record := &deliveryRecord{
		ID:             uuid.NewString(),
		DeliveryID:     deliveryID,
		ClaimID:        claimID,
		Status:         inbound.DeliveryStatusProcessing,
		Attempts:       1,
		Payload:        payloadBytes,
		LeaseExpiresAt: &leaseExpires,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return inbound.DeliveryRecord{}, false, err
		}
		return s.reclaim(ctx, deliveryID, payloadBytes, lease)
	}
	return deliveryToDomain(record), true, nil
}

// reclaim handles the duplicate path: the row exists, so decide whether the
// caller may take it over using the same status gates as the memory ledger.
func (s *DeliveryStore) reclaim(
	ctx context.Context,
	deliveryID string,
	payloadBytes []byte,
	lease time.Duration,
) (inbound.DeliveryRecord, bool, error) {
	existing, err := s.getRecord(ctx, deliveryID)
	if err != nil {
		return inbound.DeliveryRecord{}, false, err
	}
	now := s.now()

	switch existing.Status {
	case inbound.DeliveryStatusProcessed, inbound.DeliveryStatusDead:
		return deliveryToDomain(existing), false, nil
	case inbound.DeliveryStatusProcessing:
		if existing.LeaseExpiresAt != nil && now.Before(*existing.LeaseExpiresAt) {
			return deliveryToDomain(existing), false, nil
		}
	case inbound.DeliveryStatusRetryReady:
		if existing.NextAttemptAt != nil && now.Before(*existing.NextAttemptAt) {
			return deliveryToDomain(existing), false, nil
		}
	}

	claimID := uuid.NewString()
	leaseExpires := now.Add(lease)
	res, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", inbound.DeliveryStatusProcessing).
		Set("attempts = ?", existing.Attempts+1).
		Set("payload = ?", payloadBytes).
		Set("lease_expires_at = ?", leaseExpires).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", now).
		Where("delivery_id = ?", deliveryID).
		Where("claim_id = ?", existing.ClaimID).
		Exec(ctx)
	if err != nil {
		return inbound.DeliveryRecord{}, false, err
	}
	// Another process won the takeover between the read and the update.
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		refreshed, getErr := s.getRecord(ctx, deliveryID)
		if getErr != nil {
			return inbound.DeliveryRecord{}, false, getErr
		}
		return deliveryToDomain(refreshed), false, nil
	}

	existing.ClaimID = claimID
	existing.Status = inbound.DeliveryStatusProcessing
	existing.Attempts++
	existing.Payload = payloadBytes
	existing.LeaseExpiresAt = &leaseExpires
	existing.NextAttemptAt = nil
	existing.UpdatedAt = now
	return deliveryToDomain(existing), true, nil
}

func (s *DeliveryStore) Get(ctx context.Context, deliveryID string) (inbound.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return inbound.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record, err := s.getRecord(ctx, strings.TrimSpace(deliveryID))
	if err != nil {
		return inbound.DeliveryRecord{}, err
	}
	return deliveryToDomain(record), nil
}

func (s *DeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", inbound.DeliveryStatusProcessed).
		Set("last_error = ''").
		Set("next_attempt_at = NULL").
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", claimID).
		Where("status = ?", inbound.DeliveryStatusProcessing).
		Exec(ctx)
	return err
}

func (s *DeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) (inbound.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return inbound.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inbound.DeliveryRecord{}, fmt.Errorf("sqlstore: claim id is required")
	}

	record := &deliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_id = ?", claimID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return inbound.DeliveryRecord{}, inbound.ErrDeliveryNotFound
		}
		return inbound.DeliveryRecord{}, err
	}
	if record.Status != inbound.DeliveryStatusProcessing {
		return deliveryToDomain(record), nil
	}

	now := s.now()
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	update := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("last_error = ?", lastError).
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", now).
		Where("claim_id = ?", claimID).
		Where("status = ?", inbound.DeliveryStatusProcessing)

	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = inbound.DeliveryStatusDead
		record.NextAttemptAt = nil
		update = update.
			Set("status = ?", inbound.DeliveryStatusDead).
			Set("next_attempt_at = NULL")
	} else {
		if nextAttemptAt.IsZero() {
			nextAttemptAt = now
		}
		retryAt := nextAttemptAt.UTC()
		record.Status = inbound.DeliveryStatusRetryReady
		record.NextAttemptAt = &retryAt
		update = update.
			Set("status = ?", inbound.DeliveryStatusRetryReady).
			Set("next_attempt_at = ?", retryAt)
	}
	if _, err := update.Exec(ctx); err != nil {
		return inbound.DeliveryRecord{}, err
	}
	record.LastError = lastError
	record.LeaseExpiresAt = nil
	record.UpdatedAt = now
	return deliveryToDomain(record), nil
}

func (s *DeliveryStore) getRecord(ctx context.Context, deliveryID string) (*deliveryRecord, error) {
	record := &deliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.delivery_id = ?", deliveryID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, inbound.ErrDeliveryNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *DeliveryStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func deliveryToDomain(record *deliveryRecord) inbound.DeliveryRecord {
	if record == nil {
		return inbound.DeliveryRecord{}
	}
	result := inbound.DeliveryRecord{
		ID:         record.ID,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		ClaimID:    record.ClaimID,
		LastError:  record.LastError,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		result.NextAttemptAt = *record.NextAttemptAt
	}
	if record.LeaseExpiresAt != nil {
		result.LeaseExpires = *record.LeaseExpiresAt
	}
	if len(record.Payload) > 0 {
		payload := core.Payload{}
		if err := json.Unmarshal(record.Payload, &payload); err == nil {
			result.Payload = payload
		}
	}
	return result
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
