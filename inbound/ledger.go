package inbound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-sns-webhook/core"
)

// Delivery lifecycle statuses. A delivery is claimed into processing,
// completes into processed, or fails into retry_ready until the attempt
// budget is spent and it lands in dead.
const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

// DeliveryRecord is the ledger's view of one SNS delivery, keyed by the
// envelope MessageId.
type DeliveryRecord struct {
	ID            string
	DeliveryID    string
	Status        string
	Attempts      int
	ClaimID       string
	LastError     string
	Payload       core.Payload
	NextAttemptAt time.Time
	LeaseExpires  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger tracks delivery claims so a MessageId is processed once.
// Claim returns accepted=false when another claim holds the delivery or it
// already processed. Fail moves the record to retry_ready, or dead once
// attempts reach maxAttempts.
type DeliveryLedger interface {
	Claim(ctx context.Context, deliveryID string, payload core.Payload, lease time.Duration) (DeliveryRecord, bool, error)
	Get(ctx context.Context, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) (DeliveryRecord, error)
}

// MemoryLedger is a process-local DeliveryLedger for tests and single-node
// deployments. Use the SQL-backed store when deliveries must dedupe across
// processes.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord
	claims  map[string]string
	nextID  int

	Now func() time.Time
}

var _ DeliveryLedger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: map[string]DeliveryRecord{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryLedger) Claim(
	_ context.Context,
	deliveryID string,
	payload core.Payload,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, inboundInternal("inbound: delivery ledger is nil", nil)
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return DeliveryRecord{}, false, inboundBadInput("inbound: delivery id is required", nil)
	}
	now := l.now()
	if lease <= 0 {
		lease = 10 * time.Minute
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	record, exists := l.records[deliveryID]
	if exists {
		switch record.Status {
		case DeliveryStatusProcessed, DeliveryStatusDead:
			return record, false, nil
		case DeliveryStatusProcessing:
			if now.Before(record.LeaseExpires) {
				return record, false, nil
			}
		case DeliveryStatusRetryReady:
			if !record.NextAttemptAt.IsZero() && now.Before(record.NextAttemptAt) {
				return record, false, nil
			}
		}
		if record.ClaimID != "" {
			delete(l.claims, record.ClaimID)
		}
	} else {
		record = DeliveryRecord{
			ID:         l.nextRecordID(),
			DeliveryID: deliveryID,
			CreatedAt:  now,
		}
	}

	claimID := l.nextClaimID()
	record.Status = DeliveryStatusProcessing
	record.ClaimID = claimID
	record.Attempts++
	record.Payload = payload.Clone()
	record.LeaseExpires = now.Add(lease)
	record.NextAttemptAt = time.Time{}
	record.UpdatedAt = now
	l.records[deliveryID] = record
	l.claims[claimID] = deliveryID
	return record, true, nil
}

func (l *MemoryLedger) Get(_ context.Context, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, inboundInternal("inbound: delivery ledger is nil", nil)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[strings.TrimSpace(deliveryID)]
	if !ok {
		return DeliveryRecord{}, ErrDeliveryNotFound
	}
	return record, nil
}

func (l *MemoryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return inboundInternal("inbound: delivery ledger is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	deliveryID, ok := l.claims[claimID]
	if !ok {
		return nil
	}
	record, exists := l.records[deliveryID]
	if !exists || record.ClaimID != claimID || record.Status != DeliveryStatusProcessing {
		delete(l.claims, claimID)
		return nil
	}
	record.Status = DeliveryStatusProcessed
	record.LastError = ""
	record.NextAttemptAt = time.Time{}
	record.LeaseExpires = time.Time{}
	record.UpdatedAt = l.now()
	l.records[deliveryID] = record
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryLedger) Fail(
	_ context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, inboundInternal("inbound: delivery ledger is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return DeliveryRecord{}, inboundBadInput("inbound: claim id is required", nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	deliveryID, ok := l.claims[claimID]
	if !ok {
		return DeliveryRecord{}, ErrDeliveryNotFound
	}
	record, exists := l.records[deliveryID]
	if !exists || record.ClaimID != claimID || record.Status != DeliveryStatusProcessing {
		delete(l.claims, claimID)
		return record, nil
	}
	now := l.now()
	if cause != nil {
		record.LastError = cause.Error()
	}
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
		record.NextAttemptAt = time.Time{}
	} else {
		record.Status = DeliveryStatusRetryReady
		if nextAttemptAt.IsZero() {
			nextAttemptAt = now
		}
		record.NextAttemptAt = nextAttemptAt.UTC()
	}
	record.LeaseExpires = time.Time{}
	record.UpdatedAt = now
	l.records[deliveryID] = record
	delete(l.claims, claimID)
	return record, nil
}

func (l *MemoryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryLedger) nextRecordID() string {
	l.nextID++
	return fmt.Sprintf("delivery_%d", l.nextID)
}

func (l *MemoryLedger) nextClaimID() string {
	l.nextID++
	return fmt.Sprintf("claim_%d", l.nextID)
}
