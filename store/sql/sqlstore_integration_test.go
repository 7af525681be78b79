package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-sns-webhook/confirm"
	"github.com/goliatone/go-sns-webhook/core"
	"github.com/goliatone/go-sns-webhook/inbound"
	snsmigrations "github.com/goliatone/go-sns-webhook/migrations"
	sqlstore "github.com/goliatone/go-sns-webhook/store/sql"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-sns-webhook-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:sns-webhook-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = snsmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != snsmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, snsmigrations.WithValidationTargets(snsmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func newTestFactory(t *testing.T) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		cleanup()
		t.Fatalf("new repository factory: %v", err)
	}
	return factory, cleanup
}

func notificationPayload(messageID string) core.Payload {
	return core.Payload{
		core.FieldType:      core.TypeNotification,
		core.FieldMessageID: messageID,
		core.FieldMessage:   "hello",
	}
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"sns_webhook_deliveries", "sns_subscription_events"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master: %v", err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestDeliveryStore_ClaimDedupeAndComplete(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	store := factory.DeliveryStore()
	if store == nil {
		t.Fatalf("expected delivery store from factory")
	}

	record, accepted, err := store.Claim(ctx, "msg_sql_1", notificationPayload("msg_sql_1"), time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !accepted || record.Status != inbound.DeliveryStatusProcessing || record.Attempts != 1 {
		t.Fatalf("unexpected claim record: %+v", record)
	}

	_, accepted, err = store.Claim(ctx, "msg_sql_1", notificationPayload("msg_sql_1"), time.Minute)
	if err != nil {
		t.Fatalf("duplicate claim: %v", err)
	}
	if accepted {
		t.Fatalf("duplicate claim inside the lease must be refused")
	}

	if err := store.Complete(ctx, record.ClaimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	stored, err := store.Get(ctx, "msg_sql_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != inbound.DeliveryStatusProcessed {
		t.Fatalf("expected processed, got %s", stored.Status)
	}
	if stored.Payload.MessageID() != "msg_sql_1" {
		t.Fatalf("payload must round-trip, got %+v", stored.Payload)
	}

	if _, accepted, _ := store.Claim(ctx, "msg_sql_1", notificationPayload("msg_sql_1"), time.Minute); accepted {
		t.Fatalf("processed deliveries must never be reclaimed")
	}
}

func TestDeliveryStore_FailRetryThenDead(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	store := factory.DeliveryStore()
	store.Now = func() time.Time { return now }

	record, _, err := store.Claim(ctx, "msg_sql_retry", notificationPayload("msg_sql_retry"), time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	retryAt := now.Add(time.Minute)
	failed, err := store.Fail(ctx, record.ClaimID, errors.New("handler down"), retryAt, 2)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != inbound.DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready, got %s", failed.Status)
	}
	if failed.LastError != "handler down" {
		t.Fatalf("expected cause recorded, got %q", failed.LastError)
	}

	if _, accepted, _ := store.Claim(ctx, "msg_sql_retry", notificationPayload("msg_sql_retry"), time.Minute); accepted {
		t.Fatalf("retry_ready delivery must wait for its retry time")
	}

	now = retryAt.Add(time.Second)
	record, accepted, err := store.Claim(ctx, "msg_sql_retry", notificationPayload("msg_sql_retry"), time.Minute)
	if err != nil || !accepted {
		t.Fatalf("retry claim: accepted=%v err=%v", accepted, err)
	}
	if record.Attempts != 2 {
		t.Fatalf("expected attempts=2, got %d", record.Attempts)
	}

	dead, err := store.Fail(ctx, record.ClaimID, errors.New("still down"), now.Add(time.Minute), 2)
	if err != nil {
		t.Fatalf("second fail: %v", err)
	}
	if dead.Status != inbound.DeliveryStatusDead {
		t.Fatalf("expected dead, got %s", dead.Status)
	}
	if _, accepted, _ := store.Claim(ctx, "msg_sql_retry", notificationPayload("msg_sql_retry"), time.Minute); accepted {
		t.Fatalf("dead deliveries must never be reclaimed")
	}
}

func TestDeliveryStore_ExpiredLeaseIsReclaimable(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	store := factory.DeliveryStore()
	store.Now = func() time.Time { return now }

	first, accepted, err := store.Claim(ctx, "msg_sql_lease", notificationPayload("msg_sql_lease"), time.Minute)
	if err != nil || !accepted {
		t.Fatalf("first claim: accepted=%v err=%v", accepted, err)
	}

	now = now.Add(2 * time.Minute)
	second, accepted, err := store.Claim(ctx, "msg_sql_lease", notificationPayload("msg_sql_lease"), time.Minute)
	if err != nil || !accepted {
		t.Fatalf("expired lease must be reclaimable: accepted=%v err=%v", accepted, err)
	}
	if second.ClaimID == first.ClaimID {
		t.Fatalf("reclaim must issue a fresh claim id")
	}

	// The stale claim must be inert against the new one.
	if err := store.Complete(ctx, first.ClaimID); err != nil {
		t.Fatalf("stale complete: %v", err)
	}
	stored, _ := store.Get(ctx, "msg_sql_lease")
	if stored.Status != inbound.DeliveryStatusProcessing {
		t.Fatalf("stale claim must not complete the delivery, got %s", stored.Status)
	}
}

func TestDeliveryStore_GetUnknownDelivery(t *testing.T) {
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	if _, err := factory.DeliveryStore().Get(context.Background(), "missing"); !errors.Is(err, inbound.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestSubscriptionEventStore_RecordAndQuery(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	store := factory.SubscriptionEventStore()
	if store == nil {
		t.Fatalf("expected subscription event store from factory")
	}

	confirmedAt := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	event := confirm.Event{
		ID:        "evt_1",
		MessageID: "msg_confirm_sql",
		TopicARN:  "arn:aws:sns:us-east-1:123456789012:events",
		Type:      core.TypeSubscriptionConfirmation,
		Result: confirm.Outcome{
			SubscribeURL: "https://sns.us-east-1.amazonaws.com/?Action=ConfirmSubscription",
			StatusCode:   200,
			Body:         "<ConfirmSubscriptionResponse/>",
			ConfirmedAt:  confirmedAt,
		},
		Payload: core.Payload{
			core.FieldType:      core.TypeSubscriptionConfirmation,
			core.FieldMessageID: "msg_confirm_sql",
		},
		OccurredAt: confirmedAt,
	}
	if err := store.SubscriptionApproved(ctx, event); err != nil {
		t.Fatalf("record event: %v", err)
	}
	// Replayed events are absorbed by the unique event id.
	if err := store.SubscriptionApproved(ctx, event); err != nil {
		t.Fatalf("replayed event: %v", err)
	}

	stored, err := store.Get(ctx, "evt_1")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.MessageID != "msg_confirm_sql" || stored.Result.StatusCode != 200 {
		t.Fatalf("unexpected stored event: %+v", stored)
	}
	if stored.Payload.Type() != core.TypeSubscriptionConfirmation {
		t.Fatalf("payload must round-trip, got %+v", stored.Payload)
	}

	events, err := store.ListByTopic(ctx, "arn:aws:sns:us-east-1:123456789012:events", 10)
	if err != nil {
		t.Fatalf("list by topic: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event for topic, got %d", len(events))
	}
}
