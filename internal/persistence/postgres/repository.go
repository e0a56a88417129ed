// Package postgres provides pgx-backed persistence for activity records,
// goals and their outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/footprint/internal/events"
)

// Repository provides Postgres-backed persistence for records, goals and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// withTenant runs fn inside a transaction scoped to tenantID so row level
// security policies apply. The transaction commits when fn returns nil.
func (r *Repository) withTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// outboxEvent is a pending row for the outbox table.
type outboxEvent struct {
	TenantID      string
	AggregateType string
	AggregateID   string
	OwnerID       string
	EventType     string
	Payload       any
}

func insertOutbox(ctx context.Context, tx pgx.Tx, event outboxEvent) error {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[event.EventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", event.EventType)
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		event.TenantID,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(event),
		body,
		meta.DedupeKeyFn(event),
	)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(outboxEvent) string
	DedupeKeyFn    func(outboxEvent) string
}

// Events for one owner share a partition so consumers see them in order.
func ownerPartition(e outboxEvent) string {
	return fmt.Sprintf("%s:%s", e.TenantID, e.OwnerID)
}

var eventCatalog = map[string]EventMetadata{
	events.TypeEmissionLogged: {
		Topic:          "emission_events",
		SchemaSubject:  "emission_events-value",
		PartitionKeyFn: ownerPartition,
		DedupeKeyFn: func(e outboxEvent) string {
			return fmt.Sprintf("%s:%s", e.AggregateID, e.EventType)
		},
	},
	events.TypeGoalStatusChanged: {
		Topic:          "goal_events",
		SchemaSubject:  "goal_events-value",
		PartitionKeyFn: ownerPartition,
		DedupeKeyFn: func(e outboxEvent) string {
			// a goal leaves the active state at most once
			return fmt.Sprintf("%s:%s", e.AggregateID, e.EventType)
		},
	},
}
