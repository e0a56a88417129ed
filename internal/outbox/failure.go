package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxReasonLen = 1024

// DLQWriter parks undeliverable outbox rows in outbox_dlq for the manager to
// replay.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter creates a DLQWriter.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// WriteBatch stores messages with cause as the reason. Rows are written in one
// transaction per tenant so the tenant setting matches every row. Entries are
// due for a first retry immediately.
func (w *DLQWriter) WriteBatch(ctx context.Context, messages []Message, cause error) error {
	byTenant := make(map[string][]Message)
	var order []string
	for _, msg := range messages {
		if _, ok := byTenant[msg.TenantID]; !ok {
			order = append(order, msg.TenantID)
		}
		byTenant[msg.TenantID] = append(byTenant[msg.TenantID], msg)
	}

	for _, tenantID := range order {
		if err := w.writeTenant(ctx, tenantID, byTenant[tenantID], cause); err != nil {
			return fmt.Errorf("dlq write for tenant %s: %w", tenantID, err)
		}
	}
	return nil
}

func (w *DLQWriter) writeTenant(ctx context.Context, tenantID string, messages []Message, cause error) error {
	tx, err := w.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, msg := range messages {
		batch.Queue(
			`INSERT INTO outbox_dlq (tenant_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW())`,
			msg.TenantID, msg.EventID, msg.EventType, msg.Topic, msg.Payload, dlqReason(cause, msg),
			msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func dlqReason(cause error, msg Message) string {
	reason := fmt.Sprintf("%s %s: %v", msg.Topic, msg.EventType, cause)
	if len(reason) > maxReasonLen {
		reason = reason[:maxReasonLen]
	}
	return reason
}
