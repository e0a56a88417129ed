package consumer

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler appends every consumed event to emission_event_log, the
// per-owner audit trail of logged emissions and goal transitions.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler creates a PersistenceHandler.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores msg. A redelivered offset is ignored.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.pool.Exec(ctx,
		`INSERT INTO emission_event_log (event_type, tenant_id, owner_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.TenantID,
		ownerOf(msg.Payload),
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	return err
}

// ownerOf returns the payload's owner_id, or nil when it has none.
func ownerOf(payload json.RawMessage) *string {
	var body struct {
		OwnerID string `json:"owner_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.OwnerID == "" {
		return nil
	}
	return &body.OwnerID
}
