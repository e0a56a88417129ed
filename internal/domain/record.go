package domain

import (
	"context"
	"time"

	"example.com/footprint/internal/stats"
)

// ActivityRecord is a logged activity with the CO2 equivalent resolved when it
// was created. Records are never updated after they are stored.
type ActivityRecord struct {
	ID            string
	TenantID      string
	OwnerID       string
	Category      string
	Subcategory   string
	Quantity      float64
	Unit          string
	CO2Equivalent float64
	FactorVersion string
	OccurredAt    time.Time
	Description   string
	CreatedAt     time.Time
}

// Entry projects the record onto what the aggregation engine consumes.
func (r ActivityRecord) Entry() stats.Entry {
	return stats.Entry{
		OwnerID:    r.OwnerID,
		Category:   r.Category,
		CO2Kg:      r.CO2Equivalent,
		OccurredAt: r.OccurredAt,
	}
}

// Cursor models the pagination token.
type Cursor struct {
	OccurredAt time.Time
	ID         string
}

// RecordQuery selects one owner's records in an inclusive time range.
type RecordQuery struct {
	TenantID string
	OwnerID  string
	Start    time.Time
	End      time.Time
	Category string
}

// RecordRepository captures persistence operations for activity records.
type RecordRepository interface {
	FindByIdempotency(ctx context.Context, tenantID, ownerID, idempotencyKey string) (*ActivityRecord, error)
	Create(ctx context.Context, record ActivityRecord, idempotencyKey string) error
	Get(ctx context.Context, tenantID, recordID string) (*ActivityRecord, error)
	Query(ctx context.Context, q RecordQuery) ([]ActivityRecord, error)
	ListByOwner(ctx context.Context, tenantID, ownerID string, cursor *Cursor, limit int) ([]ActivityRecord, *Cursor, error)
}

func toEntries(records []ActivityRecord) []stats.Entry {
	entries := make([]stats.Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.Entry())
	}
	return entries
}
