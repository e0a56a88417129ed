package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/events"
)

const (
	uniqueViolation  = "23505"
	idempotencyIndex = "activity_records_idempotency_idx"
)

const recordColumns = `record_id::text, tenant_id, owner_id, category, COALESCE(subcategory, ''), quantity::float8, unit,
        co2_equivalent::float8, factor_version, occurred_at, COALESCE(description, ''), created_at`

func scanRecord(row pgx.Row) (domain.ActivityRecord, error) {
	var rec domain.ActivityRecord
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.OwnerID, &rec.Category, &rec.Subcategory, &rec.Quantity, &rec.Unit,
		&rec.CO2Equivalent, &rec.FactorVersion, &rec.OccurredAt, &rec.Description, &rec.CreatedAt)
	return rec, err
}

// FindByIdempotency checks if a record already exists for the supplied idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, tenantID, ownerID, idempotencyKey string) (*domain.ActivityRecord, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `SELECT ` + recordColumns + `
        FROM activity_records WHERE tenant_id=$1 AND owner_id=$2 AND idempotency_key=$3`

	var found *domain.ActivityRecord
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rec, err := scanRecord(tx.QueryRow(ctx, query, tenantID, ownerID, idempotencyKey))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &rec
		return nil
	})
	return found, err
}

// Create persists the record and its emission.logged outbox event inside a single transaction.
func (r *Repository) Create(ctx context.Context, record domain.ActivityRecord, idempotencyKey string) error {
	const insertRecord = `INSERT INTO activity_records (record_id, tenant_id, owner_id, category, subcategory, quantity, unit,
        co2_equivalent, factor_version, occurred_at, description, idempotency_key, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	return r.withTenant(ctx, record.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertRecord,
			record.ID,
			record.TenantID,
			record.OwnerID,
			record.Category,
			nullIfEmpty(record.Subcategory),
			record.Quantity,
			record.Unit,
			record.CO2Equivalent,
			record.FactorVersion,
			record.OccurredAt,
			nullIfEmpty(record.Description),
			nullIfEmpty(idempotencyKey),
			record.CreatedAt,
		)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == idempotencyIndex {
			return domain.ErrIdempotencyConflict
		}
		if err != nil {
			return err
		}

		return insertOutbox(ctx, tx, outboxEvent{
			TenantID:      record.TenantID,
			AggregateType: "activity_record",
			AggregateID:   record.ID,
			OwnerID:       record.OwnerID,
			EventType:     events.TypeEmissionLogged,
			Payload: events.EmissionLogged{
				RecordID:      record.ID,
				TenantID:      record.TenantID,
				OwnerID:       record.OwnerID,
				Category:      record.Category,
				Subcategory:   record.Subcategory,
				Quantity:      record.Quantity,
				Unit:          record.Unit,
				CO2Kg:         record.CO2Equivalent,
				FactorVersion: record.FactorVersion,
				OccurredAt:    record.OccurredAt,
			},
		})
	})
}

// Get retrieves a record by ID.
func (r *Repository) Get(ctx context.Context, tenantID, recordID string) (*domain.ActivityRecord, error) {
	query := `SELECT ` + recordColumns + `
        FROM activity_records WHERE tenant_id=$1 AND record_id::text=$2`

	var found *domain.ActivityRecord
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rec, err := scanRecord(tx.QueryRow(ctx, query, tenantID, recordID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &rec
		return nil
	})
	return found, err
}

// Query returns one owner's records in the inclusive range, oldest first.
func (r *Repository) Query(ctx context.Context, q domain.RecordQuery) ([]domain.ActivityRecord, error) {
	args := []any{q.TenantID, q.OwnerID, q.Start, q.End}
	query := `SELECT ` + recordColumns + `
        FROM activity_records WHERE tenant_id=$1 AND owner_id=$2 AND occurred_at >= $3 AND occurred_at <= $4`
	if q.Category != "" {
		query += ` AND category=$5`
		args = append(args, q.Category)
	}
	query += ` ORDER BY occurred_at, record_id`

	results := make([]domain.ActivityRecord, 0)
	err := r.withTenant(ctx, q.TenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			results = append(results, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListByOwner returns records for an owner ordered newest first.
func (r *Repository) ListByOwner(ctx context.Context, tenantID, ownerID string, cursor *domain.Cursor, limit int) ([]domain.ActivityRecord, *domain.Cursor, error) {
	args := []any{tenantID, ownerID, limit}
	query := `SELECT ` + recordColumns + `
        FROM activity_records WHERE tenant_id=$1 AND owner_id=$2`

	if cursor != nil {
		query += ` AND (occurred_at, record_id::text) < ($4, $5)`
		args = append(args, cursor.OccurredAt, cursor.ID)
	}

	query += ` ORDER BY occurred_at DESC, record_id::text DESC LIMIT $3`

	results := make([]domain.ActivityRecord, 0, limit)
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			results = append(results, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{OccurredAt: last.OccurredAt, ID: last.ID}
	}
	return results, nextCursor, nil
}
