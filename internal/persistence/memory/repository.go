// Package memory provides an in-process repository for local development and
// tests. Nothing is persisted across restarts and no outbox events are written.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/stats"
)

// Repository stores records and goals in maps guarded by a RWMutex.
type Repository struct {
	mu          sync.RWMutex
	records     map[string]domain.ActivityRecord
	idempotency map[string]string
	goals       map[string]domain.Goal
	transitions []domain.GoalTransition
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		records:     make(map[string]domain.ActivityRecord),
		idempotency: make(map[string]string),
		goals:       make(map[string]domain.Goal),
	}
}

func idempotencyKey(tenantID, ownerID, key string) string {
	return tenantID + "|" + ownerID + "|" + key
}

// FindByIdempotency implements domain.RecordRepository.
func (r *Repository) FindByIdempotency(_ context.Context, tenantID, ownerID, key string) (*domain.ActivityRecord, error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idempotency[idempotencyKey(tenantID, ownerID, key)]
	if !ok {
		return nil, nil
	}
	record := r.records[id]
	return &record, nil
}

// Create implements domain.RecordRepository.
func (r *Repository) Create(_ context.Context, record domain.ActivityRecord, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(key) != "" {
		k := idempotencyKey(record.TenantID, record.OwnerID, key)
		if _, taken := r.idempotency[k]; taken {
			return domain.ErrIdempotencyConflict
		}
		r.idempotency[k] = record.ID
	}
	r.records[record.ID] = record
	return nil
}

// Get implements domain.RecordRepository.
func (r *Repository) Get(_ context.Context, tenantID, recordID string) (*domain.ActivityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[recordID]
	if !ok || record.TenantID != tenantID {
		return nil, nil
	}
	return &record, nil
}

// Query implements domain.RecordRepository.
func (r *Repository) Query(_ context.Context, q domain.RecordQuery) ([]domain.ActivityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ActivityRecord, 0)
	for _, record := range r.records {
		if record.TenantID != q.TenantID || record.OwnerID != q.OwnerID {
			continue
		}
		if q.Category != "" && record.Category != q.Category {
			continue
		}
		if record.OccurredAt.Before(q.Start) || record.OccurredAt.After(q.End) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// ListByOwner implements domain.RecordRepository.
func (r *Repository) ListByOwner(_ context.Context, tenantID, ownerID string, cursor *domain.Cursor, limit int) ([]domain.ActivityRecord, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.ActivityRecord, 0)
	for _, record := range r.records {
		if record.TenantID == tenantID && record.OwnerID == ownerID {
			all = append(all, record)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].OccurredAt.Equal(all[j].OccurredAt) {
			return all[i].OccurredAt.After(all[j].OccurredAt)
		}
		return all[i].ID > all[j].ID
	})

	results := make([]domain.ActivityRecord, 0, limit)
	for _, record := range all {
		if cursor != nil && !before(record, *cursor) {
			continue
		}
		results = append(results, record)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{OccurredAt: last.OccurredAt, ID: last.ID}
	}
	return results, next, nil
}

// before mirrors the row comparison (occurred_at, id) < (cursor).
func before(record domain.ActivityRecord, c domain.Cursor) bool {
	if record.OccurredAt.Equal(c.OccurredAt) {
		return record.ID < c.ID
	}
	return record.OccurredAt.Before(c.OccurredAt)
}

// CreateGoal implements domain.GoalRepository.
func (r *Repository) CreateGoal(_ context.Context, goal domain.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.goals[goal.ID] = goal
	return nil
}

// GetGoal implements domain.GoalRepository.
func (r *Repository) GetGoal(_ context.Context, tenantID, goalID string) (*domain.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	goal, ok := r.goals[goalID]
	if !ok || goal.TenantID != tenantID {
		return nil, nil
	}
	return &goal, nil
}

// ListGoals implements domain.GoalRepository.
func (r *Repository) ListGoals(_ context.Context, tenantID, ownerID string, status stats.GoalStatus) ([]domain.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Goal, 0)
	for _, goal := range r.goals {
		if goal.TenantID != tenantID || goal.OwnerID != ownerID {
			continue
		}
		if status != "" && goal.Status != status {
			continue
		}
		out = append(out, goal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// TransitionGoal implements domain.GoalRepository.
func (r *Repository) TransitionGoal(_ context.Context, goal domain.Goal, transition domain.GoalTransition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.goals[goal.ID]
	if !ok || stored.Status != stats.GoalActive {
		return false, nil
	}
	stored.Status = transition.To
	stored.UpdatedAt = transition.ChangedAt
	if transition.To == stats.GoalCompleted {
		completedAt := transition.ChangedAt
		stored.CompletedAt = &completedAt
	}
	r.goals[goal.ID] = stored
	r.transitions = append(r.transitions, transition)
	return true, nil
}

// Transitions returns the goal transitions applied so far.
func (r *Repository) Transitions() []domain.GoalTransition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.GoalTransition(nil), r.transitions...)
}
