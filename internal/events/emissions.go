// Package events defines the payloads published through the outbox.
package events

import "time"

// Event types routed by the outbox dispatcher.
const (
	TypeEmissionLogged    = "emission.logged"
	TypeGoalStatusChanged = "goal.status_changed"
)

// EmissionLogged is emitted when an activity record is stored.
type EmissionLogged struct {
	RecordID      string    `json:"record_id"`
	TenantID      string    `json:"tenant_id"`
	OwnerID       string    `json:"owner_id"`
	Category      string    `json:"category"`
	Subcategory   string    `json:"subcategory,omitempty"`
	Quantity      float64   `json:"quantity"`
	Unit          string    `json:"unit"`
	CO2Kg         float64   `json:"co2_kg"`
	FactorVersion string    `json:"factor_version"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// GoalStatusChanged tracks a goal leaving the active state.
type GoalStatusChanged struct {
	GoalID       string    `json:"goal_id"`
	TenantID     string    `json:"tenant_id"`
	OwnerID      string    `json:"owner_id"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	CurrentValue float64   `json:"current_value"`
	Progress     float64   `json:"progress"`
	ChangedAt    time.Time `json:"changed_at"`
}
