package outbox

const emissionLoggedSchema = `{
  "type": "object",
  "title": "EmissionLogged",
  "properties": {
    "record_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "category": {"type": "string"},
    "subcategory": {"type": "string"},
    "quantity": {"type": "number", "minimum": 0},
    "unit": {"type": "string"},
    "co2_kg": {"type": "number", "minimum": 0},
    "factor_version": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["record_id", "tenant_id", "owner_id", "category", "quantity", "unit", "co2_kg", "factor_version", "occurred_at"],
  "additionalProperties": false
}`

const goalStatusChangedSchema = `{
  "type": "object",
  "title": "GoalStatusChanged",
  "properties": {
    "goal_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "from": {"type": "string", "enum": ["active"]},
    "to": {"type": "string", "enum": ["completed", "expired"]},
    "current_value": {"type": "number"},
    "progress": {"type": "number"},
    "changed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["goal_id", "tenant_id", "owner_id", "from", "to", "current_value", "progress", "changed_at"],
  "additionalProperties": false
}`
