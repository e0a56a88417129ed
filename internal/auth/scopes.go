package auth

// OAuth scopes checked by the HTTP API.
const (
	ScopeEmissionsWrite = "emissions:write"
	ScopeEmissionsRead  = "emissions:read"
	ScopeGoalsWrite     = "goals:write"
	ScopeGoalsRead      = "goals:read"
)
