package models

import (
	"encoding/json"
	"time"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionSignalCreate   AuditAction = "signal_create"
	AuditActionSignalRead     AuditAction = "signal_read"
	AuditActionSignalUpdate   AuditAction = "signal_update"
	AuditActionSignalDelete   AuditAction = "signal_delete"
	AuditActionTagCreate      AuditAction = "tag_create"
	AuditActionTagRead        AuditAction = "tag_read"
	AuditActionTagDelete      AuditAction = "tag_delete"
	AuditActionSessionCreate  AuditAction = "session_create"
	AuditActionSessionRevoke  AuditAction = "session_revoke"
	AuditActionSessionList    AuditAction = "session_list"
	AuditActionUserSuspend    AuditAction = "user_suspend"
	AuditActionAuditRead      AuditAction = "audit_read"
	AuditActionRateLimited    AuditAction = "rate_limited"
	AuditActionSuspiciousSeen AuditAction = "suspicious_activity"
)

// AuditOutcome is the result of the audited action
type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "success"
	AuditOutcomeFailure AuditOutcome = "failure"
	AuditOutcomeDenied  AuditOutcome = "denied"
)

// AuditLog represents an append-only audit trail entry
type AuditLog struct {
	ID           string          `json:"id" db:"id"`
	ActorID      string          `json:"actor_id" db:"actor_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty" db:"resource_id"`
	Outcome      AuditOutcome    `json:"outcome" db:"outcome"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"` // JSONB
	RequestID    string          `json:"request_id,omitempty" db:"request_id"`
	IPAddress    string          `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    string          `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance. The ID is assigned by the
// audit service when the entry is queued.
func NewAuditLog(actorID string, action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		Outcome:      AuditOutcomeSuccess,
		CreatedAt:    time.Now().UTC(),
	}
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID string) *AuditLog {
	a.ResourceID = resourceID
	return a
}

// WithOutcome sets the outcome
func (a *AuditLog) WithOutcome(outcome AuditOutcome) *AuditLog {
	a.Outcome = outcome
	return a
}

// WithMetadata sets the metadata. Values that cannot be marshaled are dropped.
func (a *AuditLog) WithMetadata(metadata map[string]interface{}) *AuditLog {
	if len(metadata) == 0 {
		return a
	}
	if data, err := json.Marshal(metadata); err == nil {
		a.Metadata = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

// MetadataMap decodes the metadata, returning nil when empty or malformed
func (a *AuditLog) MetadataMap() map[string]interface{} {
	if len(a.Metadata) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(a.Metadata, &m); err != nil {
		return nil
	}
	return m
}
