package models

import (
	"time"

	"github.com/google/uuid"
)

// SignalSeverity represents how urgent a signal is
type SignalSeverity string

const (
	SeverityLow      SignalSeverity = "low"
	SeverityMedium   SignalSeverity = "medium"
	SeverityHigh     SignalSeverity = "high"
	SeverityCritical SignalSeverity = "critical"
)

// SignalStatus is the triage status of a signal
type SignalStatus string

const (
	SignalStatusOpen     SignalStatus = "open"
	SignalStatusTriaged  SignalStatus = "triaged"
	SignalStatusResolved SignalStatus = "resolved"
)

// Signal is an item collected from a source that analysts triage
type Signal struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	Title     string         `json:"title" db:"title"`
	Body      string         `json:"body,omitempty" db:"body"`
	Severity  SignalSeverity `json:"severity" db:"severity"`
	Status    SignalStatus   `json:"status" db:"status"`
	SourceURL string         `json:"source_url,omitempty" db:"source_url"`
	CreatedBy string         `json:"created_by" db:"created_by"`
	TagIDs    []uuid.UUID    `json:"tag_ids,omitempty" db:"-"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Signal model
func (Signal) TableName() string {
	return "signals"
}

// NewSignal creates a new open signal
func NewSignal(title, body string, severity SignalSeverity, sourceURL, createdBy string) *Signal {
	now := time.Now().UTC()
	return &Signal{
		ID:        uuid.New(),
		Title:     title,
		Body:      body,
		Severity:  severity,
		Status:    SignalStatusOpen,
		SourceURL: sourceURL,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AuditTarget implements the gate's audit target lookup
func (s *Signal) AuditTarget() string {
	return s.ID.String()
}

// Tag labels signals
type Tag struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color,omitempty" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Tag model
func (Tag) TableName() string {
	return "tags"
}

// NewTag creates a new tag
func NewTag(name, color string) *Tag {
	return &Tag{
		ID:        uuid.New(),
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UTC(),
	}
}

// AuditTarget implements the gate's audit target lookup
func (t *Tag) AuditTarget() string {
	return t.ID.String()
}
