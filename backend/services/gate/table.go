package gate

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/upb/signal-admin/backend/models"
)

// Operation names a sensitive action guarded by the gate
type Operation string

const (
	OpSignalCreate     Operation = "SIGNAL_CREATE"
	OpSignalRead       Operation = "SIGNAL_READ"
	OpSignalList       Operation = "SIGNAL_LIST"
	OpSignalUpdate     Operation = "SIGNAL_UPDATE"
	OpSignalDelete     Operation = "SIGNAL_DELETE"
	OpTagCreate        Operation = "TAG_CREATE"
	OpTagList          Operation = "TAG_LIST"
	OpTagDelete        Operation = "TAG_DELETE"
	OpSessionCreate    Operation = "SESSION_CREATE"
	OpSessionList      Operation = "SESSION_LIST"
	OpSessionRevoke    Operation = "SESSION_REVOKE"
	OpSessionRevokeAll Operation = "SESSION_REVOKE_ALL"
	OpUserSuspend      Operation = "USER_SUSPEND"
	OpAuditRead        Operation = "AUDIT_READ"
)

// OperationConfig is the static policy of one operation
type OperationConfig struct {
	MinRole      models.Role
	Bucket       string
	MaxCalls     int
	Window       time.Duration
	AuditAction  models.AuditAction
	ResourceType string
}

// Table maps every guarded operation to its policy
type Table map[Operation]OperationConfig

// DefaultTable returns the policies of the signal admin API
func DefaultTable() Table {
	return Table{
		OpSignalCreate: {
			MinRole: models.RoleAnalyst, Bucket: "signal_create", MaxCalls: 100, Window: time.Hour,
			AuditAction: models.AuditActionSignalCreate, ResourceType: "signal",
		},
		OpSignalRead: {
			MinRole: models.RoleViewer, Bucket: "signal_read", MaxCalls: 600, Window: time.Hour,
			AuditAction: models.AuditActionSignalRead, ResourceType: "signal",
		},
		OpSignalList: {
			MinRole: models.RoleViewer, Bucket: "signal_list", MaxCalls: 300, Window: time.Hour,
			AuditAction: models.AuditActionSignalRead, ResourceType: "signal",
		},
		OpSignalUpdate: {
			MinRole: models.RoleAnalyst, Bucket: "signal_update", MaxCalls: 200, Window: time.Hour,
			AuditAction: models.AuditActionSignalUpdate, ResourceType: "signal",
		},
		OpSignalDelete: {
			MinRole: models.RoleAnalyst, Bucket: "signal_delete", MaxCalls: 50, Window: time.Hour,
			AuditAction: models.AuditActionSignalDelete, ResourceType: "signal",
		},
		OpTagCreate: {
			MinRole: models.RoleAnalyst, Bucket: "tag_create", MaxCalls: 50, Window: time.Hour,
			AuditAction: models.AuditActionTagCreate, ResourceType: "tag",
		},
		OpTagList: {
			MinRole: models.RoleViewer, Bucket: "tag_list", MaxCalls: 300, Window: time.Hour,
			AuditAction: models.AuditActionTagRead, ResourceType: "tag",
		},
		OpTagDelete: {
			MinRole: models.RoleAdmin, Bucket: "tag_delete", MaxCalls: 20, Window: time.Hour,
			AuditAction: models.AuditActionTagDelete, ResourceType: "tag",
		},
		OpSessionCreate: {
			MinRole: models.RoleViewer, Bucket: "session_create", MaxCalls: 20, Window: 15 * time.Minute,
			AuditAction: models.AuditActionSessionCreate, ResourceType: "session",
		},
		OpSessionList: {
			MinRole: models.RoleViewer, Bucket: "session_list", MaxCalls: 60, Window: time.Hour,
			AuditAction: models.AuditActionSessionList, ResourceType: "session",
		},
		OpSessionRevoke: {
			MinRole: models.RoleViewer, Bucket: "session_revoke", MaxCalls: 30, Window: time.Hour,
			AuditAction: models.AuditActionSessionRevoke, ResourceType: "session",
		},
		OpSessionRevokeAll: {
			MinRole: models.RoleViewer, Bucket: "session_revoke_all", MaxCalls: 10, Window: time.Hour,
			AuditAction: models.AuditActionSessionRevoke, ResourceType: "session",
		},
		OpUserSuspend: {
			MinRole: models.RoleAdmin, Bucket: "user_suspend", MaxCalls: 50, Window: time.Hour,
			AuditAction: models.AuditActionUserSuspend, ResourceType: "user",
		},
		OpAuditRead: {
			MinRole: models.RoleAdmin, Bucket: "audit_read", MaxCalls: 120, Window: time.Hour,
			AuditAction: models.AuditActionAuditRead, ResourceType: "audit_log",
		},
	}
}

// Validate reports every incomplete entry of the table
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("operation table is empty")
	}

	ops := make([]string, 0, len(t))
	for op := range t {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)

	var errs []error
	for _, name := range ops {
		cfg := t[Operation(name)]
		switch {
		case !cfg.MinRole.IsValid():
			errs = append(errs, fmt.Errorf("%s: unknown role %q", name, cfg.MinRole))
		case cfg.Bucket == "":
			errs = append(errs, fmt.Errorf("%s: bucket is required", name))
		case cfg.MaxCalls <= 0:
			errs = append(errs, fmt.Errorf("%s: max calls must be positive", name))
		case cfg.Window <= 0:
			errs = append(errs, fmt.Errorf("%s: window must be positive", name))
		case cfg.AuditAction == "":
			errs = append(errs, fmt.Errorf("%s: audit action is required", name))
		case cfg.ResourceType == "":
			errs = append(errs, fmt.Errorf("%s: resource type is required", name))
		}
	}
	return errors.Join(errs...)
}

// LongestWindow is the retention the counter pruner must keep
func (t Table) LongestWindow() time.Duration {
	var longest time.Duration
	for _, cfg := range t {
		if cfg.Window > longest {
			longest = cfg.Window
		}
	}
	return longest
}
