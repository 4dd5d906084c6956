package memory

import "github.com/upb/signal-admin/backend/repositories"

// NewRepositories returns a repository set held entirely in memory
func NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Signals:  NewSignalRepository(),
		Tags:     NewTagRepository(),
		Sessions: NewSessionRepository(),
		Counters: NewCounterStore(),
		Audit:    NewAuditRepository(),

		Transactions: NewTransactionManager(),
	}
}
