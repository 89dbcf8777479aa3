package expenses

import (
	"context"
	"strings"

	"palmledger/internal/core/id"
	"palmledger/internal/core/security"
	"palmledger/internal/core/tx"
	"palmledger/internal/domain"
	"palmledger/internal/domain/audit"
)

// DefaultSuggestionLimit is the number of type suggestions returned when none is asked for.
const DefaultSuggestionLimit = 10

// Repository stores expenses.
type Repository interface {
	domain.LedgerRepository[*Expense]

	// RecentTypes returns distinct expense types, most recently used first, optionally
	// restricted to one agent and to types starting with prefix (case-insensitive).
	RecentTypes(ctx context.Context, agentID *id.ID, prefix string, limit int) ([]string, error)
}

// Service manages expenses.
type Service struct {
	*domain.LedgerService[*Expense]
	repo Repository
}

// NewService creates the expense service.
func NewService(repo Repository, txManager tx.Manager, rec audit.Recorder) *Service {
	return &Service{
		LedgerService: domain.NewLedgerService(domain.LedgerServiceConfig[*Expense]{
			Repo:       repo,
			TxManager:  txManager,
			Audit:      rec,
			EntityName: "expense",
		}),
		repo: repo,
	}
}

// SuggestTypes returns recently used expense types for autocompletion.
func (s *Service) SuggestTypes(ctx context.Context, agentID *id.ID, prefix string, limit int) ([]string, error) {
	scoped, err := security.NewAccessScope(ctx).AgentFilter(agentID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = DefaultSuggestionLimit
	}
	return s.repo.RecentTypes(ctx, scoped, strings.TrimSpace(prefix), limit)
}
