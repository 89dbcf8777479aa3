package pricing

import (
	"context"

	"palmledger/internal/core/id"
	"palmledger/internal/core/security"
	"palmledger/internal/core/tx"
	"palmledger/internal/domain"
	"palmledger/internal/domain/audit"
)

// Repository stores price changes.
type Repository interface {
	domain.LedgerRepository[*PriceChange]

	// Latest returns the most recent changes with effective_at <= now for the agent, newest
	// first. Two entries let callers show the previous price next to the current one.
	Latest(ctx context.Context, agentID id.ID, limit int) ([]*PriceChange, error)
}

// Service manages the price change ledger.
type Service struct {
	*domain.LedgerService[*PriceChange]
	repo Repository
}

// NewService creates the price change service.
func NewService(repo Repository, txManager tx.Manager, rec audit.Recorder) *Service {
	return &Service{
		LedgerService: domain.NewLedgerService(domain.LedgerServiceConfig[*PriceChange]{
			Repo:       repo,
			TxManager:  txManager,
			Audit:      rec,
			EntityName: "price change",
		}),
		repo: repo,
	}
}

// Current holds an agent's current and previous buying price.
type Current struct {
	AgentID  id.ID        `json:"agentId"`
	Current  *PriceChange `json:"current"`
	Previous *PriceChange `json:"previous,omitempty"`
}

// CurrentPrice returns the agent's price in effect. Current is nil when no change exists.
func (s *Service) CurrentPrice(ctx context.Context, agentID id.ID) (*Current, error) {
	if err := security.NewAccessScope(ctx).RequireAgent(agentID); err != nil {
		return nil, err
	}
	changes, err := s.repo.Latest(ctx, agentID, 2)
	if err != nil {
		return nil, err
	}
	out := &Current{AgentID: agentID}
	if len(changes) > 0 {
		out.Current = changes[0]
	}
	if len(changes) > 1 {
		out.Previous = changes[1]
	}
	return out, nil
}
