package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/security"
	"palmledger/internal/core/tx"
	"palmledger/internal/core/types"
	"palmledger/internal/domain"
	"palmledger/internal/domain/audit"
	"palmledger/internal/domain/reports"
	"palmledger/pkg/logger"
)

const entityName = "reconciliation"

// lockTTL bounds how long one regeneration may hold its lock.
const lockTTL = 30 * time.Second

// Repository stores reconciliations.
type Repository interface {
	// Find returns nil without error when (agentID, month) has no row. Inside a transaction
	// the row is locked.
	Find(ctx context.Context, agentID id.ID, month time.Time) (*Reconciliation, error)
	// Upsert inserts or overwrites the row of (AgentID, Month) and returns the stored row.
	Upsert(ctx context.Context, r *Reconciliation) (*Reconciliation, error)
	GetByID(ctx context.Context, id id.ID) (*Reconciliation, error)
	List(ctx context.Context, filter Filter) (domain.ListResult[*Reconciliation], error)
	// UpdateStatus and UpdateComments apply optimistic locking on version.
	UpdateStatus(ctx context.Context, id id.ID, status Status, version int) error
	UpdateComments(ctx context.Context, id id.ID, comments *string, version int) error
}

// Sources reads the ledger rows a month is computed from. The report repository satisfies it.
type Sources interface {
	Advances(ctx context.Context, filter reports.NetPositionFilter) ([]reports.AdvanceRow, error)
	Collections(ctx context.Context, filter reports.NetPositionFilter) ([]reports.CollectionRow, error)
	CollectionItems(ctx context.Context, filter reports.NetPositionFilter) ([]reports.ItemRow, error)
}

// AgentDirectory lists agents eligible for the scheduled refresh.
type AgentDirectory interface {
	ActiveIDs(ctx context.Context) ([]id.ID, error)
}

// Locker serializes regeneration of one key across processes.
type Locker interface {
	// Lock returns apperror CodeLocked when key is held elsewhere.
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// NopLocker relies on the database upsert alone.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// Service generates and reviews reconciliations.
type Service struct {
	repo      Repository
	sources   Sources
	agents    AgentDirectory
	txManager tx.Manager
	locker    Locker
	audit     audit.Recorder
	policy    StatusPolicy
	now       func() time.Time
}

// Config wires a Service. Locker, Audit and Agents are optional.
type Config struct {
	Repo      Repository
	Sources   Sources
	Agents    AgentDirectory
	TxManager tx.Manager
	Locker    Locker
	Audit     audit.Recorder
	Policy    StatusPolicy
}

// NewService creates the reconciliation service.
func NewService(cfg Config) *Service {
	if cfg.Locker == nil {
		cfg.Locker = NopLocker{}
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.Nop{}
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReset
	}
	return &Service{
		repo:      cfg.Repo,
		sources:   cfg.Sources,
		agents:    cfg.Agents,
		txManager: cfg.TxManager,
		locker:    cfg.Locker,
		audit:     cfg.Audit,
		policy:    cfg.Policy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the configured status policy.
func (s *Service) Policy() StatusPolicy {
	return s.policy
}

// Compute sums advances and collected weight of agentID in the month containing month.
// Collection weight is the sum of its items when it has any, else its stored total.
func (s *Service) Compute(ctx context.Context, agentID id.ID, month time.Time) (advance, weight decimal.Decimal, err error) {
	r := types.MonthRange(month)
	filter := reports.NetPositionFilter{From: r.From, To: r.To, AgentID: &agentID}

	advances, err := s.sources.Advances(ctx, filter)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("fetch advances: %w", err)
	}
	collections, err := s.sources.Collections(ctx, filter)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("fetch collections: %w", err)
	}
	items, err := s.sources.CollectionItems(ctx, filter)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("fetch collection items: %w", err)
	}

	advance = decimal.Zero
	for _, a := range advances {
		advance = advance.Add(a.Amount)
	}
	byCollection := make(map[id.ID][]reports.ItemRow, len(collections))
	for _, it := range items {
		byCollection[it.CollectionID] = append(byCollection[it.CollectionID], it)
	}
	weight = decimal.Zero
	for _, c := range collections {
		weight = weight.Add(reports.PriceCollection(c, byCollection[c.ID]).WeightKg)
	}
	return advance, weight, nil
}

// Generate computes and upserts the reconciliation of agentID for the month containing month.
func (s *Service) Generate(ctx context.Context, agentID id.ID, month time.Time) (*Reconciliation, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	if id.IsNil(agentID) {
		return nil, apperror.NewValidation("agent is required").WithDetail("field", "agentId")
	}
	if month.IsZero() {
		return nil, apperror.NewValidation("month is required").WithDetail("field", "month")
	}
	return s.generate(ctx, agentID, month)
}

func (s *Service) generate(ctx context.Context, agentID id.ID, month time.Time) (*Reconciliation, error) {
	month = types.MonthOf(month)
	key := fmt.Sprintf("reconciliation:%s:%s", agentID, month.Format("2006-01"))
	release, err := s.locker.Lock(ctx, key, lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "release reconciliation lock", "key", key, "error", err)
		}
	}()

	var stored *Reconciliation
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		advance, weight, err := s.Compute(ctx, agentID, month)
		if err != nil {
			return err
		}
		existing, err := s.repo.Find(ctx, agentID, month)
		if err != nil {
			return fmt.Errorf("find reconciliation: %w", err)
		}

		now := s.now()
		r := &Reconciliation{
			ID:                   id.New(),
			AgentID:              agentID,
			Month:                month,
			TotalAdvance:         advance,
			TotalCollectedWeight: weight,
			GeneratedAt:          now,
			GeneratedBy:          appctx.GetUserID(ctx),
			CreatedAt:            now,
			UpdatedAt:            now,
			Version:              1,
		}
		var previous Status
		if existing != nil {
			previous = existing.Status
			r.ID = existing.ID
			r.Comments = existing.Comments
			r.CreatedAt = existing.CreatedAt
		}
		r.Status = s.policy.Apply(previous)

		stored, err = s.repo.Upsert(ctx, r)
		if err != nil {
			return fmt.Errorf("upsert reconciliation: %w", err)
		}
		action := audit.ActionCreate
		changes := map[string]any{"new": stored}
		if existing != nil {
			action = audit.ActionUpdate
			changes["old"] = existing
		}
		return s.audit.LogChange(ctx, entityName, stored.ID, action, changes)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "reconciliation generated",
		"agent_id", agentID,
		"month", month.Format("2006-01"),
		"total_advance", stored.TotalAdvance.String(),
		"total_weight", stored.TotalCollectedWeight.String(),
		"status", stored.Status)
	return stored, nil
}

// RefreshMonth regenerates month for every active agent. It runs without a caller and is
// meant for background jobs. Locked keys are skipped; other failures are collected.
func (s *Service) RefreshMonth(ctx context.Context, month time.Time) (int, error) {
	if s.agents == nil {
		return 0, errors.New("reconciliation refresh needs an agent directory")
	}
	ids, err := s.agents.ActiveIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active agents: %w", err)
	}

	var errs []error
	done := 0
	for _, agentID := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := s.generate(ctx, agentID, month); err != nil {
			if apperror.HasCode(err, apperror.CodeLocked) {
				continue
			}
			errs = append(errs, fmt.Errorf("agent %s: %w", agentID, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// Get returns a reconciliation visible to the caller.
func (s *Service) Get(ctx context.Context, reconciliationID id.ID) (*Reconciliation, error) {
	r, err := s.repo.GetByID(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}
	if !security.NewAccessScope(ctx).CanAccessAgent(r.AgentID) {
		return nil, apperror.NewNotFound(entityName, reconciliationID.String())
	}
	return r, nil
}

// List returns reconciliations visible to the caller, newest month first.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Reconciliation], error) {
	agentID, err := security.NewAccessScope(ctx).AgentFilter(filter.AgentID)
	if err != nil {
		return domain.ListResult[*Reconciliation]{}, err
	}
	filter.AgentID = agentID
	if filter.Status != "" && !filter.Status.IsValid() {
		return domain.ListResult[*Reconciliation]{}, apperror.NewInvalidInput("status", "unknown reconciliation status")
	}
	if !filter.From.IsZero() {
		filter.From = types.MonthOf(filter.From)
	}
	if !filter.To.IsZero() {
		filter.To = types.MonthOf(filter.To)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return domain.ListResult[*Reconciliation]{}, apperror.NewValidation("from month must not be after to month")
	}
	page := domain.ListFilter{Limit: filter.Limit, Offset: filter.Offset}
	page.Normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.repo.List(ctx, filter)
}

// UpdateStatus sets the review status.
func (s *Service) UpdateStatus(ctx context.Context, reconciliationID id.ID, status Status, version int) (*Reconciliation, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, apperror.NewInvalidInput("status", "unknown reconciliation status")
	}
	return s.patch(ctx, reconciliationID, version, func(ctx context.Context, r *Reconciliation) error {
		if err := s.repo.UpdateStatus(ctx, r.ID, status, r.Version); err != nil {
			return err
		}
		from := r.Status
		r.Status = status
		return s.audit.LogChange(ctx, entityName, r.ID, audit.ActionStatus, map[string]any{"from": from, "to": status})
	})
}

// UpdateComments replaces the free-text comments. Blank comments are cleared.
func (s *Service) UpdateComments(ctx context.Context, reconciliationID id.ID, comments string, version int) (*Reconciliation, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	var value *string
	if c := strings.TrimSpace(comments); c != "" {
		value = &c
	}
	return s.patch(ctx, reconciliationID, version, func(ctx context.Context, r *Reconciliation) error {
		if err := s.repo.UpdateComments(ctx, r.ID, value, r.Version); err != nil {
			return err
		}
		old := r.Comments
		r.Comments = value
		return s.audit.LogChange(ctx, entityName, r.ID, audit.ActionUpdate, map[string]any{"comments": map[string]any{"old": old, "new": value}})
	})
}

func (s *Service) patch(ctx context.Context, reconciliationID id.ID, version int, apply func(context.Context, *Reconciliation) error) (*Reconciliation, error) {
	var out *Reconciliation
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetByID(ctx, reconciliationID)
		if err != nil {
			return err
		}
		if version != 0 && version != r.Version {
			return apperror.NewConcurrentModification(entityName, reconciliationID.String())
		}
		if err := apply(ctx, r); err != nil {
			return err
		}
		r.Version++
		r.UpdatedAt = s.now()
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "reconciliation updated", "id", reconciliationID, "status", out.Status)
	return out, nil
}
