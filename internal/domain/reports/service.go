package reports

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/id"
	"palmledger/internal/core/security"
	"palmledger/pkg/logger"
)

var tracer = otel.Tracer("palmledger/reports")

// Repository reads the source rows of a report. Implementations normalize stored values:
// nulls and non-numeric values arrive as zero.
type Repository interface {
	Advances(ctx context.Context, filter NetPositionFilter) ([]AdvanceRow, error)
	Expenses(ctx context.Context, filter NetPositionFilter) ([]ExpenseRow, error)
	Collections(ctx context.Context, filter NetPositionFilter) ([]CollectionRow, error)
	// CollectionItems returns the items of the collections matching filter.
	CollectionItems(ctx context.Context, filter NetPositionFilter) ([]ItemRow, error)
}

// AgentDirectory resolves agent names.
type AgentDirectory interface {
	Names(ctx context.Context, ids []id.ID) (map[id.ID]string, error)
}

// Service builds reports.
type Service struct {
	repo   Repository
	agents AgentDirectory
	now    func() time.Time
}

// NewService creates the report service. agents may be nil; names are then left empty.
func NewService(repo Repository, agents AgentDirectory) *Service {
	return &Service{
		repo:   repo,
		agents: agents,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NetPosition computes the consolidated report. Advances, expenses and collections are read
// concurrently and any of them failing fails the report; a failed item read only degrades
// pricing to the stored aggregates.
func (s *Service) NetPosition(ctx context.Context, filter NetPositionFilter) (*NetPositionReport, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, apperror.NewValidation("from date must not be after to date").
			WithDetail("from", filter.From).
			WithDetail("to", filter.To)
	}
	agentID, err := security.NewAccessScope(ctx).AgentFilter(filter.AgentID)
	if err != nil {
		return nil, err
	}
	filter.AgentID = agentID

	ctx, span := tracer.Start(ctx, "reports.net_position")
	defer span.End()

	in := Inputs{Filter: filter, Now: s.now()}

	var itemsErr error
	itemsDone := make(chan struct{})
	go func() {
		defer close(itemsDone)
		in.Items, itemsErr = s.repo.CollectionItems(ctx, filter)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.repo.Advances(gctx, filter)
		if err != nil {
			return fmt.Errorf("fetch advances: %w", err)
		}
		in.Advances = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.repo.Expenses(gctx, filter)
		if err != nil {
			return fmt.Errorf("fetch expenses: %w", err)
		}
		in.Expenses = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.repo.Collections(gctx, filter)
		if err != nil {
			return fmt.Errorf("fetch collections: %w", err)
		}
		in.Collections = rows
		return nil
	})
	err = g.Wait()
	<-itemsDone
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if itemsErr != nil {
		logger.Warn(ctx, "collection items unavailable, pricing from stored totals", "error", itemsErr)
		in.Items = nil
		in.ItemsUnavailable = true
	}

	in.AgentNames = s.names(ctx, in)

	report := Aggregate(in)
	span.SetAttributes(
		attribute.Int("report.agents", len(report.Agents)),
		attribute.Int("report.collections", len(report.Collections)),
		attribute.Bool("report.items_unavailable", report.ItemsUnavailable),
	)
	return report, nil
}

func (s *Service) names(ctx context.Context, in Inputs) map[id.ID]string {
	if s.agents == nil {
		return nil
	}
	seen := make(map[id.ID]struct{})
	ids := make([]id.ID, 0)
	add := func(agentID id.ID) {
		if _, ok := seen[agentID]; !ok {
			seen[agentID] = struct{}{}
			ids = append(ids, agentID)
		}
	}
	if in.Filter.AgentID != nil {
		add(*in.Filter.AgentID)
	}
	for _, a := range in.Advances {
		add(a.AgentID)
	}
	for _, e := range in.Expenses {
		add(e.AgentID)
	}
	for _, c := range in.Collections {
		add(c.AgentID)
	}
	if len(ids) == 0 {
		return nil
	}

	names, err := s.agents.Names(ctx, ids)
	if err != nil {
		logger.Warn(ctx, "agent names unavailable", "error", err)
		return nil
	}
	return names
}
