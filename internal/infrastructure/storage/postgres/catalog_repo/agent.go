package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/agents"
	"palmledger/internal/infrastructure/storage/postgres"
)

const agentsTable = "agents"

// historyTables reference agents by agent_id.
var historyTables = []string{
	"cash_advances", "expenses", "fruit_collections", "fruit_price_changes", "monthly_reconciliations",
}

// AgentRepo implements agents.Repository.
type AgentRepo struct {
	*BaseCatalogRepo[*agents.Agent]
}

var _ agents.Repository = (*AgentRepo)(nil)

// NewAgentRepo creates a new agent repository.
func NewAgentRepo(txManager *postgres.TxManager) *AgentRepo {
	return &AgentRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			agentsTable,
			"agent",
			postgres.ExtractDBColumns[agents.Agent](),
			func() *agents.Agent { return &agents.Agent{} },
		),
	}
}

// List retrieves agents. Archived agents are hidden unless requested.
func (r *AgentRepo) List(ctx context.Context, filter agents.ListFilter) (domain.ListResult[*agents.Agent], error) {
	result := domain.ListResult[*agents.Agent]{Limit: filter.Limit, Offset: filter.Offset}

	orderBy, err := postgres.OrderBy(filter.OrderBy, []string{"full_name", "location", "status", "created_at"}, "full_name ASC")
	if err != nil {
		return result, err
	}

	total, err := r.page(ctx, r.listQuery(filter), orderBy, filter.Limit, filter.Offset, &result.Items)
	if err != nil {
		return result, err
	}
	result.TotalCount = total
	return result, nil
}

func (r *AgentRepo) listQuery(filter agents.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if !filter.IncludeArchived {
		q = q.Where(squirrel.Eq{"archived_at": nil})
	}
	if filter.AgentID != nil {
		q = q.Where(squirrel.Eq{"id": *filter.AgentID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"full_name": pattern},
			squirrel.ILike{"phone": pattern},
			squirrel.ILike{"location": pattern},
		})
	}
	return q
}

// Names returns full names keyed by id, archived agents included.
func (r *AgentRepo) Names(ctx context.Context, ids []id.ID) (map[id.ID]string, error) {
	q := postgres.Builder().
		Select("id", "full_name").
		From(agentsTable).
		Where(squirrel.Eq{"id": ids})

	var rows []struct {
		ID       id.ID  `db:"id"`
		FullName string `db:"full_name"`
	}
	if err := postgres.SelectAll(ctx, r.querier(ctx), &rows, q, "agent names"); err != nil {
		return nil, err
	}

	names := make(map[id.ID]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.FullName
	}
	return names, nil
}

// ActiveIDs lists non-archived ACTIVE agents.
func (r *AgentRepo) ActiveIDs(ctx context.Context) ([]id.ID, error) {
	q := postgres.Builder().
		Select("id").
		From(agentsTable).
		Where(squirrel.Eq{"archived_at": nil, "status": agents.StatusActive}).
		OrderBy("full_name")

	var ids []id.ID
	if err := postgres.SelectAll(ctx, r.querier(ctx), &ids, q, "active agents"); err != nil {
		return nil, err
	}
	return ids, nil
}

// HasHistory reports whether any ledger table references the agent.
func (r *AgentRepo) HasHistory(ctx context.Context, agentID id.ID) (bool, error) {
	sql, args, err := historyQuery(agentID).ToSql()
	if err != nil {
		return false, fmt.Errorf("build history query: %w", err)
	}

	var has bool
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&has); err != nil {
		return false, fmt.Errorf("check agent history: %w", err)
	}
	return has, nil
}

func historyQuery(agentID id.ID) squirrel.SelectBuilder {
	exists := make(squirrel.Or, 0, len(historyTables))
	for _, table := range historyTables {
		exists = append(exists, squirrel.Expr(
			fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE agent_id = ?)", table), agentID))
	}
	return postgres.Builder().Select().Column(exists)
}

// Archive marks the agent archived.
func (r *AgentRepo) Archive(ctx context.Context, agentID id.ID, at time.Time) error {
	return r.setColumn(ctx, agentID, "archived_at", at)
}

// Restore clears the archive mark.
func (r *AgentRepo) Restore(ctx context.Context, agentID id.ID) error {
	return r.setColumn(ctx, agentID, "archived_at", nil)
}

// HardDelete removes the agent row.
func (r *AgentRepo) HardDelete(ctx context.Context, agentID id.ID) error {
	return r.Delete(ctx, agentID)
}

// SetPhoto stores or clears the photo object path.
func (r *AgentRepo) SetPhoto(ctx context.Context, agentID id.ID, path *string) error {
	return r.setColumn(ctx, agentID, "photo_path", path)
}

func (r *AgentRepo) setColumn(ctx context.Context, agentID id.ID, column string, value any) error {
	q := postgres.Builder().
		Update(agentsTable).
		Set(column, value).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": agentID})

	affected, err := postgres.Exec(ctx, r.querier(ctx), q, "agent", "update")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewNotFound("agent", agentID.String())
	}
	return nil
}
