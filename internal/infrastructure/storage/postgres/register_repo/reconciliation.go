// Package register_repo provides PostgreSQL storage for the derived monthly registers.
package register_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/reconciliation"
	"palmledger/internal/infrastructure/storage/postgres"
)

const (
	reconciliationsTable = "monthly_reconciliations"
	reconciliationEntity = "reconciliation"
)

var reconciliationColumns = postgres.ExtractDBColumns[reconciliation.Reconciliation]()

// ReconciliationRepo implements reconciliation.Repository.
type ReconciliationRepo struct {
	txManager *postgres.TxManager
}

var _ reconciliation.Repository = (*ReconciliationRepo)(nil)

// NewReconciliationRepo creates the reconciliation repository.
func NewReconciliationRepo(txManager *postgres.TxManager) *ReconciliationRepo {
	return &ReconciliationRepo{txManager: txManager}
}

func (r *ReconciliationRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *ReconciliationRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(reconciliationColumns...).From(reconciliationsTable)
}

// Find returns the row of (agentID, month) or nil. The row is locked when called inside a
// transaction.
func (r *ReconciliationRepo) Find(ctx context.Context, agentID id.ID, month time.Time) (*reconciliation.Reconciliation, error) {
	q := r.baseSelect().Where(squirrel.Eq{"agent_id": agentID, "month": monthStart(month)})
	if r.txManager.GetTx(ctx) != nil {
		q = q.Suffix("FOR UPDATE")
	}

	var rec reconciliation.Reconciliation
	err := postgres.GetOne(ctx, r.querier(ctx), &rec, q, reconciliationEntity, agentID.String())
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// upsertSQL keeps the original id and created_at of an existing row.
var upsertSQL = fmt.Sprintf(`
	INSERT INTO %[1]s (id, agent_id, month, total_advance, total_collected_weight,
		status, comments, generated_at, generated_by, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NOW(), NOW())
	ON CONFLICT (agent_id, month) DO UPDATE SET
		total_advance          = EXCLUDED.total_advance,
		total_collected_weight = EXCLUDED.total_collected_weight,
		status                 = EXCLUDED.status,
		comments               = EXCLUDED.comments,
		generated_at           = EXCLUDED.generated_at,
		generated_by           = EXCLUDED.generated_by,
		version                = %[1]s.version + 1,
		updated_at             = NOW()
	RETURNING %[2]s
`, reconciliationsTable, strings.Join(reconciliationColumns, ", "))

// Upsert inserts or overwrites the row of (AgentID, Month).
func (r *ReconciliationRepo) Upsert(ctx context.Context, rec *reconciliation.Reconciliation) (*reconciliation.Reconciliation, error) {
	var stored reconciliation.Reconciliation
	err := pgxscan.Get(ctx, r.querier(ctx), &stored, upsertSQL,
		rec.ID, rec.AgentID, monthStart(rec.Month), rec.TotalAdvance, rec.TotalCollectedWeight,
		rec.Status, rec.Comments, rec.GeneratedAt, rec.GeneratedBy,
	)
	if err != nil {
		return nil, postgres.MapError(err, reconciliationEntity, "upsert")
	}
	return &stored, nil
}

// GetByID returns a reconciliation.
func (r *ReconciliationRepo) GetByID(ctx context.Context, recID id.ID) (*reconciliation.Reconciliation, error) {
	var rec reconciliation.Reconciliation
	q := r.baseSelect().Where(squirrel.Eq{"id": recID})
	if err := postgres.GetOne(ctx, r.querier(ctx), &rec, q, reconciliationEntity, recID.String()); err != nil {
		return nil, err
	}
	return &rec, nil
}

func listQuery(filter reconciliation.Filter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(reconciliationColumns...).From(reconciliationsTable)
	if filter.AgentID != nil {
		q = q.Where(squirrel.Eq{"agent_id": *filter.AgentID})
	}
	if !filter.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"month": monthStart(filter.From)})
	}
	if !filter.To.IsZero() {
		q = q.Where(squirrel.LtOrEq{"month": monthStart(filter.To)})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	return q
}

// List returns reconciliations, latest month first.
func (r *ReconciliationRepo) List(ctx context.Context, filter reconciliation.Filter) (domain.ListResult[*reconciliation.Reconciliation], error) {
	result := domain.ListResult[*reconciliation.Reconciliation]{Limit: filter.Limit, Offset: filter.Offset}

	q := listQuery(filter)
	querier := r.querier(ctx)
	var err error
	if result.TotalCount, err = postgres.Count(ctx, querier, q); err != nil {
		return result, err
	}

	q = postgres.Paginate(q.OrderBy("month DESC", "agent_id"), filter.Limit, filter.Offset)
	if err := postgres.SelectAll(ctx, querier, &result.Items, q, reconciliationEntity); err != nil {
		return result, err
	}
	return result, nil
}

// UpdateStatus sets the review status.
func (r *ReconciliationRepo) UpdateStatus(ctx context.Context, recID id.ID, status reconciliation.Status, version int) error {
	return r.patch(ctx, recID, version, "status", status)
}

// UpdateComments replaces the comments.
func (r *ReconciliationRepo) UpdateComments(ctx context.Context, recID id.ID, comments *string, version int) error {
	return r.patch(ctx, recID, version, "comments", comments)
}

func (r *ReconciliationRepo) patch(ctx context.Context, recID id.ID, version int, column string, value any) error {
	q := postgres.Builder().
		Update(reconciliationsTable).
		Set(column, value).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": recID, "version": version})

	affected, err := postgres.Exec(ctx, r.querier(ctx), q, reconciliationEntity, "update")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewConcurrentModification(reconciliationEntity, recID)
	}
	return nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
