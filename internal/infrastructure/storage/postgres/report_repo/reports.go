// Package report_repo reads the ledger rows behind the net position report and the monthly
// reconciliation. Amounts are read as text and coerced so legacy rows never fail a report.
package report_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
	"palmledger/internal/domain/reconciliation"
	"palmledger/internal/domain/reports"
	"palmledger/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository and reconciliation.Sources.
type ReportRepo struct {
	txManager *postgres.TxManager
}

var (
	_ reports.Repository     = (*ReportRepo)(nil)
	_ reconciliation.Sources = (*ReportRepo)(nil)
)

// NewReportRepo creates the report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{txManager: txManager}
}

func (r *ReportRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// scoped applies the period and agent filter to a ledger query.
func scoped(q squirrel.SelectBuilder, agentColumn, dateColumn string, filter reports.NetPositionFilter) squirrel.SelectBuilder {
	q = postgres.WhereDateRange(q, dateColumn, types.DateRange{From: filter.From, To: filter.To})
	if filter.AgentID != nil {
		q = q.Where(squirrel.Eq{agentColumn: *filter.AgentID})
	}
	return q
}

type advanceRow struct {
	ID      id.ID     `db:"id"`
	AgentID id.ID     `db:"agent_id"`
	Date    time.Time `db:"advance_date"`
	Amount  *string   `db:"amount"`
	Method  *string   `db:"method"`
}

func advancesQuery(filter reports.NetPositionFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select("id", "agent_id", "advance_date", "amount::text AS amount", "method").
		From("cash_advances")
	return scoped(q, "agent_id", "advance_date", filter).OrderBy("advance_date", "created_at")
}

// Advances returns the advances dated within the filter.
func (r *ReportRepo) Advances(ctx context.Context, filter reports.NetPositionFilter) ([]reports.AdvanceRow, error) {
	var rows []advanceRow
	if err := postgres.SelectAll(ctx, r.querier(ctx), &rows, advancesQuery(filter), "cash advances"); err != nil {
		return nil, err
	}

	out := make([]reports.AdvanceRow, len(rows))
	for i, row := range rows {
		out[i] = reports.AdvanceRow{
			ID:      row.ID,
			AgentID: row.AgentID,
			Date:    row.Date,
			Amount:  types.Coerce(row.Amount),
			Method:  deref(row.Method),
		}
	}
	return out, nil
}

type expenseRow struct {
	ID      id.ID     `db:"id"`
	AgentID id.ID     `db:"agent_id"`
	Date    time.Time `db:"expense_date"`
	Type    *string   `db:"expense_type"`
	Amount  *string   `db:"amount"`
}

func expensesQuery(filter reports.NetPositionFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select("id", "agent_id", "expense_date", "expense_type", "amount::text AS amount").
		From("expenses")
	return scoped(q, "agent_id", "expense_date", filter).OrderBy("expense_date", "created_at")
}

// Expenses returns the expenses dated within the filter.
func (r *ReportRepo) Expenses(ctx context.Context, filter reports.NetPositionFilter) ([]reports.ExpenseRow, error) {
	var rows []expenseRow
	if err := postgres.SelectAll(ctx, r.querier(ctx), &rows, expensesQuery(filter), "expenses"); err != nil {
		return nil, err
	}

	out := make([]reports.ExpenseRow, len(rows))
	for i, row := range rows {
		out[i] = reports.ExpenseRow{
			ID:      row.ID,
			AgentID: row.AgentID,
			Date:    row.Date,
			Type:    deref(row.Type),
			Amount:  types.Coerce(row.Amount),
		}
	}
	return out, nil
}

type collectionRow struct {
	ID          id.ID     `db:"id"`
	AgentID     id.ID     `db:"agent_id"`
	Date        time.Time `db:"collection_date"`
	DriverName  *string   `db:"driver_name"`
	TotalWeight *string   `db:"total_weight"`
	TotalAmount *string   `db:"total_amount"`
	TotalCost   *string   `db:"total_cost"`
	Amount      *string   `db:"amount"`
}

func collectionsQuery(filter reports.NetPositionFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(
			"id", "agent_id", "collection_date", "driver_name",
			"total_weight::text AS total_weight", "total_amount", "total_cost", "amount",
		).
		From("fruit_collections")
	return scoped(q, "agent_id", "collection_date", filter).OrderBy("collection_date", "created_at")
}

// Collections returns the collection headers dated within the filter with the stored
// aggregates normalized.
func (r *ReportRepo) Collections(ctx context.Context, filter reports.NetPositionFilter) ([]reports.CollectionRow, error) {
	var rows []collectionRow
	if err := postgres.SelectAll(ctx, r.querier(ctx), &rows, collectionsQuery(filter), "fruit collections"); err != nil {
		return nil, err
	}

	out := make([]reports.CollectionRow, len(rows))
	for i, row := range rows {
		stored, _ := types.FirstNonNull(row.TotalAmount, row.TotalCost, row.Amount)
		out[i] = reports.CollectionRow{
			ID:           row.ID,
			AgentID:      row.AgentID,
			Date:         row.Date,
			DriverName:   deref(row.DriverName),
			StoredWeight: types.Coerce(row.TotalWeight),
			StoredAmount: stored,
		}
	}
	return out, nil
}

type itemRow struct {
	CollectionID id.ID   `db:"collection_id"`
	WeightKg     *string `db:"weight_kg"`
	PricePerKg   *string `db:"price_per_kg"`
}

func itemsQuery(filter reports.NetPositionFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select("i.collection_id", "i.weight_kg::text AS weight_kg", "i.price_per_kg::text AS price_per_kg").
		From("fruit_collection_items i").
		Join("fruit_collections c ON c.id = i.collection_id")
	return scoped(q, "c.agent_id", "c.collection_date", filter).OrderBy("i.collection_id", "i.line_no")
}

// CollectionItems returns the items of the collections dated within the filter.
func (r *ReportRepo) CollectionItems(ctx context.Context, filter reports.NetPositionFilter) ([]reports.ItemRow, error) {
	var rows []itemRow
	if err := postgres.SelectAll(ctx, r.querier(ctx), &rows, itemsQuery(filter), "collection items"); err != nil {
		return nil, err
	}

	out := make([]reports.ItemRow, len(rows))
	for i, row := range rows {
		out[i] = reports.ItemRow{
			CollectionID: row.CollectionID,
			WeightKg:     types.Coerce(row.WeightKg),
			PricePerKg:   types.Coerce(row.PricePerKg),
		}
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
