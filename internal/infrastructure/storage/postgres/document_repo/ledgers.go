package document_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"palmledger/internal/core/id"
	"palmledger/internal/domain/advances"
	"palmledger/internal/domain/expenses"
	"palmledger/internal/domain/pricing"
	"palmledger/internal/infrastructure/storage/postgres"
)

var (
	advancesTable = LedgerTable{
		Name:          "cash_advances",
		EntityName:    "cash advance",
		DateColumn:    "advance_date",
		SearchColumns: []string{"signer"},
	}
	expensesTable = LedgerTable{
		Name:          "expenses",
		EntityName:    "expense",
		DateColumn:    "expense_date",
		SearchColumns: []string{"expense_type"},
	}
	priceChangesTable = LedgerTable{
		Name:          "fruit_price_changes",
		EntityName:    "price change",
		DateColumn:    "effective_at",
		SearchColumns: []string{"note"},
	}
)

// NewAdvanceRepo creates the cash advance repository.
func NewAdvanceRepo(txManager *postgres.TxManager) advances.Repository {
	return NewBaseDocumentRepo(
		txManager,
		advancesTable,
		postgres.ExtractDBColumns[advances.CashAdvance](),
		func() *advances.CashAdvance { return &advances.CashAdvance{} },
	)
}

// ExpenseRepo implements expenses.Repository.
type ExpenseRepo struct {
	*BaseDocumentRepo[*expenses.Expense]
}

var _ expenses.Repository = (*ExpenseRepo)(nil)

// NewExpenseRepo creates the expense repository.
func NewExpenseRepo(txManager *postgres.TxManager) *ExpenseRepo {
	return &ExpenseRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			expensesTable,
			postgres.ExtractDBColumns[expenses.Expense](),
			func() *expenses.Expense { return &expenses.Expense{} },
		),
	}
}

// RecentTypes returns distinct expense types, most recently used first.
func (r *ExpenseRepo) RecentTypes(ctx context.Context, agentID *id.ID, prefix string, limit int) ([]string, error) {
	var types []string
	if err := postgres.SelectAll(ctx, r.querier(ctx), &types, recentTypesQuery(agentID, prefix, limit), "expense types"); err != nil {
		return nil, err
	}
	return types, nil
}

func recentTypesQuery(agentID *id.ID, prefix string, limit int) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select("expense_type").
		From(expensesTable.Name)
	if agentID != nil {
		q = q.Where(squirrel.Eq{"agent_id": *agentID})
	}
	if prefix != "" {
		q = q.Where(squirrel.ILike{"expense_type": postgres.EscapeLike(prefix) + "%"})
	}
	return q.
		GroupBy("expense_type").
		OrderBy("MAX(expense_date) DESC", "MAX(created_at) DESC").
		Limit(uint64(limit))
}

// PriceChangeRepo implements pricing.Repository.
type PriceChangeRepo struct {
	*BaseDocumentRepo[*pricing.PriceChange]
	now func() time.Time
}

var _ pricing.Repository = (*PriceChangeRepo)(nil)

// NewPriceChangeRepo creates the price change repository.
func NewPriceChangeRepo(txManager *postgres.TxManager) *PriceChangeRepo {
	return &PriceChangeRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			priceChangesTable,
			postgres.ExtractDBColumns[pricing.PriceChange](),
			func() *pricing.PriceChange { return &pricing.PriceChange{} },
		),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Latest returns the agent's most recent changes already in effect, newest first.
func (r *PriceChangeRepo) Latest(ctx context.Context, agentID id.ID, limit int) ([]*pricing.PriceChange, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"agent_id": agentID}).
		Where(squirrel.LtOrEq{"effective_at": r.now()}).
		OrderBy("effective_at DESC", "created_at DESC").
		Limit(uint64(limit))

	var changes []*pricing.PriceChange
	if err := postgres.SelectAll(ctx, r.querier(ctx), &changes, q, priceChangesTable.EntityName); err != nil {
		return nil, err
	}
	return changes, nil
}
