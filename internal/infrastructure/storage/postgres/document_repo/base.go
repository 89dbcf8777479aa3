// Package document_repo provides PostgreSQL repositories for the dated business records:
// advances, expenses, price changes, fruit collections and customer orders.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/infrastructure/storage/postgres"
)

var immutableColumns = []string{"id", "version", "created_at", "created_by"}

// LedgerTable describes how an agent-owned record is stored.
type LedgerTable struct {
	Name       string
	EntityName string
	// DateColumn is the business date used for period filters and default ordering.
	DateColumn string
	// SearchColumns are matched with ILIKE by ListFilter.Search.
	SearchColumns []string
}

// BaseDocumentRepo implements domain.LedgerRepository for agent-owned records.
type BaseDocumentRepo[T entity.AgentOwned] struct {
	txManager  *postgres.TxManager
	table      LedgerTable
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T entity.AgentOwned](
	txManager *postgres.TxManager,
	table LedgerTable,
	selectCols []string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txManager:  txManager,
		table:      table,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

func (r *BaseDocumentRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new record.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, e T) error {
	data := postgres.PickColumns(postgres.StructToMap(e), r.selectCols)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %s", r.table.EntityName)
	}

	q := postgres.Builder().
		Insert(r.table.Name).
		SetMap(data)

	_, err := postgres.Exec(ctx, r.querier(ctx), q, r.table.EntityName, "insert")
	return err
}

// Update updates an existing record with optimistic locking on version.
func (r *BaseDocumentRepo[T]) Update(ctx context.Context, e T) error {
	data := postgres.StructToMap(e)
	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("%s has no 'version' field or it is not an int", r.table.EntityName)
	}

	q := postgres.Builder().
		Update(r.table.Name).
		SetMap(postgres.PickColumns(data, r.selectCols, immutableColumns...)).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": e.GetID()}).
		Where(squirrel.Eq{"version": version})

	affected, err := postgres.Exec(ctx, r.querier(ctx), q, r.table.EntityName, "update")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewConcurrentModification(r.table.EntityName, e.GetID())
	}
	return nil
}

// Delete removes a record.
func (r *BaseDocumentRepo[T]) Delete(ctx context.Context, recordID id.ID) error {
	q := postgres.Builder().
		Delete(r.table.Name).
		Where(squirrel.Eq{"id": recordID})

	affected, err := postgres.Exec(ctx, r.querier(ctx), q, r.table.EntityName, "delete")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewNotFound(r.table.EntityName, recordID.String())
	}
	return nil
}

func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(r.selectCols...).
		From(r.table.Name)
}

// GetByID retrieves a record by ID.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, recordID id.ID) (T, error) {
	e := r.newFn()
	q := r.baseSelect().Where(squirrel.Eq{"id": recordID})
	if err := postgres.GetOne(ctx, r.querier(ctx), e, q, r.table.EntityName, recordID.String()); err != nil {
		var zero T
		return zero, err
	}
	return e, nil
}

// listQuery applies agent, period and search filters.
func (r *BaseDocumentRepo[T]) listQuery(filter domain.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if filter.AgentID != nil {
		q = q.Where(squirrel.Eq{"agent_id": *filter.AgentID})
	}
	q = postgres.WhereDateRange(q, r.table.DateColumn, filter.Period)
	if filter.Search != "" && len(r.table.SearchColumns) > 0 {
		pattern := "%" + filter.Search + "%"
		or := make(squirrel.Or, 0, len(r.table.SearchColumns))
		for _, col := range r.table.SearchColumns {
			or = append(or, squirrel.ILike{col: pattern})
		}
		q = q.Where(or)
	}
	return q
}

// List retrieves records with filtering and pagination, newest business date first.
func (r *BaseDocumentRepo[T]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{Limit: filter.Limit, Offset: filter.Offset}

	orderBy, err := postgres.OrderBy(filter.OrderBy, r.selectCols, r.table.DateColumn+" DESC")
	if err != nil {
		return result, err
	}

	q := r.listQuery(filter)
	querier := r.querier(ctx)
	if result.TotalCount, err = postgres.Count(ctx, querier, q); err != nil {
		return result, err
	}

	q = postgres.Paginate(q.OrderBy(orderBy, "created_at DESC"), filter.Limit, filter.Offset)
	if err := postgres.SelectAll(ctx, querier, &result.Items, q, r.table.EntityName); err != nil {
		return result, err
	}
	return result, nil
}
