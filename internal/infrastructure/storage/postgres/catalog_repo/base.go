// Package catalog_repo provides PostgreSQL repositories for the directories: agents and customers.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/id"
	"palmledger/internal/infrastructure/storage/postgres"
)

// immutableColumns are never changed by Update.
var immutableColumns = []string{"id", "version", "created_at", "created_by"}

// BaseCatalogRepo provides common CRUD operations for directory entities.
type BaseCatalogRepo[T any] struct {
	txManager  *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T
}

// NewBaseCatalogRepo creates a new base catalog repository.
func NewBaseCatalogRepo[T any](
	txManager *postgres.TxManager,
	tableName, entityName string,
	selectCols []string,
	newFn func() T,
) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

func (r *BaseCatalogRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new entity using its "db" tags.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, entity T) error {
	data := postgres.PickColumns(postgres.StructToMap(entity), r.selectCols)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %s", r.entityName)
	}

	q := postgres.Builder().
		Insert(r.tableName).
		SetMap(data)

	_, err := postgres.Exec(ctx, r.querier(ctx), q, r.entityName, "insert")
	return err
}

// Update modifies an existing entity with optimistic locking on version.
func (r *BaseCatalogRepo[T]) Update(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	entityID, ok := data["id"]
	if !ok {
		return fmt.Errorf("%s has no 'id' field with db tag", r.entityName)
	}
	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("%s has no 'version' field or it is not an int", r.entityName)
	}

	q := postgres.Builder().
		Update(r.tableName).
		SetMap(postgres.PickColumns(data, r.selectCols, immutableColumns...)).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"version": version})

	affected, err := postgres.Exec(ctx, r.querier(ctx), q, r.entityName, "update")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewConcurrentModification(r.entityName, entityID)
	}
	return nil
}

func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// GetByID retrieves entity by ID.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	entity := r.newFn()
	q := r.baseSelect().Where(squirrel.Eq{"id": entityID})
	if err := postgres.GetOne(ctx, r.querier(ctx), entity, q, r.entityName, entityID.String()); err != nil {
		var zero T
		return zero, err
	}
	return entity, nil
}

// Delete performs physical removal. Referenced rows yield a conflict.
func (r *BaseCatalogRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	q := postgres.Builder().
		Delete(r.tableName).
		Where(squirrel.Eq{"id": entityID})

	affected, err := postgres.Exec(ctx, r.querier(ctx), q, r.entityName, "delete")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}

// page counts q, then orders and pages it into items.
func (r *BaseCatalogRepo[T]) page(ctx context.Context, q squirrel.SelectBuilder, orderBy string, limit, offset int, items *[]T) (int64, error) {
	querier := r.querier(ctx)
	total, err := postgres.Count(ctx, querier, q)
	if err != nil {
		return 0, err
	}
	q = postgres.Paginate(q.OrderBy(orderBy), limit, offset)
	if err := postgres.SelectAll(ctx, querier, items, q, r.entityName); err != nil {
		return 0, err
	}
	return total, nil
}
