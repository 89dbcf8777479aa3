package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/core/types"
	"palmledger/internal/domain"
	"palmledger/internal/domain/collections"
	"palmledger/internal/infrastructure/storage/postgres"
)

const (
	collectionsTable     = "fruit_collections"
	collectionItemsTable = "fruit_collection_items"
	collectionEntity     = "fruit collection"
)

// collectionRow is the stored header. The legacy aggregates are text because migrated rows
// may hold anything in them.
type collectionRow struct {
	entity.BaseEntity
	AgentID     id.ID           `db:"agent_id"`
	Date        time.Time       `db:"collection_date"`
	DriverName  *string         `db:"driver_name"`
	TotalWeight decimal.Decimal `db:"total_weight"`
	TotalAmount *string         `db:"total_amount"`
	TotalCost   *string         `db:"total_cost"`
	Amount      *string         `db:"amount"`
	Notes       *string         `db:"notes"`
}

func (row *collectionRow) toDomain() *collections.Collection {
	stored, _ := types.FirstNonNull(row.TotalAmount, row.TotalCost, row.Amount)
	c := &collections.Collection{
		BaseEntity:  row.BaseEntity,
		AgentID:     row.AgentID,
		Date:        row.Date,
		TotalWeight: row.TotalWeight,
		TotalAmount: stored,
		Notes:       row.Notes,
	}
	if row.DriverName != nil {
		c.DriverName = *row.DriverName
	}
	return c
}

var collectionColumns = postgres.ExtractDBColumns[collectionRow]()

// collectionValues is the header as written. New rows carry only total_amount.
func collectionValues(c *collections.Collection) map[string]any {
	return map[string]any{
		"id":              c.ID,
		"version":         c.Version,
		"created_at":      c.CreatedAt,
		"updated_at":      c.UpdatedAt,
		"created_by":      c.CreatedBy,
		"updated_by":      c.UpdatedBy,
		"agent_id":        c.AgentID,
		"collection_date": c.Date,
		"driver_name":     c.DriverName,
		"total_weight":    c.TotalWeight,
		"total_amount":    c.TotalAmount.String(),
		"notes":           c.Notes,
	}
}

// CollectionRepo implements collections.Repository.
type CollectionRepo struct {
	txManager *postgres.TxManager
}

var _ collections.Repository = (*CollectionRepo)(nil)

// NewCollectionRepo creates the collection repository.
func NewCollectionRepo(txManager *postgres.TxManager) *CollectionRepo {
	return &CollectionRepo{txManager: txManager}
}

func (r *CollectionRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts the header only.
func (r *CollectionRepo) Create(ctx context.Context, c *collections.Collection) error {
	q := postgres.Builder().
		Insert(collectionsTable).
		SetMap(collectionValues(c))
	_, err := postgres.Exec(ctx, r.querier(ctx), q, collectionEntity, "insert")
	return err
}

// Update writes the header with optimistic locking. The legacy aggregates are cleared
// because the items are authoritative after an edit.
func (r *CollectionRepo) Update(ctx context.Context, c *collections.Collection) error {
	values := postgres.PickColumns(collectionValues(c), collectionColumns, immutableColumns...)
	values["total_cost"] = nil
	values["amount"] = nil

	q := postgres.Builder().
		Update(collectionsTable).
		SetMap(values).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": c.ID, "version": c.Version})

	affected, err := postgres.Exec(ctx, r.querier(ctx), q, collectionEntity, "update")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewConcurrentModification(collectionEntity, c.ID)
	}
	return nil
}

// ReplaceItems deletes the collection's items and inserts items.
func (r *CollectionRepo) ReplaceItems(ctx context.Context, collectionID id.ID, items []collections.Item) error {
	querier := r.querier(ctx)

	del := postgres.Builder().Delete(collectionItemsTable).Where(squirrel.Eq{"collection_id": collectionID})
	if _, err := postgres.Exec(ctx, querier, del, "collection items", "delete"); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	ins := postgres.Builder().
		Insert(collectionItemsTable).
		Columns("id", "collection_id", "line_no", "weight_kg", "price_per_kg", "line_total")
	for _, it := range items {
		ins = ins.Values(it.ID, collectionID, it.LineNo, it.WeightKg, it.PricePerKg, it.LineTotal)
	}
	_, err := postgres.Exec(ctx, querier, ins, "collection items", "insert")
	return err
}

// GetByID returns the collection with its items.
func (r *CollectionRepo) GetByID(ctx context.Context, collectionID id.ID) (*collections.Collection, error) {
	var row collectionRow
	q := postgres.Builder().
		Select(collectionColumns...).
		From(collectionsTable).
		Where(squirrel.Eq{"id": collectionID})
	if err := postgres.GetOne(ctx, r.querier(ctx), &row, q, collectionEntity, collectionID.String()); err != nil {
		return nil, err
	}

	c := row.toDomain()
	items, err := r.items(ctx, []id.ID{collectionID})
	if err != nil {
		return nil, err
	}
	c.Items = items[collectionID]
	return c, nil
}

// Delete removes the collection, items cascade.
func (r *CollectionRepo) Delete(ctx context.Context, collectionID id.ID) error {
	q := postgres.Builder().Delete(collectionsTable).Where(squirrel.Eq{"id": collectionID})
	affected, err := postgres.Exec(ctx, r.querier(ctx), q, collectionEntity, "delete")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewNotFound(collectionEntity, collectionID.String())
	}
	return nil
}

func collectionListQuery(filter domain.ListFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(collectionColumns...).
		From(collectionsTable)
	if filter.AgentID != nil {
		q = q.Where(squirrel.Eq{"agent_id": *filter.AgentID})
	}
	q = postgres.WhereDateRange(q, "collection_date", filter.Period)
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"driver_name": pattern},
			squirrel.ILike{"notes": pattern},
		})
	}
	return q
}

// List returns collections with their items, newest first.
func (r *CollectionRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*collections.Collection], error) {
	result := domain.ListResult[*collections.Collection]{Limit: filter.Limit, Offset: filter.Offset}

	orderBy, err := postgres.OrderBy(filter.OrderBy,
		[]string{"collection_date", "driver_name", "total_weight", "created_at"}, "collection_date DESC")
	if err != nil {
		return result, err
	}

	q := collectionListQuery(filter)
	querier := r.querier(ctx)
	if result.TotalCount, err = postgres.Count(ctx, querier, q); err != nil {
		return result, err
	}

	var rows []collectionRow
	q = postgres.Paginate(q.OrderBy(orderBy, "created_at DESC"), filter.Limit, filter.Offset)
	if err := postgres.SelectAll(ctx, querier, &rows, q, collectionEntity); err != nil {
		return result, err
	}

	ids := make([]id.ID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	items, err := r.items(ctx, ids)
	if err != nil {
		return result, err
	}

	result.Items = make([]*collections.Collection, len(rows))
	for i := range rows {
		c := rows[i].toDomain()
		c.Items = items[c.ID]
		result.Items[i] = c
	}
	return result, nil
}

// items loads the items of the given collections grouped by collection id.
func (r *CollectionRepo) items(ctx context.Context, collectionIDs []id.ID) (map[id.ID][]collections.Item, error) {
	out := make(map[id.ID][]collections.Item, len(collectionIDs))
	if len(collectionIDs) == 0 {
		return out, nil
	}

	q := postgres.Builder().
		Select("id", "collection_id", "line_no", "weight_kg", "price_per_kg", "line_total").
		From(collectionItemsTable).
		Where(squirrel.Eq{"collection_id": collectionIDs}).
		OrderBy("collection_id", "line_no")

	var items []collections.Item
	if err := postgres.SelectAll(ctx, r.querier(ctx), &items, q, "collection items"); err != nil {
		return nil, fmt.Errorf("load collection items: %w", err)
	}
	for _, it := range items {
		out[it.CollectionID] = append(out[it.CollectionID], it)
	}
	return out, nil
}
