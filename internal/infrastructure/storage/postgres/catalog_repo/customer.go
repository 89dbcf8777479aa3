package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"palmledger/internal/domain"
	"palmledger/internal/domain/orders"
	"palmledger/internal/infrastructure/storage/postgres"
)

const customersTable = "customers"

// CustomerRepo implements orders.CustomerRepository.
type CustomerRepo struct {
	*BaseCatalogRepo[*orders.Customer]
}

var _ orders.CustomerRepository = (*CustomerRepo)(nil)

// NewCustomerRepo creates a new customer repository.
func NewCustomerRepo(txManager *postgres.TxManager) *CustomerRepo {
	return &CustomerRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			customersTable,
			"customer",
			postgres.ExtractDBColumns[orders.Customer](),
			func() *orders.Customer { return &orders.Customer{} },
		),
	}
}

// List retrieves customers matching name, phone or address.
func (r *CustomerRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*orders.Customer], error) {
	result := domain.ListResult[*orders.Customer]{Limit: filter.Limit, Offset: filter.Offset}

	q := r.baseSelect()
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"phone": pattern},
			squirrel.ILike{"address": pattern},
		})
	}

	orderBy, err := postgres.OrderBy(filter.OrderBy, []string{"name", "created_at"}, "name ASC")
	if err != nil {
		return result, err
	}

	total, err := r.page(ctx, q, orderBy, filter.Limit, filter.Offset, &result.Items)
	if err != nil {
		return result, err
	}
	result.TotalCount = total
	return result, nil
}
