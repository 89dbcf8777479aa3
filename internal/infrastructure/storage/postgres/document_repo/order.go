package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/orders"
	"palmledger/internal/infrastructure/storage/postgres"
)

const (
	ordersTable         = "orders"
	orderItemsTable     = "order_items"
	paymentsTable       = "order_payments"
	receiptsTable       = "order_receipts"
	deliveryEventsTable = "order_delivery_events"

	orderEntity   = "order"
	paymentEntity = "payment"
	receiptEntity = "receipt"
)

var (
	orderColumns         = postgres.ExtractDBColumns[orders.Order]()
	orderItemColumns     = postgres.ExtractDBColumns[orders.OrderItem]()
	paymentColumns       = postgres.ExtractDBColumns[orders.Payment]()
	receiptColumns       = postgres.ExtractDBColumns[orders.Receipt]()
	deliveryEventColumns = postgres.ExtractDBColumns[orders.DeliveryEvent]()
)

// OrderRepo implements orders.Repository.
type OrderRepo struct {
	txManager *postgres.TxManager
}

var _ orders.Repository = (*OrderRepo)(nil)

// NewOrderRepo creates the order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{txManager: txManager}
}

func (r *OrderRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *OrderRepo) orderSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(orderColumns...).From(ordersTable)
}

// Create inserts the order header.
func (r *OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	q := postgres.Builder().
		Insert(ordersTable).
		SetMap(postgres.PickColumns(postgres.StructToMap(o), orderColumns))
	_, err := postgres.Exec(ctx, r.querier(ctx), q, orderEntity, "insert")
	return err
}

// Update writes header and amounts with optimistic locking.
func (r *OrderRepo) Update(ctx context.Context, o *orders.Order) error {
	q := postgres.Builder().
		Update(ordersTable).
		SetMap(postgres.PickColumns(postgres.StructToMap(o), orderColumns, append(immutableColumns, "order_number")...)).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": o.ID, "version": o.Version})

	affected, err := postgres.Exec(ctx, r.querier(ctx), q, orderEntity, "update")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewConcurrentModification(orderEntity, o.ID)
	}
	return nil
}

// GetByID returns the order header.
func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	var o orders.Order
	q := r.orderSelect().Where(squirrel.Eq{"id": orderID})
	if err := postgres.GetOne(ctx, r.querier(ctx), &o, q, orderEntity, orderID.String()); err != nil {
		return nil, err
	}
	return &o, nil
}

// Lock reads the order with a row lock held until the transaction ends.
func (r *OrderRepo) Lock(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("lock order %s: no transaction in context", orderID)
	}
	var o orders.Order
	q := r.orderSelect().Where(squirrel.Eq{"id": orderID}).Suffix("FOR UPDATE")
	if err := postgres.GetOne(ctx, r.querier(ctx), &o, q, orderEntity, orderID.String()); err != nil {
		return nil, err
	}
	return &o, nil
}

// Delete removes the order, dependent rows cascade.
func (r *OrderRepo) Delete(ctx context.Context, orderID id.ID) error {
	q := postgres.Builder().Delete(ordersTable).Where(squirrel.Eq{"id": orderID})
	affected, err := postgres.Exec(ctx, r.querier(ctx), q, orderEntity, "delete")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewNotFound(orderEntity, orderID.String())
	}
	return nil
}

func orderListQuery(filter orders.OrderFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(orderColumns...).From(ordersTable)
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.DeliveryStatus != "" {
		q = q.Where(squirrel.Eq{"delivery_status": filter.DeliveryStatus})
	}
	if filter.Unpaid {
		q = q.Where(squirrel.Gt{"balance_due": 0})
	}
	q = postgres.WhereDateRange(q, "order_date", filter.Period)
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"order_number": pattern},
			squirrel.ILike{"notes": pattern},
			squirrel.Expr("customer_id IN (SELECT id FROM customers WHERE name ILIKE ?)", pattern),
		})
	}
	return q
}

// List returns order headers, newest first.
func (r *OrderRepo) List(ctx context.Context, filter orders.OrderFilter) (domain.ListResult[*orders.Order], error) {
	result := domain.ListResult[*orders.Order]{Limit: filter.Limit, Offset: filter.Offset}

	q := orderListQuery(filter)
	querier := r.querier(ctx)
	var err error
	if result.TotalCount, err = postgres.Count(ctx, querier, q); err != nil {
		return result, err
	}

	q = postgres.Paginate(q.OrderBy("order_date DESC", "order_number DESC"), filter.Limit, filter.Offset)
	if err := postgres.SelectAll(ctx, querier, &result.Items, q, orderEntity); err != nil {
		return result, err
	}
	return result, nil
}

// CountByCustomer counts the customer's orders.
func (r *OrderRepo) CountByCustomer(ctx context.Context, customerID id.ID) (int64, error) {
	q := postgres.Builder().Select("id").From(ordersTable).Where(squirrel.Eq{"customer_id": customerID})
	return postgres.Count(ctx, r.querier(ctx), q)
}

// ReplaceItems deletes the order's items and inserts items.
func (r *OrderRepo) ReplaceItems(ctx context.Context, orderID id.ID, items []orders.OrderItem) error {
	querier := r.querier(ctx)

	del := postgres.Builder().Delete(orderItemsTable).Where(squirrel.Eq{"order_id": orderID})
	if _, err := postgres.Exec(ctx, querier, del, "order items", "delete"); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	ins := postgres.Builder().Insert(orderItemsTable).Columns(orderItemColumns...)
	for _, it := range items {
		it.OrderID = orderID
		m := postgres.StructToMap(it)
		values := make([]any, len(orderItemColumns))
		for i, col := range orderItemColumns {
			values[i] = m[col]
		}
		ins = ins.Values(values...)
	}
	_, err := postgres.Exec(ctx, querier, ins, "order items", "insert")
	return err
}

// Items returns the order's items in line order.
func (r *OrderRepo) Items(ctx context.Context, orderID id.ID) ([]orders.OrderItem, error) {
	q := postgres.Builder().
		Select(orderItemColumns...).
		From(orderItemsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no")

	var items []orders.OrderItem
	if err := postgres.SelectAll(ctx, r.querier(ctx), &items, q, "order items"); err != nil {
		return nil, err
	}
	return items, nil
}

// InsertPayment stores a payment.
func (r *OrderRepo) InsertPayment(ctx context.Context, p *orders.Payment) error {
	q := postgres.Builder().
		Insert(paymentsTable).
		SetMap(postgres.PickColumns(postgres.StructToMap(p), paymentColumns))
	_, err := postgres.Exec(ctx, r.querier(ctx), q, paymentEntity, "insert")
	return err
}

// GetPayment returns a payment.
func (r *OrderRepo) GetPayment(ctx context.Context, paymentID id.ID) (*orders.Payment, error) {
	var p orders.Payment
	q := postgres.Builder().Select(paymentColumns...).From(paymentsTable).Where(squirrel.Eq{"id": paymentID})
	if err := postgres.GetOne(ctx, r.querier(ctx), &p, q, paymentEntity, paymentID.String()); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePayment removes a payment.
func (r *OrderRepo) DeletePayment(ctx context.Context, paymentID id.ID) error {
	q := postgres.Builder().Delete(paymentsTable).Where(squirrel.Eq{"id": paymentID})
	affected, err := postgres.Exec(ctx, r.querier(ctx), q, paymentEntity, "delete")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewNotFound(paymentEntity, paymentID.String())
	}
	return nil
}

// Payments returns the order's payments, oldest first.
func (r *OrderRepo) Payments(ctx context.Context, orderID id.ID) ([]orders.Payment, error) {
	q := postgres.Builder().
		Select(paymentColumns...).
		From(paymentsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("paid_at", "created_at")

	var payments []orders.Payment
	if err := postgres.SelectAll(ctx, r.querier(ctx), &payments, q, "payments"); err != nil {
		return nil, err
	}
	return payments, nil
}

// SumPayments totals the order's payments.
func (r *OrderRepo) SumPayments(ctx context.Context, orderID id.ID) (decimal.Decimal, error) {
	sql, args, err := postgres.Builder().
		Select("COALESCE(SUM(amount), 0)").
		From(paymentsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build payment sum: %w", err)
	}

	var sum decimal.Decimal
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return sum, nil
}

// SetAmounts writes amount_paid and balance_due and bumps the version.
func (r *OrderRepo) SetAmounts(ctx context.Context, orderID id.ID, paid, balance decimal.Decimal) error {
	return r.touch(ctx, orderID, map[string]any{
		"amount_paid": paid,
		"balance_due": balance,
	})
}

// SetDelivery writes the delivery snapshot and bumps the version.
func (r *OrderRepo) SetDelivery(ctx context.Context, o *orders.Order) error {
	return r.touch(ctx, o.ID, map[string]any{
		"delivery_status": o.DeliveryStatus,
		"delivery_date":   o.DeliveryDate,
		"delivered_by":    o.DeliveredBy,
		"delivery_notes":  o.DeliveryNotes,
		"updated_by":      o.UpdatedBy,
	})
}

func (r *OrderRepo) touch(ctx context.Context, orderID id.ID, values map[string]any) error {
	q := postgres.Builder().
		Update(ordersTable).
		SetMap(values).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": orderID})

	affected, err := postgres.Exec(ctx, r.querier(ctx), q, orderEntity, "update")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewNotFound(orderEntity, orderID.String())
	}
	return nil
}

// InsertDeliveryEvent appends to the delivery history.
func (r *OrderRepo) InsertDeliveryEvent(ctx context.Context, e *orders.DeliveryEvent) error {
	q := postgres.Builder().
		Insert(deliveryEventsTable).
		SetMap(postgres.PickColumns(postgres.StructToMap(e), deliveryEventColumns))
	_, err := postgres.Exec(ctx, r.querier(ctx), q, "delivery event", "insert")
	return err
}

// DeliveryEvents returns the delivery history, oldest first.
func (r *OrderRepo) DeliveryEvents(ctx context.Context, orderID id.ID) ([]orders.DeliveryEvent, error) {
	q := postgres.Builder().
		Select(deliveryEventColumns...).
		From(deliveryEventsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("occurred_at", "id")

	var events []orders.DeliveryEvent
	if err := postgres.SelectAll(ctx, r.querier(ctx), &events, q, "delivery events"); err != nil {
		return nil, err
	}
	return events, nil
}

// InsertReceipt stores a receipt. The partial unique index on ACTIVE receipts rejects a
// second active one with a duplicate error.
func (r *OrderRepo) InsertReceipt(ctx context.Context, rec *orders.Receipt) error {
	q := postgres.Builder().
		Insert(receiptsTable).
		SetMap(postgres.PickColumns(postgres.StructToMap(rec), receiptColumns))
	_, err := postgres.Exec(ctx, r.querier(ctx), q, receiptEntity, "insert")
	return err
}

// GetReceipt returns a receipt.
func (r *OrderRepo) GetReceipt(ctx context.Context, receiptID id.ID) (*orders.Receipt, error) {
	var rec orders.Receipt
	q := postgres.Builder().Select(receiptColumns...).From(receiptsTable).Where(squirrel.Eq{"id": receiptID})
	if err := postgres.GetOne(ctx, r.querier(ctx), &rec, q, receiptEntity, receiptID.String()); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ActiveReceipt returns the order's ACTIVE receipt or nil.
func (r *OrderRepo) ActiveReceipt(ctx context.Context, orderID id.ID) (*orders.Receipt, error) {
	var rec orders.Receipt
	q := postgres.Builder().
		Select(receiptColumns...).
		From(receiptsTable).
		Where(squirrel.Eq{"order_id": orderID, "status": orders.ReceiptActive})
	err := postgres.GetOne(ctx, r.querier(ctx), &rec, q, receiptEntity, orderID.String())
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// VoidReceipt marks an ACTIVE receipt void.
func (r *OrderRepo) VoidReceipt(ctx context.Context, receiptID id.ID, at time.Time, by string, reason *string) error {
	q := postgres.Builder().
		Update(receiptsTable).
		Set("status", orders.ReceiptVoid).
		Set("voided_at", at).
		Set("voided_by", by).
		Set("void_reason", reason).
		Where(squirrel.Eq{"id": receiptID, "status": orders.ReceiptActive})

	affected, err := postgres.Exec(ctx, r.querier(ctx), q, receiptEntity, "void")
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewConflict("receipt is not active").WithDetail("receipt_id", receiptID.String())
	}
	return nil
}

// Receipts returns the order's receipts, newest first.
func (r *OrderRepo) Receipts(ctx context.Context, orderID id.ID) ([]orders.Receipt, error) {
	q := postgres.Builder().
		Select(receiptColumns...).
		From(receiptsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("issued_at DESC")

	var receipts []orders.Receipt
	if err := postgres.SelectAll(ctx, r.querier(ctx), &receipts, q, "receipts"); err != nil {
		return nil, err
	}
	return receipts, nil
}
