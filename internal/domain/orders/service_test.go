package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/numerator"
	"palmledger/internal/core/tx"
	"palmledger/internal/domain"
)

type memRepo struct {
	mu        sync.Mutex
	orders    map[id.ID]*Order
	items     map[id.ID][]OrderItem
	payments  map[id.ID]*Payment
	receipts  map[id.ID]*Receipt
	events    []DeliveryEvent
	customers map[id.ID]*Customer
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:    map[id.ID]*Order{},
		items:     map[id.ID][]OrderItem{},
		payments:  map[id.ID]*Payment{},
		receipts:  map[id.ID]*Receipt{},
		customers: map[id.ID]*Customer{},
	}
}

func (r *memRepo) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	cp.Items = nil
	r.orders[o.ID] = &cp
	return nil
}

func (r *memRepo) Update(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok {
		return apperror.NewNotFound(orderEntity, o.ID.String())
	}
	if stored.Version != o.Version {
		return apperror.NewConcurrentModification(orderEntity, o.ID)
	}
	cp := *o
	cp.Items = nil
	cp.Version++
	r.orders[o.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, orderID id.ID) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound(orderEntity, orderID.String())
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) Lock(ctx context.Context, orderID id.ID) (*Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *memRepo) Delete(_ context.Context, orderID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, orderID)
	delete(r.items, orderID)
	return nil
}

func (r *memRepo) List(_ context.Context, filter OrderFilter) (domain.ListResult[*Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := domain.ListResult[*Order]{Limit: filter.Limit}
	for _, o := range r.orders {
		if filter.Unpaid && !o.BalanceDue.IsPositive() {
			continue
		}
		cp := *o
		res.Items = append(res.Items, &cp)
	}
	res.TotalCount = int64(len(res.Items))
	return res, nil
}

func (r *memRepo) CountByCustomer(_ context.Context, customerID id.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ReplaceItems(_ context.Context, orderID id.ID, items []OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[orderID] = append([]OrderItem(nil), items...)
	return nil
}

func (r *memRepo) Items(_ context.Context, orderID id.ID) ([]OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderItem(nil), r.items[orderID]...), nil
}

func (r *memRepo) InsertPayment(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *memRepo) GetPayment(_ context.Context, paymentID id.ID) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return nil, apperror.NewNotFound(paymentEntity, paymentID.String())
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) DeletePayment(_ context.Context, paymentID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.payments, paymentID)
	return nil
}

func (r *memRepo) Payments(_ context.Context, orderID id.ID) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memRepo) SumPayments(ctx context.Context, orderID id.ID) (decimal.Decimal, error) {
	payments, _ := r.Payments(ctx, orderID)
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

func (r *memRepo) SetAmounts(_ context.Context, orderID id.ID, paid, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	o.AmountPaid, o.BalanceDue = paid, balance
	o.Version++
	return nil
}

func (r *memRepo) SetDelivery(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.orders[o.ID]
	stored.DeliveryStatus = o.DeliveryStatus
	stored.DeliveryDate = o.DeliveryDate
	stored.DeliveredBy = o.DeliveredBy
	stored.DeliveryNotes = o.DeliveryNotes
	stored.Version++
	return nil
}

func (r *memRepo) InsertDeliveryEvent(_ context.Context, e *DeliveryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *memRepo) DeliveryEvents(_ context.Context, orderID id.ID) ([]DeliveryEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DeliveryEvent
	for _, e := range r.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) InsertReceipt(_ context.Context, rc *Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rc
	r.receipts[rc.ID] = &cp
	return nil
}

func (r *memRepo) GetReceipt(_ context.Context, receiptID id.ID) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.receipts[receiptID]
	if !ok {
		return nil, apperror.NewNotFound(receiptEntity, receiptID.String())
	}
	cp := *rc
	return &cp, nil
}

func (r *memRepo) ActiveReceipt(_ context.Context, orderID id.ID) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rc := range r.receipts {
		if rc.OrderID == orderID && rc.Status == ReceiptActive {
			cp := *rc
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) VoidReceipt(_ context.Context, receiptID id.ID, at time.Time, by string, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc := r.receipts[receiptID]
	rc.Status = ReceiptVoid
	rc.VoidedAt, rc.VoidedBy, rc.VoidReason = &at, &by, reason
	return nil
}

func (r *memRepo) Receipts(_ context.Context, orderID id.ID) ([]Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Receipt
	for _, rc := range r.receipts {
		if rc.OrderID == orderID {
			out = append(out, *rc)
		}
	}
	return out, nil
}

type memCustomers struct{ repo *memRepo }

func (c memCustomers) Create(_ context.Context, cu *Customer) error {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()
	cp := *cu
	c.repo.customers[cu.ID] = &cp
	return nil
}

func (c memCustomers) Update(ctx context.Context, cu *Customer) error {
	return c.Create(ctx, cu)
}

func (c memCustomers) GetByID(_ context.Context, customerID id.ID) (*Customer, error) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()
	cu, ok := c.repo.customers[customerID]
	if !ok {
		return nil, apperror.NewNotFound(customerEntity, customerID.String())
	}
	cp := *cu
	return &cp, nil
}

func (c memCustomers) Delete(_ context.Context, customerID id.ID) error {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()
	delete(c.repo.customers, customerID)
	return nil
}

func (c memCustomers) List(context.Context, domain.ListFilter) (domain.ListResult[*Customer], error) {
	return domain.ListResult[*Customer]{}, nil
}

func adminCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "admin-1", Role: appctx.RoleAdmin})
}

type fixture struct {
	svc      *Service
	repo     *memRepo
	customer *Customer
	numbers  *numerator.MockGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	numbers := &numerator.MockGenerator{}
	svc := NewService(repo, memCustomers{repo}, tx.Nop{}, numbers, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }

	c := &Customer{Name: "Kofi Mensah"}
	require.NoError(t, svc.CreateCustomer(adminCtx(), c))
	return &fixture{svc: svc, repo: repo, customer: c, numbers: numbers}
}

func (f *fixture) order(t *testing.T, total string) *Order {
	t.Helper()
	o, err := f.svc.CreateOrder(adminCtx(), Draft{
		CustomerID: f.customer.ID,
		OrderDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Items: []OrderItem{
			{Description: "Palm oil, 25L", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString(total)},
		},
	})
	require.NoError(t, err)
	return o
}

func pay(t *testing.T, svc *Service, orderID id.ID, amount string) *Order {
	t.Helper()
	o, err := svc.AddPayment(adminCtx(), orderID, &Payment{Amount: decimal.RequireFromString(amount)})
	require.NoError(t, err)
	return o
}

func TestCreateOrder_TotalsAndNumber(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.CreateOrder(adminCtx(), Draft{
		CustomerID: f.customer.ID,
		OrderDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Items: []OrderItem{
			{Description: "Crude oil", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.RequireFromString("125.50")},
			{Description: "Kernel", Quantity: decimal.RequireFromString("2.5"), UnitPrice: decimal.NewFromInt(40)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "EDC-ORD-2024-00001", o.OrderNumber)
	assert.Equal(t, DeliveryPending, o.DeliveryStatus)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(602)))
	assert.True(t, o.BalanceDue.Equal(o.TotalAmount))
	assert.True(t, o.AmountPaid.IsZero())
	require.Len(t, f.repo.items[o.ID], 2)
	assert.Equal(t, 2, f.repo.items[o.ID][1].LineNo)
}

func TestCreateOrder_UsesCachedNumbering(t *testing.T) {
	f := newFixture(t)
	var got *numerator.Options
	f.numbers.GetNextNumberFunc = func(_ context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error) {
		got = opts
		return cfg.Format(period, 7), nil
	}

	o := f.order(t, "100")
	assert.Equal(t, "EDC-ORD-2024-00007", o.OrderNumber)
	require.NotNil(t, got)
	assert.Equal(t, numerator.StrategyCached, got.Strategy)
}

func TestCreateOrder_UnknownCustomer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateOrder(adminCtx(), Draft{
		CustomerID: id.New(),
		OrderDate:  time.Now(),
		Items:      []OrderItem{{Description: "x", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)}},
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestPayments_BalanceFollowsPayments(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "1000")

	pay(t, f.svc, o.ID, "400")
	after := pay(t, f.svc, o.ID, "300")
	assert.True(t, after.AmountPaid.Equal(decimal.NewFromInt(700)))
	assert.True(t, after.BalanceDue.Equal(decimal.NewFromInt(300)))

	var second id.ID
	for pid, p := range f.repo.payments {
		if p.Amount.Equal(decimal.NewFromInt(300)) {
			second = pid
		}
	}
	after, err := f.svc.DeletePayment(adminCtx(), o.ID, second)
	require.NoError(t, err)
	assert.True(t, after.AmountPaid.Equal(decimal.NewFromInt(400)))
	assert.True(t, after.BalanceDue.Equal(decimal.NewFromInt(600)))

	stored, _ := f.repo.GetByID(context.Background(), o.ID)
	assert.True(t, stored.BalanceDue.Equal(decimal.NewFromInt(600)))
}

func TestDeletePayment_OtherOrdersPaymentNotFound(t *testing.T) {
	f := newFixture(t)
	a := f.order(t, "500")
	b := f.order(t, "800")
	paidB := pay(t, f.svc, b.ID, "200")

	var paymentOfB id.ID
	for pid := range f.repo.payments {
		paymentOfB = pid
	}

	_, err := f.svc.DeletePayment(adminCtx(), a.ID, paymentOfB)
	assert.True(t, apperror.IsNotFound(err))

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.True(t, stored.AmountPaid.Equal(paidB.AmountPaid))
	assert.Len(t, f.repo.payments, 1)
}

func TestAddPayment_Refusals(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "500")

	_, err := f.svc.AddPayment(adminCtx(), o.ID, &Payment{Amount: decimal.NewFromInt(501)})
	assert.True(t, apperror.HasCode(err, apperror.CodeOverpayment))

	_, err = f.svc.AddPayment(adminCtx(), o.ID, &Payment{Amount: decimal.Zero})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.UpdateDelivery(adminCtx(), o.ID, DeliveryUpdate{Status: DeliveryCancelled})
	require.NoError(t, err)
	_, err = f.svc.AddPayment(adminCtx(), o.ID, &Payment{Amount: decimal.NewFromInt(10)})
	assert.True(t, apperror.HasCode(err, apperror.CodeOrderCancelled))
}

func TestAddPayment_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "100")
	agent := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u", Role: appctx.RoleAgent, AgentID: id.New().String()})
	_, err := f.svc.AddPayment(agent, o.ID, &Payment{Amount: decimal.NewFromInt(1)})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestUpdateOrder_RecomputesBalance(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "1000")
	pay(t, f.svc, o.ID, "400")

	updated, err := f.svc.UpdateOrder(adminCtx(), o.ID, Draft{
		CustomerID: f.customer.ID,
		OrderDate:  o.OrderDate,
		Items: []OrderItem{
			{Description: "Palm oil, 25L", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(600)},
		},
	})
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(1200)))
	assert.True(t, updated.BalanceDue.Equal(decimal.NewFromInt(800)))

	_, err = f.svc.UpdateOrder(adminCtx(), o.ID, Draft{
		CustomerID: f.customer.ID,
		OrderDate:  o.OrderDate,
		Items:      []OrderItem{{Description: "Discounted", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeOverpayment))
}

func TestUpdateOrder_StaleVersion(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "100")
	_, err := f.svc.UpdateOrder(adminCtx(), o.ID, Draft{
		CustomerID: f.customer.ID,
		OrderDate:  o.OrderDate,
		Items:      []OrderItem{{Description: "x", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)}},
		Version:    o.Version + 5,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeConcurrentModification))
}

func TestDeleteOrder_RefusedWhenPaid(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "100")
	pay(t, f.svc, o.ID, "10")
	err := f.svc.DeleteOrder(adminCtx(), o.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	err = f.svc.DeleteCustomer(adminCtx(), f.customer.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestUpdateDelivery_AppendsEvents(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "100")
	day := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	driver := "Yaw"

	_, err := f.svc.UpdateDelivery(adminCtx(), o.ID, DeliveryUpdate{Status: DeliveryPartial, DeliveredBy: &driver})
	require.NoError(t, err)
	_, err = f.svc.UpdateDelivery(adminCtx(), o.ID, DeliveryUpdate{Status: DeliveryPartial})
	require.NoError(t, err)

	_, err = f.svc.UpdateDelivery(adminCtx(), o.ID, DeliveryUpdate{Status: DeliveryDelivered})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "delivered needs a date")

	done, err := f.svc.UpdateDelivery(adminCtx(), o.ID, DeliveryUpdate{Status: DeliveryDelivered, Date: &day})
	require.NoError(t, err)
	assert.Equal(t, DeliveryDelivered, done.DeliveryStatus)
	assert.Equal(t, day, *done.DeliveryDate)
	assert.Equal(t, "Yaw", *done.DeliveredBy)

	_, err = f.svc.UpdateDelivery(adminCtx(), o.ID, DeliveryUpdate{Status: DeliveryCancelled})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	events, _ := f.repo.DeliveryEvents(context.Background(), o.ID)
	require.Len(t, events, 3)
	assert.Equal(t, DeliveryPending, events[0].FromStatus)
	assert.Equal(t, DeliveryDelivered, events[2].Status)
	assert.Equal(t, day, events[2].OccurredAt)
}

func TestReceipts_IssueVoidReissue(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "1000")

	_, err := f.svc.IssueReceipt(adminCtx(), o.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule), "nothing paid yet")

	pay(t, f.svc, o.ID, "250")
	r, err := f.svc.IssueReceipt(adminCtx(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "EDC-REC-2024-000001", r.ReceiptNumber)
	assert.True(t, r.Amount.Equal(decimal.NewFromInt(250)))

	_, err = f.svc.IssueReceipt(adminCtx(), o.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeActiveReceiptExists))

	pay(t, f.svc, o.ID, "250")
	second, err := f.svc.ReissueReceipt(adminCtx(), o.ID, "second instalment")
	require.NoError(t, err)
	assert.Equal(t, "EDC-REC-2024-000002", second.ReceiptNumber)
	assert.True(t, second.Amount.Equal(decimal.NewFromInt(500)))

	first, _ := f.repo.GetReceipt(context.Background(), r.ID)
	assert.Equal(t, ReceiptVoid, first.Status)
	assert.Equal(t, "second instalment", *first.VoidReason)

	voided, err := f.svc.VoidReceipt(adminCtx(), second.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ReceiptVoid, voided.Status)
	_, err = f.svc.VoidReceipt(adminCtx(), second.ID, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestGetDetail_AndReceiptDocument(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "1000")
	pay(t, f.svc, o.ID, "400")
	r, err := f.svc.IssueReceipt(adminCtx(), o.ID)
	require.NoError(t, err)

	gotReceipt, d, err := f.svc.ReceiptWithDetail(adminCtx(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ReceiptNumber, gotReceipt.ReceiptNumber)
	assert.Equal(t, "Kofi Mensah", d.Customer.Name)
	assert.Len(t, d.Items, 1)
	assert.Len(t, d.Payments, 1)
	require.NotNil(t, d.ActiveReceipt())

	doc := ReceiptDocument(gotReceipt, d, "Palm Co")
	assert.Equal(t, []string{TableItems, TablePayments}, doc.TableNames())
	assert.Equal(t, "EDC-REC-2024-000001", doc.Header[0].Value)
	assert.Equal(t, "600.00", doc.Summary[2].Value)
}
