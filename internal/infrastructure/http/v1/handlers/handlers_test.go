package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/entity"
	"palmledger/internal/core/id"
	"palmledger/internal/domain"
	"palmledger/internal/domain/auth"
	"palmledger/internal/domain/collections"
	"palmledger/internal/domain/orders"
	"palmledger/internal/domain/reconciliation"
	"palmledger/internal/domain/reports"
	"palmledger/internal/infrastructure/http/v1/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var admin = &appctx.UserContext{UserID: "admin-1", Role: appctx.RoleAdmin}

// newEngine mounts the error middleware and signs every request in as user.
func newEngine(user *appctx.UserContext) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(func(c *gin.Context) {
		if user != nil {
			c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		}
		c.Next()
	})
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// --- Collections ---

type fakeCollections struct {
	CollectionService
	created []collections.Draft
	stored  *collections.Collection
}

func (f *fakeCollections) Create(_ context.Context, d collections.Draft) (*collections.Collection, error) {
	f.created = append(f.created, d)
	c := &collections.Collection{
		BaseEntity: entity.NewBaseEntity(),
		AgentID:    d.AgentID,
		Date:       d.Date,
		DriverName: d.DriverName,
	}
	for i, r := range d.Breakdown.Rows() {
		c.Items = append(c.Items, collections.Item{LineNo: i + 1, WeightKg: r.WeightKg, PricePerKg: r.PricePerKg})
	}
	return c, nil
}

func (f *fakeCollections) GetByID(_ context.Context, collectionID id.ID) (*collections.Collection, error) {
	if f.stored == nil || f.stored.ID != collectionID {
		return nil, apperror.NewNotFound("collection", collectionID.String())
	}
	return f.stored, nil
}

func collectionEngine(svc CollectionService) *gin.Engine {
	r := newEngine(admin)
	h := NewCollectionHandler(NewBaseHandler(), svc)
	r.POST("/collections", h.Create)
	r.GET("/collections/:id", h.Get)
	r.GET("/collections/:id/breakdown", h.Breakdown)
	return r
}

func TestCollectionCreate_InfersModeFromRows(t *testing.T) {
	svc := &fakeCollections{}
	r := collectionEngine(svc)

	body := `{"agentId":"` + id.New().String() + `","date":"2024-03-05","driverName":"Kofi",
		"rows":[{"weightKg":"100","pricePerKg":"2"},{"weightKg":"50","pricePerKg":"3"}]}`
	w := do(r, http.MethodPost, "/collections", body)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, svc.created, 1)
	d := svc.created[0]
	assert.Equal(t, collections.ModeBreakdown, d.Breakdown.Mode())
	assert.True(t, d.Breakdown.TotalAmount().Equal(decimal.NewFromInt(350)))
	assert.Equal(t, "2024-03-05", d.Date.Format("2006-01-02"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "350", resp["displayAmount"])
}

func TestCollectionCreate_SimpleModeWithSeveralRowsIsRejected(t *testing.T) {
	svc := &fakeCollections{}
	r := collectionEngine(svc)

	body := `{"agentId":"` + id.New().String() + `","date":"2024-03-05","mode":"SIMPLE",
		"rows":[{"weightKg":"1","pricePerKg":"1"},{"weightKg":"2","pricePerKg":"1"}]}`
	w := do(r, http.MethodPost, "/collections", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decodeError(t, w).Code)
	assert.Empty(t, svc.created)
}

func TestCollectionCreate_BindingErrorsCarryFieldDetails(t *testing.T) {
	svc := &fakeCollections{}
	r := collectionEngine(svc)

	w := do(r, http.MethodPost, "/collections", `{"date":"2024-03-05","mode":"MIXED"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, apperror.CodeValidation, body.Code)
	assert.Equal(t, "required", body.Details["agentId"])
	assert.Equal(t, "required", body.Details["rows"])
	assert.Equal(t, "oneof", body.Details["mode"])
	assert.Empty(t, svc.created)
}

func TestCollectionBreakdown_RebuildsRows(t *testing.T) {
	stored := &collections.Collection{
		BaseEntity: entity.NewBaseEntity(),
		AgentID:    id.New(),
		Items: []collections.Item{
			{LineNo: 1, WeightKg: decimal.NewFromInt(100), PricePerKg: decimal.NewFromInt(2)},
			{LineNo: 2, WeightKg: decimal.NewFromInt(50), PricePerKg: decimal.NewFromInt(3)},
		},
	}
	r := collectionEngine(&fakeCollections{stored: stored})

	w := do(r, http.MethodGet, "/collections/"+stored.ID.String()+"/breakdown", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Mode string `json:"mode"`
		Rows []struct {
			LineTotal string `json:"lineTotal"`
		} `json:"rows"`
		TotalWeight string `json:"totalWeight"`
		TotalAmount string `json:"totalAmount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(collections.ModeBreakdown), resp.Mode)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "200", resp.Rows[0].LineTotal)
	assert.Equal(t, "150", resp.TotalWeight)
	assert.Equal(t, "350", resp.TotalAmount)
}

func TestParseID_RejectsMalformedIDs(t *testing.T) {
	r := collectionEngine(&fakeCollections{})

	w := do(r, http.MethodGet, "/collections/not-a-uuid", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, apperror.CodeInvalidInput, body.Code)
}

func TestCollectionGet_NotFound(t *testing.T) {
	r := collectionEngine(&fakeCollections{})

	w := do(r, http.MethodGet, "/collections/"+id.New().String(), "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decodeError(t, w).Code)
}

// --- Orders ---

type fakeOrders struct {
	OrderService
	order    *orders.Order
	payments []*orders.Payment
}

func (f *fakeOrders) AddPayment(_ context.Context, orderID id.ID, p *orders.Payment) (*orders.Order, error) {
	if f.order == nil || f.order.ID != orderID {
		return nil, apperror.NewNotFound("order", orderID.String())
	}
	paid := f.order.AmountPaid.Add(p.Amount)
	if paid.GreaterThan(f.order.TotalAmount) {
		return nil, apperror.NewBusinessRule(apperror.CodeOverpayment, "payment exceeds balance due")
	}
	p.ID = id.New()
	p.OrderID = orderID
	f.payments = append(f.payments, p)
	f.order.ApplyPaid(paid)
	return f.order, nil
}

func (f *fakeOrders) DeletePayment(_ context.Context, orderID, paymentID id.ID) (*orders.Order, error) {
	for i, p := range f.payments {
		if p.ID != paymentID {
			continue
		}
		if p.OrderID != orderID {
			break
		}
		f.payments = append(f.payments[:i], f.payments[i+1:]...)
		f.order.ApplyPaid(f.order.AmountPaid.Sub(p.Amount))
		return f.order, nil
	}
	return nil, apperror.NewNotFound("payment", paymentID.String())
}

func orderEngine(svc OrderService) *gin.Engine {
	r := newEngine(admin)
	h := NewOrderHandler(NewBaseHandler(), svc, "PalmLedger")
	r.POST("/orders/:id/payments", h.AddPayment)
	r.DELETE("/orders/:id/payments/:paymentId", h.DeletePayment)
	return r
}

func TestAddPayment_ReturnsOrderAndPayment(t *testing.T) {
	order := &orders.Order{BaseEntity: entity.NewBaseEntity(), TotalAmount: decimal.NewFromInt(1000)}
	order.ApplyPaid(decimal.Zero)
	svc := &fakeOrders{order: order}
	r := orderEngine(svc)

	w := do(r, http.MethodPost, "/orders/"+order.ID.String()+"/payments", `{"amount":"400","method":"MOMO"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Order struct {
			AmountPaid string `json:"amountPaid"`
			BalanceDue string `json:"balanceDue"`
		} `json:"order"`
		Payment struct {
			Method string `json:"method"`
		} `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "400", resp.Order.AmountPaid)
	assert.Equal(t, "600", resp.Order.BalanceDue)
	assert.Equal(t, "MOMO", resp.Payment.Method)
	require.Len(t, svc.payments, 1)
}

func TestAddPayment_OverpaymentIsUnprocessable(t *testing.T) {
	order := &orders.Order{BaseEntity: entity.NewBaseEntity(), TotalAmount: decimal.NewFromInt(100)}
	r := orderEngine(&fakeOrders{order: order})

	w := do(r, http.MethodPost, "/orders/"+order.ID.String()+"/payments", `{"amount":"150"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeOverpayment, decodeError(t, w).Code)
}

func TestAddPayment_RejectsUnknownMethod(t *testing.T) {
	order := &orders.Order{BaseEntity: entity.NewBaseEntity(), TotalAmount: decimal.NewFromInt(100)}
	svc := &fakeOrders{order: order}
	r := orderEngine(svc)

	w := do(r, http.MethodPost, "/orders/"+order.ID.String()+"/payments", `{"amount":"10","method":"CHEQUE"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "oneof", decodeError(t, w).Details["method"])
	assert.Empty(t, svc.payments)
}

func TestDeletePayment_ScopedToPathOrder(t *testing.T) {
	order := &orders.Order{BaseEntity: entity.NewBaseEntity(), TotalAmount: decimal.NewFromInt(1000)}
	order.ApplyPaid(decimal.Zero)
	svc := &fakeOrders{order: order}
	r := orderEngine(svc)

	w := do(r, http.MethodPost, "/orders/"+order.ID.String()+"/payments", `{"amount":"250"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	paymentID := svc.payments[0].ID.String()

	w = do(r, http.MethodDelete, "/orders/"+id.New().String()+"/payments/"+paymentID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.Len(t, svc.payments, 1)

	w = do(r, http.MethodDelete, "/orders/"+order.ID.String()+"/payments/"+paymentID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, svc.payments)
	assert.True(t, order.BalanceDue.Equal(decimal.NewFromInt(1000)))
}

// --- Reconciliation ---

type fakeReconciliation struct {
	ReconciliationService
	calls  []string
	record *reconciliation.Reconciliation
}

func (f *fakeReconciliation) UpdateStatus(_ context.Context, _ id.ID, status reconciliation.Status, version int) (*reconciliation.Reconciliation, error) {
	f.calls = append(f.calls, "status")
	if version != f.record.Version {
		return nil, apperror.NewConcurrentModification("reconciliation", f.record.ID.String())
	}
	f.record.Status = status
	f.record.Version++
	return f.record, nil
}

func (f *fakeReconciliation) UpdateComments(_ context.Context, _ id.ID, comments string, version int) (*reconciliation.Reconciliation, error) {
	f.calls = append(f.calls, "comments")
	if version != f.record.Version {
		return nil, apperror.NewConcurrentModification("reconciliation", f.record.ID.String())
	}
	f.record.Comments = &comments
	f.record.Version++
	return f.record, nil
}

func TestReconciliationPatch_AppliesStatusThenComments(t *testing.T) {
	rec := &reconciliation.Reconciliation{ID: id.New(), Status: reconciliation.StatusOpen, Version: 3}
	svc := &fakeReconciliation{record: rec}
	r := newEngine(admin)
	h := NewReconciliationHandler(NewBaseHandler(), svc)
	r.PATCH("/reconciliations/:id", h.Patch)

	w := do(r, http.MethodPatch, "/reconciliations/"+rec.ID.String(),
		`{"status":"RENDERED","comments":"cash counted","version":3}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"status", "comments"}, svc.calls)
	assert.Equal(t, reconciliation.StatusRendered, rec.Status)
	assert.Equal(t, 5, rec.Version)
}

func TestReconciliationPatch_EmptyBodyIsRejected(t *testing.T) {
	svc := &fakeReconciliation{record: &reconciliation.Reconciliation{ID: id.New()}}
	r := newEngine(admin)
	h := NewReconciliationHandler(NewBaseHandler(), svc)
	r.PATCH("/reconciliations/:id", h.Patch)

	w := do(r, http.MethodPatch, "/reconciliations/"+svc.record.ID.String(), `{"version":1}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.calls)
}

// --- Reports ---

type fakeReports struct {
	filter reports.NetPositionFilter
}

func (f *fakeReports) NetPosition(_ context.Context, filter reports.NetPositionFilter) (*reports.NetPositionReport, error) {
	f.filter = filter
	agentID := id.New()
	return reports.Aggregate(reports.Inputs{
		Filter:     filter,
		Advances:   []reports.AdvanceRow{{ID: id.New(), AgentID: agentID, Amount: decimal.NewFromInt(1000)}},
		Expenses:   []reports.ExpenseRow{{ID: id.New(), AgentID: agentID, Amount: decimal.NewFromInt(100)}},
		AgentNames: map[id.ID]string{agentID: `Ama, "North"`},
	}), nil
}

func TestExportNetPosition_CSVAttachment(t *testing.T) {
	svc := &fakeReports{}
	r := newEngine(admin)
	h := NewReportsHandler(NewBaseHandler(), svc, "PalmLedger")
	r.GET("/reports/net-position/export", h.ExportNetPosition)

	w := do(r, http.MethodGet, "/reports/net-position/export?format=csv&from=2024-01-01&to=2024-01-31", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=net-position-2024-01-01-2024-01-31-summary.csv`,
		w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "Agent,"), w.Body.String())
	assert.Contains(t, w.Body.String(), `"Ama, ""North"""`)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), svc.filter.To)
}

func TestExportNetPosition_RejectsUnknownFormat(t *testing.T) {
	r := newEngine(admin)
	h := NewReportsHandler(NewBaseHandler(), &fakeReports{}, "PalmLedger")
	r.GET("/reports/net-position/export", h.ExportNetPosition)

	w := do(r, http.MethodGet, "/reports/net-position/export?format=docx", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "oneof", decodeError(t, w).Details["format"])
}

// --- Auth ---

type fakeAuth struct {
	AuthService
	creds auth.Credentials
}

func (f *fakeAuth) Login(_ context.Context, creds auth.Credentials) (*auth.TokenPair, *auth.User, error) {
	f.creds = creds
	if creds.Password != "correct horse" {
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}
	return &auth.TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"},
		&auth.User{Email: creds.Email, Role: appctx.RoleAdmin}, nil
}

func TestLogin(t *testing.T) {
	svc := &fakeAuth{}
	r := newEngine(nil)
	h := NewAuthHandler(NewBaseHandler(), svc)
	h.RegisterRoutes(r.Group("/auth"), r.Group("/auth"))

	w := do(r, http.MethodPost, "/auth/login", `{"email":"boss@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"accessToken":"a"`)
	assert.Equal(t, "boss@example.com", svc.creds.Email)

	w = do(r, http.MethodPost, "/auth/login", `{"email":"boss@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email", decodeError(t, w).Details["email"])
}

// --- Ledgers ---

func TestList_EmptyResultIsArray(t *testing.T) {
	r := newEngine(admin)
	r.GET("/x", func(c *gin.Context) {
		List(NewBaseHandler(), c, domain.ListResult[*collections.Collection]{Limit: 50})
	})

	w := do(r, http.MethodGet, "/x", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}
