package v1

import (
	"github.com/gin-gonic/gin"

	"palmledger/internal/domain/advances"
	"palmledger/internal/infrastructure/http/v1/handlers"
	"palmledger/internal/infrastructure/http/v1/middleware"
	"palmledger/pkg/logger"
)

// Services are the domain services behind the API.
type Services struct {
	Auth           handlers.AuthService
	Accounts       handlers.AccountService
	Agents         handlers.AgentService
	Advances       handlers.LedgerService[*advances.CashAdvance]
	Expenses       handlers.ExpenseService
	Prices         handlers.PriceService
	Collections    handlers.CollectionService
	Orders         handlers.OrderService
	Reconciliation handlers.ReconciliationService
	Reports        handlers.ReportService
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	Services Services

	// IdempotencyStore backs X-Idempotency-Key replay; nil disables it.
	IdempotencyStore middleware.IdempotencyStore

	// HealthDB is pinged by the readiness probe.
	HealthDB handlers.Database

	CORSOrigins []string

	// CompanyName heads exported reports and printed receipts.
	CompanyName string

	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.HealthDB, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()
	s := cfg.Services

	v1 := router.Group("/api/v1")
	{
		// Protected endpoints: validate JWT, then hold back users with a temporary password.
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))
		protected.Use(middleware.PasswordChangeGate(
			handlers.RouteAuthMe,
			handlers.RouteAuthChangePassword,
			handlers.RouteAuthLogout,
		))
		if cfg.IdempotencyStore != nil {
			protected.Use(middleware.Idempotency(cfg.IdempotencyStore))
		}

		authHandler := handlers.NewAuthHandler(baseHandler, s.Auth)
		authHandler.RegisterRoutes(v1.Group("/auth"), protected.Group("/auth"))

		admin := protected.Group("/admin", adminOnly())
		handlers.NewAdminHandler(baseHandler, s.Accounts).RegisterRoutes(admin)

		registerAgentRoutes(protected.Group("/agents"), handlers.NewAgentHandler(baseHandler, s.Agents))
		registerLedgerRoutes(protected, baseHandler, s)
		registerOrderRoutes(protected, handlers.NewOrderHandler(baseHandler, s.Orders, cfg.CompanyName))
		registerReconciliationRoutes(protected.Group("/reconciliations"),
			handlers.NewReconciliationHandler(baseHandler, s.Reconciliation))

		reportHandler := handlers.NewReportsHandler(baseHandler, s.Reports, cfg.CompanyName)
		reportsGroup := protected.Group("/reports")
		reportsGroup.GET("/net-position", reportHandler.NetPosition)
		reportsGroup.GET("/net-position/export", reportHandler.ExportNetPosition)
	}

	return router
}

// registerAgentRoutes registers the agent directory. Only admins change it.
func registerAgentRoutes(rg *gin.RouterGroup, h *handlers.AgentHandler) {
	RegisterCRUDRoutes(rg, h, adminOnly())
	rg.POST("/:id/restore", adminOnly(), h.Restore)
	rg.POST("/:id/photo", adminOnly(), h.UploadPhoto)
	rg.DELETE("/:id/photo", adminOnly(), h.RemovePhoto)
	rg.GET("/:id/photo-url", h.PhotoURL)
}

// registerLedgerRoutes registers advances, expenses, price changes and collections.
// Agents may write their own records; services enforce the agent scope.
func registerLedgerRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s Services) {
	RegisterCRUDRoutes(rg.Group("/advances"), handlers.NewAdvanceHandler(base, s.Advances))

	expenseHandler := handlers.NewExpenseHandler(base, s.Expenses)
	expenseGroup := rg.Group("/expenses")
	expenseGroup.GET("/types", expenseHandler.Types)
	RegisterCRUDRoutes(expenseGroup, expenseHandler)

	priceHandler := handlers.NewPriceHandler(base, s.Prices)
	priceGroup := rg.Group("/price-changes")
	priceGroup.GET("/current", priceHandler.Current)
	RegisterCRUDRoutes(priceGroup, priceHandler)

	collectionHandler := handlers.NewCollectionHandler(base, s.Collections)
	collectionGroup := rg.Group("/collections")
	RegisterCRUDRoutes(collectionGroup, collectionHandler)
	collectionGroup.GET("/:id/breakdown", collectionHandler.Breakdown)
}

// registerOrderRoutes registers customers, orders and receipts. The whole area is admin only.
func registerOrderRoutes(rg *gin.RouterGroup, h *handlers.OrderHandler) {
	customers := rg.Group("/customers", adminOnly())
	customers.GET("", h.ListCustomers)
	customers.POST("", h.CreateCustomer)
	customers.GET("/:id", h.GetCustomer)
	customers.PUT("/:id", h.UpdateCustomer)
	customers.DELETE("/:id", h.DeleteCustomer)

	ordersGroup := rg.Group("/orders", adminOnly())
	ordersGroup.GET("", h.ListOrders)
	ordersGroup.POST("", h.CreateOrder)
	ordersGroup.GET("/:id", h.GetOrder)
	ordersGroup.PUT("/:id", h.UpdateOrder)
	ordersGroup.DELETE("/:id", h.DeleteOrder)
	ordersGroup.POST("/:id/payments", h.AddPayment)
	ordersGroup.DELETE("/:id/payments/:paymentId", h.DeletePayment)
	ordersGroup.POST("/:id/delivery", h.UpdateDelivery)
	ordersGroup.POST("/:id/receipts", h.IssueReceipt)
	ordersGroup.POST("/:id/receipts/reissue", h.ReissueReceipt)

	receipts := rg.Group("/receipts", adminOnly())
	receipts.POST("/:id/void", h.VoidReceipt)
	receipts.GET("/:id/pdf", h.ReceiptPDF)
}

// registerReconciliationRoutes registers monthly reconciliations. Reads are agent scoped;
// generation and edits are admin only.
func registerReconciliationRoutes(rg *gin.RouterGroup, h *handlers.ReconciliationHandler) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/generate", adminOnly(), h.Generate)
	rg.PATCH("/:id", adminOnly(), h.Patch)
}
