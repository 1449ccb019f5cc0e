// Package router assembles the gin engine: middleware chain, public system
// routes and the tenant-scoped ledger API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/interfaces/http/handler"
	"github.com/stockledger/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar registers a set of routes on the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and mounts them under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment, "v1" by default
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithGroupMiddleware adds middleware applied to every API route
func WithGroupMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates a Router on engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues registrar for Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every queued registrar
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup is a named route group with its own middleware
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a group mounted at prefix
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(mw ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, mw...)
	return dg
}

// Handle registers a route for method
func (dg *DomainGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, path, handlers...)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, path, handlers...)
}

// PUT registers a PUT route
func (dg *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPut, path, handlers...)
}

// DELETE registers a DELETE route
func (dg *DomainGroup) DELETE(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodDelete, path, handlers...)
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Handlers are the HTTP entry points mounted by New. A nil Archive leaves
// the export route out.
type Handlers struct {
	Inventory      *handler.InventoryHandler
	Sales          *handler.SaleHandler
	PurchaseOrders *handler.PurchaseOrderHandler
	Reorder        *handler.ReorderHandler
	Archive        *handler.ArchiveHandler
	System         *handler.SystemHandler
}

// Config is everything New needs besides the handlers
type Config struct {
	ServiceName string
	HTTP        config.HTTPConfig
	Auth        middleware.TenantAuthConfig
	Logger      *zap.Logger
	Meter       metric.Meter
	RateLimiter *middleware.TenantRateLimiter
}

// New builds the engine. Order matters: the request id comes first so every
// later layer can log it, and tenant-aware middleware runs after TenantAuth.
func New(cfg Config, h Handlers) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(cfg.Logger),
		middleware.Tracing(cfg.ServiceName),
		logger.GinMiddleware(cfg.Logger),
		middleware.HTTPMetrics(cfg.Meter),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfigFrom(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)

	auth := cfg.Auth
	auth.Logger = cfg.Logger
	r := NewRouter(engine, WithGroupMiddleware(
		middleware.TenantAuth(auth),
		middleware.SpanEnricher(),
		middleware.RateLimit(cfg.RateLimiter),
		middleware.Profiling(),
	))
	for _, g := range ledgerGroups(h) {
		r.Register(g)
	}
	r.Setup()

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"code": "NOT_FOUND", "message": "Route not found", "request_id": middleware.GetRequestID(c)},
		})
	})
	return engine, nil
}

func ledgerGroups(h Handlers) []*DomainGroup {
	items := NewDomainGroup("items", "/items").
		POST("", h.Inventory.RegisterItem).
		GET("", h.Inventory.ListItems).
		GET("/:sku", h.Inventory.GetItem).
		DELETE("/:sku", h.Inventory.RetireItem).
		PUT("/:sku/reorder-parameters", h.Inventory.UpdateReorderParameters).
		GET("/:sku/history", h.Inventory.History).
		POST("/:sku/reconcile", h.Inventory.ReconcileItem)

	ledger := NewDomainGroup("ledger", "/ledger").
		POST("/entries", h.Inventory.Append).
		POST("/adjustments", h.Inventory.Adjust).
		POST("/counts", h.Inventory.SetCount).
		POST("/returns", h.Inventory.RecordReturn).
		POST("/batches", h.Inventory.ApplyBatch)
	if h.Archive != nil {
		ledger.POST("/archives", h.Archive.Export)
	}

	reconciliation := NewDomainGroup("reconciliation", "/reconciliation").
		POST("", h.Inventory.ReconcileTenant)

	sales := NewDomainGroup("sales", "/sales").
		POST("", h.Sales.ProcessSale).
		GET("", h.Sales.ListSales).
		GET("/:id", h.Sales.GetSale)

	orders := NewDomainGroup("purchase-orders", "/purchase-orders").
		POST("", h.PurchaseOrders.Create).
		GET("", h.PurchaseOrders.List).
		POST("/from-suggestions", h.PurchaseOrders.CreateFromSuggestions).
		GET("/:id", h.PurchaseOrders.GetByID).
		POST("/:id/lines", h.PurchaseOrders.AddLine).
		PUT("/:id/lines/:line_id", h.PurchaseOrders.UpdateLineQuantity).
		DELETE("/:id/lines/:line_id", h.PurchaseOrders.RemoveLine).
		POST("/:id/place", h.PurchaseOrders.Place).
		POST("/:id/receive", h.PurchaseOrders.Receive).
		POST("/:id/cancel", h.PurchaseOrders.Cancel)

	reorder := NewDomainGroup("reorder", "/reorder").
		GET("/suggestions", h.Reorder.Suggestions).
		GET("/dead-stock", h.Reorder.DeadStock).
		GET("/settings", h.Reorder.GetSettings).
		PUT("/settings", h.Reorder.UpdateSettings)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.Info)

	return []*DomainGroup{items, ledger, reconciliation, sales, orders, reorder, system}
}
