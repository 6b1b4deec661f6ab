// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"bookledger/internal/domain/catalogs/title"
	"bookledger/internal/domain/catalogs/warehouse"
	"bookledger/internal/domain/imports"
	"bookledger/internal/domain/ledger"
	"bookledger/internal/domain/transfer"
	"bookledger/internal/domain/valuation"
	"bookledger/internal/infrastructure/http/v1/handlers"
	"bookledger/internal/infrastructure/http/v1/middleware"
	"bookledger/internal/infrastructure/storage/postgres"
	"bookledger/pkg/logger"
)

// RouterConfig holds the constructed services the API exposes.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	Titles     *title.Service
	Warehouses *warehouse.Service
	Movements  *ledger.Service
	Valuation  *valuation.Service
	Transfers  *transfer.Service
	Imports    *imports.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()

	api := router.Group("/api/v1")
	api.Use(middleware.ActorContext())
	{
		registerCatalogRoutes(api, base, cfg)
		registerLedgerRoutes(api, base, cfg)
		registerValuationRoutes(api, base, cfg)
		registerTransferRoutes(api, base, cfg)
		registerImportRoutes(api, base, cfg)
	}

	return router
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	catalog := rg.Group("/catalog")

	titleHandler := handlers.NewTitleHandler(base, cfg.Titles)
	titles := catalog.Group("/titles")
	{
		titles.POST("", titleHandler.Create)
		titles.GET("", titleHandler.List)
		titles.GET("/:id", titleHandler.Get)
		titles.GET("/isbn/:isbn", titleHandler.GetByISBN)
		titles.PUT("/:id", titleHandler.Update)
		titles.DELETE("/:id", titleHandler.Delete)
	}

	warehouseHandler := handlers.NewWarehouseHandler(base, cfg.Warehouses)
	warehouses := catalog.Group("/warehouses")
	{
		warehouses.POST("", warehouseHandler.Create)
		warehouses.GET("", warehouseHandler.List)
		warehouses.GET("/:id", warehouseHandler.Get)
		warehouses.PUT("/:id", warehouseHandler.Update)
		warehouses.DELETE("/:id", warehouseHandler.Delete)
	}
}

func registerLedgerRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	movementHandler := handlers.NewMovementHandler(base, cfg.Movements)
	movements := rg.Group("/movements")
	{
		movements.POST("", movementHandler.Record)
		movements.POST("/batch", movementHandler.Batch)
		movements.POST("/validate", movementHandler.Validate)
		movements.POST("/:id/rollback", movementHandler.Rollback)
		movements.GET("", movementHandler.History)
	}

	stockHandler := handlers.NewStockHandler(base, cfg.Movements)
	stock := rg.Group("/stock")
	{
		stock.GET("", stockHandler.ListSnapshots)
		stock.GET("/low", stockHandler.LowStock)
		stock.POST("/reservations", stockHandler.Reserve)
		stock.POST("/reservations/release", stockHandler.Release)
		stock.GET("/:titleId/:warehouseId", stockHandler.GetSnapshot)
		stock.GET("/:titleId/:warehouseId/verify", stockHandler.Verify)
	}
}

func registerValuationRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	valuationHandler := handlers.NewValuationHandler(base, cfg.Valuation)
	val := rg.Group("/valuation")
	{
		val.GET("/aging", valuationHandler.Aging)
		val.POST("/adjustments", valuationHandler.Adjust)
		val.GET("/:titleId/:warehouseId", valuationHandler.Compare)
		val.POST("/:titleId/:warehouseId/apply", valuationHandler.Apply)
	}
}

func registerTransferRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	transferHandler := handlers.NewTransferHandler(base, cfg.Transfers)
	transfers := rg.Group("/transfers")
	{
		transfers.POST("", transferHandler.Create)
		transfers.GET("", transferHandler.List)
		transfers.GET("/:id", transferHandler.Get)
		transfers.POST("/:id/approve", transferHandler.Approve)
		transfers.POST("/:id/execute", transferHandler.Execute)
		transfers.PUT("/:id/tracking", transferHandler.UpdateTracking)
		transfers.POST("/:id/complete", transferHandler.Complete)
		transfers.POST("/:id/cancel", transferHandler.Cancel)
	}
}

func registerImportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	importHandler := handlers.NewImportHandler(base, cfg.Imports)
	imp := rg.Group("/imports")
	{
		imp.POST("", importHandler.Upload)
		imp.POST("/validate", importHandler.Validate)
		imp.GET("", importHandler.List)
		imp.GET("/schedules", importHandler.ListSchedules)
		imp.POST("/schedules", importHandler.Schedule)
		imp.POST("/schedules/run-due", importHandler.RunDueSchedules)
		imp.GET("/:id", importHandler.Get)
		imp.POST("/:id/retry", importHandler.Retry)
	}
}
