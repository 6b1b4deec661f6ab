package app

import (
	"bookledger/internal/domain/catalogs/title"
	"bookledger/internal/domain/catalogs/warehouse"
	"bookledger/internal/domain/events"
	"bookledger/internal/domain/imports"
	"bookledger/internal/domain/ledger"
	"bookledger/internal/domain/transfer"
	"bookledger/internal/domain/valuation"
	"bookledger/internal/infrastructure/storage/postgres"
	"bookledger/internal/infrastructure/storage/postgres/catalog_repo"
	"bookledger/internal/infrastructure/storage/postgres/import_repo"
	"bookledger/internal/infrastructure/storage/postgres/ledger_repo"
	"bookledger/internal/infrastructure/storage/postgres/transfer_repo"
	"bookledger/pkg/logger"
	"bookledger/pkg/refnum"
)

// Services bundles the constructed domain services.
type Services struct {
	Hub *events.Hub

	Titles     *title.Service
	Warehouses *warehouse.Service
	Movements  *ledger.Service
	Valuation  *valuation.Service
	Transfers  *transfer.Service
	Imports    *imports.Service
}

// BuildServices wires repositories and services over one pool.
func BuildServices(pool *postgres.Pool, log *logger.Logger) *Services {
	txm := postgres.NewTxManager(pool)
	hub := events.NewHub(log)

	titleRepo := catalog_repo.NewTitleRepo(txm)
	warehouseRepo := catalog_repo.NewWarehouseRepo(txm)
	ledgerRepo := ledger_repo.NewLedgerRepo(txm)
	transferRepo := transfer_repo.NewTransferRepo(txm)
	importRepo := import_repo.NewImportRepo(txm)

	refs := refnum.New(pool)

	movements := ledger.NewService(ledgerRepo, titleRepo, warehouseRepo, txm, hub)

	return &Services{
		Hub:        hub,
		Titles:     title.NewService(titleRepo),
		Warehouses: warehouse.NewService(warehouseRepo),
		Movements:  movements,
		Valuation:  valuation.NewService(ledgerRepo, movements, txm, hub),
		Transfers:  transfer.NewService(transferRepo, movements, warehouseRepo, refs),
		Imports:    imports.NewService(importRepo, movements, titleRepo, warehouseRepo, refs),
	}
}
