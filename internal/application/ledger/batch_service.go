package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coldtrade/backend/internal/domain/formula"
	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CatalogDirectory resolves product and warehouse ids against the catalog
// subsystem. When wired, the batch service rejects receipts that reference an
// unknown id; without it the ledger trusts the ids handed in.
type CatalogDirectory interface {
	ProductExists(ctx context.Context, productID uuid.UUID) (bool, error)
	WarehouseExists(ctx context.Context, warehouseID uuid.UUID) (bool, error)
}

// BatchService handles batch lifecycle operations: receiving, opening-stock
// import, audited corrections and storage settlement. Outbound consumption
// goes through AllocationService instead.
type BatchService struct {
	batchRepo      ledger.StockBatchRepository
	formulaRepo    formula.Repository
	scope          TransactionScope
	catalog        CatalogDirectory
	eventPublisher shared.EventPublisher
	now            func() time.Time
}

// NewBatchService creates a new BatchService
func NewBatchService(
	batchRepo ledger.StockBatchRepository,
	formulaRepo formula.Repository,
	scope TransactionScope,
) *BatchService {
	return &BatchService{
		batchRepo:   batchRepo,
		formulaRepo: formulaRepo,
		scope:       scope,
		now:         time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *BatchService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetCatalogDirectory enables product and warehouse existence checks on
// incoming batches
func (s *BatchService) SetCatalogDirectory(directory CatalogDirectory) {
	s.catalog = directory
}

// SetClock overrides the time source, used by tests
func (s *BatchService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateBatch receives a new batch into the ledger. The formula snapshot is
// resolved once here; later edits to the configured formula do not touch the
// batch.
func (s *BatchService) CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*BatchView, error) {
	if err := s.checkCatalog(ctx, cmd.ProductID, cmd.WarehouseID); err != nil {
		return nil, err
	}

	snapshot, err := s.resolveFormula(ctx, cmd)
	if err != nil {
		return nil, err
	}

	now := s.now()
	receivedAt := now
	if cmd.ReceivedAt != nil {
		receivedAt = *cmd.ReceivedAt
	}

	batchNo := cmd.BatchNo
	if batchNo == "" {
		batchNo, err = s.batchRepo.NextBatchNo(ctx, receivedAt)
		if err != nil {
			return nil, fmt.Errorf("issue batch number: %w", err)
		}
	} else {
		exists, err := s.batchRepo.ExistsByBatchNo(ctx, batchNo)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("batch number %s is already taken", batchNo))
		}
	}

	batch, err := ledger.NewStockBatch(ledger.NewBatchInput{
		BatchNo:           batchNo,
		ProductID:         cmd.ProductID,
		WarehouseID:       cmd.WarehouseID,
		SourceEntityID:    cmd.SourceEntityID,
		SourceOrderID:     cmd.SourceOrderID,
		GrossWeight:       cmd.GrossWeight,
		UnitCount:         cmd.UnitCount,
		Formula:           snapshot,
		InitialQuantity:   cmd.InitialQuantity,
		PurchaseUnitPrice: cmd.PurchaseUnitPrice,
		FreightCost:       cmd.FreightCost,
		ExtraCost:         cmd.ExtraCost,
		StorageRate:       cmd.StorageRate,
		ReceivedAt:        receivedAt,
		Notes:             cmd.Notes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}
	s.publishEvents(ctx, batch)

	view := NewBatchView(batch, now)
	return &view, nil
}

// ImportInitial loads opening stock as initial batches in one transaction.
// Initial batches have no formula and no source order; their received date
// defaults to the import time.
func (s *BatchService) ImportInitial(ctx context.Context, rows []ImportInitialBatchCommand) ([]BatchView, error) {
	if len(rows) == 0 {
		return nil, shared.NewValidationError("rows", "at least one row is required")
	}

	for i, row := range rows {
		if err := s.checkCatalog(ctx, row.ProductID, row.WarehouseID); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	now := s.now()
	views := make([]BatchView, 0, len(rows))
	batches := make([]*ledger.StockBatch, 0, len(rows))

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		for i, row := range rows {
			receivedAt := now
			if row.ReceivedAt != nil {
				receivedAt = *row.ReceivedAt
			}

			batchNo, err := repos.BatchRepo().NextBatchNo(ctx, receivedAt)
			if err != nil {
				return fmt.Errorf("issue batch number for row %d: %w", i+1, err)
			}

			qty := row.Quantity
			batch, err := ledger.NewStockBatch(ledger.NewBatchInput{
				BatchNo:           batchNo,
				ProductID:         row.ProductID,
				WarehouseID:       row.WarehouseID,
				InitialQuantity:   &qty,
				PurchaseUnitPrice: row.PurchaseUnitPrice,
				StorageRate:       row.StorageRate,
				ReceivedAt:        receivedAt,
				IsInitial:         true,
				Notes:             row.Notes,
			})
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			if err := repos.BatchRepo().Save(ctx, batch); err != nil {
				return fmt.Errorf("save row %d: %w", i+1, err)
			}
			batches = append(batches, batch)
			views = append(views, NewBatchView(batch, now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, b := range batches {
		s.publishEvents(ctx, b)
	}
	return views, nil
}

// GetBatch returns one batch with derived values as of now
func (s *BatchService) GetBatch(ctx context.Context, id uuid.UUID) (*BatchView, error) {
	batch, err := s.batchRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewBatchView(batch, s.now())
	return &view, nil
}

// GetBatchByNo returns one batch looked up by its batch number
func (s *BatchService) GetBatchByNo(ctx context.Context, batchNo string) (*BatchView, error) {
	batch, err := s.batchRepo.FindByBatchNo(ctx, batchNo)
	if err != nil {
		return nil, err
	}
	view := NewBatchView(batch, s.now())
	return &view, nil
}

// ListBatches returns a filtered page of batches
func (s *BatchService) ListBatches(ctx context.Context, filter ledger.BatchFilter) (*shared.Paginated[BatchView], error) {
	page, err := s.batchRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]BatchView, 0, len(page.Items))
	for i := range page.Items {
		views = append(views, NewBatchView(&page.Items[i], now))
	}
	result := shared.NewPaginated(views, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// ListAvailable returns the active batches for a product at a warehouse in
// FIFO order, the view an operator picks explicit batches from
func (s *BatchService) ListAvailable(ctx context.Context, productID, warehouseID uuid.UUID) ([]BatchView, error) {
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("product_id", "product is required")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewValidationError("warehouse_id", "warehouse is required")
	}

	batches, err := s.batchRepo.FindAvailable(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]BatchView, 0, len(batches))
	for i := range batches {
		views = append(views, NewBatchView(&batches[i], now))
	}
	return views, nil
}

// AdjustQuantity applies an audited stocktake correction under optimistic lock
func (s *BatchService) AdjustQuantity(ctx context.Context, cmd AdjustQuantityCommand) (*BatchView, error) {
	batch, err := s.batchRepo.FindByID(ctx, cmd.BatchID)
	if err != nil {
		return nil, err
	}

	expectedVersion := batch.Version
	now := s.now()
	if err := batch.AdjustQuantity(cmd.NewQuantity, cmd.Reason, now); err != nil {
		return nil, err
	}
	if err := s.batchRepo.SaveWithLock(ctx, batch, expectedVersion); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, batch)

	view := NewBatchView(batch, now)
	return &view, nil
}

// SettleStorage folds the accrued storage fee into the paid total for one batch
func (s *BatchService) SettleStorage(ctx context.Context, batchID uuid.UUID) (*SettleStorageResult, error) {
	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	expectedVersion := batch.Version
	settled := batch.SettleStorage(s.now())
	if settled.IsZero() {
		return &SettleStorageResult{
			BatchID:       batch.ID,
			BatchNo:       batch.BatchNo,
			SettledAmount: settled,
			TotalPaid:     batch.StorageFeePaid,
		}, nil
	}

	if err := s.batchRepo.SaveWithLock(ctx, batch, expectedVersion); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, batch)

	return &SettleStorageResult{
		BatchID:       batch.ID,
		BatchNo:       batch.BatchNo,
		SettledAmount: settled,
		TotalPaid:     batch.StorageFeePaid,
	}, nil
}

// SettleAllStorage runs a settlement pass over every active batch. Used by
// the periodic settlement job. Batches that lose a version race are skipped
// and picked up on the next run.
func (s *BatchService) SettleAllStorage(ctx context.Context) (int, error) {
	active := ledger.BatchStatusActive
	filter := ledger.BatchFilter{Filter: shared.DefaultFilter(), Status: &active}
	filter.PageSize = 500

	settledCount := 0
	for page := 1; ; page++ {
		filter.Page = page
		result, err := s.batchRepo.FindAll(ctx, filter)
		if err != nil {
			return settledCount, err
		}
		for i := range result.Items {
			batch := &result.Items[i]
			expectedVersion := batch.Version
			settled := batch.SettleStorage(s.now())
			if settled.IsZero() {
				continue
			}
			if err := s.batchRepo.SaveWithLock(ctx, batch, expectedVersion); err != nil {
				if errors.Is(err, shared.ErrConcurrencyConflict) {
					continue
				}
				return settledCount, err
			}
			s.publishEvents(ctx, batch)
			settledCount++
		}
		if page >= result.TotalPages {
			break
		}
	}
	return settledCount, nil
}

// checkCatalog verifies the referenced product and warehouse exist, when a
// directory is wired
func (s *BatchService) checkCatalog(ctx context.Context, productID, warehouseID uuid.UUID) error {
	if s.catalog == nil {
		return nil
	}
	exists, err := s.catalog.ProductExists(ctx, productID)
	if err != nil {
		return fmt.Errorf("look up product: %w", err)
	}
	if !exists {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("product %s not found", productID))
	}
	exists, err = s.catalog.WarehouseExists(ctx, warehouseID)
	if err != nil {
		return fmt.Errorf("look up warehouse: %w", err)
	}
	if !exists {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("warehouse %s not found", warehouseID))
	}
	return nil
}

// resolveFormula picks the snapshot to embed: an inline snapshot wins, then a
// configured formula by id, otherwise no formula
func (s *BatchService) resolveFormula(ctx context.Context, cmd CreateBatchCommand) (formula.Snapshot, error) {
	if cmd.Formula != nil {
		if err := cmd.Formula.Validate(); err != nil {
			return formula.Snapshot{}, err
		}
		return *cmd.Formula, nil
	}
	if cmd.FormulaID == nil {
		return formula.Snapshot{}, nil
	}

	f, err := s.formulaRepo.FindByID(ctx, *cmd.FormulaID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return formula.Snapshot{}, shared.NewDomainError("NOT_FOUND", "deduction formula not found")
		}
		return formula.Snapshot{}, err
	}
	if !f.IsActive {
		return formula.Snapshot{}, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("formula %s is deactivated", f.Name))
	}
	return f.Snapshot(), nil
}

// publishEvents drains and publishes pending domain events, best effort
func (s *BatchService) publishEvents(ctx context.Context, aggregate shared.AggregateRoot) {
	if s.eventPublisher == nil {
		aggregate.ClearDomainEvents()
		return
	}
	for _, event := range aggregate.GetDomainEvents() {
		_ = s.eventPublisher.Publish(ctx, event)
	}
	aggregate.ClearDomainEvents()
}
