package ledger

import (
	"context"
	"time"

	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchFilter narrows batch queries
type BatchFilter struct {
	shared.Filter
	ProductID    *uuid.UUID
	WarehouseID  *uuid.UUID
	Status       *BatchStatus
	IsInitial    *bool
	ReceivedFrom *time.Time
	ReceivedTo   *time.Time
	BatchNo      string // prefix match
}

// OutboundFilter narrows outbound record queries
type OutboundFilter struct {
	shared.Filter
	BatchID         *uuid.UUID
	OrderID         *string
	OrderType       *OrderType
	IncludeReversed bool
}

// StockBatchRepository persists stock batches
type StockBatchRepository interface {
	// FindByID retrieves a batch by its id
	FindByID(ctx context.Context, id uuid.UUID) (*StockBatch, error)
	// FindByBatchNo retrieves a batch by its unique batch number
	FindByBatchNo(ctx context.Context, batchNo string) (*StockBatch, error)
	// FindByIDs retrieves multiple batches, missing ids are simply absent
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]StockBatch, error)
	// FindAvailable returns active batches for a product at a warehouse,
	// oldest received first
	FindAvailable(ctx context.Context, productID, warehouseID uuid.UUID) ([]StockBatch, error)
	// FindAll returns batches matching the filter with a total count
	FindAll(ctx context.Context, filter BatchFilter) (*shared.Paginated[StockBatch], error)
	// Save inserts or updates a batch unconditionally
	Save(ctx context.Context, batch *StockBatch) error
	// SaveWithLock updates a batch only if the stored version still matches
	// the version the aggregate was loaded at. Returns a concurrency
	// conflict error when another writer got there first.
	SaveWithLock(ctx context.Context, batch *StockBatch, expectedVersion int) error
	// NextBatchNo issues the next batch number for the given day
	NextBatchNo(ctx context.Context, day time.Time) (string, error)
	// ExistsByBatchNo checks batch number uniqueness
	ExistsByBatchNo(ctx context.Context, batchNo string) (bool, error)
	// Count returns the number of batches matching the filter
	Count(ctx context.Context, filter BatchFilter) (int64, error)
}

// OutboundRecordRepository persists the append-only outbound lineage
type OutboundRecordRepository interface {
	// FindByID retrieves a record by its id
	FindByID(ctx context.Context, id uuid.UUID) (*OutboundRecord, error)
	// FindByOrderID returns all records for an order, oldest first
	FindByOrderID(ctx context.Context, orderID string) ([]OutboundRecord, error)
	// FindByBatchID returns all records drawing on a batch, oldest first
	FindByBatchID(ctx context.Context, batchID uuid.UUID) ([]OutboundRecord, error)
	// FindAll returns records matching the filter with a total count
	FindAll(ctx context.Context, filter OutboundFilter) (*shared.Paginated[OutboundRecord], error)
	// Save inserts or updates a record
	Save(ctx context.Context, record *OutboundRecord) error
	// SaveAll persists a set of records together
	SaveAll(ctx context.Context, records []*OutboundRecord) error
}
