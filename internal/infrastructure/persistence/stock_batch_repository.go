package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// batchNoPrefix starts every issued batch number. PH stands for purchase.
const batchNoPrefix = "PH"

// GormStockBatchRepository implements StockBatchRepository using GORM
type GormStockBatchRepository struct {
	db *gorm.DB
}

// NewGormStockBatchRepository creates a new GormStockBatchRepository
func NewGormStockBatchRepository(db *gorm.DB) *GormStockBatchRepository {
	return &GormStockBatchRepository{db: db}
}

// FindByID finds a stock batch by its ID
func (r *GormStockBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.StockBatch, error) {
	var batch ledger.StockBatch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// FindByBatchNo finds a stock batch by its unique batch number
func (r *GormStockBatchRepository) FindByBatchNo(ctx context.Context, batchNo string) (*ledger.StockBatch, error) {
	var batch ledger.StockBatch
	if err := r.db.WithContext(ctx).First(&batch, "batch_no = ?", batchNo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// FindByIDs finds multiple batches by ID. Missing IDs are simply absent
// from the result.
func (r *GormStockBatchRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.StockBatch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var batches []ledger.StockBatch
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindAvailable finds batches with remaining stock for a product at a
// warehouse, oldest received first. The id tie-break keeps the order
// stable for batches received at the same instant.
func (r *GormStockBatchRepository) FindAvailable(ctx context.Context, productID, warehouseID uuid.UUID) ([]ledger.StockBatch, error) {
	var batches []ledger.StockBatch
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		Where("current_quantity > 0 AND retired = FALSE").
		Order("received_at ASC, id ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindAll finds batches matching the filter with a total count
func (r *GormStockBatchRepository) FindAll(ctx context.Context, filter ledger.BatchFilter) (*shared.Paginated[ledger.StockBatch], error) {
	var total int64
	countQuery := r.applyBatchConditions(
		r.db.WithContext(ctx).Model(&ledger.StockBatch{}), filter,
	)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, err
	}

	var batches []ledger.StockBatch
	query := r.applyBatchConditions(
		r.db.WithContext(ctx).Model(&ledger.StockBatch{}), filter,
	)
	query = applyPagination(query, filter.Filter, StockBatchSortFields, "received_at")
	if err := query.Find(&batches).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(batches, total, filter.Page, filter.PageSize)
	return &result, nil
}

// Save inserts or updates a batch unconditionally
func (r *GormStockBatchRepository) Save(ctx context.Context, batch *ledger.StockBatch) error {
	return r.db.WithContext(ctx).Save(batch).Error
}

// SaveWithLock updates a batch only if the stored version still matches the
// version the aggregate was loaded at
func (r *GormStockBatchRepository) SaveWithLock(ctx context.Context, batch *ledger.StockBatch, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(batch).
		Where("id = ? AND version = ?", batch.ID, expectedVersion).
		Updates(map[string]interface{}{
			"current_quantity":   batch.CurrentQuantity,
			"storage_fee_paid":   batch.StorageFeePaid,
			"storage_settled_at": batch.StorageSettledAt,
			"depleted_at":        batch.DepletedAt,
			"retired":            batch.Retired,
			"notes":              batch.Notes,
			"version":            batch.Version,
			"updated_at":         batch.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// NextBatchNo issues the next batch number for the given day, in the form
// PH<yyyymmdd>-NNN. The sequence restarts each day.
func (r *GormStockBatchRepository) NextBatchNo(ctx context.Context, day time.Time) (string, error) {
	prefix := fmt.Sprintf("%s%s-", batchNoPrefix, day.Format("20060102"))

	// All candidates share the same prefix, so ordering by length first makes
	// the lexicographic comparison numeric: PH...-1000 sorts above PH...-999.
	var last string
	err := r.db.WithContext(ctx).
		Model(&ledger.StockBatch{}).
		Select("batch_no").
		Where("batch_no LIKE ?", prefix+"%").
		Order("length(batch_no) DESC, batch_no DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", err
	}

	seq := 1
	if last != "" {
		tail := strings.TrimPrefix(last, prefix)
		if n, perr := strconv.Atoi(tail); perr == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%03d", prefix, seq), nil
}

// ExistsByBatchNo checks whether a batch number is already taken
func (r *GormStockBatchRepository) ExistsByBatchNo(ctx context.Context, batchNo string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&ledger.StockBatch{}).
		Where("batch_no = ?", batchNo).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count counts batches matching the filter
func (r *GormStockBatchRepository) Count(ctx context.Context, filter ledger.BatchFilter) (int64, error) {
	var count int64
	query := r.applyBatchConditions(
		r.db.WithContext(ctx).Model(&ledger.StockBatch{}), filter,
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyBatchConditions applies the batch-specific filter conditions
// without pagination or ordering
func (r *GormStockBatchRepository) applyBatchConditions(query *gorm.DB, filter ledger.BatchFilter) *gorm.DB {
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.Status != nil {
		switch *filter.Status {
		case ledger.BatchStatusActive:
			query = query.Where("current_quantity > 0 AND retired = FALSE")
		case ledger.BatchStatusDepleted:
			query = query.Where("current_quantity = 0 OR retired = TRUE")
		}
	}
	if filter.IsInitial != nil {
		query = query.Where("is_initial = ?", *filter.IsInitial)
	}
	if filter.ReceivedFrom != nil {
		query = query.Where("received_at >= ?", *filter.ReceivedFrom)
	}
	if filter.ReceivedTo != nil {
		query = query.Where("received_at <= ?", *filter.ReceivedTo)
	}
	if filter.BatchNo != "" {
		query = query.Where("batch_no LIKE ?", filter.BatchNo+"%")
	}
	return query
}

// applyPagination applies ordering and pagination with a whitelisted
// sort column
func applyPagination(query *gorm.DB, filter shared.Filter, allowedFields map[string]bool, defaultField string) *gorm.DB {
	orderBy := ValidateSortField(filter.OrderBy, allowedFields, defaultField)
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

// Ensure GormStockBatchRepository implements StockBatchRepository
var _ ledger.StockBatchRepository = (*GormStockBatchRepository)(nil)
