package persistence

import (
	"context"
	"errors"

	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOutboundRecordRepository implements OutboundRecordRepository using GORM
type GormOutboundRecordRepository struct {
	db *gorm.DB
}

// NewGormOutboundRecordRepository creates a new GormOutboundRecordRepository
func NewGormOutboundRecordRepository(db *gorm.DB) *GormOutboundRecordRepository {
	return &GormOutboundRecordRepository{db: db}
}

// FindByID finds an outbound record by its ID
func (r *GormOutboundRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.OutboundRecord, error) {
	var record ledger.OutboundRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByOrderID finds all records for an order, oldest first
func (r *GormOutboundRecordRepository) FindByOrderID(ctx context.Context, orderID string) ([]ledger.OutboundRecord, error) {
	var records []ledger.OutboundRecord
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("allocated_at ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// FindByBatchID finds all records drawing on a batch, oldest first
func (r *GormOutboundRecordRepository) FindByBatchID(ctx context.Context, batchID uuid.UUID) ([]ledger.OutboundRecord, error) {
	var records []ledger.OutboundRecord
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("allocated_at ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// FindAll finds records matching the filter with a total count
func (r *GormOutboundRecordRepository) FindAll(ctx context.Context, filter ledger.OutboundFilter) (*shared.Paginated[ledger.OutboundRecord], error) {
	var total int64
	countQuery := r.applyOutboundConditions(
		r.db.WithContext(ctx).Model(&ledger.OutboundRecord{}), filter,
	)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, err
	}

	var records []ledger.OutboundRecord
	query := r.applyOutboundConditions(
		r.db.WithContext(ctx).Model(&ledger.OutboundRecord{}), filter,
	)
	query = applyPagination(query, filter.Filter, OutboundRecordSortFields, "allocated_at")
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(records, total, filter.Page, filter.PageSize)
	return &result, nil
}

// Save inserts or updates an outbound record
func (r *GormOutboundRecordRepository) Save(ctx context.Context, record *ledger.OutboundRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// SaveAll persists a set of records together
func (r *GormOutboundRecordRepository) SaveAll(ctx context.Context, records []*ledger.OutboundRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Save(records).Error
}

func (r *GormOutboundRecordRepository) applyOutboundConditions(query *gorm.DB, filter ledger.OutboundFilter) *gorm.DB {
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.OrderType != nil {
		query = query.Where("order_type = ?", *filter.OrderType)
	}
	if !filter.IncludeReversed {
		query = query.Where("reversed = FALSE")
	}
	return query
}

// Ensure GormOutboundRecordRepository implements OutboundRecordRepository
var _ ledger.OutboundRecordRepository = (*GormOutboundRecordRepository)(nil)
