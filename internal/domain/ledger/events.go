package ledger

import (
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types for the batch ledger
const (
	EventTypeBatchCreated      = "ledger.batch.created"
	EventTypeBatchDepleted     = "ledger.batch.depleted"
	EventTypeBatchAdjusted     = "ledger.batch.adjusted"
	EventTypeStorageFeeSettled = "ledger.batch.storage_settled"
	EventTypeStockAllocated    = "ledger.outbound.allocated"
	EventTypeOutboundReversed  = "ledger.outbound.reversed"
)

// BatchCreatedEvent fires when a new batch enters the ledger
type BatchCreatedEvent struct {
	shared.BaseDomainEvent
	BatchNo         string          `json:"batch_no"`
	ProductID       uuid.UUID       `json:"product_id"`
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	InitialQuantity decimal.Decimal `json:"initial_quantity"`
	IsInitial       bool            `json:"is_initial"`
}

// NewBatchCreatedEvent creates a batch created event
func NewBatchCreatedEvent(b *StockBatch) *BatchCreatedEvent {
	return &BatchCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchCreated, "StockBatch", b.ID),
		BatchNo:         b.BatchNo,
		ProductID:       b.ProductID,
		WarehouseID:     b.WarehouseID,
		InitialQuantity: b.InitialQuantity,
		IsInitial:       b.IsInitial,
	}
}

// BatchDepletedEvent fires when a batch's remaining quantity reaches zero
type BatchDepletedEvent struct {
	shared.BaseDomainEvent
	BatchNo   string    `json:"batch_no"`
	ProductID uuid.UUID `json:"product_id"`
}

// NewBatchDepletedEvent creates a batch depleted event
func NewBatchDepletedEvent(b *StockBatch) *BatchDepletedEvent {
	return &BatchDepletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchDepleted, "StockBatch", b.ID),
		BatchNo:         b.BatchNo,
		ProductID:       b.ProductID,
	}
}

// BatchAdjustedEvent fires on an audited manual quantity correction
type BatchAdjustedEvent struct {
	shared.BaseDomainEvent
	BatchNo     string          `json:"batch_no"`
	OldQuantity decimal.Decimal `json:"old_quantity"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
	Reason      string          `json:"reason"`
}

// NewBatchAdjustedEvent creates a batch adjusted event
func NewBatchAdjustedEvent(b *StockBatch, oldQty, newQty decimal.Decimal, reason string) *BatchAdjustedEvent {
	return &BatchAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchAdjusted, "StockBatch", b.ID),
		BatchNo:         b.BatchNo,
		OldQuantity:     oldQty,
		NewQuantity:     newQty,
		Reason:          reason,
	}
}

// StorageFeeSettledEvent fires when accrued storage is folded into the paid total
type StorageFeeSettledEvent struct {
	shared.BaseDomainEvent
	BatchNo       string          `json:"batch_no"`
	SettledAmount decimal.Decimal `json:"settled_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
}

// NewStorageFeeSettledEvent creates a storage fee settled event
func NewStorageFeeSettledEvent(b *StockBatch, settled decimal.Decimal) *StorageFeeSettledEvent {
	return &StorageFeeSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStorageFeeSettled, "StockBatch", b.ID),
		BatchNo:         b.BatchNo,
		SettledAmount:   settled,
		TotalPaid:       b.StorageFeePaid,
	}
}

// StockAllocatedEvent fires once per outbound record written by the allocator
type StockAllocatedEvent struct {
	shared.BaseDomainEvent
	BatchNo  string          `json:"batch_no"`
	OrderID  string          `json:"order_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// NewStockAllocatedEvent creates a stock allocated event
func NewStockAllocatedEvent(r *OutboundRecord) *StockAllocatedEvent {
	return &StockAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockAllocated, "OutboundRecord", r.ID),
		BatchNo:         r.BatchNo,
		OrderID:         r.OrderID,
		Quantity:        r.Quantity,
	}
}

// OutboundReversedEvent fires when an outbound record is reversed
type OutboundReversedEvent struct {
	shared.BaseDomainEvent
	BatchNo  string          `json:"batch_no"`
	OrderID  string          `json:"order_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// NewOutboundReversedEvent creates an outbound reversed event
func NewOutboundReversedEvent(r *OutboundRecord) *OutboundReversedEvent {
	return &OutboundReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOutboundReversed, "OutboundRecord", r.ID),
		BatchNo:         r.BatchNo,
		OrderID:         r.OrderID,
		Quantity:        r.Quantity,
	}
}
