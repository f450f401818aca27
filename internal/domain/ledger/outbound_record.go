package ledger

import (
	"time"

	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderType classifies the consuming order
type OrderType string

const (
	// OrderTypeSale is a customer sale
	OrderTypeSale OrderType = "sale"
	// OrderTypeTransfer is a warehouse-to-warehouse move
	OrderTypeTransfer OrderType = "transfer"
	// OrderTypeOther covers manual and miscellaneous outbounds
	OrderTypeOther OrderType = "other"
)

// IsValid checks whether the order type is known
func (t OrderType) IsValid() bool {
	switch t {
	case OrderTypeSale, OrderTypeTransfer, OrderTypeOther:
		return true
	}
	return false
}

// OutboundRecord is one append-only lineage row: order item X took quantity Q
// from batch B at unit cost C. Records are never deleted; a release flips
// Reversed instead so the audit trail survives.
type OutboundRecord struct {
	shared.BaseAggregateRoot
	BatchID     uuid.UUID `gorm:"type:uuid;not null;index"`
	BatchNo     string    `gorm:"type:varchar(50);not null"` // denormalized for lineage reads
	OrderID     string    `gorm:"type:varchar(64);not null;index:idx_outbound_records_order,priority:1"`
	OrderItemID string    `gorm:"type:varchar(64);not null;index:idx_outbound_records_order,priority:2"`
	OrderType   OrderType `gorm:"type:varchar(20);not null"`

	Quantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	// Unit cost captured at allocation time. Storage keeps accruing on the
	// batch afterwards, so this is a point-in-time snapshot, not a live view.
	AllocatedUnitCost decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AllocatedCost     decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	SaleUnitPrice *decimal.Decimal `gorm:"type:decimal(18,4)"` // nil for transfers

	Reversed   bool       `gorm:"not null;default:false;index"`
	ReversedAt *time.Time
	AllocatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OutboundRecord) TableName() string {
	return "outbound_records"
}

// NewOutboundRecord creates a lineage record for one batch deduction
func NewOutboundRecord(b *StockBatch, orderID, orderItemID string, orderType OrderType, quantity decimal.Decimal, saleUnitPrice *decimal.Decimal, now time.Time) (*OutboundRecord, error) {
	if orderID == "" {
		return nil, shared.NewValidationError("order_id", "order id is required")
	}
	if orderItemID == "" {
		return nil, shared.NewValidationError("order_item_id", "order item id is required")
	}
	if !orderType.IsValid() {
		return nil, shared.NewValidationError("order_type", "unknown order type")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("quantity", "outbound quantity must be positive")
	}
	if saleUnitPrice != nil && saleUnitPrice.IsNegative() {
		return nil, shared.NewValidationError("sale_unit_price", "sale price cannot be negative")
	}

	unitCost := b.RealCostPrice(now)
	r := &OutboundRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BatchID:           b.ID,
		BatchNo:           b.BatchNo,
		OrderID:           orderID,
		OrderItemID:       orderItemID,
		OrderType:         orderType,
		Quantity:          quantity,
		AllocatedUnitCost: unitCost,
		AllocatedCost:     unitCost.Mul(quantity),
		SaleUnitPrice:     saleUnitPrice,
		AllocatedAt:       now,
	}
	r.AddDomainEvent(NewStockAllocatedEvent(r))
	return r, nil
}

// SaleAmount returns quantity × sale price, or nil for cost-only outbounds
func (r *OutboundRecord) SaleAmount() *decimal.Decimal {
	if r.SaleUnitPrice == nil {
		return nil
	}
	amount := r.SaleUnitPrice.Mul(r.Quantity)
	return &amount
}

// Profit returns sale amount minus allocated cost, or nil when no sale price
// was captured
func (r *OutboundRecord) Profit() *decimal.Decimal {
	sale := r.SaleAmount()
	if sale == nil {
		return nil
	}
	p := sale.Sub(r.AllocatedCost)
	return &p
}

// MarkReversed flags the record as reversed. Reversing twice is an error so
// a double release cannot restore stock twice.
func (r *OutboundRecord) MarkReversed(now time.Time) error {
	if r.Reversed {
		return shared.NewDomainError("INVALID_STATE", "outbound record is already reversed")
	}
	r.Reversed = true
	t := now
	r.ReversedAt = &t
	r.UpdatedAt = now
	r.IncrementVersion()
	r.AddDomainEvent(NewOutboundReversedEvent(r))
	return nil
}
