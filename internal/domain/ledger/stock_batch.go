package ledger

import (
	"fmt"
	"time"

	"github.com/coldtrade/backend/internal/domain/formula"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStatus is derived from the remaining quantity; no other states exist.
type BatchStatus string

const (
	// BatchStatusActive means the batch still holds stock
	BatchStatusActive BatchStatus = "active"
	// BatchStatusDepleted means the batch is fully consumed
	BatchStatusDepleted BatchStatus = "depleted"
)

// StockBatch is a traceable lot of inbound stock for one product at one
// warehouse. It owns the batch's cost composition (purchase price, freight,
// extra charges, storage accrual) and its remaining quantity. The quantity
// only moves through Decrement/Restore and the audited AdjustQuantity, so the
// invariant 0 ≤ CurrentQuantity ≤ InitialQuantity holds at all times.
type StockBatch struct {
	shared.BaseAggregateRoot
	BatchNo        string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	ProductID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_stock_batches_product_warehouse,priority:1"`
	WarehouseID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_stock_batches_product_warehouse,priority:2"`
	SourceEntityID *uuid.UUID `gorm:"type:uuid;index"` // supplier; nil for initial/manual batches
	SourceOrderID  *string    `gorm:"type:varchar(64);index"`

	// Gross weight and the formula snapshot that derived the net quantity.
	// The snapshot is embedded by value so a later edit or delete of the
	// configured formula cannot rewrite how this batch was received.
	GrossWeight *decimal.Decimal `gorm:"type:decimal(18,4)"`
	TareWeight  decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	UnitCount   *int64           // carton count, consumed by fixed_per_unit formulas
	Formula     formula.Snapshot `gorm:"embedded;embeddedPrefix:formula_"`

	InitialQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CurrentQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	PurchaseUnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	FreightCost       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // total for the batch
	ExtraCost         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // handling, loading, etc.

	StorageRate      decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"` // per unit per day
	StorageFeePaid   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // settled accrual
	StorageSettledAt *time.Time      // accrual clock restarts here after settlement

	ReceivedAt time.Time  `gorm:"not null;index"`
	DepletedAt *time.Time // freezes the storage-day clock once quantity hits zero
	IsInitial  bool       `gorm:"not null;default:false"`
	Retired    bool       `gorm:"not null;default:false"` // soft retire; never hard-deleted once referenced
	Notes      string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (StockBatch) TableName() string {
	return "stock_batches"
}

// NewBatchInput carries the fields needed to create a batch. Either
// InitialQuantity is supplied directly (the physically verified receipt) or
// GrossWeight plus a formula snapshot derives it. When both are present the
// explicit net quantity wins.
type NewBatchInput struct {
	BatchNo           string
	ProductID         uuid.UUID
	WarehouseID       uuid.UUID
	SourceEntityID    *uuid.UUID
	SourceOrderID     *string
	GrossWeight       *decimal.Decimal
	UnitCount         *int64
	Formula           formula.Snapshot
	InitialQuantity   *decimal.Decimal
	PurchaseUnitPrice decimal.Decimal
	FreightCost       decimal.Decimal
	ExtraCost         decimal.Decimal
	StorageRate       decimal.Decimal
	ReceivedAt        time.Time
	IsInitial         bool
	Notes             string
}

// NewStockBatch creates a batch, deriving the net quantity from the gross
// weight and formula snapshot when no explicit quantity is given.
func NewStockBatch(in NewBatchInput) (*StockBatch, error) {
	if in.BatchNo == "" {
		return nil, shared.NewValidationError("batch_no", "batch number is required")
	}
	if in.ProductID == uuid.Nil {
		return nil, shared.NewValidationError("product_id", "product is required")
	}
	if in.WarehouseID == uuid.Nil {
		return nil, shared.NewValidationError("warehouse_id", "warehouse is required")
	}
	if in.PurchaseUnitPrice.IsNegative() {
		return nil, shared.NewValidationError("purchase_unit_price", "purchase price cannot be negative")
	}
	if in.FreightCost.IsNegative() {
		return nil, shared.NewValidationError("freight_cost", "freight cost cannot be negative")
	}
	if in.ExtraCost.IsNegative() {
		return nil, shared.NewValidationError("extra_cost", "extra cost cannot be negative")
	}
	if in.StorageRate.IsNegative() {
		return nil, shared.NewValidationError("storage_rate", "storage rate cannot be negative")
	}
	if in.GrossWeight != nil && in.GrossWeight.IsNegative() {
		return nil, shared.NewValidationError("gross_weight", "gross weight cannot be negative")
	}

	var netQuantity decimal.Decimal
	switch {
	case in.InitialQuantity != nil:
		// The explicitly entered net quantity represents the verified
		// receipt and wins over any formula-derived value.
		netQuantity = *in.InitialQuantity
	case in.GrossWeight != nil && !in.Formula.IsZero():
		net, err := in.Formula.Evaluate(*in.GrossWeight, in.UnitCount)
		if err != nil {
			return nil, err
		}
		netQuantity = net
	case in.GrossWeight != nil:
		// Gross weight without a formula: net equals gross.
		netQuantity = *in.GrossWeight
	default:
		return nil, shared.NewValidationError("initial_quantity", "either a net quantity or a gross weight is required")
	}

	if netQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("initial_quantity", "initial quantity must be positive")
	}

	tare := decimal.Zero
	if in.GrossWeight != nil {
		tare = in.GrossWeight.Sub(netQuantity)
		if tare.IsNegative() {
			tare = decimal.Zero
		}
	}

	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	b := &StockBatch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BatchNo:           in.BatchNo,
		ProductID:         in.ProductID,
		WarehouseID:       in.WarehouseID,
		SourceEntityID:    in.SourceEntityID,
		SourceOrderID:     in.SourceOrderID,
		GrossWeight:       in.GrossWeight,
		TareWeight:        tare,
		UnitCount:         in.UnitCount,
		Formula:           in.Formula,
		InitialQuantity:   netQuantity,
		CurrentQuantity:   netQuantity,
		PurchaseUnitPrice: in.PurchaseUnitPrice,
		FreightCost:       in.FreightCost,
		ExtraCost:         in.ExtraCost,
		StorageRate:       in.StorageRate,
		StorageFeePaid:    decimal.Zero,
		ReceivedAt:        receivedAt,
		IsInitial:         in.IsInitial,
		Notes:             in.Notes,
	}
	b.AddDomainEvent(NewBatchCreatedEvent(b))
	return b, nil
}

// Status derives the batch status from the remaining quantity
func (b *StockBatch) Status() BatchStatus {
	if b.CurrentQuantity.LessThanOrEqual(decimal.Zero) {
		return BatchStatusDepleted
	}
	return BatchStatusActive
}

// IsActive returns true while the batch still holds stock
func (b *StockBatch) IsActive() bool {
	return b.Status() == BatchStatusActive
}

// IsDepleted returns true once the batch is fully consumed
func (b *StockBatch) IsDepleted() bool {
	return b.Status() == BatchStatusDepleted
}

// ConsumedQuantity returns how much of the batch has been taken
func (b *StockBatch) ConsumedQuantity() decimal.Decimal {
	return b.InitialQuantity.Sub(b.CurrentQuantity)
}

// FreightPerUnit spreads the batch freight over the initial quantity
func (b *StockBatch) FreightPerUnit() decimal.Decimal {
	if b.InitialQuantity.IsZero() {
		return decimal.Zero
	}
	return b.FreightCost.Div(b.InitialQuantity)
}

// StorageDays returns whole days the batch has been in storage as of asOf.
// The clock stops at DepletedAt: a depleted batch stops accruing rent.
func (b *StockBatch) StorageDays(asOf time.Time) int64 {
	return daysBetween(b.ReceivedAt, b.storageClockEnd(asOf))
}

// AccumulatedStorageFee is the lazily computed unsettled accrual:
// rate × remaining quantity × days since the last settlement (or receipt).
// Zero remaining stock accrues nothing.
func (b *StockBatch) AccumulatedStorageFee(asOf time.Time) decimal.Decimal {
	if b.StorageRate.LessThanOrEqual(decimal.Zero) || b.CurrentQuantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	start := b.ReceivedAt
	if b.StorageSettledAt != nil {
		start = *b.StorageSettledAt
	}
	days := daysBetween(start, b.storageClockEnd(asOf))
	if days <= 0 {
		return decimal.Zero
	}
	return b.StorageRate.Mul(b.CurrentQuantity).Mul(decimal.NewFromInt(days))
}

// RealCostPrice is the per-unit cost including purchase price, pro-rated
// freight and extra charges, and the storage fee (settled plus accrued)
// spread over the initial quantity. Reporting must use this function rather
// than re-deriving the composition.
func (b *StockBatch) RealCostPrice(asOf time.Time) decimal.Decimal {
	if b.InitialQuantity.IsZero() {
		return b.PurchaseUnitPrice
	}
	storage := b.StorageFeePaid.Add(b.AccumulatedStorageFee(asOf))
	perUnitExtras := b.FreightCost.Add(b.ExtraCost).Add(storage).Div(b.InitialQuantity)
	return b.PurchaseUnitPrice.Add(perUnitExtras)
}

// TotalCost returns the full cost carried by the batch as of asOf
func (b *StockBatch) TotalCost(asOf time.Time) decimal.Decimal {
	return b.PurchaseUnitPrice.Mul(b.InitialQuantity).
		Add(b.FreightCost).
		Add(b.ExtraCost).
		Add(b.StorageFeePaid).
		Add(b.AccumulatedStorageFee(asOf))
}

// StockValue returns the value of the remaining quantity at real cost
func (b *StockBatch) StockValue(asOf time.Time) decimal.Decimal {
	return b.CurrentQuantity.Mul(b.RealCostPrice(asOf))
}

// Decrement removes quantity from the batch. Only the outbound allocator may
// call it. When the quantity reaches zero the storage-day clock is frozen by
// stamping DepletedAt.
func (b *StockBatch) Decrement(amount decimal.Decimal, now time.Time) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("quantity", "deduction quantity must be positive")
	}
	if amount.GreaterThan(b.CurrentQuantity) {
		return shared.NewDomainError("INSUFFICIENT_STOCK",
			fmt.Sprintf("batch %s has %s available, %s requested", b.BatchNo, b.CurrentQuantity.String(), amount.String()))
	}

	b.CurrentQuantity = b.CurrentQuantity.Sub(amount)
	if b.CurrentQuantity.IsZero() {
		t := now
		b.DepletedAt = &t
		b.AddDomainEvent(NewBatchDepletedEvent(b))
	}
	b.UpdatedAt = now
	b.IncrementVersion()
	return nil
}

// Restore re-adds quantity after a reversed outbound. If the batch flips back
// to active the depleted clock is cleared so storage resumes accruing.
func (b *StockBatch) Restore(amount decimal.Decimal, now time.Time) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("quantity", "restore quantity must be positive")
	}
	restored := b.CurrentQuantity.Add(amount)
	if restored.GreaterThan(b.InitialQuantity) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("restoring %s would exceed the initial quantity of batch %s", amount.String(), b.BatchNo))
	}

	wasDepleted := b.IsDepleted()
	b.CurrentQuantity = restored
	if wasDepleted && b.CurrentQuantity.GreaterThan(decimal.Zero) {
		b.DepletedAt = nil
	}
	b.UpdatedAt = now
	b.IncrementVersion()
	return nil
}

// AdjustQuantity sets the remaining quantity to a counted value and appends
// an audit line to the batch notes. This is the only mutation path besides
// the allocator.
func (b *StockBatch) AdjustQuantity(newQuantity decimal.Decimal, reason string, now time.Time) error {
	if newQuantity.IsNegative() {
		return shared.NewValidationError("new_quantity", "adjusted quantity cannot be negative")
	}
	if newQuantity.GreaterThan(b.InitialQuantity) {
		return shared.NewValidationError("new_quantity", "adjusted quantity cannot exceed the initial quantity")
	}
	if reason == "" {
		return shared.NewValidationError("reason", "an adjustment reason is required")
	}
	if newQuantity.Equal(b.CurrentQuantity) {
		return shared.NewValidationError("new_quantity", "quantity is unchanged")
	}

	old := b.CurrentQuantity
	b.CurrentQuantity = newQuantity
	if b.CurrentQuantity.IsZero() {
		t := now
		b.DepletedAt = &t
	} else {
		b.DepletedAt = nil
	}

	line := fmt.Sprintf("[%s] adjusted %s -> %s: %s", now.Format("2006-01-02 15:04"), old.String(), newQuantity.String(), reason)
	if b.Notes != "" {
		b.Notes += "\n" + line
	} else {
		b.Notes = line
	}

	b.UpdatedAt = now
	b.IncrementVersion()
	b.AddDomainEvent(NewBatchAdjustedEvent(b, old, newQuantity, reason))
	return nil
}

// SettleStorage folds the accrual up to asOf into StorageFeePaid and restarts
// the accrual clock at asOf. A lazy read at the same instant produces the
// same total, so a periodic settlement job and the read path cannot diverge.
// Returns the amount settled.
func (b *StockBatch) SettleStorage(asOf time.Time) decimal.Decimal {
	accrued := b.AccumulatedStorageFee(asOf)
	if accrued.IsZero() {
		return decimal.Zero
	}
	b.StorageFeePaid = b.StorageFeePaid.Add(accrued)
	settledAt := b.storageClockEnd(asOf)
	b.StorageSettledAt = &settledAt
	b.UpdatedAt = asOf
	b.IncrementVersion()
	b.AddDomainEvent(NewStorageFeeSettledEvent(b, accrued))
	return accrued
}

// Retire soft-retires a batch that outbound records still reference
func (b *StockBatch) Retire(now time.Time) error {
	if b.Retired {
		return shared.NewDomainError("INVALID_STATE", "batch is already retired")
	}
	b.Retired = true
	b.UpdatedAt = now
	b.IncrementVersion()
	return nil
}

// storageClockEnd caps the storage clock at DepletedAt
func (b *StockBatch) storageClockEnd(asOf time.Time) time.Time {
	if b.DepletedAt != nil && b.DepletedAt.Before(asOf) {
		return *b.DepletedAt
	}
	return asOf
}

// daysBetween returns whole elapsed days, never negative
func daysBetween(from, to time.Time) int64 {
	if !to.After(from) {
		return 0
	}
	return int64(to.Sub(from).Hours() / 24)
}
