package ledger

import (
	"time"

	"github.com/coldtrade/backend/internal/domain/formula"
	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateBatchCommand carries the input for receiving a new batch
type CreateBatchCommand struct {
	BatchNo           string // optional, issued from the day sequence when empty
	ProductID         uuid.UUID
	WarehouseID       uuid.UUID
	SourceEntityID    *uuid.UUID
	SourceOrderID     *string
	GrossWeight       *decimal.Decimal
	UnitCount         *int64
	FormulaID         *uuid.UUID // configured formula to snapshot
	Formula           *formula.Snapshot
	InitialQuantity   *decimal.Decimal
	PurchaseUnitPrice decimal.Decimal
	FreightCost       decimal.Decimal
	ExtraCost         decimal.Decimal
	StorageRate       decimal.Decimal
	ReceivedAt        *time.Time
	Notes             string
}

// ImportInitialBatchCommand is one row of an opening-stock import
type ImportInitialBatchCommand struct {
	ProductID         uuid.UUID
	WarehouseID       uuid.UUID
	Quantity          decimal.Decimal
	PurchaseUnitPrice decimal.Decimal
	StorageRate       decimal.Decimal
	ReceivedAt        *time.Time
	Notes             string
}

// AdjustQuantityCommand corrects a batch quantity after a physical count
type AdjustQuantityCommand struct {
	BatchID     uuid.UUID
	NewQuantity decimal.Decimal
	Reason      string
}

// AllocateCommand asks the allocator to consume stock for one order item
type AllocateCommand struct {
	OrderID       string
	OrderItemID   string
	OrderType     ledger.OrderType
	ProductID     uuid.UUID
	WarehouseID   uuid.UUID
	Quantity      decimal.Decimal
	SaleUnitPrice *decimal.Decimal
	// BatchRequests switches the allocator from FIFO to explicit selection
	BatchRequests []ledger.BatchRequest
}

// BatchView is the read model returned for a batch, with the derived cost
// fields computed as of the query time
type BatchView struct {
	ID                uuid.UUID          `json:"id"`
	BatchNo           string             `json:"batch_no"`
	ProductID         uuid.UUID          `json:"product_id"`
	WarehouseID       uuid.UUID          `json:"warehouse_id"`
	SourceEntityID    *uuid.UUID         `json:"source_entity_id,omitempty"`
	SourceOrderID     *string            `json:"source_order_id,omitempty"`
	GrossWeight       *decimal.Decimal   `json:"gross_weight,omitempty"`
	TareWeight        decimal.Decimal    `json:"tare_weight"`
	UnitCount         *int64             `json:"unit_count,omitempty"`
	FormulaKind       string             `json:"formula_kind,omitempty"`
	FormulaParameter  *decimal.Decimal   `json:"formula_parameter,omitempty"`
	FormulaDisplay    string             `json:"formula_display,omitempty"`
	InitialQuantity   decimal.Decimal    `json:"initial_quantity"`
	CurrentQuantity   decimal.Decimal    `json:"current_quantity"`
	Status            ledger.BatchStatus `json:"status"`
	PurchaseUnitPrice decimal.Decimal    `json:"purchase_unit_price"`
	FreightCost       decimal.Decimal    `json:"freight_cost"`
	FreightPerUnit    decimal.Decimal    `json:"freight_per_unit"`
	ExtraCost         decimal.Decimal    `json:"extra_cost"`
	StorageRate       decimal.Decimal    `json:"storage_rate"`
	StorageFeePaid    decimal.Decimal    `json:"storage_fee_paid"`
	StorageFeeAccrued decimal.Decimal    `json:"storage_fee_accrued"`
	StorageDays       int64              `json:"storage_days"`
	RealCostPrice     decimal.Decimal    `json:"real_cost_price"`
	StockValue        decimal.Decimal    `json:"stock_value"`
	ReceivedAt        time.Time          `json:"received_at"`
	DepletedAt        *time.Time         `json:"depleted_at,omitempty"`
	IsInitial         bool               `json:"is_initial"`
	Notes             string             `json:"notes,omitempty"`
	Version           int                `json:"version"`
}

// NewBatchView projects a batch with its derived values as of asOf
func NewBatchView(b *ledger.StockBatch, asOf time.Time) BatchView {
	return BatchView{
		ID:                b.ID,
		BatchNo:           b.BatchNo,
		ProductID:         b.ProductID,
		WarehouseID:       b.WarehouseID,
		SourceEntityID:    b.SourceEntityID,
		SourceOrderID:     b.SourceOrderID,
		GrossWeight:       b.GrossWeight,
		TareWeight:        b.TareWeight,
		UnitCount:         b.UnitCount,
		FormulaKind:       b.Formula.Kind.String(),
		FormulaParameter:  b.Formula.Parameter,
		FormulaDisplay:    b.Formula.Display(),
		InitialQuantity:   b.InitialQuantity,
		CurrentQuantity:   b.CurrentQuantity,
		Status:            b.Status(),
		PurchaseUnitPrice: b.PurchaseUnitPrice,
		FreightCost:       b.FreightCost,
		FreightPerUnit:    b.FreightPerUnit(),
		ExtraCost:         b.ExtraCost,
		StorageRate:       b.StorageRate,
		StorageFeePaid:    b.StorageFeePaid,
		StorageFeeAccrued: b.AccumulatedStorageFee(asOf),
		StorageDays:       b.StorageDays(asOf),
		RealCostPrice:     b.RealCostPrice(asOf),
		StockValue:        b.StockValue(asOf),
		ReceivedAt:        b.ReceivedAt,
		DepletedAt:        b.DepletedAt,
		IsInitial:         b.IsInitial,
		Notes:             b.Notes,
		Version:           b.Version,
	}
}

// OutboundView is the read model for one outbound lineage record
type OutboundView struct {
	ID                uuid.UUID        `json:"id"`
	BatchID           uuid.UUID        `json:"batch_id"`
	BatchNo           string           `json:"batch_no"`
	OrderID           string           `json:"order_id"`
	OrderItemID       string           `json:"order_item_id"`
	OrderType         ledger.OrderType `json:"order_type"`
	Quantity          decimal.Decimal  `json:"quantity"`
	AllocatedUnitCost decimal.Decimal  `json:"allocated_unit_cost"`
	AllocatedCost     decimal.Decimal  `json:"allocated_cost"`
	SaleUnitPrice     *decimal.Decimal `json:"sale_unit_price,omitempty"`
	SaleAmount        *decimal.Decimal `json:"sale_amount,omitempty"`
	Profit            *decimal.Decimal `json:"profit,omitempty"`
	Reversed          bool             `json:"reversed"`
	ReversedAt        *time.Time       `json:"reversed_at,omitempty"`
	AllocatedAt       time.Time        `json:"allocated_at"`
}

// NewOutboundView projects an outbound record
func NewOutboundView(r *ledger.OutboundRecord) OutboundView {
	return OutboundView{
		ID:                r.ID,
		BatchID:           r.BatchID,
		BatchNo:           r.BatchNo,
		OrderID:           r.OrderID,
		OrderItemID:       r.OrderItemID,
		OrderType:         r.OrderType,
		Quantity:          r.Quantity,
		AllocatedUnitCost: r.AllocatedUnitCost,
		AllocatedCost:     r.AllocatedCost,
		SaleUnitPrice:     r.SaleUnitPrice,
		SaleAmount:        r.SaleAmount(),
		Profit:            r.Profit(),
		Reversed:          r.Reversed,
		ReversedAt:        r.ReversedAt,
		AllocatedAt:       r.AllocatedAt,
	}
}

// AllocationResult summarises one successful allocation
type AllocationResult struct {
	OrderID          string          `json:"order_id"`
	OrderItemID      string          `json:"order_item_id"`
	TotalQuantity    decimal.Decimal `json:"total_quantity"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	WeightedUnitCost decimal.Decimal `json:"weighted_unit_cost"`
	Records          []OutboundView  `json:"records"`
}

// ReleaseResult summarises a reversed order
type ReleaseResult struct {
	OrderID          string          `json:"order_id"`
	ReversedRecords  int             `json:"reversed_records"`
	RestoredQuantity decimal.Decimal `json:"restored_quantity"`
	ReversedItems    []string        `json:"reversed_items,omitempty"`
}

// SettleStorageResult reports one settlement run
type SettleStorageResult struct {
	BatchID       uuid.UUID       `json:"batch_id"`
	BatchNo       string          `json:"batch_no"`
	SettledAmount decimal.Decimal `json:"settled_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
}
