package ledger

import (
	"sort"
	"time"

	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/coldtrade/backend/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SelectionPolicyType defines the type of batch selection policy
type SelectionPolicyType string

const (
	// SelectionPolicyTypeFIFO consumes the oldest batches first by received date
	SelectionPolicyTypeFIFO SelectionPolicyType = "FIFO"
	// SelectionPolicyTypeSpecified uses caller-chosen batches in order
	SelectionPolicyTypeSpecified SelectionPolicyType = "SPECIFIED"
)

// IsValid checks if the policy type is valid
func (t SelectionPolicyType) IsValid() bool {
	switch t {
	case SelectionPolicyTypeFIFO, SelectionPolicyTypeSpecified:
		return true
	}
	return false
}

// String returns the string representation
func (t SelectionPolicyType) String() string {
	return string(t)
}

// BatchRequest pins an allocation to a specific batch
type BatchRequest struct {
	BatchID  uuid.UUID       // batch to take from
	Quantity decimal.Decimal // zero means take as much as possible
}

// PlannedDeduction is one step of an allocation plan: take Quantity from BatchID
type PlannedDeduction struct {
	BatchID          uuid.UUID
	BatchNo          string
	Quantity         decimal.Decimal
	UnitCost         decimal.Decimal // real cost per unit at planning time
	Cost             decimal.Decimal // Quantity * UnitCost
	RemainingInBatch decimal.Decimal
	FullyConsumed    bool
}

// AllocationPlan is the complete output of a selection policy. The plan is
// computed over in-memory copies; nothing is persisted until the allocator
// applies it inside a transaction.
type AllocationPlan struct {
	Deductions        []PlannedDeduction
	TotalQuantity     decimal.Decimal
	TotalCost         decimal.Decimal
	UnfulfilledAmount decimal.Decimal // nonzero means the stock on hand was not enough
	FullyFulfilled    bool
}

// WeightedUnitCost returns the blended per-unit cost of the plan
func (p *AllocationPlan) WeightedUnitCost() decimal.Decimal {
	if p.TotalQuantity.IsZero() {
		return decimal.Zero
	}
	return p.TotalCost.Div(p.TotalQuantity)
}

// SelectionPolicy decides which batches satisfy an outbound request
type SelectionPolicy interface {
	strategy.Strategy
	// PolicyType returns the selection policy type
	PolicyType() SelectionPolicyType
	// Plan calculates which batches to use and how much to take from each
	Plan(requested decimal.Decimal, batches []StockBatch, asOf time.Time) (*AllocationPlan, error)
}

// FIFOSelectionPolicy consumes stock oldest-first by received date. Ties on
// the received date break on the batch id so the order is deterministic.
type FIFOSelectionPolicy struct {
	strategy.BaseStrategy
}

// NewFIFOSelectionPolicy creates a new FIFO selection policy
func NewFIFOSelectionPolicy() *FIFOSelectionPolicy {
	return &FIFOSelectionPolicy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fifo_selection",
			strategy.StrategyTypeSelection,
			"FIFO selection policy - consumes the oldest batches first by received date",
		),
	}
}

// PolicyType returns the selection policy type
func (p *FIFOSelectionPolicy) PolicyType() SelectionPolicyType {
	return SelectionPolicyTypeFIFO
}

// Plan selects batches in FIFO order (oldest received first)
func (p *FIFOSelectionPolicy) Plan(requested decimal.Decimal, batches []StockBatch, asOf time.Time) (*AllocationPlan, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "requested quantity must be positive")
	}

	available := filterAvailableBatches(batches)
	if len(available) == 0 {
		return emptyPlan(requested), nil
	}

	sorted := make([]StockBatch, len(available))
	copy(sorted, available)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ReceivedAt.Equal(sorted[j].ReceivedAt) {
			return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	return planDeductions(requested, sorted, asOf), nil
}

// SpecifiedSelectionPolicy takes from caller-chosen batches in the given order
type SpecifiedSelectionPolicy struct {
	strategy.BaseStrategy
	requests []BatchRequest
}

// NewSpecifiedSelectionPolicy creates a new specified selection policy
func NewSpecifiedSelectionPolicy(requests []BatchRequest) *SpecifiedSelectionPolicy {
	return &SpecifiedSelectionPolicy{
		BaseStrategy: strategy.NewBaseStrategy(
			"specified_selection",
			strategy.StrategyTypeSelection,
			"Specified selection policy - uses caller-chosen batches in order",
		),
		requests: requests,
	}
}

// PolicyType returns the selection policy type
func (p *SpecifiedSelectionPolicy) PolicyType() SelectionPolicyType {
	return SelectionPolicyTypeSpecified
}

// Requests returns the configured batch requests
func (p *SpecifiedSelectionPolicy) Requests() []BatchRequest {
	return p.requests
}

// Plan takes from the requested batches in order. A request naming a batch
// that is missing, depleted or retired makes the whole plan fail rather than
// silently falling back to other stock.
func (p *SpecifiedSelectionPolicy) Plan(requested decimal.Decimal, batches []StockBatch, asOf time.Time) (*AllocationPlan, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "requested quantity must be positive")
	}
	if len(p.requests) == 0 {
		return nil, shared.NewDomainError("NO_BATCH_REQUESTS", "specified policy requires at least one batch request")
	}

	batchMap := make(map[uuid.UUID]*StockBatch)
	for i := range batches {
		batchMap[batches[i].ID] = &batches[i]
	}

	deductions := make([]PlannedDeduction, 0, len(p.requests))
	remaining := requested
	totalQuantity := decimal.Zero
	totalCost := decimal.Zero

	for _, req := range p.requests {
		if remaining.IsZero() {
			break
		}

		batch, exists := batchMap[req.BatchID]
		if !exists {
			return nil, shared.NewDomainError("BATCH_NOT_FOUND", "requested batch "+req.BatchID.String()+" does not exist for this product and warehouse")
		}
		if batch.Retired || !batch.IsActive() {
			return nil, shared.NewDomainError("BATCH_UNAVAILABLE", "requested batch "+batch.BatchNo+" has no available stock")
		}

		var take decimal.Decimal
		if req.Quantity.LessThanOrEqual(decimal.Zero) {
			take = decimal.Min(remaining, batch.CurrentQuantity)
		} else {
			take = decimal.Min(req.Quantity, remaining)
			take = decimal.Min(take, batch.CurrentQuantity)
		}
		if take.LessThanOrEqual(decimal.Zero) {
			continue
		}

		unitCost := batch.RealCostPrice(asOf)
		cost := take.Mul(unitCost)
		remainingInBatch := batch.CurrentQuantity.Sub(take)

		deductions = append(deductions, PlannedDeduction{
			BatchID:          batch.ID,
			BatchNo:          batch.BatchNo,
			Quantity:         take,
			UnitCost:         unitCost,
			Cost:             cost,
			RemainingInBatch: remainingInBatch,
			FullyConsumed:    remainingInBatch.IsZero(),
		})

		totalQuantity = totalQuantity.Add(take)
		totalCost = totalCost.Add(cost)
		remaining = remaining.Sub(take)
	}

	return &AllocationPlan{
		Deductions:        deductions,
		TotalQuantity:     totalQuantity,
		TotalCost:         totalCost,
		UnfulfilledAmount: remaining,
		FullyFulfilled:    remaining.IsZero(),
	}, nil
}

// filterAvailableBatches keeps batches that still hold stock and are not retired
func filterAvailableBatches(batches []StockBatch) []StockBatch {
	available := make([]StockBatch, 0, len(batches))
	for _, b := range batches {
		if !b.Retired && b.CurrentQuantity.GreaterThan(decimal.Zero) {
			available = append(available, b)
		}
	}
	return available
}

// planDeductions walks sorted batches and takes greedily until the request is met
func planDeductions(requested decimal.Decimal, sorted []StockBatch, asOf time.Time) *AllocationPlan {
	deductions := make([]PlannedDeduction, 0)
	remaining := requested
	totalQuantity := decimal.Zero
	totalCost := decimal.Zero

	for i := range sorted {
		if remaining.IsZero() {
			break
		}
		batch := &sorted[i]

		take := decimal.Min(remaining, batch.CurrentQuantity)
		unitCost := batch.RealCostPrice(asOf)
		cost := take.Mul(unitCost)
		remainingInBatch := batch.CurrentQuantity.Sub(take)

		deductions = append(deductions, PlannedDeduction{
			BatchID:          batch.ID,
			BatchNo:          batch.BatchNo,
			Quantity:         take,
			UnitCost:         unitCost,
			Cost:             cost,
			RemainingInBatch: remainingInBatch,
			FullyConsumed:    remainingInBatch.IsZero(),
		})

		totalQuantity = totalQuantity.Add(take)
		totalCost = totalCost.Add(cost)
		remaining = remaining.Sub(take)
	}

	return &AllocationPlan{
		Deductions:        deductions,
		TotalQuantity:     totalQuantity,
		TotalCost:         totalCost,
		UnfulfilledAmount: remaining,
		FullyFulfilled:    remaining.IsZero(),
	}
}

// emptyPlan returns a plan fulfilling nothing
func emptyPlan(requested decimal.Decimal) *AllocationPlan {
	return &AllocationPlan{
		Deductions:        make([]PlannedDeduction, 0),
		TotalQuantity:     decimal.Zero,
		TotalCost:         decimal.Zero,
		UnfulfilledAmount: requested,
		FullyFulfilled:    false,
	}
}
