package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxAllocationRetries bounds how often an allocation is replanned after an
// optimistic-lock conflict before the conflict is surfaced to the caller.
const maxAllocationRetries = 3

// AllocationService consumes batch stock for orders and reverses it on
// release. An allocation is all-or-nothing: every batch deduction and every
// lineage record commits in one transaction, and a shortfall anywhere rolls
// back the whole request.
type AllocationService struct {
	scope          TransactionScope
	outboundRepo   ledger.OutboundRecordRepository
	eventPublisher shared.EventPublisher
	now            func() time.Time
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(scope TransactionScope, outboundRepo ledger.OutboundRecordRepository) *AllocationService {
	return &AllocationService{
		scope:        scope,
		outboundRepo: outboundRepo,
		now:          time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *AllocationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock overrides the time source, used by tests
func (s *AllocationService) SetClock(now func() time.Time) {
	s.now = now
}

// Allocate consumes stock for one order item. Batches are chosen FIFO unless
// the command names explicit batches. On an optimistic-lock conflict the
// whole request is replanned against fresh state, up to maxAllocationRetries
// times.
func (s *AllocationService) Allocate(ctx context.Context, cmd AllocateCommand) (*AllocationResult, error) {
	if err := s.validateAllocate(cmd); err != nil {
		return nil, err
	}

	var result *AllocationResult
	var lastErr error
	for attempt := 0; attempt < maxAllocationRetries; attempt++ {
		result, lastErr = s.allocateOnce(ctx, cmd)
		if lastErr == nil {
			return result, nil
		}
		if !errors.Is(lastErr, shared.ErrConcurrencyConflict) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// allocateOnce plans and applies one allocation attempt in a single transaction
func (s *AllocationService) allocateOnce(ctx context.Context, cmd AllocateCommand) (*AllocationResult, error) {
	now := s.now()
	var result AllocationResult
	var touched []*ledger.StockBatch
	var created []*ledger.OutboundRecord

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.OutboundRepo().FindByOrderID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		for i := range existing {
			if existing[i].OrderItemID == cmd.OrderItemID && !existing[i].Reversed {
				return shared.NewDomainError("ALREADY_EXISTS",
					fmt.Sprintf("order item %s of order %s is already allocated", cmd.OrderItemID, cmd.OrderID))
			}
		}

		batches, err := repos.BatchRepo().FindAvailable(ctx, cmd.ProductID, cmd.WarehouseID)
		if err != nil {
			return err
		}

		policy := s.policyFor(cmd)
		plan, err := policy.Plan(cmd.Quantity, batches, now)
		if err != nil {
			return err
		}
		if !plan.FullyFulfilled {
			return shared.NewDomainError("INSUFFICIENT_STOCK",
				fmt.Sprintf("short %s of %s requested for product %s",
					plan.UnfulfilledAmount.String(), cmd.Quantity.String(), cmd.ProductID))
		}

		byID := make(map[string]*ledger.StockBatch, len(batches))
		for i := range batches {
			byID[batches[i].ID.String()] = &batches[i]
		}

		// Records are created in the plan's order, so the result and the
		// persisted lineage both read in FIFO batch order. Each record is
		// stamped a nanosecond after the previous one; the allocated_at, id
		// sort on read-back then reproduces creation order.
		records := make([]*ledger.OutboundRecord, 0, len(plan.Deductions))
		for i, d := range plan.Deductions {
			batch, ok := byID[d.BatchID.String()]
			if !ok {
				return shared.NewDomainError("BATCH_NOT_FOUND", fmt.Sprintf("planned batch %s disappeared", d.BatchNo))
			}

			// The record captures the unit cost before the deduction so the
			// remaining-quantity based storage accrual cannot skew it.
			record, err := ledger.NewOutboundRecord(batch, cmd.OrderID, cmd.OrderItemID, cmd.OrderType, d.Quantity, cmd.SaleUnitPrice, now.Add(time.Duration(i)))
			if err != nil {
				return err
			}
			records = append(records, record)
		}

		// The deductions themselves are applied in ascending batch id order
		// so concurrent allocations touch rows in the same sequence.
		deductions := make([]ledger.PlannedDeduction, len(plan.Deductions))
		copy(deductions, plan.Deductions)
		sort.Slice(deductions, func(i, j int) bool {
			return deductions[i].BatchID.String() < deductions[j].BatchID.String()
		})

		for _, d := range deductions {
			batch := byID[d.BatchID.String()]
			expectedVersion := batch.Version
			if err := batch.Decrement(d.Quantity, now); err != nil {
				return err
			}
			if err := repos.BatchRepo().SaveWithLock(ctx, batch, expectedVersion); err != nil {
				return err
			}
			touched = append(touched, batch)
		}

		if err := repos.OutboundRepo().SaveAll(ctx, records); err != nil {
			return err
		}
		created = records

		views := make([]OutboundView, 0, len(records))
		for _, r := range records {
			views = append(views, NewOutboundView(r))
		}
		result = AllocationResult{
			OrderID:          cmd.OrderID,
			OrderItemID:      cmd.OrderItemID,
			TotalQuantity:    plan.TotalQuantity,
			TotalCost:        plan.TotalCost,
			WeightedUnitCost: plan.WeightedUnitCost(),
			Records:          views,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, b := range touched {
		s.publishEvents(ctx, b)
	}
	for _, r := range created {
		s.publishEvents(ctx, r)
	}
	return &result, nil
}

// ReleaseOrder reverses every live outbound record of an order and restores
// the quantities to their batches, newest record first. Releasing an order
// with nothing left to reverse is a no-op, so a re-delivered release message
// cannot restore stock twice.
func (s *AllocationService) ReleaseOrder(ctx context.Context, orderID string) (*ReleaseResult, error) {
	if orderID == "" {
		return nil, shared.NewValidationError("order_id", "order id is required")
	}

	var result *ReleaseResult
	var lastErr error
	for attempt := 0; attempt < maxAllocationRetries; attempt++ {
		result, lastErr = s.releaseOnce(ctx, orderID)
		if lastErr == nil {
			return result, nil
		}
		if !errors.Is(lastErr, shared.ErrConcurrencyConflict) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (s *AllocationService) releaseOnce(ctx context.Context, orderID string) (*ReleaseResult, error) {
	now := s.now()
	var result ReleaseResult
	var touched []*ledger.StockBatch
	var reversed []*ledger.OutboundRecord

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		records, err := repos.OutboundRepo().FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}

		restored := decimal.Zero
		count := 0
		seenItems := make(map[string]bool)
		var items []string

		// Reverse newest first, undoing the allocation in the opposite
		// order it was applied.
		for i := len(records) - 1; i >= 0; i-- {
			record := &records[i]
			if record.Reversed {
				continue
			}

			batch, err := repos.BatchRepo().FindByID(ctx, record.BatchID)
			if err != nil {
				return err
			}

			expectedVersion := batch.Version
			if err := batch.Restore(record.Quantity, now); err != nil {
				return err
			}
			if err := repos.BatchRepo().SaveWithLock(ctx, batch, expectedVersion); err != nil {
				return err
			}

			if err := record.MarkReversed(now); err != nil {
				return err
			}
			if err := repos.OutboundRepo().Save(ctx, record); err != nil {
				return err
			}

			restored = restored.Add(record.Quantity)
			count++
			if !seenItems[record.OrderItemID] {
				seenItems[record.OrderItemID] = true
				items = append(items, record.OrderItemID)
			}
			touched = append(touched, batch)
			reversed = append(reversed, record)
		}

		result = ReleaseResult{
			OrderID:          orderID,
			ReversedRecords:  count,
			RestoredQuantity: restored,
			ReversedItems:    items,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, b := range touched {
		s.publishEvents(ctx, b)
	}
	for _, r := range reversed {
		s.publishEvents(ctx, r)
	}
	return &result, nil
}

// GetOrderAllocations returns the outbound records of an order, oldest first
func (s *AllocationService) GetOrderAllocations(ctx context.Context, orderID string) ([]OutboundView, error) {
	if orderID == "" {
		return nil, shared.NewValidationError("order_id", "order id is required")
	}
	records, err := s.outboundRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	views := make([]OutboundView, 0, len(records))
	for i := range records {
		views = append(views, NewOutboundView(&records[i]))
	}
	return views, nil
}

func (s *AllocationService) validateAllocate(cmd AllocateCommand) error {
	if cmd.OrderID == "" {
		return shared.NewValidationError("order_id", "order id is required")
	}
	if cmd.OrderItemID == "" {
		return shared.NewValidationError("order_item_id", "order item id is required")
	}
	if !cmd.OrderType.IsValid() {
		return shared.NewValidationError("order_type", "unknown order type")
	}
	if cmd.ProductID == uuid.Nil {
		return shared.NewValidationError("product_id", "product is required")
	}
	if cmd.WarehouseID == uuid.Nil {
		return shared.NewValidationError("warehouse_id", "warehouse is required")
	}
	if cmd.Quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("quantity", "quantity must be positive")
	}
	if cmd.SaleUnitPrice != nil && cmd.SaleUnitPrice.IsNegative() {
		return shared.NewValidationError("sale_unit_price", "sale price cannot be negative")
	}
	return nil
}

// policyFor picks explicit batch selection when the command names batches,
// otherwise FIFO
func (s *AllocationService) policyFor(cmd AllocateCommand) ledger.SelectionPolicy {
	if len(cmd.BatchRequests) > 0 {
		return ledger.NewSpecifiedSelectionPolicy(cmd.BatchRequests)
	}
	return ledger.NewFIFOSelectionPolicy()
}

// publishEvents drains and publishes pending domain events, best effort
func (s *AllocationService) publishEvents(ctx context.Context, aggregate shared.AggregateRoot) {
	if s.eventPublisher == nil {
		aggregate.ClearDomainEvents()
		return
	}
	for _, event := range aggregate.GetDomainEvents() {
		_ = s.eventPublisher.Publish(ctx, event)
	}
	aggregate.ClearDomainEvents()
}
