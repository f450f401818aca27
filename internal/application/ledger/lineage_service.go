package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderInfo is the order metadata the lineage views are decorated with
type OrderInfo struct {
	OrderID      string     `json:"order_id"`
	OrderNo      string     `json:"order_no,omitempty"`
	CustomerName string     `json:"customer_name,omitempty"`
	PlacedAt     *time.Time `json:"placed_at,omitempty"`
}

// OrderDirectory resolves order metadata from the order subsystem. The
// lineage service treats it as best effort: a missing order or a directory
// error degrades the view instead of failing the query.
type OrderDirectory interface {
	// LookupOrder returns metadata for an order, or nil when unknown
	LookupOrder(ctx context.Context, orderID string) (*OrderInfo, error)
}

// BatchLineageView traces where a batch's stock went
type BatchLineageView struct {
	Batch          BatchView       `json:"batch"`
	Outbounds      []OutboundView  `json:"outbounds"`
	Orders         []OrderInfo     `json:"orders,omitempty"`
	TotalConsumed  decimal.Decimal `json:"total_consumed"`
	TotalReversed  decimal.Decimal `json:"total_reversed"`
	LiveRecords    int             `json:"live_records"`
	ReversedAmount int             `json:"reversed_records"`
}

// OrderItemLineage groups the records of one order item
type OrderItemLineage struct {
	OrderItemID   string           `json:"order_item_id"`
	Records       []OutboundView   `json:"records"`
	TotalQuantity decimal.Decimal  `json:"total_quantity"`
	TotalCost     decimal.Decimal  `json:"total_cost"`
	Profit        *decimal.Decimal `json:"profit,omitempty"`
}

// OrderLineageView traces which batches fed an order
type OrderLineageView struct {
	OrderID   string             `json:"order_id"`
	OrderInfo *OrderInfo         `json:"order_info,omitempty"`
	Items     []OrderItemLineage `json:"items"`
	TotalCost decimal.Decimal    `json:"total_cost"`
}

// LineageService answers read-only provenance questions: which orders drew
// on a batch, and which batches fed an order. It never mutates the ledger.
type LineageService struct {
	batchRepo    ledger.StockBatchRepository
	outboundRepo ledger.OutboundRecordRepository
	directory    OrderDirectory
	logger       *zap.Logger
	now          func() time.Time
}

// NewLineageService creates a new LineageService. directory may be nil when
// no order subsystem is wired in.
func NewLineageService(
	batchRepo ledger.StockBatchRepository,
	outboundRepo ledger.OutboundRecordRepository,
	directory OrderDirectory,
	logger *zap.Logger,
) *LineageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LineageService{
		batchRepo:    batchRepo,
		outboundRepo: outboundRepo,
		directory:    directory,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock overrides the time source, used by tests
func (s *LineageService) SetClock(now func() time.Time) {
	s.now = now
}

// BatchLineage returns the batch and every outbound record that drew on it,
// including reversed ones, decorated with whatever order metadata resolves.
func (s *LineageService) BatchLineage(ctx context.Context, batchID uuid.UUID) (*BatchLineageView, error) {
	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	records, err := s.outboundRepo.FindByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	view := BatchLineageView{
		Batch:         NewBatchView(batch, now),
		Outbounds:     make([]OutboundView, 0, len(records)),
		TotalConsumed: decimal.Zero,
		TotalReversed: decimal.Zero,
	}

	seenOrders := make(map[string]bool)
	for i := range records {
		r := &records[i]
		view.Outbounds = append(view.Outbounds, NewOutboundView(r))
		if r.Reversed {
			view.TotalReversed = view.TotalReversed.Add(r.Quantity)
			view.ReversedAmount++
			continue
		}
		view.TotalConsumed = view.TotalConsumed.Add(r.Quantity)
		view.LiveRecords++

		if seenOrders[r.OrderID] {
			continue
		}
		seenOrders[r.OrderID] = true
		if info := s.lookupOrder(ctx, r.OrderID); info != nil {
			view.Orders = append(view.Orders, *info)
		}
	}
	return &view, nil
}

// BatchLineageByNo is BatchLineage looked up by batch number
func (s *LineageService) BatchLineageByNo(ctx context.Context, batchNo string) (*BatchLineageView, error) {
	batch, err := s.batchRepo.FindByBatchNo(ctx, batchNo)
	if err != nil {
		return nil, err
	}
	return s.BatchLineage(ctx, batch.ID)
}

// OrderLineage returns the batches an order drew on, grouped per order item.
// Reversed records are excluded from the totals but kept in the record lists.
func (s *LineageService) OrderLineage(ctx context.Context, orderID string) (*OrderLineageView, error) {
	records, err := s.outboundRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	byItem := make(map[string]*OrderItemLineage)
	for i := range records {
		r := &records[i]
		item, ok := byItem[r.OrderItemID]
		if !ok {
			item = &OrderItemLineage{
				OrderItemID:   r.OrderItemID,
				Records:       make([]OutboundView, 0, 2),
				TotalQuantity: decimal.Zero,
				TotalCost:     decimal.Zero,
			}
			byItem[r.OrderItemID] = item
		}
		out := NewOutboundView(r)
		item.Records = append(item.Records, out)
		if r.Reversed {
			continue
		}
		item.TotalQuantity = item.TotalQuantity.Add(r.Quantity)
		item.TotalCost = item.TotalCost.Add(r.AllocatedCost)
		if p := out.Profit; p != nil {
			if item.Profit == nil {
				zero := decimal.Zero
				item.Profit = &zero
			}
			sum := item.Profit.Add(*p)
			item.Profit = &sum
		}
	}

	view := OrderLineageView{
		OrderID:   orderID,
		OrderInfo: s.lookupOrder(ctx, orderID),
		Items:     make([]OrderItemLineage, 0, len(byItem)),
		TotalCost: decimal.Zero,
	}
	for _, item := range byItem {
		view.Items = append(view.Items, *item)
		view.TotalCost = view.TotalCost.Add(item.TotalCost)
	}
	sort.Slice(view.Items, func(i, j int) bool {
		return view.Items[i].OrderItemID < view.Items[j].OrderItemID
	})
	return &view, nil
}

// lookupOrder resolves order metadata, degrading to nil on any failure
func (s *LineageService) lookupOrder(ctx context.Context, orderID string) *OrderInfo {
	if s.directory == nil {
		return nil
	}
	info, err := s.directory.LookupOrder(ctx, orderID)
	if err != nil {
		s.logger.Warn("order lookup failed, lineage view degraded",
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil
	}
	return info
}
