package report

import (
	"context"
	"sort"
	"time"

	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockValueLine aggregates the live batches of one product at one warehouse
type StockValueLine struct {
	ProductID     uuid.UUID       `json:"product_id"`
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	BatchCount    int             `json:"batch_count"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
	AvgUnitCost   decimal.Decimal `json:"avg_unit_cost"`
}

// StockValueReport is the warehouse valuation as of a point in time
type StockValueReport struct {
	AsOf       time.Time        `json:"as_of"`
	Lines      []StockValueLine `json:"lines"`
	GrandTotal decimal.Decimal  `json:"grand_total"`
}

// BatchProfitLine summarises the realised result of one batch
type BatchProfitLine struct {
	BatchID       uuid.UUID       `json:"batch_id"`
	BatchNo       string          `json:"batch_no"`
	ProductID     uuid.UUID       `json:"product_id"`
	SoldQuantity  decimal.Decimal `json:"sold_quantity"`
	SalesAmount   decimal.Decimal `json:"sales_amount"`
	AllocatedCost decimal.Decimal `json:"allocated_cost"`
	Profit        decimal.Decimal `json:"profit"`
}

// BatchProfitReport lists realised profit per batch over the queried records
type BatchProfitReport struct {
	Lines       []BatchProfitLine `json:"lines"`
	TotalProfit decimal.Decimal   `json:"total_profit"`
}

// StockReportService derives valuation and profit reports from the ledger.
// All cost figures come from the batch's own real cost so reports can never
// drift from the allocation path.
type StockReportService struct {
	batchRepo    ledger.StockBatchRepository
	outboundRepo ledger.OutboundRecordRepository
	now          func() time.Time
}

// NewStockReportService creates a new StockReportService
func NewStockReportService(batchRepo ledger.StockBatchRepository, outboundRepo ledger.OutboundRecordRepository) *StockReportService {
	return &StockReportService{
		batchRepo:    batchRepo,
		outboundRepo: outboundRepo,
		now:          time.Now,
	}
}

// SetClock overrides the time source, used by tests
func (s *StockReportService) SetClock(now func() time.Time) {
	s.now = now
}

// StockValue values the remaining stock, grouped per product and warehouse.
// Pass nil filters to cover everything.
func (s *StockReportService) StockValue(ctx context.Context, productID, warehouseID *uuid.UUID) (*StockValueReport, error) {
	active := ledger.BatchStatusActive
	filter := ledger.BatchFilter{
		Filter:      shared.DefaultFilter(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		Status:      &active,
	}
	filter.PageSize = 1000

	now := s.now()
	report := &StockValueReport{AsOf: now, GrandTotal: decimal.Zero}
	type key struct {
		product   uuid.UUID
		warehouse uuid.UUID
	}
	lines := make(map[key]*StockValueLine)

	for page := 1; ; page++ {
		filter.Page = page
		result, err := s.batchRepo.FindAll(ctx, filter)
		if err != nil {
			return nil, err
		}
		for i := range result.Items {
			b := &result.Items[i]
			k := key{b.ProductID, b.WarehouseID}
			line, ok := lines[k]
			if !ok {
				line = &StockValueLine{
					ProductID:     b.ProductID,
					WarehouseID:   b.WarehouseID,
					TotalQuantity: decimal.Zero,
					TotalValue:    decimal.Zero,
				}
				lines[k] = line
			}
			line.BatchCount++
			line.TotalQuantity = line.TotalQuantity.Add(b.CurrentQuantity)
			line.TotalValue = line.TotalValue.Add(b.StockValue(now))
		}
		if page >= result.TotalPages {
			break
		}
	}

	for _, line := range lines {
		if line.TotalQuantity.GreaterThan(decimal.Zero) {
			line.AvgUnitCost = line.TotalValue.Div(line.TotalQuantity)
		}
		report.Lines = append(report.Lines, *line)
		report.GrandTotal = report.GrandTotal.Add(line.TotalValue)
	}
	sort.Slice(report.Lines, func(i, j int) bool {
		if report.Lines[i].ProductID != report.Lines[j].ProductID {
			return report.Lines[i].ProductID.String() < report.Lines[j].ProductID.String()
		}
		return report.Lines[i].WarehouseID.String() < report.Lines[j].WarehouseID.String()
	})
	return report, nil
}

// BatchSummaryLine aggregates the live batches under one grouping key
type BatchSummaryLine struct {
	GroupID       uuid.UUID       `json:"group_id"`
	BatchCount    int             `json:"batch_count"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// BatchSummaryReport groups live batches by product or by warehouse
type BatchSummaryReport struct {
	AsOf    time.Time          `json:"as_of"`
	GroupBy string             `json:"group_by"`
	Lines   []BatchSummaryLine `json:"lines"`
}

// BatchesByProduct summarises live batches per product, optionally limited
// to one warehouse
func (s *StockReportService) BatchesByProduct(ctx context.Context, warehouseID *uuid.UUID) (*BatchSummaryReport, error) {
	return s.summarise(ctx, "product", nil, warehouseID, func(b *ledger.StockBatch) uuid.UUID {
		return b.ProductID
	})
}

// BatchesByWarehouse summarises live batches per warehouse, optionally
// limited to one product
func (s *StockReportService) BatchesByWarehouse(ctx context.Context, productID *uuid.UUID) (*BatchSummaryReport, error) {
	return s.summarise(ctx, "warehouse", productID, nil, func(b *ledger.StockBatch) uuid.UUID {
		return b.WarehouseID
	})
}

func (s *StockReportService) summarise(ctx context.Context, groupBy string, productID, warehouseID *uuid.UUID, keyFn func(*ledger.StockBatch) uuid.UUID) (*BatchSummaryReport, error) {
	active := ledger.BatchStatusActive
	filter := ledger.BatchFilter{
		Filter:      shared.DefaultFilter(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		Status:      &active,
	}
	filter.PageSize = 1000

	now := s.now()
	lines := make(map[uuid.UUID]*BatchSummaryLine)

	for page := 1; ; page++ {
		filter.Page = page
		result, err := s.batchRepo.FindAll(ctx, filter)
		if err != nil {
			return nil, err
		}
		for i := range result.Items {
			b := &result.Items[i]
			k := keyFn(b)
			line, ok := lines[k]
			if !ok {
				line = &BatchSummaryLine{
					GroupID:       k,
					TotalQuantity: decimal.Zero,
					TotalValue:    decimal.Zero,
				}
				lines[k] = line
			}
			line.BatchCount++
			line.TotalQuantity = line.TotalQuantity.Add(b.CurrentQuantity)
			line.TotalValue = line.TotalValue.Add(b.StockValue(now))
		}
		if page >= result.TotalPages {
			break
		}
	}

	report := &BatchSummaryReport{AsOf: now, GroupBy: groupBy}
	for _, line := range lines {
		report.Lines = append(report.Lines, *line)
	}
	sort.Slice(report.Lines, func(i, j int) bool {
		return report.Lines[i].GroupID.String() < report.Lines[j].GroupID.String()
	})
	return report, nil
}

// BatchProfit sums realised sales against allocated cost per batch. Reversed
// records and records without a sale price are excluded.
func (s *StockReportService) BatchProfit(ctx context.Context, batchID *uuid.UUID) (*BatchProfitReport, error) {
	saleType := ledger.OrderTypeSale
	filter := ledger.OutboundFilter{
		Filter:    shared.DefaultFilter(),
		BatchID:   batchID,
		OrderType: &saleType,
	}
	filter.PageSize = 1000

	report := &BatchProfitReport{TotalProfit: decimal.Zero}
	lines := make(map[uuid.UUID]*BatchProfitLine)

	for page := 1; ; page++ {
		filter.Page = page
		result, err := s.outboundRepo.FindAll(ctx, filter)
		if err != nil {
			return nil, err
		}
		for i := range result.Items {
			r := &result.Items[i]
			if r.Reversed {
				continue
			}
			profit := r.Profit()
			if profit == nil {
				continue
			}

			line, ok := lines[r.BatchID]
			if !ok {
				line = &BatchProfitLine{
					BatchID:       r.BatchID,
					BatchNo:       r.BatchNo,
					SoldQuantity:  decimal.Zero,
					SalesAmount:   decimal.Zero,
					AllocatedCost: decimal.Zero,
					Profit:        decimal.Zero,
				}
				lines[r.BatchID] = line
			}
			line.SoldQuantity = line.SoldQuantity.Add(r.Quantity)
			if sale := r.SaleAmount(); sale != nil {
				line.SalesAmount = line.SalesAmount.Add(*sale)
			}
			line.AllocatedCost = line.AllocatedCost.Add(r.AllocatedCost)
			line.Profit = line.Profit.Add(*profit)
		}
		if page >= result.TotalPages {
			break
		}
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	batches, err := s.batchRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	productByBatch := make(map[uuid.UUID]uuid.UUID, len(batches))
	for i := range batches {
		productByBatch[batches[i].ID] = batches[i].ProductID
	}

	for _, id := range ids {
		line := lines[id]
		line.ProductID = productByBatch[id]
		report.Lines = append(report.Lines, *line)
		report.TotalProfit = report.TotalProfit.Add(line.Profit)
	}
	return report, nil
}
