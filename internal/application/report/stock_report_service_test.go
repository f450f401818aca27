package report

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/coldtrade/backend/internal/domain/shared"
)

type stubBatchRepo struct {
	batches []ledger.StockBatch
}

func (s *stubBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.StockBatch, error) {
	for i := range s.batches {
		if s.batches[i].ID == id {
			b := s.batches[i]
			return &b, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubBatchRepo) FindByBatchNo(_ context.Context, batchNo string) (*ledger.StockBatch, error) {
	for i := range s.batches {
		if s.batches[i].BatchNo == batchNo {
			b := s.batches[i]
			return &b, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubBatchRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]ledger.StockBatch, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]ledger.StockBatch, 0)
	for i := range s.batches {
		if want[s.batches[i].ID] {
			out = append(out, s.batches[i])
		}
	}
	return out, nil
}

func (s *stubBatchRepo) FindAvailable(_ context.Context, productID, warehouseID uuid.UUID) ([]ledger.StockBatch, error) {
	out := make([]ledger.StockBatch, 0)
	for i := range s.batches {
		b := s.batches[i]
		if b.ProductID == productID && b.WarehouseID == warehouseID && b.IsActive() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubBatchRepo) FindAll(_ context.Context, filter ledger.BatchFilter) (*shared.Paginated[ledger.StockBatch], error) {
	out := make([]ledger.StockBatch, 0)
	for i := range s.batches {
		b := s.batches[i]
		if filter.ProductID != nil && b.ProductID != *filter.ProductID {
			continue
		}
		if filter.WarehouseID != nil && b.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.Status != nil && b.Status() != *filter.Status {
			continue
		}
		out = append(out, b)
	}
	result := shared.NewPaginated(out, int64(len(out)), 1, len(out)+1)
	return &result, nil
}

func (s *stubBatchRepo) Save(_ context.Context, _ *ledger.StockBatch) error { return nil }

func (s *stubBatchRepo) SaveWithLock(_ context.Context, _ *ledger.StockBatch, _ int) error {
	return nil
}

func (s *stubBatchRepo) NextBatchNo(_ context.Context, _ time.Time) (string, error) {
	return "", nil
}

func (s *stubBatchRepo) ExistsByBatchNo(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *stubBatchRepo) Count(_ context.Context, _ ledger.BatchFilter) (int64, error) {
	return int64(len(s.batches)), nil
}

type stubOutboundRepo struct {
	records []ledger.OutboundRecord
}

func (s *stubOutboundRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.OutboundRecord, error) {
	for i := range s.records {
		if s.records[i].ID == id {
			r := s.records[i]
			return &r, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubOutboundRepo) FindByOrderID(_ context.Context, orderID string) ([]ledger.OutboundRecord, error) {
	out := make([]ledger.OutboundRecord, 0)
	for i := range s.records {
		if s.records[i].OrderID == orderID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *stubOutboundRepo) FindByBatchID(_ context.Context, batchID uuid.UUID) ([]ledger.OutboundRecord, error) {
	out := make([]ledger.OutboundRecord, 0)
	for i := range s.records {
		if s.records[i].BatchID == batchID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *stubOutboundRepo) FindAll(_ context.Context, filter ledger.OutboundFilter) (*shared.Paginated[ledger.OutboundRecord], error) {
	out := make([]ledger.OutboundRecord, 0)
	for i := range s.records {
		r := s.records[i]
		if filter.BatchID != nil && r.BatchID != *filter.BatchID {
			continue
		}
		if filter.OrderID != nil && r.OrderID != *filter.OrderID {
			continue
		}
		if filter.OrderType != nil && r.OrderType != *filter.OrderType {
			continue
		}
		if !filter.IncludeReversed && r.Reversed {
			continue
		}
		out = append(out, r)
	}
	result := shared.NewPaginated(out, int64(len(out)), 1, len(out)+1)
	return &result, nil
}

func (s *stubOutboundRepo) Save(_ context.Context, _ *ledger.OutboundRecord) error { return nil }

func (s *stubOutboundRepo) SaveAll(_ context.Context, _ []*ledger.OutboundRecord) error { return nil }

var reportNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func newReportBatch(t *testing.T, batchNo string, productID, warehouseID uuid.UUID, quantity, unitPrice float64) *ledger.StockBatch {
	t.Helper()
	qty := decimal.NewFromFloat(quantity)
	b, err := ledger.NewStockBatch(ledger.NewBatchInput{
		BatchNo:           batchNo,
		ProductID:         productID,
		WarehouseID:       warehouseID,
		InitialQuantity:   &qty,
		PurchaseUnitPrice: decimal.NewFromFloat(unitPrice),
		ReceivedAt:        reportNow.AddDate(0, 0, -7),
	})
	require.NoError(t, err)
	return b
}

func newReportServiceUnderTest(batches []ledger.StockBatch, records []ledger.OutboundRecord) *StockReportService {
	svc := NewStockReportService(&stubBatchRepo{batches: batches}, &stubOutboundRepo{records: records})
	svc.SetClock(func() time.Time { return reportNow })
	return svc
}

func TestStockReportServiceStockValue(t *testing.T) {
	ctx := context.Background()

	productA := uuid.New()
	productB := uuid.New()
	warehouse := uuid.New()

	batches := []ledger.StockBatch{
		*newReportBatch(t, "PH20260325-001", productA, warehouse, 100, 10),
		*newReportBatch(t, "PH20260325-002", productA, warehouse, 50, 12),
		*newReportBatch(t, "PH20260325-003", productB, warehouse, 20, 5),
	}

	t.Run("groups live batches per product and warehouse", func(t *testing.T) {
		svc := newReportServiceUnderTest(batches, nil)

		rep, err := svc.StockValue(ctx, nil, nil)
		require.NoError(t, err)
		require.Len(t, rep.Lines, 2)
		assert.True(t, rep.GrandTotal.Equal(decimal.NewFromInt(1700)))

		byProduct := make(map[uuid.UUID]StockValueLine)
		for _, line := range rep.Lines {
			byProduct[line.ProductID] = line
		}

		lineA := byProduct[productA]
		assert.Equal(t, 2, lineA.BatchCount)
		assert.True(t, lineA.TotalQuantity.Equal(decimal.NewFromInt(150)))
		assert.True(t, lineA.TotalValue.Equal(decimal.NewFromInt(1600)))
		assert.True(t, lineA.AvgUnitCost.Equal(lineA.TotalValue.Div(lineA.TotalQuantity)))

		lineB := byProduct[productB]
		assert.Equal(t, 1, lineB.BatchCount)
		assert.True(t, lineB.TotalValue.Equal(decimal.NewFromInt(100)))
	})

	t.Run("filters by product", func(t *testing.T) {
		svc := newReportServiceUnderTest(batches, nil)

		rep, err := svc.StockValue(ctx, &productB, nil)
		require.NoError(t, err)
		require.Len(t, rep.Lines, 1)
		assert.Equal(t, productB, rep.Lines[0].ProductID)
		assert.True(t, rep.GrandTotal.Equal(decimal.NewFromInt(100)))
	})

	t.Run("empty ledger yields an empty report", func(t *testing.T) {
		svc := newReportServiceUnderTest(nil, nil)

		rep, err := svc.StockValue(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, rep.Lines)
		assert.True(t, rep.GrandTotal.IsZero())
	})
}

func TestStockReportServiceBatchSummaries(t *testing.T) {
	ctx := context.Background()

	productA := uuid.New()
	productB := uuid.New()
	warehouse1 := uuid.New()
	warehouse2 := uuid.New()

	batches := []ledger.StockBatch{
		*newReportBatch(t, "PH20260326-001", productA, warehouse1, 100, 10),
		*newReportBatch(t, "PH20260326-002", productA, warehouse2, 30, 10),
		*newReportBatch(t, "PH20260326-003", productB, warehouse1, 40, 8),
	}

	t.Run("by product", func(t *testing.T) {
		svc := newReportServiceUnderTest(batches, nil)

		rep, err := svc.BatchesByProduct(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "product", rep.GroupBy)
		require.Len(t, rep.Lines, 2)

		byGroup := make(map[uuid.UUID]BatchSummaryLine)
		for _, line := range rep.Lines {
			byGroup[line.GroupID] = line
		}
		assert.Equal(t, 2, byGroup[productA].BatchCount)
		assert.True(t, byGroup[productA].TotalQuantity.Equal(decimal.NewFromInt(130)))
		assert.Equal(t, 1, byGroup[productB].BatchCount)
	})

	t.Run("by product limited to one warehouse", func(t *testing.T) {
		svc := newReportServiceUnderTest(batches, nil)

		rep, err := svc.BatchesByProduct(ctx, &warehouse2)
		require.NoError(t, err)
		require.Len(t, rep.Lines, 1)
		assert.Equal(t, productA, rep.Lines[0].GroupID)
		assert.True(t, rep.Lines[0].TotalQuantity.Equal(decimal.NewFromInt(30)))
	})

	t.Run("by warehouse", func(t *testing.T) {
		svc := newReportServiceUnderTest(batches, nil)

		rep, err := svc.BatchesByWarehouse(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "warehouse", rep.GroupBy)
		require.Len(t, rep.Lines, 2)

		byGroup := make(map[uuid.UUID]BatchSummaryLine)
		for _, line := range rep.Lines {
			byGroup[line.GroupID] = line
		}
		assert.Equal(t, 2, byGroup[warehouse1].BatchCount)
		assert.True(t, byGroup[warehouse1].TotalValue.Equal(decimal.NewFromInt(1320)))
		assert.Equal(t, 1, byGroup[warehouse2].BatchCount)
	})
}

func TestStockReportServiceBatchProfit(t *testing.T) {
	ctx := context.Background()

	productID := uuid.New()
	warehouseID := uuid.New()
	batch := newReportBatch(t, "PH20260327-001", productID, warehouseID, 100, 10)

	salePrice := decimal.NewFromInt(15)

	sold, err := ledger.NewOutboundRecord(batch, "SO-1", "SO-1-1", ledger.OrderTypeSale, decimal.NewFromInt(20), &salePrice, reportNow)
	require.NoError(t, err)

	reversedRec, err := ledger.NewOutboundRecord(batch, "SO-2", "SO-2-1", ledger.OrderTypeSale, decimal.NewFromInt(10), &salePrice, reportNow)
	require.NoError(t, err)
	require.NoError(t, reversedRec.MarkReversed(reportNow))

	transfer, err := ledger.NewOutboundRecord(batch, "TR-1", "TR-1-1", ledger.OrderTypeTransfer, decimal.NewFromInt(5), nil, reportNow)
	require.NoError(t, err)

	records := []ledger.OutboundRecord{*sold, *reversedRec, *transfer}

	t.Run("sums realised profit, skipping reversed and non-sale records", func(t *testing.T) {
		svc := newReportServiceUnderTest([]ledger.StockBatch{*batch}, records)

		rep, err := svc.BatchProfit(ctx, nil)
		require.NoError(t, err)
		require.Len(t, rep.Lines, 1)

		line := rep.Lines[0]
		assert.Equal(t, batch.ID, line.BatchID)
		assert.Equal(t, "PH20260327-001", line.BatchNo)
		assert.Equal(t, productID, line.ProductID)
		assert.True(t, line.SoldQuantity.Equal(decimal.NewFromInt(20)))
		assert.True(t, line.SalesAmount.Equal(decimal.NewFromInt(300)))
		assert.True(t, line.AllocatedCost.Equal(decimal.NewFromInt(200)))
		assert.True(t, line.Profit.Equal(decimal.NewFromInt(100)))
		assert.True(t, rep.TotalProfit.Equal(decimal.NewFromInt(100)))
	})

	t.Run("filter by batch id with no sales yields an empty report", func(t *testing.T) {
		svc := newReportServiceUnderTest([]ledger.StockBatch{*batch}, records)

		other := uuid.New()
		rep, err := svc.BatchProfit(ctx, &other)
		require.NoError(t, err)
		assert.Empty(t, rep.Lines)
		assert.True(t, rep.TotalProfit.IsZero())
	})
}
