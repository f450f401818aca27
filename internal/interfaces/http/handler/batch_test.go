package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	appledger "github.com/coldtrade/backend/internal/application/ledger"
	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBatchRepo is an in-memory ledger.StockBatchRepository for handler tests
type fakeBatchRepo struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]ledger.StockBatch
	seqNo int
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{byID: make(map[uuid.UUID]ledger.StockBatch)}
}

func (r *fakeBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.StockBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &b, nil
}

func (r *fakeBatchRepo) FindByBatchNo(_ context.Context, batchNo string) (*ledger.StockBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.byID {
		if b.BatchNo == batchNo {
			copied := b
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeBatchRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]ledger.StockBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.StockBatch, 0, len(ids))
	for _, id := range ids {
		if b, ok := r.byID[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBatchRepo) FindAvailable(_ context.Context, productID, warehouseID uuid.UUID) ([]ledger.StockBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.StockBatch, 0)
	for _, b := range r.byID {
		if b.ProductID == productID && b.WarehouseID == warehouseID && b.IsActive() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *fakeBatchRepo) FindAll(_ context.Context, filter ledger.BatchFilter) (*shared.Paginated[ledger.StockBatch], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.StockBatch, 0)
	for _, b := range r.byID {
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
	sort.Slice(out, func(i, j int) bool { return out[i].BatchNo < out[j].BatchNo })
	result := shared.NewPaginated(out, int64(len(out)), 1, len(out)+1)
	return &result, nil
}

func (r *fakeBatchRepo) Save(_ context.Context, batch *ledger.StockBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[batch.ID] = *batch
	return nil
}

func (r *fakeBatchRepo) SaveWithLock(_ context.Context, batch *ledger.StockBatch, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[batch.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	r.byID[batch.ID] = *batch
	return nil
}

func (r *fakeBatchRepo) NextBatchNo(_ context.Context, day time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqNo++
	return fmt.Sprintf("PH%s-%03d", day.Format("20060102"), r.seqNo), nil
}

func (r *fakeBatchRepo) ExistsByBatchNo(_ context.Context, batchNo string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.byID {
		if b.BatchNo == batchNo {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBatchRepo) Count(_ context.Context, _ ledger.BatchFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byID)), nil
}

var _ ledger.StockBatchRepository = (*fakeBatchRepo)(nil)

// fakeOutboundRepo is an in-memory ledger.OutboundRecordRepository
type fakeOutboundRepo struct {
	mu      sync.Mutex
	records []ledger.OutboundRecord
}

func newFakeOutboundRepo() *fakeOutboundRepo {
	return &fakeOutboundRepo{}
}

func (r *fakeOutboundRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.OutboundRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id {
			copied := r.records[i]
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOutboundRepo) FindByOrderID(_ context.Context, orderID string) ([]ledger.OutboundRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.OutboundRecord, 0)
	for i := range r.records {
		if r.records[i].OrderID == orderID {
			out = append(out, r.records[i])
		}
	}
	sortRecordsByAllocation(out)
	return out, nil
}

func (r *fakeOutboundRepo) FindByBatchID(_ context.Context, batchID uuid.UUID) ([]ledger.OutboundRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.OutboundRecord, 0)
	for i := range r.records {
		if r.records[i].BatchID == batchID {
			out = append(out, r.records[i])
		}
	}
	sortRecordsByAllocation(out)
	return out, nil
}

// sortRecordsByAllocation mirrors the allocated_at, id read order of the SQL store
func sortRecordsByAllocation(records []ledger.OutboundRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].AllocatedAt.Equal(records[j].AllocatedAt) {
			return records[i].AllocatedAt.Before(records[j].AllocatedAt)
		}
		return records[i].ID.String() < records[j].ID.String()
	})
}

func (r *fakeOutboundRepo) FindAll(_ context.Context, filter ledger.OutboundFilter) (*shared.Paginated[ledger.OutboundRecord], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.OutboundRecord, 0)
	for i := range r.records {
		rec := r.records[i]
		if filter.BatchID != nil && rec.BatchID != *filter.BatchID {
			continue
		}
		if filter.OrderID != nil && rec.OrderID != *filter.OrderID {
			continue
		}
		if !filter.IncludeReversed && rec.Reversed {
			continue
		}
		out = append(out, rec)
	}
	result := shared.NewPaginated(out, int64(len(out)), 1, len(out)+1)
	return &result, nil
}

func (r *fakeOutboundRepo) Save(_ context.Context, record *ledger.OutboundRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == record.ID {
			r.records[i] = *record
			return nil
		}
	}
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeOutboundRepo) SaveAll(ctx context.Context, records []*ledger.OutboundRecord) error {
	for _, rec := range records {
		if err := r.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

var _ ledger.OutboundRecordRepository = (*fakeOutboundRepo)(nil)

// newLedgerTestRouter wires batch and allocation handlers over in-memory repos
func newLedgerTestRouter(t *testing.T) (*gin.Engine, *fakeBatchRepo, *fakeOutboundRepo, *AllocationHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	batchRepo := newFakeBatchRepo()
	outboundRepo := newFakeOutboundRepo()
	formulaRepo := newFakeFormulaRepo()
	scope := appledger.NewNoOpTransactionScope(batchRepo, outboundRepo)

	batchService := appledger.NewBatchService(batchRepo, formulaRepo, scope)
	allocationService := appledger.NewAllocationService(scope, outboundRepo)
	lineageService := appledger.NewLineageService(batchRepo, outboundRepo, nil, nil)

	batchHandler := NewBatchHandler(batchService, lineageService)
	allocationHandler := NewAllocationHandler(allocationService, lineageService)

	engine := gin.New()
	api := engine.Group("/api/v1")
	batchHandler.RegisterRoutes(api)
	allocationHandler.RegisterRoutes(api)
	return engine, batchRepo, outboundRepo, allocationHandler
}

func getJSON(t *testing.T, engine *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	engine.ServeHTTP(w, req)
	return w
}

// batchPayload holds the fields the batch tests read back
type batchPayload struct {
	ID              string `json:"id"`
	BatchNo         string `json:"batch_no"`
	InitialQuantity string `json:"initial_quantity"`
	CurrentQuantity string `json:"current_quantity"`
	TareWeight      string `json:"tare_weight"`
	Status          string `json:"status"`
	RealCostPrice   string `json:"real_cost_price"`
}

func TestBatchHandler_Create(t *testing.T) {
	productID := uuid.New().String()
	warehouseID := uuid.New().String()

	t.Run("derives the net quantity from gross weight and formula", func(t *testing.T) {
		engine, _, _, _ := newLedgerTestRouter(t)

		gross := 1000.0
		param := 0.98
		received := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
		w := postJSON(t, engine, "/api/v1/batches", CreateBatchRequest{
			ProductID:         productID,
			WarehouseID:       warehouseID,
			GrossWeight:       &gross,
			Formula:           &InlineFormulaRequest{Kind: "percentage", Parameter: &param},
			PurchaseUnitPrice: 12.5,
			ReceivedAt:        &received,
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp struct {
			Data batchPayload `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "PH20260410-001", resp.Data.BatchNo)
		assert.Equal(t, "980", resp.Data.InitialQuantity)
		assert.Equal(t, "980", resp.Data.CurrentQuantity)
		assert.Equal(t, "20", resp.Data.TareWeight)
		assert.Equal(t, "active", resp.Data.Status)
	})

	t.Run("rejects a duplicate explicit batch number", func(t *testing.T) {
		engine, _, _, _ := newLedgerTestRouter(t)

		qty := 100.0
		req := CreateBatchRequest{
			BatchNo:           "PH20260410-777",
			ProductID:         productID,
			WarehouseID:       warehouseID,
			InitialQuantity:   &qty,
			PurchaseUnitPrice: 10,
		}

		first := postJSON(t, engine, "/api/v1/batches", req)
		require.Equal(t, http.StatusCreated, first.Code)

		second := postJSON(t, engine, "/api/v1/batches", req)
		assert.Equal(t, http.StatusConflict, second.Code)
	})

	t.Run("rejects a request without product id at binding", func(t *testing.T) {
		engine, _, _, _ := newLedgerTestRouter(t)

		qty := 100.0
		w := postJSON(t, engine, "/api/v1/batches", CreateBatchRequest{
			WarehouseID:     warehouseID,
			InitialQuantity: &qty,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBatchHandler_Get(t *testing.T) {
	engine, _, _, _ := newLedgerTestRouter(t)

	qty := 50.0
	created := postJSON(t, engine, "/api/v1/batches", CreateBatchRequest{
		ProductID:         uuid.New().String(),
		WarehouseID:       uuid.New().String(),
		InitialQuantity:   &qty,
		PurchaseUnitPrice: 8,
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var resp struct {
		Data batchPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	t.Run("by id", func(t *testing.T) {
		w := getJSON(t, engine, "/api/v1/batches/"+resp.Data.ID)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("by batch number", func(t *testing.T) {
		w := getJSON(t, engine, "/api/v1/batches/"+resp.Data.BatchNo)
		assert.Equal(t, http.StatusOK, w.Code)

		var got struct {
			Data batchPayload `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, resp.Data.ID, got.Data.ID)
	})

	t.Run("unknown batch yields 404", func(t *testing.T) {
		w := getJSON(t, engine, "/api/v1/batches/"+uuid.New().String())
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBatchHandler_Adjust(t *testing.T) {
	engine, batchRepo, _, _ := newLedgerTestRouter(t)

	qty := 100.0
	created := postJSON(t, engine, "/api/v1/batches", CreateBatchRequest{
		ProductID:         uuid.New().String(),
		WarehouseID:       uuid.New().String(),
		InitialQuantity:   &qty,
		PurchaseUnitPrice: 10,
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var resp struct {
		Data batchPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))
	batchID := uuid.MustParse(resp.Data.ID)

	t.Run("corrects the quantity with a reason", func(t *testing.T) {
		w := postJSON(t, engine, "/api/v1/batches/"+resp.Data.ID+"/adjust", AdjustQuantityRequest{
			NewQuantity: 90,
			Reason:      "stocktake correction",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		stored, err := batchRepo.FindByID(context.Background(), batchID)
		require.NoError(t, err)
		assert.Equal(t, "90", stored.CurrentQuantity.String())
	})

	t.Run("requires a reason", func(t *testing.T) {
		w := postJSON(t, engine, "/api/v1/batches/"+resp.Data.ID+"/adjust", map[string]any{
			"new_quantity": 80,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBatchHandler_OutboundRecords(t *testing.T) {
	productID := uuid.New().String()
	warehouseID := uuid.New().String()

	engine, _, _, _ := newLedgerTestRouter(t)

	qty := 100.0
	created := postJSON(t, engine, "/api/v1/batches", CreateBatchRequest{
		ProductID:         productID,
		WarehouseID:       warehouseID,
		InitialQuantity:   &qty,
		PurchaseUnitPrice: 10,
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var batchResp struct {
		Data batchPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &batchResp))

	allocated := postJSON(t, engine, "/api/v1/allocations", AllocateRequest{
		OrderID:     "SO-500",
		OrderItemID: "SO-500-1",
		OrderType:   "sale",
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    30,
	})
	require.Equal(t, http.StatusCreated, allocated.Code)

	t.Run("lists the records drawn from the batch", func(t *testing.T) {
		w := getJSON(t, engine, "/api/v1/batches/"+batchResp.Data.ID+"/outbound-records")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Data []struct {
				BatchNo  string `json:"batch_no"`
				OrderID  string `json:"order_id"`
				Quantity string `json:"quantity"`
				Reversed bool   `json:"reversed"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, batchResp.Data.BatchNo, resp.Data[0].BatchNo)
		assert.Equal(t, "SO-500", resp.Data[0].OrderID)
		assert.Equal(t, "30", resp.Data[0].Quantity)
		assert.False(t, resp.Data[0].Reversed)
	})

	t.Run("rejects a malformed batch id", func(t *testing.T) {
		w := getJSON(t, engine, "/api/v1/batches/not-a-uuid/outbound-records")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
