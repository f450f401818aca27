package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// memBatchRepo is an in-memory StockBatchRepository with real optimistic
// locking semantics, so the allocator's retry path can be exercised without
// a database.
type memBatchRepo struct {
	mu       sync.Mutex
	items    map[uuid.UUID]ledger.StockBatch
	seq      map[string]int
	conflict int // fail the next N SaveWithLock calls with a conflict
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{
		items: make(map[uuid.UUID]ledger.StockBatch),
		seq:   make(map[string]int),
	}
}

func (m *memBatchRepo) put(b *ledger.StockBatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[b.ID] = *b
}

func (m *memBatchRepo) get(id uuid.UUID) ledger.StockBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

func (m *memBatchRepo) injectConflicts(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflict = n
}

func (m *memBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.StockBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := b
	return &copied, nil
}

func (m *memBatchRepo) FindByBatchNo(_ context.Context, batchNo string) (*ledger.StockBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.items {
		if b.BatchNo == batchNo {
			copied := b
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memBatchRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]ledger.StockBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.StockBatch, 0, len(ids))
	for _, id := range ids {
		if b, ok := m.items[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBatchRepo) FindAvailable(_ context.Context, productID, warehouseID uuid.UUID) ([]ledger.StockBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.StockBatch, 0)
	for _, b := range m.items {
		if b.ProductID == productID && b.WarehouseID == warehouseID && !b.Retired && b.IsActive() {
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

func (m *memBatchRepo) FindAll(_ context.Context, filter ledger.BatchFilter) (*shared.Paginated[ledger.StockBatch], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.StockBatch, 0)
	for _, b := range m.items {
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

func (m *memBatchRepo) Save(_ context.Context, batch *ledger.StockBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[batch.ID] = *batch
	return nil
}

func (m *memBatchRepo) SaveWithLock(_ context.Context, batch *ledger.StockBatch, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflict > 0 {
		m.conflict--
		return shared.ErrConcurrencyConflict
	}
	stored, ok := m.items[batch.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	m.items[batch.ID] = *batch
	return nil
}

func (m *memBatchRepo) NextBatchNo(_ context.Context, day time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := day.Format("20060102")
	m.seq[key]++
	return fmt.Sprintf("PH%s-%03d", key, m.seq[key]), nil
}

func (m *memBatchRepo) ExistsByBatchNo(_ context.Context, batchNo string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.items {
		if b.BatchNo == batchNo {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBatchRepo) Count(_ context.Context, _ ledger.BatchFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.items)), nil
}

// memOutboundRepo is an in-memory OutboundRecordRepository preserving
// insertion order per order.
type memOutboundRepo struct {
	mu      sync.Mutex
	records []ledger.OutboundRecord
}

func newMemOutboundRepo() *memOutboundRepo {
	return &memOutboundRepo{records: make([]ledger.OutboundRecord, 0)}
}

func (m *memOutboundRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.OutboundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			copied := m.records[i]
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memOutboundRepo) FindByOrderID(_ context.Context, orderID string) ([]ledger.OutboundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.OutboundRecord, 0)
	for i := range m.records {
		if m.records[i].OrderID == orderID {
			out = append(out, m.records[i])
		}
	}
	sortByAllocation(out)
	return out, nil
}

func (m *memOutboundRepo) FindByBatchID(_ context.Context, batchID uuid.UUID) ([]ledger.OutboundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.OutboundRecord, 0)
	for i := range m.records {
		if m.records[i].BatchID == batchID {
			out = append(out, m.records[i])
		}
	}
	sortByAllocation(out)
	return out, nil
}

// sortByAllocation mirrors the allocated_at, id read order of the SQL store
func sortByAllocation(records []ledger.OutboundRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].AllocatedAt.Equal(records[j].AllocatedAt) {
			return records[i].AllocatedAt.Before(records[j].AllocatedAt)
		}
		return records[i].ID.String() < records[j].ID.String()
	})
}

func (m *memOutboundRepo) FindAll(_ context.Context, filter ledger.OutboundFilter) (*shared.Paginated[ledger.OutboundRecord], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.OutboundRecord, 0)
	for i := range m.records {
		r := m.records[i]
		if filter.BatchID != nil && r.BatchID != *filter.BatchID {
			continue
		}
		if filter.OrderID != nil && r.OrderID != *filter.OrderID {
			continue
		}
		if filter.OrderType != nil && r.OrderType != *filter.OrderType {
			continue
		}
		out = append(out, r)
	}
	result := shared.NewPaginated(out, int64(len(out)), 1, len(out)+1)
	return &result, nil
}

func (m *memOutboundRepo) Save(_ context.Context, record *ledger.OutboundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == record.ID {
			m.records[i] = *record
			return nil
		}
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *memOutboundRepo) SaveAll(ctx context.Context, records []*ledger.OutboundRecord) error {
	for _, r := range records {
		if err := m.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

var _ ledger.StockBatchRepository = (*memBatchRepo)(nil)
var _ ledger.OutboundRecordRepository = (*memOutboundRepo)(nil)
