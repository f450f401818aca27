package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionPolicyType(t *testing.T) {
	t.Run("IsValid returns true for valid types", func(t *testing.T) {
		assert.True(t, SelectionPolicyTypeFIFO.IsValid())
		assert.True(t, SelectionPolicyTypeSpecified.IsValid())
	})

	t.Run("IsValid returns false for invalid type", func(t *testing.T) {
		assert.False(t, SelectionPolicyType("LIFO").IsValid())
	})

	t.Run("String returns correct string", func(t *testing.T) {
		assert.Equal(t, "FIFO", SelectionPolicyTypeFIFO.String())
		assert.Equal(t, "SPECIFIED", SelectionPolicyTypeSpecified.String())
	})
}

func TestFIFOSelectionPolicy(t *testing.T) {
	policy := NewFIFOSelectionPolicy()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	asOf := base.AddDate(0, 0, 30)

	t.Run("takes oldest batch first", func(t *testing.T) {
		newer := newTestBatch("PH20260310-001", 100, 12, base.AddDate(0, 0, 9))
		older := newTestBatch("PH20260301-001", 100, 10, base)
		batches := []StockBatch{newer, older}

		plan, err := policy.Plan(decimal.NewFromInt(60), batches, asOf)
		require.NoError(t, err)
		assert.True(t, plan.FullyFulfilled)
		require.Len(t, plan.Deductions, 1)
		assert.Equal(t, "PH20260301-001", plan.Deductions[0].BatchNo)
		assert.True(t, plan.Deductions[0].Quantity.Equal(decimal.NewFromInt(60)))
		assert.True(t, plan.Deductions[0].RemainingInBatch.Equal(decimal.NewFromInt(40)))
		assert.False(t, plan.Deductions[0].FullyConsumed)
	})

	t.Run("spans batches when the oldest is not enough", func(t *testing.T) {
		a := newTestBatch("PH20260301-001", 50, 10, base)
		b := newTestBatch("PH20260305-001", 100, 12, base.AddDate(0, 0, 4))
		batches := []StockBatch{b, a}

		plan, err := policy.Plan(decimal.NewFromInt(80), batches, asOf)
		require.NoError(t, err)
		assert.True(t, plan.FullyFulfilled)
		require.Len(t, plan.Deductions, 2)

		assert.Equal(t, "PH20260301-001", plan.Deductions[0].BatchNo)
		assert.True(t, plan.Deductions[0].Quantity.Equal(decimal.NewFromInt(50)))
		assert.True(t, plan.Deductions[0].FullyConsumed)

		assert.Equal(t, "PH20260305-001", plan.Deductions[1].BatchNo)
		assert.True(t, plan.Deductions[1].Quantity.Equal(decimal.NewFromInt(30)))

		// 50*10 + 30*12 = 860
		assert.True(t, plan.TotalCost.Equal(decimal.NewFromInt(860)))
		assert.True(t, plan.WeightedUnitCost().Equal(decimal.NewFromFloat(10.75)))
	})

	t.Run("reports shortfall without planning a partial take as fulfilled", func(t *testing.T) {
		a := newTestBatch("PH20260301-001", 30, 10, base)

		plan, err := policy.Plan(decimal.NewFromInt(50), []StockBatch{a}, asOf)
		require.NoError(t, err)
		assert.False(t, plan.FullyFulfilled)
		assert.True(t, plan.UnfulfilledAmount.Equal(decimal.NewFromInt(20)))
		assert.True(t, plan.TotalQuantity.Equal(decimal.NewFromInt(30)))
	})

	t.Run("skips depleted and retired batches", func(t *testing.T) {
		depleted := newTestBatch("PH20260301-001", 100, 10, base)
		depleted.CurrentQuantity = decimal.Zero
		retired := newTestBatch("PH20260302-001", 100, 10, base.AddDate(0, 0, 1))
		retired.Retired = true
		live := newTestBatch("PH20260303-001", 100, 10, base.AddDate(0, 0, 2))

		plan, err := policy.Plan(decimal.NewFromInt(10), []StockBatch{depleted, retired, live}, asOf)
		require.NoError(t, err)
		require.Len(t, plan.Deductions, 1)
		assert.Equal(t, "PH20260303-001", plan.Deductions[0].BatchNo)
	})

	t.Run("ties on received date break on batch id", func(t *testing.T) {
		a := newTestBatch("PH20260301-001", 10, 10, base)
		b := newTestBatch("PH20260301-002", 10, 10, base)
		first := a
		if b.ID.String() < a.ID.String() {
			first = b
		}

		plan, err := policy.Plan(decimal.NewFromInt(5), []StockBatch{a, b}, asOf)
		require.NoError(t, err)
		require.Len(t, plan.Deductions, 1)
		assert.Equal(t, first.BatchNo, plan.Deductions[0].BatchNo)
	})

	t.Run("empty stock yields an unfulfilled plan", func(t *testing.T) {
		plan, err := policy.Plan(decimal.NewFromInt(5), nil, asOf)
		require.NoError(t, err)
		assert.False(t, plan.FullyFulfilled)
		assert.Empty(t, plan.Deductions)
	})

	t.Run("rejects non-positive request", func(t *testing.T) {
		_, err := policy.Plan(decimal.Zero, nil, asOf)
		require.Error(t, err)
	})

	t.Run("does not mutate input batches", func(t *testing.T) {
		a := newTestBatch("PH20260301-001", 100, 10, base)
		_, err := policy.Plan(decimal.NewFromInt(40), []StockBatch{a}, asOf)
		require.NoError(t, err)
		assert.True(t, a.CurrentQuantity.Equal(decimal.NewFromInt(100)))
	})

	t.Run("unit cost in the plan includes storage accrual", func(t *testing.T) {
		a := newTestBatch("PH20260301-001", 100, 10, base)
		a.StorageRate = decimal.NewFromFloat(0.01)

		plan, err := policy.Plan(decimal.NewFromInt(10), []StockBatch{a}, base.AddDate(0, 0, 10))
		require.NoError(t, err)
		require.Len(t, plan.Deductions, 1)
		// 10 + (0.01*100*10)/100 = 10.1
		assert.True(t, plan.Deductions[0].UnitCost.Equal(decimal.NewFromFloat(10.1)))
	})
}

func TestSpecifiedSelectionPolicy(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	asOf := base.AddDate(0, 0, 10)

	t.Run("takes from the named batches in order", func(t *testing.T) {
		a := newTestBatch("PH20260301-001", 100, 10, base)
		b := newTestBatch("PH20260302-001", 100, 12, base.AddDate(0, 0, 1))

		policy := NewSpecifiedSelectionPolicy([]BatchRequest{
			{BatchID: b.ID, Quantity: decimal.NewFromInt(20)},
			{BatchID: a.ID, Quantity: decimal.NewFromInt(30)},
		})

		plan, err := policy.Plan(decimal.NewFromInt(50), []StockBatch{a, b}, asOf)
		require.NoError(t, err)
		assert.True(t, plan.FullyFulfilled)
		require.Len(t, plan.Deductions, 2)
		assert.Equal(t, "PH20260302-001", plan.Deductions[0].BatchNo)
		assert.Equal(t, "PH20260301-001", plan.Deductions[1].BatchNo)
	})

	t.Run("zero quantity means take as much as possible", func(t *testing.T) {
		a := newTestBatch("PH20260301-001", 40, 10, base)
		b := newTestBatch("PH20260302-001", 100, 12, base.AddDate(0, 0, 1))

		policy := NewSpecifiedSelectionPolicy([]BatchRequest{
			{BatchID: a.ID},
			{BatchID: b.ID},
		})

		plan, err := policy.Plan(decimal.NewFromInt(60), []StockBatch{a, b}, asOf)
		require.NoError(t, err)
		require.Len(t, plan.Deductions, 2)
		assert.True(t, plan.Deductions[0].Quantity.Equal(decimal.NewFromInt(40)))
		assert.True(t, plan.Deductions[1].Quantity.Equal(decimal.NewFromInt(20)))
	})

	t.Run("fails when a named batch does not exist", func(t *testing.T) {
		a := newTestBatch("PH20260301-001", 100, 10, base)
		policy := NewSpecifiedSelectionPolicy([]BatchRequest{
			{BatchID: uuid.New(), Quantity: decimal.NewFromInt(10)},
		})

		_, err := policy.Plan(decimal.NewFromInt(10), []StockBatch{a}, asOf)
		require.Error(t, err)
	})

	t.Run("fails when a named batch is depleted", func(t *testing.T) {
		a := newTestBatch("PH20260301-001", 100, 10, base)
		a.CurrentQuantity = decimal.Zero
		policy := NewSpecifiedSelectionPolicy([]BatchRequest{
			{BatchID: a.ID, Quantity: decimal.NewFromInt(10)},
		})

		_, err := policy.Plan(decimal.NewFromInt(10), []StockBatch{a}, asOf)
		require.Error(t, err)
	})

	t.Run("reports shortfall when named batches cannot cover the request", func(t *testing.T) {
		a := newTestBatch("PH20260301-001", 30, 10, base)
		policy := NewSpecifiedSelectionPolicy([]BatchRequest{
			{BatchID: a.ID},
		})

		plan, err := policy.Plan(decimal.NewFromInt(50), []StockBatch{a}, asOf)
		require.NoError(t, err)
		assert.False(t, plan.FullyFulfilled)
		assert.True(t, plan.UnfulfilledAmount.Equal(decimal.NewFromInt(20)))
	})

	t.Run("requires at least one request", func(t *testing.T) {
		policy := NewSpecifiedSelectionPolicy(nil)
		_, err := policy.Plan(decimal.NewFromInt(10), nil, asOf)
		require.Error(t, err)
	})
}
