package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanishkmehta29/storefront-checkout/shared/models"
	"github.com/kanishkmehta29/storefront-checkout/store/memory"
)

func TestReserve(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := NewLedger(st)

	id := st.AddProduct(models.Product{Name: "Widget", UnitPrice: 1000, Stock: 5, IsActive: true})

	require.NoError(t, ledger.Reserve(ctx, id, 3))

	p, err := st.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Stock)
}

func TestReserveInsufficientStock(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := NewLedger(st)

	id := st.AddProduct(models.Product{Name: "Widget", UnitPrice: 1000, Stock: 1, IsActive: true})

	err := ledger.Reserve(ctx, id, 2)
	require.Error(t, err)

	var insufficient *models.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, id, insufficient.ProductID)
	assert.Equal(t, int64(2), insufficient.Requested)
	assert.Equal(t, int64(1), insufficient.Available)

	// No stock mutated on failure.
	p, err := st.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Stock)
}

func TestReserveInactiveProduct(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := NewLedger(st)

	id := st.AddProduct(models.Product{Name: "Delisted", UnitPrice: 1000, Stock: 10, IsActive: false})

	err := ledger.Reserve(ctx, id, 1)
	require.Error(t, err)

	var inactive *models.ProductInactiveError
	require.ErrorAs(t, err, &inactive)
	assert.Equal(t, id, inactive.ProductID)
}

func TestReserveItemsRollsBackOnMidSequenceFailure(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := NewLedger(st)

	first := st.AddProduct(models.Product{Name: "A", UnitPrice: 1000, Stock: 5, IsActive: true})
	second := st.AddProduct(models.Product{Name: "B", UnitPrice: 1000, Stock: 5, IsActive: true})
	third := st.AddProduct(models.Product{Name: "C", UnitPrice: 1000, Stock: 1, IsActive: true})

	err := ledger.ReserveItems(ctx, []models.OrderItem{
		{ProductID: first, Quantity: 2},
		{ProductID: second, Quantity: 3},
		{ProductID: third, Quantity: 2}, // fails here
	})
	require.Error(t, err)

	var insufficient *models.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, third, insufficient.ProductID)

	// The two earlier reservations were compensated.
	for _, tc := range []struct {
		id   string
		want int64
	}{{first, 5}, {second, 5}, {third, 1}} {
		p, err := st.GetProduct(ctx, tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, p.Stock)
	}
}

func TestReleaseItemsReturnsEveryReservedUnit(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := NewLedger(st)

	a := st.AddProduct(models.Product{Name: "A", UnitPrice: 1000, Stock: 10, IsActive: true})
	b := st.AddProduct(models.Product{Name: "B", UnitPrice: 1000, Stock: 10, IsActive: true})

	items := []models.OrderItem{
		{ProductID: a, Quantity: 4},
		{ProductID: b, Quantity: 6},
	}
	require.NoError(t, ledger.ReserveItems(ctx, items))

	ledger.ReleaseItems(ctx, items)

	for _, id := range []string{a, b} {
		p, err := st.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(10), p.Stock)
	}
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := NewLedger(st)

	id := st.AddProduct(models.Product{Name: "Widget", UnitPrice: 1000, Stock: 5, IsActive: true})

	var verr *models.ValidationError
	require.ErrorAs(t, ledger.Reserve(ctx, id, 0), &verr)
	require.ErrorAs(t, ledger.Reserve(ctx, id, -1), &verr)
}
