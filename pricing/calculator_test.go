package pricing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

func testConfig() Config {
	return Config{
		TaxRate:               0.18,
		FreeShippingThreshold: 200000,
		FlatShippingFee:       9900,
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		items []models.OrderItem
		want  models.Pricing
	}{
		{
			name:  "single item below free shipping threshold",
			items: []models.OrderItem{{ProductID: "p1", UnitPrice: 10000, Quantity: 2}},
			want: models.Pricing{
				Subtotal:     20000,
				TaxAmount:    3600,
				ShippingCost: 9900,
				TotalAmount:  33500,
			},
		},
		{
			name: "above free shipping threshold",
			items: []models.OrderItem{
				{ProductID: "p1", UnitPrice: 150000, Quantity: 1},
				{ProductID: "p2", UnitPrice: 50000, Quantity: 1},
			},
			want: models.Pricing{
				Subtotal:     200000,
				TaxAmount:    36000,
				ShippingCost: 0,
				TotalAmount:  236000,
			},
		},
		{
			name:  "empty cart",
			items: nil,
			want: models.Pricing{
				Subtotal:     0,
				TaxAmount:    0,
				ShippingCost: 9900,
				TotalAmount:  9900,
			},
		},
	}

	calc := NewCalculator(testConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.Compute(tt.items))
		})
	}
}

func TestComputeTotalConsistency(t *testing.T) {
	// totalAmount must always equal subtotal + tax + shipping, whatever the cart.
	rng := rand.New(rand.NewSource(42))
	calc := NewCalculator(testConfig())

	for i := 0; i < 500; i++ {
		n := rng.Intn(6) + 1
		items := make([]models.OrderItem, 0, n)
		for j := 0; j < n; j++ {
			items = append(items, models.OrderItem{
				ProductID: "p",
				UnitPrice: rng.Int63n(500000),
				Quantity:  rng.Int63n(5) + 1,
			})
		}

		p := calc.Compute(items)
		require.Equal(t, p.TotalAmount, p.Subtotal+p.TaxAmount+p.ShippingCost)
		require.GreaterOrEqual(t, p.Subtotal, int64(0))
		require.GreaterOrEqual(t, p.TaxAmount, int64(0))
		require.GreaterOrEqual(t, p.ShippingCost, int64(0))
	}
}

func TestComputeAndVerify(t *testing.T) {
	calc := NewCalculator(testConfig())
	items := []models.OrderItem{{ProductID: "p1", UnitPrice: 10000, Quantity: 2}}

	t.Run("exact total accepted", func(t *testing.T) {
		p, err := calc.ComputeAndVerify(items, 33500)
		require.NoError(t, err)
		assert.Equal(t, int64(33500), p.TotalAmount)
	})

	t.Run("off by one accepted as rounding", func(t *testing.T) {
		_, err := calc.ComputeAndVerify(items, 33501)
		require.NoError(t, err)
		_, err = calc.ComputeAndVerify(items, 33499)
		require.NoError(t, err)
	})

	t.Run("larger disagreement rejected", func(t *testing.T) {
		_, err := calc.ComputeAndVerify(items, 30000)
		require.Error(t, err)

		var mismatch *models.AmountMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, int64(30000), mismatch.ClientTotal)
		assert.Equal(t, int64(33500), mismatch.ServerTotal)
	})
}
