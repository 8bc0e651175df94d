// Package pricing derives order totals from line items. All amounts are in
// minor currency units; only the tax computation rounds.
package pricing

import (
	"math"

	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

// MismatchEpsilon is the largest client/server total disagreement accepted
// as rounding noise. Anything larger is rejected as tampering.
const MismatchEpsilon = 1

type Config struct {
	TaxRate               float64
	FreeShippingThreshold int64
	FlatShippingFee       int64
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Compute derives subtotal, tax, shipping and total from the given items.
// It is the single place totals are computed; nothing recomputes them as a
// side effect of a save.
func (c *Calculator) Compute(items []models.OrderItem) models.Pricing {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * item.Quantity
	}

	tax := int64(math.Round(float64(subtotal) * c.cfg.TaxRate))

	var shipping int64
	if subtotal < c.cfg.FreeShippingThreshold {
		shipping = c.cfg.FlatShippingFee
	}

	return models.Pricing{
		Subtotal:     subtotal,
		TaxAmount:    tax,
		ShippingCost: shipping,
		TotalAmount:  subtotal + tax + shipping,
	}
}

// ComputeAndVerify computes the pricing and checks it against the total the
// client saw in its price preview. The server's number always wins; a
// disagreement beyond rounding rejects the checkout.
func (c *Calculator) ComputeAndVerify(items []models.OrderItem, clientTotal int64) (models.Pricing, error) {
	pricing := c.Compute(items)

	diff := pricing.TotalAmount - clientTotal
	if diff < 0 {
		diff = -diff
	}
	if diff > MismatchEpsilon {
		return models.Pricing{}, &models.AmountMismatchError{
			ClientTotal: clientTotal,
			ServerTotal: pricing.TotalAmount,
		}
	}
	return pricing, nil
}
