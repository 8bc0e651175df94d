// Package inventory is the stock ledger: per-product atomic reservation and
// release. Multi-item reservation is not globally atomic; a failed item
// triggers a compensating release of everything reserved before it.
package inventory

import (
	"context"
	"log"

	"github.com/kanishkmehta29/storefront-checkout/shared/models"
	"github.com/kanishkmehta29/storefront-checkout/store"
)

type Ledger struct {
	products store.ProductStore
}

func NewLedger(products store.ProductStore) *Ledger {
	return &Ledger{products: products}
}

// Reserve atomically takes qty units from the product's stock. The
// underlying store guarantees the check-and-decrement is indivisible.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int64) error {
	if qty <= 0 {
		return &models.ValidationError{Msg: "quantity must be positive"}
	}
	if err := l.products.DecrementStock(ctx, productID, qty); err != nil {
		return err
	}
	log.Printf("Inventory: reserved %d units of product %s", qty, productID)
	return nil
}

// Release returns qty units to the product's stock. Callers must only
// release what a prior Reserve took; the order record tracks that.
func (l *Ledger) Release(ctx context.Context, productID string, qty int64) error {
	if qty <= 0 {
		return &models.ValidationError{Msg: "quantity must be positive"}
	}
	if err := l.products.IncrementStock(ctx, productID, qty); err != nil {
		return err
	}
	log.Printf("Inventory: released %d units of product %s", qty, productID)
	return nil
}

// ReserveItems reserves stock for every line item in order. On the first
// failure it releases everything already reserved for this attempt and
// returns the failing item's error.
func (l *Ledger) ReserveItems(ctx context.Context, items []models.OrderItem) error {
	reserved := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if err := l.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("Inventory: reservation failed for product %s, rolling back %d prior reservations",
				item.ProductID, len(reserved))
			l.releaseReserved(ctx, reserved)
			return err
		}
		reserved = append(reserved, item)
	}
	return nil
}

// ReleaseItems returns stock for every line item. Used when a reserved
// order is cancelled or its payment fails; callers guarantee exactly-once
// via the order's stock-release claim.
func (l *Ledger) ReleaseItems(ctx context.Context, items []models.OrderItem) {
	l.releaseReserved(ctx, items)
}

func (l *Ledger) releaseReserved(ctx context.Context, items []models.OrderItem) {
	for _, item := range items {
		if err := l.Release(ctx, item.ProductID, item.Quantity); err != nil {
			// Nothing to do but record it; the audit trail is the log.
			log.Printf("Inventory: failed to release %d units of product %s: %v",
				item.Quantity, item.ProductID, err)
		}
	}
}
