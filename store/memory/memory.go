package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

// Store is an in-memory implementation of the store interfaces with the
// same conditional-update semantics as the MongoDB implementation. Used by
// tests and local runs without a database.
type Store struct {
	mu       sync.Mutex
	products map[string]*models.Product
	orders   map[string]*models.Order
	carts    map[string][]models.OrderItem
}

func NewStore() *Store {
	return &Store{
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
		carts:    make(map[string][]models.OrderItem),
	}
}

// AddProduct inserts a product and returns its id.
func (s *Store) AddProduct(p models.Product) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.products[p.ID.Hex()] = &p
	return p.ID.Hex()
}

// SetCart seeds a cart for an owner.
func (s *Store) SetCart(ownerKey string, items []models.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[ownerKey] = items
}

// CartItems returns the current cart contents for an owner.
func (s *Store) CartItems(ownerKey string) []models.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carts[ownerKey]
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) DecrementStock(ctx context.Context, productID string, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return models.ErrNotFound
	}
	if !p.IsActive {
		return &models.ProductInactiveError{ProductID: productID}
	}
	if p.Stock < qty {
		return &models.InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	return nil
}

func (s *Store) IncrementStock(ctx context.Context, productID string, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return models.ErrNotFound
	}
	p.Stock += qty
	return nil
}

func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	cp := cloneOrder(order)
	s.orders[order.ID.Hex()] = cp
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) FindByPaymentHandle(ctx context.Context, handleID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PaymentHandleID != "" && o.PaymentHandleID == handleID {
			return cloneOrder(o), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PaymentDetails != nil && o.PaymentDetails.TransactionID == transactionID {
			return cloneOrder(o), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) ListOrders(ctx context.Context, ownerKey string, page, pageSize int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var all []models.Order
	for _, o := range s.orders {
		if o.Owner.Key() == ownerKey {
			all = append(all, *cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := (page - 1) * pageSize
	if start >= len(all) {
		return []models.Order{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *Store) TransitionOrder(ctx context.Context, orderID string, from, to models.OrderStatus, note string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if o.OrderStatus != from {
		return nil, models.ErrStaleState
	}
	now := time.Now()
	o.OrderStatus = to
	o.UpdatedAt = now
	if to == models.OrderStatusCancelled {
		o.CancellationReason = note
	}
	o.StatusHistory = append(o.StatusHistory, models.StatusEntry{Status: string(to), Note: note, Timestamp: now})
	return cloneOrder(o), nil
}

func (s *Store) SetPaymentHandle(ctx context.Context, orderID string, handleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return models.ErrNotFound
	}
	o.PaymentHandleID = handleID
	o.UpdatedAt = time.Now()
	return nil
}

func (s *Store) MarkPaid(ctx context.Context, orderID string, details models.PaymentDetails) (*models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, false, models.ErrNotFound
	}
	if o.PaymentStatus != models.PaymentStatusPending {
		// Already settled; idempotent when the same transaction id landed first.
		return cloneOrder(o), false, nil
	}
	now := time.Now()
	o.PaymentStatus = models.PaymentStatusPaid
	o.PaymentDetails = &details
	o.UpdatedAt = now
	o.StatusHistory = append(o.StatusHistory, models.StatusEntry{
		Status:    "payment:" + string(models.PaymentStatusPaid),
		Note:      "transaction " + details.TransactionID,
		Timestamp: now,
	})
	return cloneOrder(o), true, nil
}

func (s *Store) MarkPaymentFailed(ctx context.Context, orderID string, note string) (*models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, false, models.ErrNotFound
	}
	if o.PaymentStatus != models.PaymentStatusPending {
		return cloneOrder(o), false, nil
	}
	now := time.Now()
	o.PaymentStatus = models.PaymentStatusFailed
	o.UpdatedAt = now
	o.StatusHistory = append(o.StatusHistory, models.StatusEntry{
		Status:    "payment:" + string(models.PaymentStatusFailed),
		Note:      note,
		Timestamp: now,
	})
	return cloneOrder(o), true, nil
}

func (s *Store) MarkRefunded(ctx context.Context, orderID string, refundID string, note string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if o.PaymentStatus != models.PaymentStatusPaid {
		return nil, models.ErrStaleState
	}
	now := time.Now()
	o.PaymentStatus = models.PaymentStatusRefunded
	o.RefundID = refundID
	o.UpdatedAt = now
	o.StatusHistory = append(o.StatusHistory, models.StatusEntry{
		Status:    "payment:" + string(models.PaymentStatusRefunded),
		Note:      note,
		Timestamp: now,
	})
	return cloneOrder(o), nil
}

func (s *Store) ClaimStockRelease(ctx context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, models.ErrNotFound
	}
	if !o.StockReserved || o.StockReleased {
		return false, nil
	}
	o.StockReleased = true
	o.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) AppendHistory(ctx context.Context, orderID string, entry models.StatusEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return models.ErrNotFound
	}
	o.StatusHistory = append(o.StatusHistory, entry)
	o.UpdatedAt = time.Now()
	return nil
}

func (s *Store) Clear(ctx context.Context, ownerKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, ownerKey)
	return nil
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	cp.StatusHistory = append([]models.StatusEntry(nil), o.StatusHistory...)
	if o.PaymentDetails != nil {
		pd := *o.PaymentDetails
		cp.PaymentDetails = &pd
	}
	return &cp
}
