package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

// OrderStore persists orders in the orders collection. All status mutations
// are conditional updates guarded by the previously observed status, so a
// losing writer never overwrites a newer state.
type OrderStore struct {
	collection *mongo.Collection
}

func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{collection: db.Collection("orders")}
}

// EnsureIndexes creates the indexes the engine relies on. The transaction id
// index is unique across paid orders: it backs webhook idempotency.
func (s *OrderStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "payment_details.transaction_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"payment_status": string(models.PaymentStatusPaid)}),
		},
		{
			Keys: bson.D{{Key: "payment_handle_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "owner.user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	return err
}

func (s *OrderStore) InsertOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := s.collection.InsertOne(ctx, order)
	return err
}

func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, &models.ValidationError{Msg: "invalid order ID format"}
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *OrderStore) FindByPaymentHandle(ctx context.Context, handleID string) (*models.Order, error) {
	if handleID == "" {
		return nil, models.ErrNotFound
	}
	return s.findOne(ctx, bson.M{"payment_handle_id": handleID})
}

func (s *OrderStore) FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	if transactionID == "" {
		return nil, models.ErrNotFound
	}
	return s.findOne(ctx, bson.M{"payment_details.transaction_id": transactionID})
}

func (s *OrderStore) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	err := s.collection.FindOne(ctx, filter).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (s *OrderStore) ListOrders(ctx context.Context, ownerKey string, page, pageSize int) ([]models.Order, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"owner.user_id": ownerKey},
		bson.M{"owner.guest.email": ownerKey},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderStore) TransitionOrder(ctx context.Context, orderID string, from, to models.OrderStatus, note string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, &models.ValidationError{Msg: "invalid order ID format"}
	}

	now := time.Now()
	set := bson.M{
		"order_status": to,
		"updated_at":   now,
	}
	if to == models.OrderStatusCancelled {
		set["cancellation_reason"] = note
	}

	var order models.Order
	err = s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid, "order_status": from},
		bson.M{
			"$set":  set,
			"$push": bson.M{"status_history": models.StatusEntry{Status: string(to), Note: note, Timestamp: now}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Either the order is gone or someone else moved it first.
			if _, getErr := s.GetOrder(ctx, orderID); getErr != nil {
				return nil, getErr
			}
			return nil, models.ErrStaleState
		}
		return nil, err
	}
	return &order, nil
}

func (s *OrderStore) SetPaymentHandle(ctx context.Context, orderID string, handleID string) error {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return &models.ValidationError{Msg: "invalid order ID format"}
	}

	res, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"payment_handle_id": handleID, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *OrderStore) MarkPaid(ctx context.Context, orderID string, details models.PaymentDetails) (*models.Order, bool, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, false, &models.ValidationError{Msg: "invalid order ID format"}
	}

	now := time.Now()
	var order models.Order
	err = s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid, "payment_status": models.PaymentStatusPending},
		bson.M{
			"$set": bson.M{
				"payment_status":  models.PaymentStatusPaid,
				"payment_details": details,
				"updated_at":      now,
			},
			"$push": bson.M{"status_history": models.StatusEntry{
				Status:    "payment:" + string(models.PaymentStatusPaid),
				Note:      "transaction " + details.TransactionID,
				Timestamp: now,
			}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err == nil {
		return &order, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	// Lost the race or already settled; report current state without applying.
	current, getErr := s.GetOrder(ctx, orderID)
	if getErr != nil {
		return nil, false, getErr
	}
	return current, false, nil
}

func (s *OrderStore) MarkPaymentFailed(ctx context.Context, orderID string, note string) (*models.Order, bool, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, false, &models.ValidationError{Msg: "invalid order ID format"}
	}

	now := time.Now()
	var order models.Order
	err = s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid, "payment_status": models.PaymentStatusPending},
		bson.M{
			"$set": bson.M{
				"payment_status": models.PaymentStatusFailed,
				"updated_at":     now,
			},
			"$push": bson.M{"status_history": models.StatusEntry{
				Status:    "payment:" + string(models.PaymentStatusFailed),
				Note:      note,
				Timestamp: now,
			}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err == nil {
		return &order, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	current, getErr := s.GetOrder(ctx, orderID)
	if getErr != nil {
		return nil, false, getErr
	}
	return current, false, nil
}

func (s *OrderStore) MarkRefunded(ctx context.Context, orderID string, refundID string, note string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, &models.ValidationError{Msg: "invalid order ID format"}
	}

	now := time.Now()
	var order models.Order
	err = s.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid, "payment_status": models.PaymentStatusPaid},
		bson.M{
			"$set": bson.M{
				"payment_status": models.PaymentStatusRefunded,
				"refund_id":      refundID,
				"updated_at":     now,
			},
			"$push": bson.M{"status_history": models.StatusEntry{
				Status:    "payment:" + string(models.PaymentStatusRefunded),
				Note:      note,
				Timestamp: now,
			}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			if _, getErr := s.GetOrder(ctx, orderID); getErr != nil {
				return nil, getErr
			}
			return nil, models.ErrStaleState
		}
		return nil, err
	}
	return &order, nil
}

func (s *OrderStore) ClaimStockRelease(ctx context.Context, orderID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return false, &models.ValidationError{Msg: "invalid order ID format"}
	}

	res, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": oid, "stock_reserved": true, "stock_released": false},
		bson.M{"$set": bson.M{"stock_released": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *OrderStore) AppendHistory(ctx context.Context, orderID string, entry models.StatusEntry) error {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return &models.ValidationError{Msg: "invalid order ID format"}
	}

	res, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": oid},
		bson.M{
			"$push": bson.M{"status_history": entry},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
