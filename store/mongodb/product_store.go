package mongodb

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

// ProductStore persists products in the products collection.
type ProductStore struct {
	collection *mongo.Collection
}

func NewProductStore(db *mongo.Database) *ProductStore {
	return &ProductStore{collection: db.Collection("products")}
}

func (s *ProductStore) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil, &models.ValidationError{Msg: "invalid product ID format"}
	}

	var product models.Product
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&product)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// DecrementStock performs the reservation as one conditional update: the
// decrement only matches when the product is active and has enough stock.
func (s *ProductStore) DecrementStock(ctx context.Context, productID string, qty int64) error {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return &models.ValidationError{Msg: "invalid product ID format"}
	}

	res, err := s.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":       oid,
			"is_active": true,
			"stock":     bson.M{"$gte": qty},
		},
		bson.M{"$inc": bson.M{"stock": -qty}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	// The filter didn't match; re-read to tell the caller why.
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.IsActive {
		return &models.ProductInactiveError{ProductID: productID}
	}
	return &models.InsufficientStockError{ProductID: productID, Requested: qty, Available: product.Stock}
}

func (s *ProductStore) IncrementStock(ctx context.Context, productID string, qty int64) error {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return &models.ValidationError{Msg: "invalid product ID format"}
	}

	res, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"stock": qty}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		log.Printf("Stock release for missing product %s (qty %d)", productID, qty)
		return models.ErrNotFound
	}
	return nil
}
