package mongodb

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CartStore clears a shopper's cart after a confirmed purchase. Carts are
// keyed by owner (user id or guest email).
type CartStore struct {
	collection *mongo.Collection
}

func NewCartStore(db *mongo.Database) *CartStore {
	return &CartStore{collection: db.Collection("carts")}
}

func (s *CartStore) Clear(ctx context.Context, ownerKey string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"owner_key": ownerKey})
	if err != nil && err != mongo.ErrNoDocuments {
		return err
	}
	if res != nil && res.DeletedCount > 0 {
		log.Printf("Cleared cart for owner %s", ownerKey)
	}
	return nil
}
