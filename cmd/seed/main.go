package main

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kanishkmehta29/storefront-checkout/shared/config"
	"github.com/kanishkmehta29/storefront-checkout/shared/models"
)

func main() {
	log.Println("Starting database seeder...")

	cfg := config.Load()
	client, err := config.ConnectMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDatabase)

	cleanCollections(db)
	seedProducts(db)

	log.Println("Database seeding completed successfully!")
}

func cleanCollections(db *mongo.Database) {
	collections := []string{"products", "orders", "carts"}
	for _, collection := range collections {
		log.Printf("Cleaning collection: %s", collection)
		_, err := db.Collection(collection).DeleteMany(context.Background(), bson.M{})
		if err != nil {
			log.Printf("Failed to clean collection %s: %v", collection, err)
		}
	}
}

func seedProducts(db *mongo.Database) {
	// Prices in minor currency units.
	products := []any{
		models.Product{
			ID:          primitive.NewObjectID(),
			Name:        "Wireless Headphones",
			Description: "Over-ear wireless headphones with noise cancellation",
			UnitPrice:   249900,
			Stock:       40,
			IsActive:    true,
		},
		models.Product{
			ID:          primitive.NewObjectID(),
			Name:        "Mechanical Keyboard",
			Description: "Tenkeyless mechanical keyboard, brown switches",
			UnitPrice:   129900,
			Stock:       25,
			IsActive:    true,
		},
		models.Product{
			ID:          primitive.NewObjectID(),
			Name:        "USB-C Cable",
			Description: "1m braided USB-C to USB-C cable",
			UnitPrice:   9900,
			Stock:       200,
			IsActive:    true,
		},
		models.Product{
			ID:          primitive.NewObjectID(),
			Name:        "Discontinued Smartwatch",
			Description: "No longer sold",
			UnitPrice:   599900,
			Stock:       3,
			IsActive:    false,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := db.Collection("products").InsertMany(ctx, products)
	if err != nil {
		log.Fatalf("Failed to seed products: %v", err)
	}
	log.Printf("Seeded %d products", len(res.InsertedIDs))
}
