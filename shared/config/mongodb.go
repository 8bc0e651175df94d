package config

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongoDB connects to MongoDB using the configured URI and verifies
// the connection with a ping.
func ConnectMongoDB(mongoURI string) (*mongo.Client, error) {
	if mongoURI == "" {
		// Check if we're running in Docker
		_, inDocker := os.LookupEnv("DOCKER_CONTAINER")
		if inDocker {
			mongoURI = "mongodb://mongodb:27017"
		} else {
			mongoURI = "mongodb://localhost:27017"
		}
		log.Println("Using default MongoDB URI:", mongoURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Printf("Failed to connect to MongoDB: %v\n", err)
		return nil, err
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		log.Printf("Failed to ping MongoDB: %v\n", err)
		return nil, err
	}

	log.Println("Successfully connected to database")
	return client, nil
}
