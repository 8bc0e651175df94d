package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kanishkmehta29/storefront-checkout/checkout"
	"github.com/kanishkmehta29/storefront-checkout/gateway"
	"github.com/kanishkmehta29/storefront-checkout/httpapi"
	"github.com/kanishkmehta29/storefront-checkout/inventory"
	"github.com/kanishkmehta29/storefront-checkout/pricing"
	"github.com/kanishkmehta29/storefront-checkout/shared/config"
	"github.com/kanishkmehta29/storefront-checkout/shared/kafka"
	"github.com/kanishkmehta29/storefront-checkout/shared/metrics"
	"github.com/kanishkmehta29/storefront-checkout/shared/models"
	"github.com/kanishkmehta29/storefront-checkout/store/mongodb"
	"github.com/kanishkmehta29/storefront-checkout/webhook"
)

func main() {
	cfg := config.Load()

	mongoClient, err := config.ConnectMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("error connecting to mongo: %v\n", err)
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database(cfg.MongoDatabase)
	orderStore := mongodb.NewOrderStore(db)
	productStore := mongodb.NewProductStore(db)
	cartStore := mongodb.NewCartStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := orderStore.EnsureIndexes(ctx); err != nil {
		log.Fatalf("error creating order indexes: %v\n", err)
	}
	cancel()

	if len(cfg.KafkaBrokers) > 0 {
		if err := kafka.CreateTopics(cfg.KafkaBrokers[0], kafka.AllTopics()); err != nil {
			log.Printf("Failed to create kafka topics (continuing, they may already exist): %v", err)
		}
	}
	publisher := kafka.NewPublisher(cfg.KafkaBrokers, kafka.AllTopics())
	defer publisher.Close()

	engineMetrics := metrics.NewEngineMetrics()

	gateways := map[string]gateway.Gateway{
		models.GatewayIntent: gateway.NewIntentGateway(
			cfg.IntentGatewayURL, cfg.IntentGatewayAPIKey, cfg.GatewayTimeout, engineMetrics),
		models.GatewayOrder: gateway.NewOrderGateway(
			cfg.OrderGatewayURL, cfg.OrderGatewayKeyID, cfg.OrderGatewayKeySecret, cfg.GatewayTimeout, engineMetrics),
	}

	coordinator := checkout.NewCoordinator(checkout.Deps{
		Orders:   orderStore,
		Products: productStore,
		Carts:    cartStore,
		Ledger:   inventory.NewLedger(productStore),
		Calc: pricing.NewCalculator(pricing.Config{
			TaxRate:               cfg.TaxRate,
			FreeShippingThreshold: cfg.FreeShippingThreshold,
			FlatShippingFee:       cfg.FlatShippingFee,
		}),
		Gateways:  gateways,
		Publisher: publisher,
		Metrics:   engineMetrics,
		Currency:  cfg.Currency,
	})

	reconciler := webhook.NewReconciler(orderStore, coordinator, map[string]string{
		models.GatewayIntent: cfg.IntentWebhookSecret,
		models.GatewayOrder:  cfg.OrderWebhookSecret,
	}, engineMetrics)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(coordinator, reconciler),
	}

	// Start the HTTP server in a goroutine
	go func() {
		log.Printf("Starting Checkout Service on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down Checkout Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Println("Checkout Service stopped")
}
