package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries deployment configuration for the checkout engine.
// Pricing knobs and gateway secrets are deployment concerns, not business
// logic the engine owns.
type Config struct {
	MongoURI      string
	MongoDatabase string
	KafkaBrokers  []string
	HTTPAddr      string

	Currency              string
	TaxRate               float64
	FreeShippingThreshold int64
	FlatShippingFee       int64

	GatewayTimeout time.Duration

	IntentGatewayURL    string
	IntentGatewayAPIKey string
	IntentWebhookSecret string

	OrderGatewayURL       string
	OrderGatewayKeyID     string
	OrderGatewayKeySecret string
	OrderWebhookSecret    string
}

// Load reads configuration from the environment, falling back to defaults
// suitable for local development.
func Load() Config {
	// Try to load env file but don't fail if it's not found
	_ = godotenv.Load(".env")

	cfg := Config{
		MongoURI:      envString("MONGODB_URI", ""),
		MongoDatabase: envString("MONGODB_DATABASE", "storefront"),
		KafkaBrokers:  strings.Split(envString("KAFKA_BROKERS", "localhost:9092"), ","),
		HTTPAddr:      envString("HTTP_ADDR", ":8080"),

		Currency:              envString("CURRENCY", "INR"),
		TaxRate:               envFloat("TAX_RATE", 0.18),
		FreeShippingThreshold: envInt("FREE_SHIPPING_THRESHOLD", 200000),
		FlatShippingFee:       envInt("FLAT_SHIPPING_FEE", 9900),

		GatewayTimeout: time.Duration(envInt("GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second,

		IntentGatewayURL:    envString("INTENT_GATEWAY_URL", "https://api.intent-gateway.example"),
		IntentGatewayAPIKey: envString("INTENT_GATEWAY_API_KEY", ""),
		IntentWebhookSecret: envString("INTENT_WEBHOOK_SECRET", ""),

		OrderGatewayURL:       envString("ORDER_GATEWAY_URL", "https://api.order-gateway.example"),
		OrderGatewayKeyID:     envString("ORDER_GATEWAY_KEY_ID", ""),
		OrderGatewayKeySecret: envString("ORDER_GATEWAY_KEY_SECRET", ""),
		OrderWebhookSecret:    envString("ORDER_WEBHOOK_SECRET", ""),
	}

	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %f", key, v, fallback)
		return fallback
	}
	return f
}
