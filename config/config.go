package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

var (
	PORT        string
	DB_URL      string
	JWT_SECRET  string
	CORS_ORIGIN string
	APP_URL     string

	STRIPE_SECRET_KEY             string
	STRIPE_WEBHOOK_SECRET         string
	STRIPE_PRICE_ID_CREATOR_PASS  string
	STRIPE_PRICE_ID_ENTERPRISE    string

	PAYSTACK_SECRET_KEY             string
	PAYSTACK_PLAN_CODE_CREATOR_PASS string
	PAYSTACK_PLAN_CODE_ENTERPRISE   string

	DEFAULT_PAYMENT_PROVIDER string
	PAYOUT_PROVIDER          string
	TRIAL_PERIOD_DAYS        string

	FRAUD_GATE_URL    string
	SLACK_WEBHOOK_URL string

	GOOGLE_CLIENT_ID         string
	GOOGLE_CLIENT_SECRET     string
	GOOGLE_REDIRECT_URL      string
	GOOGLE_FRONTEND_REDIRECT string
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")
	CORS_ORIGIN = getEnv("CORS_ORIGIN", "http://localhost:5173")
	APP_URL = getEnv("APP_URL", "http://localhost:5173")

	STRIPE_SECRET_KEY = getEnv("STRIPE_SECRET_KEY", "")
	STRIPE_WEBHOOK_SECRET = getEnv("STRIPE_WEBHOOK_SECRET", "")
	STRIPE_PRICE_ID_CREATOR_PASS = getEnv("STRIPE_PRICE_ID_CREATOR_PASS", "")
	STRIPE_PRICE_ID_ENTERPRISE = getEnv("STRIPE_PRICE_ID_ENTERPRISE", "")

	PAYSTACK_SECRET_KEY = getEnv("PAYSTACK_SECRET_KEY", "")
	PAYSTACK_PLAN_CODE_CREATOR_PASS = getEnv("PAYSTACK_PLAN_CODE_CREATOR_PASS", "")
	PAYSTACK_PLAN_CODE_ENTERPRISE = getEnv("PAYSTACK_PLAN_CODE_ENTERPRISE", "")

	DEFAULT_PAYMENT_PROVIDER = getEnv("DEFAULT_PAYMENT_PROVIDER", "paystack")
	PAYOUT_PROVIDER = getEnv("PAYOUT_PROVIDER", "paystack")
	TRIAL_PERIOD_DAYS = getEnv("TRIAL_PERIOD_DAYS", "14")

	FRAUD_GATE_URL = getEnv("FRAUD_GATE_URL", "")
	SLACK_WEBHOOK_URL = getEnv("SLACK_WEBHOOK_URL", "")

	GOOGLE_CLIENT_ID = getEnv("GOOGLE_CLIENT_ID", "")
	GOOGLE_CLIENT_SECRET = getEnv("GOOGLE_CLIENT_SECRET", "")
	GOOGLE_REDIRECT_URL = getEnv("GOOGLE_REDIRECT_URL", "")
	GOOGLE_FRONTEND_REDIRECT = getEnv("GOOGLE_FRONTEND_REDIRECT", "")
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
