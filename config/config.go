package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// Razorpay Configuration
	RAZORPAY_KEY_ID         string
	RAZORPAY_KEY_SECRET     string
	RAZORPAY_BASE_URL       string
	DEFAULT_CURRENCY        string
	GATEWAY_TIMEOUT         time.Duration
	ALLOW_IMPLICIT_ACCOUNTS bool
	// Kafka Configuration
	KAFKA_BROKERS          []string
	KAFKA_ENROLLMENT_TOPIC string
	// Observability
	LOKI_URL              string
	METRICS_PUSH_URL      string
	METRICS_PUSH_INTERVAL time.Duration
	// Receipt archive (S3 compatible)
	RECEIPTS_BUCKET     string
	RECEIPTS_REGION     string
	RECEIPTS_ENDPOINT   string
	RECEIPTS_ACCESS_KEY string
	RECEIPTS_SECRET_KEY string
	// Misc
	CRON_ENABLED    bool
	ALLOWED_ORIGINS string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	dbSSLMode := os.Getenv("DB_SSL_MODE")
	if dbSSLMode == "" {
		dbSSLMode = "disable"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  dbSSLMode,
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: getOrDefault("JWT_ISSUER", "placement-pulse-api"),
		// Redis
		REDIS_URL: getOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		// Razorpay
		RAZORPAY_KEY_ID:         os.Getenv("RAZORPAY_KEY_ID"),
		RAZORPAY_KEY_SECRET:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RAZORPAY_BASE_URL:       getOrDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
		DEFAULT_CURRENCY:        strings.ToUpper(getOrDefault("DEFAULT_CURRENCY", "INR")),
		GATEWAY_TIMEOUT:         getSeconds("GATEWAY_TIMEOUT_SECONDS", 15),
		ALLOW_IMPLICIT_ACCOUNTS: getBool("ALLOW_IMPLICIT_ACCOUNTS", false),
		// Kafka
		KAFKA_BROKERS:          splitList(os.Getenv("KAFKA_BROKERS")),
		KAFKA_ENROLLMENT_TOPIC: getOrDefault("KAFKA_ENROLLMENT_TOPIC", "enrollment-events"),
		// Observability
		LOKI_URL:              os.Getenv("LOKI_URL"),
		METRICS_PUSH_URL:      os.Getenv("METRICS_PUSH_URL"),
		METRICS_PUSH_INTERVAL: getSeconds("METRICS_PUSH_INTERVAL_SECONDS", 10),
		// Receipts
		RECEIPTS_BUCKET:     os.Getenv("RECEIPTS_BUCKET"),
		RECEIPTS_REGION:     os.Getenv("RECEIPTS_REGION"),
		RECEIPTS_ENDPOINT:   os.Getenv("RECEIPTS_ENDPOINT"),
		RECEIPTS_ACCESS_KEY: os.Getenv("RECEIPTS_ACCESS_KEY"),
		RECEIPTS_SECRET_KEY: os.Getenv("RECEIPTS_SECRET_KEY"),
		// Misc
		CRON_ENABLED:    getBool("CRON_ENABLED", true), // Default to enabled
		ALLOWED_ORIGINS: getOrDefault("ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	return envVariables, nil
}

// HasGatewayCredentials reports whether both Razorpay keys are configured
func (e *EnviornmentVariable) HasGatewayCredentials() bool {
	return e.RAZORPAY_KEY_ID != "" && e.RAZORPAY_KEY_SECRET != ""
}

// IsProduction reports whether GO_ENV is production
func (e *EnviornmentVariable) IsProduction() bool {
	return e.GO_ENV == "production"
}

func getOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getSeconds(key string, fallback int) time.Duration {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
