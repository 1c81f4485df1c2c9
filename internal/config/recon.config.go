package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type AppConfig struct {
	HTTPAddr     string
	GRPCAddr     string
	RedisPass    string
	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string

	// reconciliation defaults, overridable per request
	ToleranceDays    int
	AmountEpsilon    decimal.Decimal
	GlobalEpsilon    decimal.Decimal
	DefaultThreshold decimal.Decimal
	MatchWorkers     int
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8041"),
		GRPCAddr:     getEnv("GRPC_ADDR", ":8042"),
		RedisAddr:    getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass:    getEnv("REDIS_PASS", ""),
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", []string{"kafka:9092"}),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "reconciliation.events"),

		ToleranceDays:    getEnvAsInt("MATCH_TOLERANCE_DAYS", 3),
		AmountEpsilon:    getEnvAsDecimal("MATCH_AMOUNT_EPSILON", "0.01"),
		GlobalEpsilon:    getEnvAsDecimal("GLOBAL_BALANCE_EPSILON", "0.01"),
		DefaultThreshold: getEnvAsDecimal("DEFAULT_VARIANCE_THRESHOLD", "1000.00"),
		MatchWorkers:     getEnvAsInt("MATCH_WORKERS", 4),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(defaultValue)
}
