package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Addr string

	// PostgresDSN selects the durable stores; empty falls back to the
	// in-memory stores (dev and tests).
	PostgresDSN string

	// RedisURL selects the Redis guest-session store; empty falls back to
	// the in-memory store.
	RedisURL string

	// KafkaBrokers and AuditTopic configure the audit event publisher;
	// empty brokers disable publishing.
	KafkaBrokers []string
	AuditTopic   string

	OCRBaseURL string
	OCRTimeout time.Duration

	JWTSigningKey string

	// IssuerKeyDir is where the issuer PEM pair is persisted.
	IssuerKeyDir string

	SessionTTL time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:          getenv("CERTLEDGER_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("CERTLEDGER_POSTGRES_DSN"),
		RedisURL:      os.Getenv("CERTLEDGER_REDIS_URL"),
		AuditTopic:    getenv("CERTLEDGER_AUDIT_TOPIC", "certledger.audit"),
		OCRBaseURL:    getenv("CERTLEDGER_OCR_URL", "https://ocr-api-repo.onrender.com/api/extract/"),
		OCRTimeout:    getdur("CERTLEDGER_OCR_TIMEOUT", 60*time.Second),
		JWTSigningKey: getenv("CERTLEDGER_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		IssuerKeyDir:  getenv("CERTLEDGER_ISSUER_KEY_DIR", "./keys"),
		SessionTTL:    getdur("CERTLEDGER_SESSION_TTL", 24*time.Hour),
	}
	if brokers := os.Getenv("CERTLEDGER_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
