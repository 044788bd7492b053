package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"fieldgate/internal/platform/secrets"
)

// Server captures process-level configuration. FromEnv keeps main lean; dev
// defaults are safe for local runs and overridden in deployment.
type Server struct {
	Addr string

	// AdminPassphraseHash is the bcrypt hash of the shared administrator
	// passphrase. It is a single static secret, not a per-user credential.
	AdminPassphraseHash string

	// SSOClientID registers this deployment with the external single-sign-on
	// widget. The received credential is decoded locally and never sent
	// onward for verification.
	SSOClientID string

	// SessionTTL bounds how long an abandoned verification session survives
	// before the janitor reaps it.
	SessionTTL time.Duration

	// BypassAfter is how long an unresolved location search runs before the
	// bypass affordance is offered.
	BypassAfter time.Duration

	// FixTimeout bounds a single high-accuracy position request.
	FixTimeout time.Duration

	// QuickFixTimeout bounds the low-friction cached-position request.
	QuickFixTimeout time.Duration

	// ScanDuration is the fixed length of the simulated face scan.
	ScanDuration time.Duration

	// SyncDelay is the deliberate pause between final submission and the
	// profile handoff, mirroring the sync feedback shown to the user.
	SyncDelay time.Duration

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// RedisConfig configures the optional Redis session store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional profile store and audit outbox.
type PostgresConfig struct {
	URL string
}

// KafkaConfig configures the optional audit event publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// devAdminPassphrase is the local-development administrator passphrase; its
// bcrypt hash is derived at startup. Production deployments must set
// FIELDGATE_ADMIN_HASH instead.
const devAdminPassphrase = "kalimantan selatan"

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	adminHash := os.Getenv("FIELDGATE_ADMIN_HASH")
	if adminHash == "" {
		adminHash, _ = secrets.Hash(devAdminPassphrase)
	}

	cfg := Server{
		Addr:                envOr("FIELDGATE_ADDR", ":8080"),
		AdminPassphraseHash: adminHash,
		SSOClientID:         os.Getenv("FIELDGATE_SSO_CLIENT_ID"),
		SessionTTL:          envDuration("FIELDGATE_SESSION_TTL", 30*time.Minute),
		BypassAfter:         envDuration("FIELDGATE_GPS_BYPASS_AFTER", 5*time.Second),
		FixTimeout:          envDuration("FIELDGATE_GPS_FIX_TIMEOUT", 15*time.Second),
		QuickFixTimeout:     envDuration("FIELDGATE_GPS_QUICK_TIMEOUT", 3*time.Second),
		ScanDuration:        envDuration("FIELDGATE_SCAN_DURATION", 3*time.Second),
		SyncDelay:           envDuration("FIELDGATE_SYNC_DELAY", 1500*time.Millisecond),
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("FIELDGATE_REDIS_URL"),
		PoolSize:     envInt("FIELDGATE_REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("FIELDGATE_REDIS_MIN_IDLE", 2),
		DialTimeout:  envDuration("FIELDGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("FIELDGATE_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("FIELDGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
	}

	cfg.Postgres = PostgresConfig{
		URL: os.Getenv("FIELDGATE_POSTGRES_URL"),
	}

	if brokers := os.Getenv("FIELDGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka = KafkaConfig{
			Brokers: splitCommas(brokers),
			Topic:   envOr("FIELDGATE_KAFKA_AUDIT_TOPIC", "fieldgate.audit"),
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCommas(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
