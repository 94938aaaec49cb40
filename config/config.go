package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string

	StorageDriver string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string

	JWTSecret string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// PushDriver selects the pub/sub transport carrying pushed events to
	// socket nodes: "redis" or "nats".
	PushDriver string
	NATSURL    string

	KafkaBrokers     []string
	KafkaRecordTopic string

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PresignTTL time.Duration

	GuestDeskUserID  string
	GuestIdleTimeout time.Duration
	GuestSweepEvery  time.Duration
	GuestRateLimit   int
	MessageRateLimit int
	RateLimitWindow  time.Duration
	PresenceTTL      time.Duration
	ProfileCacheTTL  time.Duration
	DedupCapacity    int
	DedupTTL         time.Duration
	AllowedWSOrigins []string
	ShutdownTimeout  time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort: getEnv("APP_PORT", "8080"),
		AppMode: getEnv("APP_MODE", "development"),

		StorageDriver: getEnv("STORAGE_DRIVER", "postgres"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "shopdesk"),
		DBPort:        getEnv("DB_PORT", "5432"),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		PushDriver: getEnv("PUSH_DRIVER", "redis"),
		NATSURL:    getEnv("NATS_URL", "nats://localhost:4222"),

		KafkaBrokers:     getEnvAsList("KAFKA_BROKERS"),
		KafkaRecordTopic: getEnv("KAFKA_RECORD_TOPIC", "realtime.records"),

		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PresignTTL: time.Duration(getEnvAsInt("S3_PRESIGN_TTL_SECONDS", 900)) * time.Second,

		GuestDeskUserID:  getEnv("GUEST_DESK_USER_ID", "00000000-0000-0000-0000-000000000001"),
		GuestIdleTimeout: time.Duration(getEnvAsInt("GUEST_SESSION_IDLE_MINUTES", 30)) * time.Minute,
		GuestSweepEvery:  time.Duration(getEnvAsInt("GUEST_SWEEP_SECONDS", 60)) * time.Second,
		GuestRateLimit:   getEnvAsInt("RATE_LIMIT_GUEST", 20),
		MessageRateLimit: getEnvAsInt("RATE_LIMIT_MESSAGES", 60),
		RateLimitWindow:  time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		PresenceTTL:      time.Duration(getEnvAsInt("PRESENCE_TTL_SECONDS", 120)) * time.Second,
		ProfileCacheTTL:  time.Duration(getEnvAsInt("PROFILE_CACHE_TTL_SECONDS", 300)) * time.Second,
		DedupCapacity:    getEnvAsInt("DEDUP_CAPACITY", 1000),
		DedupTTL:         time.Duration(getEnvAsInt("DEDUP_TTL_SECONDS", 300)) * time.Second,
		AllowedWSOrigins: getEnvAsList("WS_ALLOWED_ORIGINS"),
		ShutdownTimeout:  time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

// S3Enabled reports whether attachment uploads are configured.
func (c *Config) S3Enabled() bool {
	return c.S3Region != "" && c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
