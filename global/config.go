package global

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"QTalk/logger"
)

// Config carries everything the process needs at boot. All values come
// from the environment (optionally a .env file) so the same binary runs
// unchanged across deployments.
type Config struct {
	HTTPAddr  string
	GatewayID string // node id, part of presence values and the relay subject
	NodeID    int64  // snowflake node

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsURL string // empty disables the cross-gateway relay

	JWTSecret   []byte
	PresenceTTL time.Duration
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file, using process environment")
	}

	cfg := Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		GatewayID:     getEnv("GATEWAY_ID", "gw-1"),
		NodeID:        getEnvInt64("NODE_ID", 1),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:       getEnv("MONGODB_DB", "qtalk"),
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       int(getEnvInt64("REDIS_DB", 0)),
		NatsURL:       getEnv("NATS_URL", ""),
		JWTSecret:     []byte(getEnv("JWT_SECRET", "")),
		PresenceTTL:   getEnvDuration("PRESENCE_TTL", 2*time.Hour),
	}
	if len(cfg.JWTSecret) == 0 {
		logger.Warn("JWT_SECRET not set, tokens will not survive restarts")
		cfg.JWTSecret = []byte(ids36())
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logger.Warnf("bad %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warnf("bad %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func ids36() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}
