package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// History backends.
const (
	HistorySQLite = "sqlite"
	HistoryRedis  = "redis"
	HistoryMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline, covers a full page of upstream calls

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Gallery
	PageSize        int           // upstream calls per page (default: 10)
	FeedLimit       int           // max images kept by the server feed (default: 500)
	SourcesFile     string        // optional YAML overriding upstream endpoints and categories
	UpstreamTimeout time.Duration // HTTP client timeout for upstream calls

	// Storage
	DBPath         string // sqlite catalogue path
	HistoryBackend string // "sqlite" | "redis" | "memory"
	HistoryMax     int    // history bound (default: 50)

	// Background jobs
	PrefetchInterval  time.Duration // interval between feed refreshes (default: 1h)
	OpportunisticSize int           // images fetched before serving /api/images (0 = off)
	BackfillInterval  time.Duration // interval between dimension backfills (default: 30m)
	BackfillWorkers   int           // concurrent inspections
	BackfillBatch     int           // images inspected per run

	// Download proxy
	DownloadBurst  int // rate limit burst per client IP
	DownloadPerMin int // rate limit refill per client IP per minute

	// Redis (only when HistoryBackend is "redis")
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedHosts []string // optional, restrict ops endpoints to specific Host headers
	AllowedCIDRS []string // optional, restrict ops endpoints to specific IPs/CIDRs
	CORSOrigins  []string // origins allowed to call the API from a browser ("*" = any)
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("GALLERY_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("GALLERY_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("GALLERY_REQUEST_TIMEOUT", 60*time.Second),

		// Logging
		LogLevel:  getenv("GALLERY_LOG_LEVEL", "info"),
		PrettyLog: mustBool("GALLERY_PRETTY_LOG", true),

		// Gallery
		PageSize:        getenvInt("GALLERY_PAGE_SIZE", 10),
		FeedLimit:       getenvInt("GALLERY_FEED_LIMIT", 500),
		SourcesFile:     getenv("GALLERY_SOURCES_FILE", ""),
		UpstreamTimeout: mustDuration("GALLERY_UPSTREAM_TIMEOUT", 15*time.Second),

		// Storage
		DBPath:         getenv("GALLERY_DB_PATH", "data/gallery.db"),
		HistoryBackend: strings.ToLower(getenv("GALLERY_HISTORY_BACKEND", HistorySQLite)),
		HistoryMax:     getenvInt("GALLERY_HISTORY_MAX", 50),

		// Background jobs
		PrefetchInterval:  mustDuration("GALLERY_PREFETCH_INTERVAL", time.Hour),
		OpportunisticSize: getenvInt("GALLERY_OPPORTUNISTIC_FETCH", 3),
		BackfillInterval:  mustDuration("GALLERY_BACKFILL_INTERVAL", 30*time.Minute),
		BackfillWorkers:   getenvInt("GALLERY_BACKFILL_WORKERS", 4),
		BackfillBatch:     getenvInt("GALLERY_BACKFILL_BATCH", 50),

		// Download proxy
		DownloadBurst:  getenvInt("GALLERY_DOWNLOAD_BURST", 20),
		DownloadPerMin: getenvInt("GALLERY_DOWNLOAD_PER_MIN", 60),

		// Redis tuning
		RedisUser:           getenv("GALLERY_REDIS_USERNAME", ""),
		RedisPassword:       getenv("GALLERY_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("GALLERY_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("GALLERY_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("GALLERY_ALLOWED_CIDRS", "")),
		CORSOrigins:  splitAndTrim(getenv("GALLERY_CORS_ORIGINS", "*")),
		TrustProxy:   mustBool("GALLERY_TRUST_PROXY", false),
	}

	switch cfg.HistoryBackend {
	case HistorySQLite, HistoryMemory:
	case HistoryRedis:
		cfg.RedisAddr = requireEnv("GALLERY_REDIS_ADDR")
	default:
		panic(fmt.Sprintf("❌ FATAL: GALLERY_HISTORY_BACKEND must be sqlite, redis or memory, got %q", cfg.HistoryBackend))
	}

	if cfg.PageSize < 1 {
		cfg.PageSize = 10
	}
	if cfg.HistoryMax < 1 {
		cfg.HistoryMax = 50
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
