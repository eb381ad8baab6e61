package serverapp

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"
)

// Config captures the gateway server's runtime settings, derived from CLI
// flags with environment-variable fallbacks for the values an operator is
// most likely to set via a process manager rather than a flag.
type Config struct {
	Addr            string
	DatabaseURL     string
	BlobDir         string
	BlobDBPath      string
	BlobAtRestKey   string
	InboxDBPath     string
	CallStateDBPath string
	ProfileDBPath   string
	RateLimitDBPath string
	RateLimitPersist bool
	RateLimitCount  int
	RateLimitWindow time.Duration
	AllowedOrigins  []string
}

// LoadConfig parses CLI flags and returns a populated Config, with
// DATABASE_URL/WALLETMSG_* environment variables used where a flag makes a
// poor fit for secret or deployment-specific values.
func LoadConfig() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Addr, "addr", ":8090", "address the gateway listens on")
	flag.StringVar(&cfg.BlobDir, "blob-dir", "wallet-messenger-data/blobs", "directory backing on-disk blob bytes")
	flag.StringVar(&cfg.BlobDBPath, "blob-db", "wallet-messenger-data/blobs.db", "path to blob metadata db")
	flag.StringVar(&cfg.InboxDBPath, "inbox-db", "wallet-messenger-data/inbox.db", "path to inbox db")
	flag.StringVar(&cfg.CallStateDBPath, "call-db", "wallet-messenger-data/calls.db", "path to call-state db")
	flag.StringVar(&cfg.ProfileDBPath, "profile-db", "wallet-messenger-data/profiles.db", "path to embedded profile db (used when DATABASE_URL is unset)")
	flag.BoolVar(&cfg.RateLimitPersist, "rate-limit-persist", false, "persist rate-limit counters across restarts")
	flag.StringVar(&cfg.RateLimitDBPath, "rate-limit-db", "wallet-messenger-data/ratelimit.db", "path to durable rate-limit db (with -rate-limit-persist)")
	flag.IntVar(&cfg.RateLimitCount, "rate-limit-count", 60, "events admitted per identity per action per window")
	flag.DurationVar(&cfg.RateLimitWindow, "rate-limit-window", 60*time.Second, "rate-limit window duration")
	origins := flag.String("allowed-origins", "", "comma-separated list of allowed CORS origins (beyond localhost)")

	flag.Parse()

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.BlobAtRestKey = os.Getenv("WALLETMSG_BLOB_SECRET")
	if os.Getenv("RATE_LIMIT_PERSIST") == "1" {
		cfg.RateLimitPersist = true
	}
	if *origins != "" {
		for _, o := range strings.Split(*origins, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	if cfg.RateLimitPersist {
		if err := os.MkdirAll(dirOf(cfg.RateLimitDBPath), 0o755); err != nil {
			log.Fatalf("prepare rate-limit dir: %v", err)
		}
	}
	for _, p := range []string{cfg.BlobDBPath, cfg.InboxDBPath, cfg.CallStateDBPath, cfg.ProfileDBPath} {
		if err := os.MkdirAll(dirOf(p), 0o755); err != nil {
			log.Fatalf("prepare data dir for %s: %v", p, err)
		}
	}
	if err := os.MkdirAll(cfg.BlobDir, 0o755); err != nil {
		log.Fatalf("prepare blob dir: %v", err)
	}
	return cfg
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
