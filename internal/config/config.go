// Package config holds the full runtime configuration, read once at startup
// and passed explicitly into every component. Nothing else in the tree reads
// the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds schedule-API, playlist, prober, and server settings.
type Config struct {
	// HTTP server
	ListenAddr string // e.g. :4444
	BaseURL    string // external base URL for relay links; "" = derive from request Host

	// Upstream schedule API
	APIBaseURL string
	UserAgent  string // anti-blocking headers the upstream requires
	Referer    string
	Origin     string

	// Stream URL templates
	PrimaryStreamBase string // commentator feeds, FLV
	BackupStreamBase  string // generic simulcast feeds, HLS

	// Fetch pacing across the sport × date matrix. The upstream rate-limits
	// aggressively; ~3 rps keeps roughly 300ms between calls.
	FetchRPS     float64
	FetchBurst   int
	FetchTimeout time.Duration // per (sport,date) request

	// Time window (hours)
	HoursBack         int // how far back the fetched date range reaches
	HoursAhead        int // how far forward the fetched date range reaches
	HoursLookingAhead int // visibility cutoff for future matches

	// Cycles
	RegenerateInterval time.Duration // full fetch+render cycle
	CheckInterval      time.Duration // health-probe pass over the artifact

	// Prober
	ProbeTimeout     time.Duration // per-probe hard deadline
	ProbeConcurrency int
	ProxyThreshold   time.Duration // reachable but slower than this → relay
	ProbeCacheTTL    time.Duration // reuse a probe result this fresh; 0 = always probe
	BackupEntries    bool          // emit a [Backup] sibling forced through the relay

	// Routing overrides, matched against the stream URL's host.
	// Explicit domain rules take priority over the latency threshold.
	ForceProxyDomains  []string
	ForceDirectDomains []string

	// Artifacts
	PlaylistPath string
	HistoryPath  string // probe-history sqlite DB; "" disables

	LogLevel string
}

// Load reads config from environment. Call godotenv.Load before this to use
// a .env file. Defaults are usable against the public upstream as-is.
func Load() *Config {
	c := &Config{
		ListenAddr:         getEnv("KICKSTREAM_ADDR", ":4444"),
		BaseURL:            os.Getenv("KICKSTREAM_BASE_URL"),
		APIBaseURL:         getEnv("KICKSTREAM_API_BASE_URL", "https://api.robong.me/v1"),
		UserAgent:          getEnv("KICKSTREAM_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		Referer:            getEnv("KICKSTREAM_REFERER", "https://robong.me/"),
		Origin:             getEnv("KICKSTREAM_ORIGIN", "https://robong.me"),
		PrimaryStreamBase:  getEnv("KICKSTREAM_PRIMARY_STREAM_BASE", "https://rblive.starxcdn.xyz"),
		BackupStreamBase:   getEnv("KICKSTREAM_BACKUP_STREAM_BASE", "https://2988376792.global.cdnfastest.com"),
		FetchRPS:           getEnvFloat("KICKSTREAM_FETCH_RPS", 3),
		FetchBurst:         getEnvInt("KICKSTREAM_FETCH_BURST", 1),
		FetchTimeout:       getEnvDuration("KICKSTREAM_FETCH_TIMEOUT", 15*time.Second),
		HoursBack:          getEnvInt("KICKSTREAM_HOURS_BACK", 6),
		HoursAhead:         getEnvInt("KICKSTREAM_HOURS_AHEAD", 24),
		HoursLookingAhead:  getEnvInt("KICKSTREAM_HOURS_LOOKING_AHEAD", 24),
		RegenerateInterval: getEnvDuration("KICKSTREAM_REGENERATE_INTERVAL", 2*time.Hour),
		CheckInterval:      getEnvDuration("KICKSTREAM_CHECK_INTERVAL", 5*time.Minute),
		ProbeTimeout:       getEnvDuration("KICKSTREAM_PROBE_TIMEOUT", 2*time.Second),
		ProbeConcurrency:   getEnvInt("KICKSTREAM_PROBE_CONCURRENCY", 8),
		ProxyThreshold:     getEnvDuration("KICKSTREAM_PROXY_THRESHOLD", 500*time.Millisecond),
		ProbeCacheTTL:      getEnvDuration("KICKSTREAM_PROBE_CACHE_TTL", 0),
		BackupEntries:      getEnvBool("KICKSTREAM_BACKUP_ENTRIES", true),
		ForceProxyDomains:  getEnvList("KICKSTREAM_FORCE_PROXY_DOMAINS"),
		ForceDirectDomains: getEnvList("KICKSTREAM_FORCE_DIRECT_DOMAINS"),
		PlaylistPath:       getEnv("KICKSTREAM_PLAYLIST_PATH", "./data/playlist.m3u"),
		HistoryPath:        getEnv("KICKSTREAM_HISTORY_PATH", "./data/probes.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
	if c.FetchRPS <= 0 {
		c.FetchRPS = 3
	}
	if c.FetchBurst <= 0 {
		c.FetchBurst = 1
	}
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = 8
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 2 * time.Second
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Minute
	}
	if c.RegenerateInterval <= 0 {
		c.RegenerateInterval = 2 * time.Hour
	}
	if c.HoursLookingAhead <= 0 {
		c.HoursLookingAhead = 24
	}
	return c
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// getEnvDuration accepts Go duration strings ("90s") and, for compatibility
// with older env files, bare integers meaning milliseconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
