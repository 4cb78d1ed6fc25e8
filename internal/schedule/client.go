package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kickstream/kickstream/internal/httpclient"
	"github.com/kickstream/kickstream/internal/localtime"
	"github.com/kickstream/kickstream/internal/metrics"
)

// Client queries the upstream schedule API. All calls go through a shared
// rate limiter so the full sport × date matrix never exceeds the configured
// pace; the upstream blocks IPs that burst.
type Client struct {
	baseURL   string
	userAgent string
	referer   string
	origin    string

	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	log     zerolog.Logger
}

// ClientOptions configures a Client. Zero values fall back to safe defaults.
type ClientOptions struct {
	BaseURL   string
	UserAgent string
	Referer   string
	Origin    string
	RPS       float64       // sustained request rate across all fetches
	Burst     int           // limiter burst
	Timeout   time.Duration // per-request deadline
	HTTP      *http.Client
}

// NewClient builds a schedule API client.
func NewClient(opts ClientOptions, log zerolog.Logger) *Client {
	if opts.RPS <= 0 {
		opts.RPS = 3
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.HTTP == nil {
		opts.HTTP = httpclient.Default()
	}
	return &Client{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		referer:   opts.Referer,
		origin:    opts.Origin,
		http:      opts.HTTP,
		limiter:   rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		timeout:   opts.Timeout,
		log:       log.With().Str("component", "schedule").Logger(),
	}
}

// Fetch returns the competitions listed for one (sport, dateKey) pair, each
// tagged with sport. dateKey is the API's DD-MM-YYYY calendar key.
func (c *Client) Fetch(ctx context.Context, sport Sport, dateKey string) ([]Competition, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/match/list?sport_type=%s&date=%s&type=schedule",
		c.baseURL, url.QueryEscape(string(sport)), url.QueryEscape(dateKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	// The upstream rejects requests without browser-looking headers.
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", c.referer)
	req.Header.Set("Origin", c.origin)
	req.Header.Set("Accept", "application/json")

	resp, err := httpclient.DoWithRetry(ctx, c.http, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schedule API: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("schedule API: parse: %w", err)
	}
	if !env.Status {
		return nil, fmt.Errorf("schedule API: %s", env.Msg)
	}

	comps := env.Result
	for i := range comps {
		comps[i].Sport = sport
	}
	return comps, nil
}

// FetchAll walks every sport over the date keys covering the configured
// window around now. A failing (sport, date) pair is logged and yields
// nothing; it never aborts the rest of the matrix.
func (c *Client) FetchAll(ctx context.Context, now time.Time, hoursBack, hoursAhead int) []Competition {
	dateKeys := localtime.DateKeysForWindow(now, hoursBack, hoursAhead)
	c.log.Info().Strs("dates", dateKeys).Msg("fetching match lists")

	var all []Competition
	for _, sport := range Sports() {
		for _, key := range dateKeys {
			if ctx.Err() != nil {
				return all
			}
			comps, err := c.Fetch(ctx, sport, key)
			if err != nil {
				metrics.FetchTotal.WithLabelValues(string(sport), "error").Inc()
				c.log.Warn().Err(err).Str("sport", string(sport)).Str("date", key).
					Msg("fetch failed, skipping")
				continue
			}
			result := "ok"
			if len(comps) == 0 {
				result = "empty"
			}
			metrics.FetchTotal.WithLabelValues(string(sport), result).Inc()
			c.log.Debug().Str("sport", string(sport)).Str("date", key).
				Int("competitions", len(comps)).Msg("fetched")
			all = append(all, comps...)
		}
	}
	return all
}
