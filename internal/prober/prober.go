// Package prober checks the reachability and latency of live channels in a
// rendered playlist and rewrites each entry's title and routing accordingly.
// It never re-fetches match data; it only annotates what the renderer built.
package prober

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kickstream/kickstream/internal/history"
	"github.com/kickstream/kickstream/internal/httpclient"
	"github.com/kickstream/kickstream/internal/metrics"
	"github.com/kickstream/kickstream/internal/playlist"
	"github.com/kickstream/kickstream/internal/safeurl"
)

// Status classifies one probe outcome.
type Status string

const (
	StatusFast   Status = "fast"   // < 500ms
	StatusMedium Status = "medium" // 500ms – 1.5s
	StatusSlow   Status = "slow"   // > 1.5s
	StatusOff    Status = "off"    // unreachable
)

// Glyph returns the title marker for the status.
func (s Status) Glyph() string {
	switch s {
	case StatusFast:
		return "⚡"
	case StatusMedium:
		return "🐢"
	case StatusSlow:
		return "🐌"
	case StatusOff:
		return "⛔"
	}
	return ""
}

const (
	mediumLatency = 500 * time.Millisecond
	slowLatency   = 1500 * time.Millisecond
)

// BackupTag suffixes the forced-through-relay sibling of a healthy entry.
const BackupTag = " [Backup]"

// annotationRe matches a previously appended status suffix. Stripping before
// re-appending keeps repeated passes idempotent.
var annotationRe = regexp.MustCompile(` \[(⚡|🐢|🐌|⛔)[^\]]*\]$`)

// Outcome is one probed entry's result.
type Outcome struct {
	Status    Status
	Latency   time.Duration
	Reachable bool
}

// Options configures a Prober.
type Options struct {
	Timeout     time.Duration // per-probe deadline, mandatory
	Concurrency int
	Threshold   time.Duration // reachable but slower than this → relay
	CacheTTL    time.Duration // reuse history results this fresh; 0 = always probe

	// Domain overrides beat the latency threshold. An unreachable stream is
	// always relayed regardless.
	ForceProxyDomains  []string
	ForceDirectDomains []string

	BackupEntries bool // add a relay-forced sibling for each healthy direct entry

	// Headers sent with probes; CDNs apply the same referer checks to probes
	// as to playback.
	UserAgent string
	Referer   string
	Origin    string

	HTTP *http.Client
}

// Prober probes live entries and rewrites titles and routing.
type Prober struct {
	opts    Options
	client  *http.Client
	hostSem *httpclient.HostSemaphore
	store   *history.Store
	log     zerolog.Logger
}

// New builds a Prober. store may be nil to disable probe-result persistence.
func New(opts Options, store *history.Store, log zerolog.Logger) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 500 * time.Millisecond
	}
	client := opts.HTTP
	if client == nil {
		client = httpclient.WithTimeout(opts.Timeout)
	}
	return &Prober{
		opts:    opts,
		client:  client,
		hostSem: httpclient.GlobalHostSem,
		store:   store,
		log:     log.With().Str("component", "prober").Logger(),
	}
}

// Refresh probes every live entry of doc and returns the annotated document.
// Previously added annotations and backup siblings are dropped first, so
// refreshing an already refreshed document converges instead of accumulating.
// Probe failures degrade to StatusOff; Refresh itself never fails.
func (p *Prober) Refresh(ctx context.Context, doc playlist.Document, now time.Time) playlist.Document {
	base := make([]playlist.Entry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		if isBackupEntry(e.Name) {
			continue
		}
		e.Name = stripAnnotation(e.Name)
		base = append(base, e)
	}

	outcomes := make([]*Outcome, len(base))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i := range base {
		if !base[i].IsLive() {
			continue
		}
		i := i
		g.Go(func() error {
			out := p.probeOne(gctx, base[i].URL, now)
			outcomes[i] = &out
			return nil
		})
	}
	_ = g.Wait()

	result := playlist.Document{Entries: make([]playlist.Entry, 0, len(base)*2)}
	for i, e := range base {
		out := outcomes[i]
		if out == nil {
			// Not live: passes through untouched.
			result.Entries = append(result.Entries, e)
			continue
		}
		e.Name = annotate(e.Name, *out)
		e.Proxied = p.route(e.URL, *out)
		result.Entries = append(result.Entries, e)

		if p.opts.BackupEntries && out.Reachable && !e.Proxied {
			backup := e
			backup.Name += BackupTag
			backup.Proxied = true
			result.Entries = append(result.Entries, backup)
		}
	}
	return result
}

// RefreshText is Refresh over raw M3U text.
func (p *Prober) RefreshText(ctx context.Context, text string, now time.Time) string {
	return p.Refresh(ctx, playlist.Parse(text), now).Render()
}

// probeOne measures one stream URL, consulting and updating the history store.
func (p *Prober) probeOne(ctx context.Context, url string, now time.Time) Outcome {
	if cached, ok := p.store.Fresh(url, p.opts.CacheTTL, now); ok {
		return outcomeFrom(cached.OK, cached.Latency)
	}

	latency, reachable := p.measure(ctx, url)
	out := outcomeFrom(reachable, latency)

	metrics.ProbeTotal.WithLabelValues(string(out.Status)).Inc()
	if reachable {
		metrics.ProbeLatency.Observe(latency.Seconds())
	}
	if err := p.store.Record(url, reachable, latency, now); err != nil {
		p.log.Warn().Err(err).Msg("probe history write failed")
	}
	p.log.Debug().Str("url", url).Str("status", string(out.Status)).
		Dur("latency", latency).Msg("probed")
	return out
}

// measure issues the probe request. A one-byte range GET is used instead of
// HEAD because the FLV/HLS origins reject HEAD outright.
func (p *Prober) measure(ctx context.Context, url string) (time.Duration, bool) {
	if !safeurl.IsHTTPOrHTTPS(url) {
		return 0, false
	}
	release := p.hostSem.Acquire(url)
	defer release()

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("User-Agent", p.opts.UserAgent)
	req.Header.Set("Referer", p.opts.Referer)
	req.Header.Set("Origin", p.opts.Origin)
	req.Header.Set("Range", "bytes=0-0")

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		p.log.Debug().Err(err).Str("url", url).Msg("probe failed")
		return 0, false
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, false
	}
	return elapsed, true
}

// route decides proxy-vs-direct. Unreachable always relays; otherwise domain
// overrides beat the latency threshold.
func (p *Prober) route(url string, out Outcome) bool {
	if !out.Reachable {
		return true
	}
	host := safeurl.Host(url)
	for _, d := range p.opts.ForceDirectDomains {
		if safeurl.MatchesDomain(host, d) {
			return false
		}
	}
	for _, d := range p.opts.ForceProxyDomains {
		if safeurl.MatchesDomain(host, d) {
			return true
		}
	}
	return out.Latency > p.opts.Threshold
}

func outcomeFrom(reachable bool, latency time.Duration) Outcome {
	if !reachable {
		return Outcome{Status: StatusOff}
	}
	status := StatusFast
	switch {
	case latency > slowLatency:
		status = StatusSlow
	case latency >= mediumLatency:
		status = StatusMedium
	}
	return Outcome{Status: status, Latency: latency, Reachable: true}
}

// annotate appends the status suffix to a clean title.
func annotate(title string, out Outcome) string {
	if !out.Reachable {
		return title + " [" + out.Status.Glyph() + " off]"
	}
	return title + " [" + out.Status.Glyph() + " " + itoaMS(out.Latency) + "ms]"
}

// stripAnnotation removes a previous status suffix, if any.
func stripAnnotation(title string) string {
	return annotationRe.ReplaceAllString(title, "")
}

func isBackupEntry(title string) bool {
	return strings.HasSuffix(title, BackupTag)
}

func itoaMS(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
