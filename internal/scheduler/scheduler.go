// Package scheduler drives the two recurring cycles: full playlist
// regeneration (fetch schedules, merge, build) and the lighter stream
// check pass (probe the current playlist and re-annotate). The two never
// overlap; a check pass that fires mid-regeneration waits its turn.
package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/kickstream/kickstream/internal/metrics"
	"github.com/kickstream/kickstream/internal/playlist"
	"github.com/kickstream/kickstream/internal/prober"
	"github.com/kickstream/kickstream/internal/schedule"
)

// historyRetention bounds how long stale probe rows stick around.
const historyRetention = 7 * 24 * time.Hour

// Options configures a Runner.
type Options struct {
	RegenerateInterval time.Duration
	CheckInterval      time.Duration

	Build playlist.BuildOptions

	HoursBack  int
	HoursAhead int

	// PlaylistPath, when set, mirrors every artifact update to disk so a
	// restart can serve the last playlist before the first cycle finishes.
	PlaylistPath string
}

// Pruner is the slice of the history store the runner needs.
type Pruner interface {
	Prune(keep time.Duration, now time.Time) error
}

// Runner owns the playlist artifact.
type Runner struct {
	opts   Options
	client *schedule.Client
	prober *prober.Prober
	hist   Pruner
	log    zerolog.Logger

	now func() time.Time // swapped in tests

	mu          sync.Mutex // serializes cycles and guards the fields below
	text        string
	generatedAt time.Time
}

// NewRunner builds a Runner. hist may be nil.
func NewRunner(opts Options, client *schedule.Client, pr *prober.Prober, hist Pruner, log zerolog.Logger) *Runner {
	return &Runner{
		opts:   opts,
		client: client,
		prober: pr,
		hist:   hist,
		log:    log.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Current returns the latest playlist artifact. Safe for concurrent use.
func (r *Runner) Current() (string, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text, r.generatedAt
}

// Restore seeds the artifact from a previously persisted playlist.
func (r *Runner) Restore(text string, at time.Time) {
	if strings.TrimSpace(text) == "" {
		return
	}
	r.mu.Lock()
	r.text = text
	r.generatedAt = at
	r.mu.Unlock()
	r.log.Info().Time("generated_at", at).Msg("restored playlist from disk")
}

// Run executes both cycles once immediately, then on their intervals until
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.Regenerate(ctx)
	r.Check(ctx)

	regen := time.NewTicker(r.opts.RegenerateInterval)
	check := time.NewTicker(r.opts.CheckInterval)
	defer regen.Stop()
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-regen.C:
			r.Regenerate(ctx)
		case <-check.C:
			r.Check(ctx)
		}
	}
}

// Regenerate runs one full fetch-merge-build-probe cycle and swaps the
// artifact. A failed fetch round yields an empty playlist; the previous
// artifact is kept in that case.
func (r *Runner) Regenerate(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := r.now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("regenerate").Observe(time.Since(started).Seconds())
	}()

	comps := r.client.FetchAll(ctx, started, r.opts.HoursBack, r.opts.HoursAhead)
	merged := schedule.Merge(comps)
	doc := playlist.Build(merged, started, r.opts.Build, r.log)
	doc = r.prober.Refresh(ctx, doc, started)

	if len(doc.Entries) == 0 && r.text != "" {
		r.log.Warn().Msg("regeneration produced no channels, keeping previous playlist")
		return
	}

	r.swapLocked(doc.Render(), started)
	metrics.ChannelsRendered.Set(float64(len(doc.Entries)))
	r.log.Info().
		Int("competitions", len(merged)).
		Int("channels", len(doc.Entries)).
		Dur("took", time.Since(started)).
		Msg("playlist regenerated")
}

// Check re-probes the current playlist and refreshes its annotations and
// proxy routing without refetching schedules.
func (r *Runner) Check(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(r.text) == "" {
		return
	}

	started := r.now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("check").Observe(time.Since(started).Seconds())
	}()

	r.swapLocked(r.prober.RefreshText(ctx, r.text, started), r.generatedAt)

	if r.hist != nil {
		if err := r.hist.Prune(historyRetention, started); err != nil {
			r.log.Warn().Err(err).Msg("history prune failed")
		}
	}
	r.log.Info().Dur("took", time.Since(started)).Msg("stream check finished")
}

// swapLocked updates the artifact and mirrors it to disk. Callers hold r.mu.
func (r *Runner) swapLocked(text string, generatedAt time.Time) {
	r.text = text
	r.generatedAt = generatedAt

	if r.opts.PlaylistPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.opts.PlaylistPath), 0o755); err != nil {
		r.log.Warn().Err(err).Str("path", r.opts.PlaylistPath).Msg("playlist dir create failed")
		return
	}
	if err := renameio.WriteFile(r.opts.PlaylistPath, []byte(text), 0o644); err != nil {
		r.log.Warn().Err(err).Str("path", r.opts.PlaylistPath).Msg("playlist write failed")
	}
}
