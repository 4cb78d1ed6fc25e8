// Package server exposes the generated playlist, the stream relay, and
// status/metrics endpoints. It is a thin shell: all playlist state lives in
// the scheduler, all probing in the prober.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kickstream/kickstream/internal/history"
	"github.com/kickstream/kickstream/internal/metrics"
	"github.com/kickstream/kickstream/internal/playlist"
	"github.com/kickstream/kickstream/internal/relay"
)

// PlaylistSource supplies the current playlist artifact.
type PlaylistSource interface {
	Current() (text string, generatedAt time.Time)
}

// Server serves the playlist and relay endpoints.
type Server struct {
	addr    string
	baseURL string // external base for relay links; "" = derive per request
	source  PlaylistSource
	store   *history.Store
	relay   *relay.Handler
	log     zerolog.Logger
}

// New builds a Server. store may be nil; /status then omits probe health.
func New(addr, baseURL string, source PlaylistSource, store *history.Store, rl *relay.Handler, log zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		baseURL: baseURL,
		source:  source,
		store:   store,
		relay:   rl,
		log:     log.With().Str("component", "server").Logger(),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePlaylist)
	mux.HandleFunc("/playlist.m3u", s.handlePlaylist)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle(relay.Path, s.relay)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// ListenAndServe blocks until ctx is cancelled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		// Streams through /live are long-lived; no write timeout.
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", s.addr).Msg("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/playlist.m3u" {
		http.NotFound(w, r)
		return
	}
	text, _ := s.source.Current()
	if strings.TrimSpace(text) == "" {
		http.Error(w, "no playlist available, wait for the next update", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Content-Disposition", `attachment; filename="playlist.m3u"`)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=30")
	fmt.Fprint(w, s.resolveProxyLines(text, r))
}

// resolveProxyLines turns PROXY:// marker lines into concrete relay links.
// This is the serving layer's half of the marker contract with the prober.
func (s *Server) resolveProxyLines(text string, r *http.Request) string {
	base := s.relayBase(r)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if target, ok := strings.CutPrefix(trimmed, playlist.ProxyMarker); ok {
			lines[i] = base + relay.Path + "?url=" + url.QueryEscape(target)
		}
	}
	return strings.Join(lines, "\n")
}

func (s *Server) relayBase(r *http.Request) string {
	if s.baseURL != "" {
		return strings.TrimSuffix(s.baseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

type statusChannel struct {
	Name      string `json:"name"`
	Group     string `json:"group,omitempty"`
	URL       string `json:"url"`
	Proxied   bool   `json:"proxied"`
	Healthy   *bool  `json:"healthy,omitempty"`
	LatencyMS *int64 `json:"latency_ms,omitempty"`
}

type statusResponse struct {
	Status        string          `json:"status"`
	GeneratedAt   *time.Time      `json:"generated_at,omitempty"`
	TotalChannels int             `json:"total_channels"`
	Channels      []statusChannel `json:"channels,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	text, generatedAt := s.source.Current()
	resp := statusResponse{Status: "waiting"}
	if strings.TrimSpace(text) != "" {
		resp.Status = "ok"
		resp.GeneratedAt = &generatedAt

		health := map[string]history.Result{}
		if results, err := s.store.Latest(); err == nil {
			for _, res := range results {
				health[res.URL] = res
			}
		}
		doc := playlist.Parse(text)
		resp.TotalChannels = len(doc.Entries)
		for _, e := range doc.Entries {
			ch := statusChannel{Name: e.Name, Group: e.Group, URL: e.URL, Proxied: e.Proxied}
			if res, ok := health[e.URL]; ok {
				healthy := res.OK
				latency := res.Latency.Milliseconds()
				ch.Healthy = &healthy
				ch.LatencyMS = &latency
			}
			resp.Channels = append(resp.Channels, ch)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	text, generatedAt := s.source.Current()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ok":           true,
		"has_playlist": strings.TrimSpace(text) != "",
		"generated_at": generatedAt,
	})
}
