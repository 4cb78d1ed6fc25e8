// Package relay proxies stream requests through this process. The serving
// layer rewrites PROXY:// playlist lines into /live?url=... links pointing
// here; we fetch the target with the upstream's expected headers and stream
// it back. HLS manifests are rewritten on the fly so every segment request
// also comes back through the relay.
package relay

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"

	"github.com/kickstream/kickstream/internal/httpclient"
	"github.com/kickstream/kickstream/internal/metrics"
	"github.com/kickstream/kickstream/internal/safeurl"
)

// Path is the relay's mount point; the playlist rewriter builds links to it.
const Path = "/live"

// Handler relays /live?url=<target> requests.
type Handler struct {
	userAgent string
	referer   string
	origin    string
	baseURL   string // external base for manifest rewriting; "" = derive from request
	client    *http.Client
	log       zerolog.Logger
}

// Options configures the relay.
type Options struct {
	UserAgent string
	Referer   string
	Origin    string
	BaseURL   string
	HTTP      *http.Client
}

// New builds a relay handler.
func New(opts Options, log zerolog.Logger) *Handler {
	client := opts.HTTP
	if client == nil {
		// No overall client timeout: live streams are long-lived. The
		// request context still cancels the upstream call on disconnect.
		client = &http.Client{Transport: httpclient.Default().Transport}
	}
	return &Handler{
		userAgent: opts.UserAgent,
		referer:   opts.Referer,
		origin:    opts.Origin,
		baseURL:   opts.BaseURL,
		client:    client,
		log:       log.With().Str("component", "relay").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" || !safeurl.IsHTTPOrHTTPS(target) {
		metrics.RelayRequests.WithLabelValues("bad_request").Inc()
		http.Error(w, "missing or invalid url", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		metrics.RelayRequests.WithLabelValues("bad_request").Inc()
		http.Error(w, "invalid url", http.StatusBadRequest)
		return
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Referer", h.referer)
	req.Header.Set("Origin", h.origin)
	// Ask for compressed manifests like a browser would; we decode below.
	req.Header.Set("Accept-Encoding", "gzip, br")
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		metrics.RelayRequests.WithLabelValues("upstream_error").Inc()
		h.log.Warn().Err(err).Str("url", target).Msg("upstream fetch failed")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		metrics.RelayRequests.WithLabelValues("upstream_error").Inc()
		h.log.Warn().Int("status", resp.StatusCode).Str("url", target).Msg("upstream error status")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	// Segments must never be cached by intermediaries under a shared /live URL.
	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	hdr.Set("Pragma", "no-cache")

	isManifest := strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "mpegurl") ||
		strings.Contains(target, ".m3u8")
	if isManifest && resp.StatusCode == http.StatusOK {
		h.serveManifest(w, r, resp, target)
		return
	}

	copyHeaders(hdr, resp.Header,
		"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "Content-Encoding", "Last-Modified", "Etag")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Client hung up mid-stream; normal for IPTV players.
		h.log.Debug().Err(err).Str("url", target).Msg("stream copy ended")
		return
	}
	metrics.RelayRequests.WithLabelValues("ok").Inc()
}

// serveManifest decodes, rewrites, and returns an HLS manifest so nested
// playlists and segments resolve back through the relay.
func (h *Handler) serveManifest(w http.ResponseWriter, r *http.Request, resp *http.Response, target string) {
	body, err := decodedReader(resp)
	if err != nil {
		metrics.RelayRequests.WithLabelValues("upstream_error").Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(body, 4<<20))
	if err != nil {
		metrics.RelayRequests.WithLabelValues("upstream_error").Inc()
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	rewritten := RewriteManifest(string(raw), target, h.relayBase(r))
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, rewritten)
	metrics.RelayRequests.WithLabelValues("ok").Inc()
}

// relayBase returns the external base URL clients should use to reach this
// relay, preferring the configured BaseURL over the request's own host.
func (h *Handler) relayBase(r *http.Request) string {
	if h.baseURL != "" {
		return strings.TrimSuffix(h.baseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// RewriteManifest rewrites every URI line of an HLS manifest into a
// relay-routed absolute link. Comment and tag lines pass through untouched.
func RewriteManifest(manifest, manifestURL, relayBase string) string {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return manifest
	}
	lines := strings.Split(manifest, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		lines[i] = line
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, err := url.Parse(line)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref).String()
		lines[i] = fmt.Sprintf("%s%s?url=%s", relayBase, Path, url.QueryEscape(abs))
	}
	return strings.Join(lines, "\n")
}

func decodedReader(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	default:
		return resp.Body, nil
	}
}

func copyHeaders(dst, src http.Header, keys ...string) {
	for _, k := range keys {
		if v := src.Get(k); v != "" {
			dst.Set(k, v)
		}
	}
}
