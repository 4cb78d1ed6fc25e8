package relay

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T) *Handler {
	t.Helper()
	return New(Options{
		UserAgent: "test-agent",
		Referer:   "https://ref.example/",
		Origin:    "https://ref.example",
		BaseURL:   "http://relay.example",
	}, zerolog.Nop())
}

func get(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/live?url="+url.QueryEscape(target), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeHTTP_rejectsBadTargets(t *testing.T) {
	h := newRelay(t)
	for _, target := range []string{"", "file:///etc/passwd", "not a url"} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "target %q", target)
	}
}

func TestServeHTTP_streamsBinaryAndForwardsHeaders(t *testing.T) {
	var gotUA, gotRange string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Type", "video/x-flv")
		w.Write([]byte("flv-bytes"))
	}))
	defer upstream.Close()

	h := newRelay(t)
	req := httptest.NewRequest(http.MethodGet, "/live?url="+url.QueryEscape(upstream.URL+"/s.flv"), nil)
	req.Header.Set("Range", "bytes=100-")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "flv-bytes", rec.Body.String())
	assert.Equal(t, "video/x-flv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "bytes=100-", gotRange)
}

func TestServeHTTP_upstreamErrorIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	rec := get(t, newRelay(t), upstream.URL+"/gone.m3u8")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

const sampleManifest = `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXTINF:4.0,
seg0.ts
#EXTINF:4.0,
https://other.example/seg1.ts
`

func TestServeHTTP_rewritesManifest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		io.WriteString(w, sampleManifest)
	}))
	defer upstream.Close()

	rec := get(t, newRelay(t), upstream.URL+"/auto_hls/m1/index.m3u8")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "#EXT-X-TARGETDURATION:4")
	// Relative segment resolved against the manifest URL, then relayed.
	assert.Contains(t, body, "http://relay.example/live?url="+url.QueryEscape(upstream.URL+"/auto_hls/m1/seg0.ts"))
	// Absolute segment relayed as-is.
	assert.Contains(t, body, "http://relay.example/live?url="+url.QueryEscape("https://other.example/seg1.ts"))
	assert.NotContains(t, body, "\nseg0.ts")
}

func TestServeHTTP_decodesBrotliManifest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		io.WriteString(bw, sampleManifest)
		bw.Close()
	}))
	defer upstream.Close()

	rec := get(t, newRelay(t), upstream.URL+"/index.m3u8")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http://relay.example/live?url=")
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
}

func TestRewriteManifest_derivedBaseFromRequest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		io.WriteString(w, "#EXTM3U\nseg0.ts\n")
	}))
	defer upstream.Close()

	h := New(Options{}, zerolog.Nop()) // no BaseURL configured
	req := httptest.NewRequest(http.MethodGet, "http://myhost.example/live?url="+url.QueryEscape(upstream.URL+"/index.m3u8"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), "http://myhost.example/live?url=")
}
