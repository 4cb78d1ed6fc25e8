package schedule

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kickstream/kickstream/internal/localtime"
)

func testClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	return NewClient(ClientOptions{
		BaseURL:   srvURL,
		UserAgent: "test-agent",
		Referer:   "https://ref.example/",
		Origin:    "https://ref.example",
		RPS:       1000, // no pacing in tests
		Burst:     100,
		Timeout:   2 * time.Second,
	}, zerolog.Nop())
}

func TestFetch_tagsSportAndSendsHeaders(t *testing.T) {
	var gotUA, gotReferer, gotOrigin, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		gotOrigin = r.Header.Get("Origin")
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(listEnvelope{
			Status: true,
			Result: []Competition{{ID: "C1", Name: "Cup", Matches: []Match{{ID: "m1", StartTime: 100}}}},
		})
	}))
	defer srv.Close()

	comps, err := testClient(t, srv.URL).Fetch(context.Background(), SportTennis, "30-08-2026")
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.Equal(t, SportTennis, comps[0].Sport)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "https://ref.example/", gotReferer)
	assert.Equal(t, "https://ref.example", gotOrigin)
	assert.Contains(t, gotQuery, "sport_type=tennis")
	assert.Contains(t, gotQuery, "date=30-08-2026")
	assert.Contains(t, gotQuery, "type=schedule")
}

func TestFetch_envelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listEnvelope{Status: false, Msg: "maintenance"})
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Fetch(context.Background(), SportFootball, "30-08-2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance")
}

func TestFetch_httpError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Fetch(context.Background(), SportFootball, "30-08-2026")
	require.Error(t, err)
}

func TestFetchAll_oneFailingPairDoesNotAbort(t *testing.T) {
	// Volleyball 500s; football and tennis answer. The aggregation must
	// still return the healthy sports' competitions.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sport := r.URL.Query().Get("sport_type")
		if sport == "volleyball" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(listEnvelope{
			Status: true,
			Result: []Competition{{ID: "C-" + sport, Matches: []Match{{ID: "m-" + sport}}}},
		})
	}))
	defer srv.Close()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, localtime.Zone)
	all := testClient(t, srv.URL).FetchAll(context.Background(), now, 6, 24)

	sports := map[Sport]int{}
	for _, c := range all {
		sports[c.Sport]++
	}
	assert.NotZero(t, sports[SportFootball])
	assert.NotZero(t, sports[SportTennis])
	assert.Zero(t, sports[SportVolleyball])
}
