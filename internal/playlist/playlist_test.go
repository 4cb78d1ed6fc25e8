package playlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleM3U = Header + `

#EXTINF:-1 tvg-name="🔴 | Alpha vs Beta | 21:30 ⚽" tvg-logo="https://logo.example/a.png" group-title="Premier League",🔴 | Alpha vs Beta | 21:30 ⚽
https://cdn.example/live/c1_m1_football_fhd.flv

#EXTINF:-1 tvg-name="Gamma vs Delta | 23:00 🎾" tvg-logo="" group-title="ATP",Gamma vs Delta | 23:00 🎾
PROXY://https://cdn.example/auto_hls/m2_tennis_fhd/index.m3u8

`

func TestParse(t *testing.T) {
	doc := Parse(sampleM3U)
	require.Len(t, doc.Entries, 2)

	first := doc.Entries[0]
	assert.Equal(t, "🔴 | Alpha vs Beta | 21:30 ⚽", first.Name)
	assert.Equal(t, "https://logo.example/a.png", first.Logo)
	assert.Equal(t, "Premier League", first.Group)
	assert.Equal(t, "https://cdn.example/live/c1_m1_football_fhd.flv", first.URL)
	assert.False(t, first.Proxied)
	assert.True(t, first.IsLive())

	second := doc.Entries[1]
	assert.True(t, second.Proxied)
	assert.Equal(t, "https://cdn.example/auto_hls/m2_tennis_fhd/index.m3u8", second.URL)
	assert.False(t, second.IsLive())
}

func TestParse_ignoresStrayLines(t *testing.T) {
	doc := Parse("#EXTM3U\nhttps://orphan.example/without/extinf.m3u8\n#EXT-X-SOMETHING\n")
	assert.Empty(t, doc.Entries)
}

func TestRenderRoundTrip(t *testing.T) {
	doc := Parse(sampleM3U)
	again := Parse(doc.Render())
	assert.Equal(t, doc, again)
}

func TestRender_empty(t *testing.T) {
	assert.Equal(t, "", Document{}.Render())
}

func TestRender_proxyMarkerPlacement(t *testing.T) {
	doc := Document{Entries: []Entry{{
		Name: "A vs B | 10:00 ⚽", URL: "https://cdn.example/x.flv", Proxied: true,
	}}}
	out := doc.Render()
	assert.True(t, strings.HasPrefix(out, Header+"\n"))
	assert.Contains(t, out, "\nPROXY://https://cdn.example/x.flv\n")
}
