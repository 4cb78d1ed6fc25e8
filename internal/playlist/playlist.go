// Package playlist models the M3U artifact as structured entries. Both the
// renderer and the health prober work on Document values, never on ad-hoc
// string rewrites, so re-annotating an already-annotated playlist stays
// idempotent.
package playlist

import (
	"bufio"
	"fmt"
	"strings"
)

// Header is the fixed first line of every rendered playlist.
const Header = "#EXTM3U tvg-shift=0 m3uautoload=1"

// ProxyMarker prefixes URLs the serving layer must rewrite into relay links.
const ProxyMarker = "PROXY://"

// LiveMarker is prefixed to titles of matches that are live or starting soon.
const LiveMarker = "🔴"

const maxLineSize = 1 << 20 // 1 MiB per line

// Entry is one channel: a metadata line plus a stream URL.
type Entry struct {
	Name    string // display title, also written as tvg-name
	Logo    string
	Group   string
	URL     string // bare stream URL, never including ProxyMarker
	Proxied bool   // route through the relay
}

// IsLive reports whether the entry's title carries the live marker.
func (e Entry) IsLive() bool {
	return strings.Contains(e.Name, LiveMarker)
}

// Document is an ordered playlist.
type Document struct {
	Entries []Entry
}

// Parse reads M3U text into a Document. Lines that are neither an EXTINF
// metadata line nor a following URL line are dropped; the fixed header is
// implied and not retained.
func Parse(text string) Document {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(nil, maxLineSize)

	var doc Document
	var pending string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#EXTM3U") {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			pending = line
			continue
		}
		if pending == "" {
			continue
		}
		if strings.HasPrefix(line, ProxyMarker) || strings.HasPrefix(line, "http") {
			e := entryFromEXTINF(pending)
			e.Proxied = strings.HasPrefix(line, ProxyMarker)
			e.URL = strings.TrimPrefix(line, ProxyMarker)
			doc.Entries = append(doc.Entries, e)
		}
		pending = ""
	}
	return doc
}

// Render writes the Document back to M3U text. An empty document renders to
// the empty string, which the serving layer maps to "not available".
func (d Document) Render() string {
	if len(d.Entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(Header + "\n\n")
	for _, e := range d.Entries {
		fmt.Fprintf(&b, "#EXTINF:-1 tvg-name=%q tvg-logo=%q group-title=%q,%s\n", e.Name, e.Logo, e.Group, e.Name)
		if e.Proxied {
			b.WriteString(ProxyMarker)
		}
		b.WriteString(e.URL + "\n\n")
	}
	return b.String()
}

// entryFromEXTINF parses the attributes and title out of one metadata line.
func entryFromEXTINF(line string) Entry {
	e := Entry{
		Logo:  extinfAttr(line, "tvg-logo"),
		Group: extinfAttr(line, "group-title"),
	}
	// Display title follows the comma after the attribute list. Titles never
	// contain commas the attributes don't (attrs are quoted), so the comma
	// after the last closing quote is the split point.
	if i := strings.LastIndex(line, `",`); i >= 0 {
		e.Name = line[i+2:]
	} else if i := strings.Index(line, ","); i >= 0 {
		e.Name = line[i+1:]
	}
	if e.Name == "" {
		e.Name = extinfAttr(line, "tvg-name")
	}
	return e
}

func extinfAttr(line, key string) string {
	marker := key + `="`
	i := strings.Index(line, marker)
	if i < 0 {
		return ""
	}
	rest := line[i+len(marker):]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return ""
	}
	return rest[:j]
}
