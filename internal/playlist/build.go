package playlist

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kickstream/kickstream/internal/localtime"
	"github.com/kickstream/kickstream/internal/schedule"
)

// StartingSoonWindow is how far before kick-off a match is already shown as
// live, so viewers tuning in early land on the pre-match feed.
const StartingSoonWindow = 30 * time.Minute

// BuildOptions parameterizes Build. Stream bases come from configuration; the
// upstream hosts rotate and are never hardcoded.
type BuildOptions struct {
	PrimaryStreamBase string // commentator FLV feeds
	BackupStreamBase  string // generic simulcast HLS feeds
	HoursLookingAhead int    // future matches beyond this are hidden
}

// Build turns merged competitions into a playlist Document.
//
// Matches are deduplicated by match id globally (first seen keeps its
// competition for group/logo metadata), ordered by kick-off time, and pass a
// visibility filter: a past match survives only while the API still marks it
// live, a future match only while it starts within HoursLookingAhead
// (inclusive). A match with no rooms has no stream and is dropped.
func Build(comps []schedule.Competition, now time.Time, opts BuildOptions, log zerolog.Logger) Document {
	type flat struct {
		comp  *schedule.Competition
		match schedule.Match
	}

	seen := make(map[string]int)
	var all []flat
	for i := range comps {
		comp := &comps[i]
		for _, m := range comp.Matches {
			if at, dup := seen[m.ID]; dup {
				// First occurrence keeps the metadata, but commentary rooms
				// accumulate: a duplicate listing may carry the only stream.
				all[at].match.Rooms = append(all[at].match.Rooms, m.Rooms...)
				continue
			}
			seen[m.ID] = len(all)
			m.Rooms = append([]schedule.Room(nil), m.Rooms...)
			all = append(all, flat{comp: comp, match: m})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].match.StartTime < all[j].match.StartTime })

	nowUnix := now.Unix()
	horizon := nowUnix + int64(opts.HoursLookingAhead)*3600

	var doc Document
	for _, f := range all {
		m := f.match
		switch {
		case m.StartTime < nowUnix && !m.IsLive():
			log.Debug().Str("match", m.ID).Msg("skipping finished match")
			continue
		case m.StartTime >= nowUnix && m.StartTime > horizon:
			log.Debug().Str("match", m.ID).Msg("skipping match beyond lookahead window")
			continue
		}
		if len(m.Rooms) == 0 {
			log.Debug().Str("match", m.ID).Msg("skipping match without rooms")
			continue
		}

		doc.Entries = append(doc.Entries, Entry{
			Name:  channelTitle(m, f.comp.Sport, nowUnix),
			Logo:  sanitize(f.comp.Logo),
			Group: sanitize(f.comp.GroupTitle()),
			URL:   streamURL(m, f.comp.Sport, opts),
		})
		log.Debug().Str("match", m.ID).Str("start", localtime.RelativeDayTime(m.StartTime, now)).
			Msg("added channel")
	}
	return doc
}

// channelTitle renders "<home> vs <away> | <HH:MM> <icon>", with the live
// marker for matches in play or kicking off within StartingSoonWindow.
func channelTitle(m schedule.Match, sport schedule.Sport, nowUnix int64) string {
	title := fmt.Sprintf("%s vs %s | %s %s",
		sanitize(m.HomeTeam.Display()), sanitize(m.AwayTeam.Display()),
		localtime.Clock(m.StartTime), sport.Icon())
	startingSoon := m.StartTime > nowUnix && m.StartTime-nowUnix <= int64(StartingSoonWindow/time.Second)
	if m.IsLive() || startingSoon {
		title = LiveMarker + " | " + title
	}
	return title
}

// streamURL derives the channel URL by naming convention: commentator feeds
// live on the primary FLV host, commentator-less matches fall back to the
// generic per-match simulcast on the backup HLS host.
func streamURL(m schedule.Match, sport schedule.Sport, opts BuildOptions) string {
	if cid := m.FirstCommentatorID(); cid != "" {
		return fmt.Sprintf("%s/live/%s_%s_%s_fhd.flv",
			strings.TrimSuffix(opts.PrimaryStreamBase, "/"), cid, m.ID, sport)
	}
	return fmt.Sprintf("%s/auto_hls/%s_%s_fhd/index.m3u8",
		strings.TrimSuffix(opts.BackupStreamBase, "/"), m.ID, sport)
}

// sanitize keeps names safe inside quoted EXTINF attributes.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	return strings.TrimSpace(s)
}
