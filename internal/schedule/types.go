// Package schedule fetches live-sports match listings from the upstream
// schedule API and merges them into a canonical competition set.
package schedule

import "time"

// Sport identifies one of the schedule API's supported sport types.
type Sport string

const (
	SportFootball   Sport = "football"
	SportVolleyball Sport = "volleyball"
	SportTennis     Sport = "tennis"
)

// Sports lists every sport the aggregation covers, in fetch order.
func Sports() []Sport {
	return []Sport{SportFootball, SportVolleyball, SportTennis}
}

// Icon returns the glyph shown after the kick-off time in channel titles.
func (s Sport) Icon() string {
	switch s {
	case SportFootball:
		return "⚽"
	case SportVolleyball:
		return "🏐"
	case SportTennis:
		return "🎾"
	}
	return ""
}

// TeamRef is one side of a match as the API reports it.
type TeamRef struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// Display returns the short name when the API provides one, else the full name.
func (t TeamRef) Display() string {
	if t.ShortName != "" {
		return t.ShortName
	}
	return t.Name
}

// Room is a commentary room attached to a match. Only the first room's first
// commentator id is used for stream URL derivation; a match with no rooms has
// no stream at all.
type Room struct {
	CommentatorIDs []string `json:"commentator_ids"`
}

// Match is a single fixture. ID is globally unique across sports.
type Match struct {
	ID         string  `json:"_id"`
	StartTime  int64   `json:"match_time"` // unix seconds
	StatusText string  `json:"status_text"`
	HomeTeam   TeamRef `json:"home_team"`
	AwayTeam   TeamRef `json:"away_team"`
	Rooms      []Room  `json:"rooms"`
}

// IsLive reports whether the API currently marks the match as in play.
func (m Match) IsLive() bool {
	return m.StatusText == "live"
}

// Start returns the kick-off instant.
func (m Match) Start() time.Time {
	return time.Unix(m.StartTime, 0)
}

// FirstCommentatorID returns the first commentator of the first room, or ""
// when the match only has the generic simulcast feed.
func (m Match) FirstCommentatorID() string {
	if len(m.Rooms) == 0 {
		return ""
	}
	if ids := m.Rooms[0].CommentatorIDs; len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// Competition is a tournament with its matches for one fetched day. The API
// does not include the sport in the record, so the fetcher tags it; identity
// is the (ID, Sport) pair since ids repeat across sports.
type Competition struct {
	ID        string  `json:"_id"`
	Name      string  `json:"name"`
	ShortName string  `json:"short_name"`
	Logo      string  `json:"logo"`
	Matches   []Match `json:"matches"`
	Sport     Sport   `json:"-"`
}

// GroupTitle returns the playlist group label for this competition.
func (c Competition) GroupTitle() string {
	if c.ShortName != "" {
		return c.ShortName
	}
	return c.Name
}

// listEnvelope is the API's response wrapper.
type listEnvelope struct {
	Status bool          `json:"status"`
	Msg    string        `json:"msg"`
	Result []Competition `json:"result"`
}
