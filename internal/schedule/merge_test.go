package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func match(id string, start int64) Match {
	return Match{ID: id, StartTime: start}
}

func TestMerge_sameCompetitionAcrossDates(t *testing.T) {
	// Two fetches for the same sport on different dates both return "C1".
	in := []Competition{
		{ID: "C1", Sport: SportFootball, Name: "Premier League", Matches: []Match{match("m2", 200), match("m1", 100)}},
		{ID: "C1", Sport: SportFootball, Matches: []Match{match("m3", 150)}},
	}
	out := Merge(in)
	require.Len(t, out, 1)
	assert.Equal(t, "Premier League", out[0].Name)
	require.Len(t, out[0].Matches, 3)
	assert.Equal(t, []string{"m1", "m3", "m2"}, []string{out[0].Matches[0].ID, out[0].Matches[1].ID, out[0].Matches[2].ID})
}

func TestMerge_sameIDDifferentSports(t *testing.T) {
	in := []Competition{
		{ID: "7", Sport: SportFootball, Matches: []Match{match("f1", 10)}},
		{ID: "7", Sport: SportTennis, Matches: []Match{match("t1", 20)}},
	}
	out := Merge(in)
	require.Len(t, out, 2)
	assert.Equal(t, SportFootball, out[0].Sport)
	assert.Equal(t, SportTennis, out[1].Sport)
}

func TestMerge_firstSeenMetadataWins(t *testing.T) {
	in := []Competition{
		{ID: "C1", Sport: SportFootball, Name: "First", ShortName: "1st"},
		{ID: "C1", Sport: SportFootball, Name: "Second", ShortName: "2nd", Matches: []Match{match("m", 1)}},
	}
	out := Merge(in)
	require.Len(t, out, 1)
	assert.Equal(t, "First", out[0].Name)
	assert.Len(t, out[0].Matches, 1)
}

func TestMerge_dropsRecordsWithoutID(t *testing.T) {
	in := []Competition{
		{ID: "", Sport: SportFootball, Matches: []Match{match("m1", 1)}},
		{ID: "C2", Sport: SportFootball},
	}
	out := Merge(in)
	require.Len(t, out, 1)
	assert.Equal(t, "C2", out[0].ID)
}

func TestMerge_keepsDuplicateMatchIDs(t *testing.T) {
	// Match-id dedup belongs to the playlist builder, not the merge.
	in := []Competition{
		{ID: "C1", Sport: SportFootball, Matches: []Match{match("m1", 100)}},
		{ID: "C1", Sport: SportFootball, Matches: []Match{match("m1", 100)}},
	}
	out := Merge(in)
	require.Len(t, out, 1)
	assert.Len(t, out[0].Matches, 2)
}

func TestMerge_doesNotMutateInput(t *testing.T) {
	shared := make([]Match, 1, 4) // spare capacity invites aliasing bugs
	shared[0] = match("m1", 100)
	in := []Competition{
		{ID: "C1", Sport: SportFootball, Matches: shared},
		{ID: "C1", Sport: SportFootball, Matches: []Match{match("m0", 50)}},
	}
	Merge(in)
	assert.Equal(t, "m1", shared[0].ID)
	assert.Len(t, shared, 1)
}
