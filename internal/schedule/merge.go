package schedule

import "sort"

// Merge combines competitions fetched across multiple days and sports into
// at most one record per (ID, Sport) pair, in first-seen order. The first
// occurrence of a key wins its metadata; later occurrences only contribute
// their matches. Each merged competition's matches end up sorted ascending
// by kick-off time.
//
// Matches sharing an id across days are NOT deduplicated here — the playlist
// builder dedups by match id globally, so the merged total may exceed the
// unique-match count until then.
func Merge(comps []Competition) []Competition {
	type key struct {
		id    string
		sport Sport
	}
	index := make(map[key]int, len(comps))
	merged := make([]Competition, 0, len(comps))

	for _, comp := range comps {
		if comp.ID == "" {
			// No identity, nothing to merge it under.
			continue
		}
		k := key{comp.ID, comp.Sport}
		if i, ok := index[k]; ok {
			merged[i].Matches = append(merged[i].Matches, comp.Matches...)
			continue
		}
		index[k] = len(merged)
		// Clone the match slice so later appends never write into the
		// caller's backing array.
		comp.Matches = append([]Match(nil), comp.Matches...)
		merged = append(merged, comp)
	}

	for i := range merged {
		m := merged[i].Matches
		sort.SliceStable(m, func(a, b int) bool { return m[a].StartTime < m[b].StartTime })
	}
	return merged
}
