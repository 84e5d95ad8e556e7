package notify

import (
	"sort"

	"github.com/ValentinKolb/dObj/lib/db"
)

// ChangeSet describes how a collection changed between two deliveries.
//
//   - Deletions: indices in the previously delivered collection
//   - Insertions: indices in the new collection
//   - Modifications: indices in the new collection of rows that stayed in place but changed
//
// A moved row is reported as a deletion at its old index and an insertion at its new index.
type ChangeSet struct {
	Deletions     []int
	Insertions    []int
	Modifications []int
}

// Empty reports whether the change set contains no changes
func (cs ChangeSet) Empty() bool {
	return len(cs.Deletions) == 0 && len(cs.Insertions) == 0 && len(cs.Modifications) == 0
}

// computeChangeSet diffs two row state lists.
// Rows are matched by key, repeated keys (link lists may link a row twice) are matched
// in order of occurrence. The rows that keep their relative order are the longest
// increasing subsequence of new positions, every other matched row counts as moved.
func computeChangeSet(old, new []db.RowState) ChangeSet {
	var cs ChangeSet

	newPos := make(map[db.RowKey][]int, len(new))
	for i, s := range new {
		newPos[s.Key] = append(newPos[s.Key], i)
	}

	type match struct {
		oldIdx, newIdx int
		modified       bool
	}
	matches := make([]match, 0, len(old))
	for i, s := range old {
		positions := newPos[s.Key]
		if len(positions) == 0 {
			cs.Deletions = append(cs.Deletions, i)
			continue
		}
		j := positions[0]
		newPos[s.Key] = positions[1:]
		matches = append(matches, match{oldIdx: i, newIdx: j, modified: new[j].Version != s.Version})
	}

	seq := make([]int, len(matches))
	for i, m := range matches {
		seq[i] = m.newIdx
	}
	stays := longestIncreasing(seq)

	inserted := make([]bool, len(new))
	for i := range inserted {
		inserted[i] = true
	}
	for i, m := range matches {
		if !stays[i] {
			cs.Deletions = append(cs.Deletions, m.oldIdx)
			continue
		}
		inserted[m.newIdx] = false
		if m.modified {
			cs.Modifications = append(cs.Modifications, m.newIdx)
		}
	}
	for j, ins := range inserted {
		if ins {
			cs.Insertions = append(cs.Insertions, j)
		}
	}

	sort.Ints(cs.Deletions)
	sort.Ints(cs.Modifications)
	return cs
}

// longestIncreasing marks the members of one longest strictly increasing subsequence
func longestIncreasing(seq []int) []bool {
	member := make([]bool, len(seq))
	if len(seq) == 0 {
		return member
	}

	// tails[k] is the index in seq of the smallest tail of an increasing run of length k+1
	tails := make([]int, 0, len(seq))
	prev := make([]int, len(seq))
	for i, v := range seq {
		k := sort.Search(len(tails), func(k int) bool { return seq[tails[k]] >= v })
		if k > 0 {
			prev[i] = tails[k-1]
		} else {
			prev[i] = -1
		}
		if k == len(tails) {
			tails = append(tails, i)
		} else {
			tails[k] = i
		}
	}

	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		member[i] = true
	}
	return member
}
