package notify

import (
	"testing"

	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/stretchr/testify/assert"
)

func states(pairs ...uint64) []db.RowState {
	out := make([]db.RowState, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, db.RowState{Key: db.RowKey(pairs[i]), Version: pairs[i+1]})
	}
	return out
}

func TestComputeChangeSet(t *testing.T) {
	tests := []struct {
		name     string
		old, new []db.RowState
		want     ChangeSet
	}{
		{
			name: "unchanged",
			old:  states(1, 1, 2, 1),
			new:  states(1, 1, 2, 1),
			want: ChangeSet{},
		},
		{
			name: "insert at end",
			old:  states(1, 1),
			new:  states(1, 1, 2, 3),
			want: ChangeSet{Insertions: []int{1}},
		},
		{
			name: "delete in the middle",
			old:  states(1, 1, 2, 1, 3, 1),
			new:  states(1, 1, 3, 1),
			want: ChangeSet{Deletions: []int{1}},
		},
		{
			name: "modification",
			old:  states(1, 1, 2, 1),
			new:  states(1, 1, 2, 5),
			want: ChangeSet{Modifications: []int{1}},
		},
		{
			name: "move is delete plus insert",
			old:  states(1, 1, 2, 1, 3, 1),
			new:  states(1, 1, 3, 1, 2, 1),
			want: ChangeSet{Deletions: []int{1}, Insertions: []int{2}},
		},
		{
			name: "clear",
			old:  states(1, 1, 2, 1),
			new:  nil,
			want: ChangeSet{Deletions: []int{0, 1}},
		},
		{
			name: "repeated keys",
			old:  states(1, 1, 1, 1),
			new:  states(1, 1, 1, 1, 1, 1),
			want: ChangeSet{Insertions: []int{2}},
		},
		{
			name: "insert and modify",
			old:  states(1, 1, 2, 1),
			new:  states(3, 4, 1, 1, 2, 4),
			want: ChangeSet{Insertions: []int{0}, Modifications: []int{2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeChangeSet(tt.old, tt.new)
			assert.Equal(t, tt.want.Deletions, got.Deletions, "deletions")
			assert.Equal(t, tt.want.Insertions, got.Insertions, "insertions")
			assert.Equal(t, tt.want.Modifications, got.Modifications, "modifications")
			assert.Equal(t, tt.want.Empty(), got.Empty())
		})
	}
}

func TestLongestIncreasing(t *testing.T) {
	assert.Equal(t, []bool{}, longestIncreasing(nil))
	assert.Equal(t, []bool{true, true, true}, longestIncreasing([]int{0, 1, 2}))
	assert.Equal(t, []bool{true, false, true}, longestIncreasing([]int{0, 2, 1}))
	assert.Equal(t, []bool{false, false, true}, longestIncreasing([]int{2, 1, 0}))
}
