package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoroutineID(t *testing.T) {
	id := GoroutineID()
	assert.Positive(t, id)
	assert.Equal(t, id, GoroutineID())

	other := make(chan int64)
	go func() { other <- GoroutineID() }()
	assert.NotEqual(t, id, <-other)
}

func TestHashUint64s(t *testing.T) {
	assert.Equal(t, HashUint64s(1, 2, 3), HashUint64s(1, 2, 3))
	assert.NotEqual(t, HashUint64s(1, 2, 3), HashUint64s(1, 3, 2))
	assert.NotEqual(t, HashUint64s(0, 2, 3), HashUint64s(1, 2, 3))
}

func TestGenerateSeed(t *testing.T) {
	assert.NotEqual(t, GenerateSeed(), GenerateSeed())
}

func TestSummarize(t *testing.T) {
	sizes := []int{40, 10, 30, 20}
	s := Summarize(sizes)
	assert.Equal(t, []int{40, 10, 30, 20}, sizes)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 100, s.Total)
	assert.Equal(t, 10, s.Min)
	assert.Equal(t, 40, s.Max)
	assert.Equal(t, 25.0, s.Mean)
	assert.Equal(t, 20, s.Median)
	assert.Equal(t, 40, s.P90)
	assert.InDelta(t, 0.447, s.Spread, 0.001)

	assert.Equal(t, SizeSummary{}, Summarize(nil))
	assert.Zero(t, Summarize([]int{7, 7}).Spread)
}

func TestPercentile(t *testing.T) {
	sorted := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 1, Percentile(sorted, 0))
	assert.Equal(t, 5, Percentile(sorted, 50))
	assert.Equal(t, 9, Percentile(sorted, 90))
	assert.Equal(t, 10, Percentile(sorted, 100))
	assert.Equal(t, 10, Percentile(sorted, 150))
	assert.Zero(t, Percentile(nil, 50))
}
