package arrayfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexResolve(t *testing.T) {
	tests := []struct {
		name string
		idx  Index
		want []int
	}{
		{"all", All(), []int{0, 1, 2, 3, 4}},
		{"at", At(2), []int{2}},
		{"at negative", At(-1), []int{4}},
		{"positions", Positions(0, 3, 4), []int{0, 3, 4}},
		{"slice", Slice(1, 3), []int{1, 2}},
		{"slice to end", Slice(3, End), []int{3, 4}},
		{"slice negative start", Slice(-2, End), []int{3, 4}},
		{"slice negative stop", Slice(0, -3), []int{0, 1}},
		{"slice clamped", Slice(2, 100), []int{2, 3, 4}},
		{"empty slice", Slice(4, 2), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.idx.Resolve(5)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		idx  Index
	}{
		{"at past end", At(5)},
		{"at before start", At(-6)},
		{"positions unsorted", Positions(2, 1)},
		{"positions duplicated", Positions(1, 1)},
		{"positions out of range", Positions(1, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.idx.Resolve(5)
			assert.ErrorIs(t, err, ErrInvalidIndex)
		})
	}
}

func TestIndexBound(t *testing.T) {
	assert.Equal(t, 3, All().Bound(3))
	assert.Equal(t, 8, At(7).Bound(3))
	assert.Equal(t, 3, At(-1).Bound(3))
	assert.Equal(t, 10, Positions(1, 9).Bound(3))
	assert.Equal(t, 6, Slice(2, 6).Bound(3))
	assert.Equal(t, 3, Slice(0, End).Bound(3))
	assert.Equal(t, 5, Slice(0, 2).Bound(5))
}

func TestIndexString(t *testing.T) {
	assert.Equal(t, ":", All().String())
	assert.Equal(t, "4", At(4).String())
	assert.Equal(t, "[1, 2]", Positions(1, 2).String())
	assert.Equal(t, "1:", Slice(1, End).String())
	assert.Equal(t, "0:3", Slice(0, 3).String())
}
