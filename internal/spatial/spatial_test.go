package spatial

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Index = (*Buckets)(nil)

func TestQuantize(t *testing.T) {
	tests := []struct {
		name  string
		pos   mgl32.Vec3
		size  float32
		wantX int32
		wantZ int32
	}{
		{name: "origin", pos: mgl32.Vec3{0, 0, 0}, size: 2, wantX: 0, wantZ: 0},
		{name: "inside first cell", pos: mgl32.Vec3{1.9, 50, 1.9}, size: 2, wantX: 0, wantZ: 0},
		{name: "negative floors down", pos: mgl32.Vec3{-0.1, 0, -2.1}, size: 2, wantX: -1, wantZ: -2},
		{name: "height ignored", pos: mgl32.Vec3{4, -300, 6}, size: 2, wantX: 2, wantZ: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, iz := Quantize(tt.pos, tt.size)
			assert.Equal(t, tt.wantX, ix)
			assert.Equal(t, tt.wantZ, iz)
		})
	}
}

func TestBuckets_RebuildAndLookup(t *testing.T) {
	b := NewBuckets(4)
	positions := []mgl32.Vec3{
		{1, 0, 1},
		{2, 5, 3},
		{10, 0, 10},
		{3, 0, 0.5},
	}
	b.Rebuild(positions)

	assert.Equal(t, 4, b.Len())
	assert.Equal(t, []int{0, 1, 3}, b.Lookup(b.Key(mgl32.Vec3{0.5, 0, 0.5})))
	assert.Equal(t, []int{2}, b.Lookup(b.Key(mgl32.Vec3{9, 0, 11})))
}

func TestBuckets_EmptyCell(t *testing.T) {
	b := NewBuckets(4)
	b.Rebuild([]mgl32.Vec3{{1, 0, 1}})
	assert.Empty(t, b.Lookup(b.Key(mgl32.Vec3{100, 0, 100})))
}

func TestBuckets_RebuildDropsStaleOccupants(t *testing.T) {
	b := NewBuckets(4)
	b.Rebuild([]mgl32.Vec3{{1, 0, 1}, {2, 0, 2}})
	b.Rebuild([]mgl32.Vec3{{50, 0, 50}})

	require.Equal(t, 1, b.Len())
	assert.Empty(t, b.Lookup(b.Key(mgl32.Vec3{1, 0, 1})))
	assert.Equal(t, []int{0}, b.Lookup(b.Key(mgl32.Vec3{50, 0, 50})))
}

func TestBuckets_RebuildForgetsVacatedCells(t *testing.T) {
	b := NewBuckets(4)
	pos := []mgl32.Vec3{{1, 0, 1}, {1, 0, 9}}
	for range 100 {
		// Both occupants drift one cell along X every rebuild.
		pos[0][0] += 4
		pos[1][0] += 4
		b.Rebuild(pos)
	}

	assert.Equal(t, 2, b.Cells())
	assert.Equal(t, []int{0}, b.Lookup(b.Key(pos[0])))

	b.Rebuild(nil)
	assert.Zero(t, b.Cells())
}

func TestNewBuckets_InvalidCellSize(t *testing.T) {
	assert.Equal(t, float32(1), NewBuckets(0).CellSize())
	assert.Equal(t, float32(1), NewBuckets(-3).CellSize())
}
