package terrain

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volleyworks/volley/pkg/core"
)

func TestHeightfield_HeightAt(t *testing.T) {
	// 3x2 grid, 10 apart, rising along X.
	hf, err := NewHeightfield(-10, 0, 10, 3, 2, []float32{
		0, 10, 20,
		0, 10, 40,
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		x, z   float32
		want   float32
		wantOK bool
	}{
		{"sample", -10, 0, 0, true},
		{"between columns", -5, 0, 5, true},
		{"cell centre", 5, 5, 20, true},
		{"far corner", 10, 10, 40, true},
		{"left of grid", -10.5, 0, 0, false},
		{"past last row", 0, 10.5, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := hf.HeightAt(tt.x, tt.z)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, h, 1e-4)
			}
		})
	}
}

func TestNewHeightfield_Shape(t *testing.T) {
	tests := []struct {
		name       string
		cols, rows int
		spacing    float32
		heights    []float32
	}{
		{"too few columns", 1, 2, 1, []float32{0, 0}},
		{"zero spacing", 2, 2, 0, []float32{0, 0, 0, 0}},
		{"sample count", 2, 2, 1, []float32{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHeightfield(0, 0, tt.spacing, tt.cols, tt.rows, tt.heights)
			assert.ErrorIs(t, err, ErrHeightfieldShape)
		})
	}
}

func TestFootprints_HeightAt(t *testing.T) {
	fp := NewFootprints(1, true)
	require.NoError(t, fp.AddWKT("POLYGON((0 0,10 0,10 10,0 10,0 0))", 4))
	require.NoError(t, fp.AddWKT("MULTIPOLYGON(((5 5,8 5,8 8,5 8,5 5)))", 6))
	assert.Equal(t, 2, fp.Len())

	tests := []struct {
		name string
		x, z float32
		want float32
	}{
		{"base plane", -5, -5, 1},
		{"inside", 2, 2, 4},
		{"overlap takes the highest", 6, 6, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := fp.HeightAt(tt.x, tt.z)
			assert.True(t, ok)
			assert.Equal(t, tt.want, h)
		})
	}

	bare := NewFootprints(0, false)
	require.NoError(t, bare.AddWKT("POLYGON((0 0,1 0,1 1,0 1,0 0))", 2))
	_, ok := bare.HeightAt(5, 5)
	assert.False(t, ok, "no base plane means no ground outside footprints")

	_, ok = fp.HeightAt(float32(math.NaN()), 2)
	assert.False(t, ok, "NaN lies on no ground even with a base plane")
}

func TestFootprints_AddWKT(t *testing.T) {
	fp := NewFootprints(0, true)
	assert.Error(t, fp.AddWKT("not wkt", 1))
	assert.ErrorContains(t, fp.AddWKT("LINESTRING(0 0,1 1)", 1), "must be a polygon")
	assert.Zero(t, fp.Len())
}

func TestBatch_BatchQuery(t *testing.T) {
	hf, err := NewHeightfield(0, 0, 1, 2, 2, []float32{3, 3, 3, 3})
	require.NoError(t, err)
	b := NewBatch(hf, 2, 2)

	origins := []mgl32.Vec3{
		{0.5, 10, 0.5},
		{5, 10, 5},
		{0, -100, 1},
		{1, 0, 0},
		{-1, 0, 0},
	}
	got, err := b.BatchQuery(context.Background(), origins)
	require.NoError(t, err)
	assert.Equal(t, []core.GroundProbeResult{
		{ImpactHeight: 3, Hit: true},
		{},
		{ImpactHeight: 3, Hit: true},
		{ImpactHeight: 3, Hit: true},
		{},
	}, got)
}

func TestBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBatch(Flat(0), 1, 1).BatchQuery(ctx, []mgl32.Vec3{{}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlat(t *testing.T) {
	h, ok := Flat(-2).HeightAt(1e6, -1e6)
	assert.True(t, ok)
	assert.Equal(t, float32(-2), h)
}
