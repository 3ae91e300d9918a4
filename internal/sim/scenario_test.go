package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volleyworks/volley/internal/config"
	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/internal/terrain"
)

func TestBuildSurface(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TerrainConfig
		x, z    float32
		want    float32
		wantOK  bool
		wantErr error
	}{
		{
			name:   "flat",
			cfg:    config.TerrainConfig{Type: "flat", BaseHeight: 2},
			want:   2,
			wantOK: true,
		},
		{
			name:   "empty type is flat",
			cfg:    config.TerrainConfig{},
			wantOK: true,
		},
		{
			name: "heightfield",
			cfg: config.TerrainConfig{Type: "heightfield", Heightfield: config.HeightfieldConfig{
				Spacing: 10, Cols: 2, Rows: 2, Heights: []float32{0, 10, 0, 10},
			}},
			x: 5, z: 5,
			want:   5,
			wantOK: true,
		},
		{
			name: "footprints",
			cfg: config.TerrainConfig{Type: "footprints", BaseHeight: 1, Footprints: []config.FootprintConfig{
				{WKT: "POLYGON((0 0,4 0,4 4,0 4,0 0))", Elevation: 3},
			}},
			x: 2, z: 2,
			want:   3,
			wantOK: true,
		},
		{
			name:    "unknown",
			cfg:     config.TerrainConfig{Type: "voxels"},
			wantErr: ErrUnknownTerrain,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := BuildSurface(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			h, ok := s.HeightAt(tt.x, tt.z)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, h, 1e-5)
		})
	}
}

func TestBuildSurface_BadInput(t *testing.T) {
	_, err := BuildSurface(config.TerrainConfig{Type: "heightfield", Heightfield: config.HeightfieldConfig{
		Spacing: 1, Cols: 2, Rows: 2, Heights: []float32{1},
	}})
	assert.ErrorIs(t, err, terrain.ErrHeightfieldShape)

	_, err = BuildSurface(config.TerrainConfig{Type: "footprints", Footprints: []config.FootprintConfig{
		{WKT: "POINT(1 2)"},
	}})
	assert.ErrorContains(t, err, "footprint 0")
}

func scenario() config.ScenarioConfig {
	return config.ScenarioConfig{
		Name:           "skirmish",
		Seed:           7,
		MinionsPerSide: 10,
		RangedFraction: 0.3,
		Separation:     60,
		Spread:         40,
		Health:         100,
		HitRadiusSq:    1,
	}
}

func TestPopulate(t *testing.T) {
	ms := store.NewMinions()
	n := Populate(ms, scenario(), terrain.Flat(2))
	assert.Equal(t, 20, n)

	set := ms.Snapshot()
	require.Equal(t, 20, set.Len())

	var friendly, ranged int
	for i, m := range set.Snapshots {
		f := set.Flags[i]
		assert.Equal(t, float32(2), m.Position.Y(), "minions stand on the ground")
		assert.LessOrEqual(t, m.Position.X(), float32(20))
		assert.GreaterOrEqual(t, m.Position.X(), float32(-20))
		if f.IsFriendly() {
			friendly++
			assert.Less(t, m.Position.Z(), float32(0))
			assert.Equal(t, float32(1), m.Forward.Z())
		} else {
			assert.Greater(t, m.Position.Z(), float32(0))
			assert.Equal(t, float32(-1), m.Forward.Z())
		}
		if f.IsRanged() {
			ranged++
		}
	}
	assert.Equal(t, 10, friendly)
	assert.Equal(t, 6, ranged)
}

func TestPopulate_Deterministic(t *testing.T) {
	a, b := store.NewMinions(), store.NewMinions()
	Populate(a, scenario(), nil)
	Populate(b, scenario(), nil)
	assert.Equal(t, a.Snapshot().Snapshots, b.Snapshot().Snapshots)

	other := scenario()
	other.Seed = 8
	c := store.NewMinions()
	Populate(c, other, nil)
	assert.NotEqual(t, a.Snapshot().Snapshots, c.Snapshot().Snapshots)
}

func TestNewSession(t *testing.T) {
	s := NewSession("run-1", scenario(), config.SimConfig{DT: 0.1, MaxRangeSq: 500, ProbeCap: 4}, 20)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "skirmish", s.Name)
	assert.Equal(t, uint64(7), s.Seed)
	assert.Equal(t, 20, s.MinionCount)
	assert.Equal(t, 4, s.ProbeCap)
	assert.False(t, s.StartTime.IsZero())

	a := NewSession("", scenario(), config.SimConfig{}, 0)
	b := NewSession("", scenario(), config.SimConfig{}, 0)
	assert.Len(t, a.RunID, 36)
	assert.NotEqual(t, a.RunID, b.RunID)
}
