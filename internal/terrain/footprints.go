package terrain

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Footprint is a raised area: a polygon on the XZ plane at a fixed height.
type Footprint struct {
	Area      geom.Geometry
	Elevation float32
}

// Footprints is a base plane with raised polygonal areas. Where footprints
// overlap the highest one wins. Without a base plane, positions outside every
// footprint have no ground.
type Footprints struct {
	Base       float32
	HasBase    bool
	footprints []Footprint
}

// NewFootprints creates a footprint surface over an optional base plane.
func NewFootprints(base float32, hasBase bool) *Footprints {
	return &Footprints{Base: base, HasBase: hasBase}
}

// AddWKT parses a POLYGON or MULTIPOLYGON in XZ coordinates and adds it at
// the given elevation.
func (f *Footprints) AddWKT(wkt string, elevation float32) error {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return fmt.Errorf("parsing footprint: %w", err)
	}
	if !g.IsPolygon() && !g.IsMultiPolygon() {
		return fmt.Errorf("footprint must be a polygon, got %s", g.Type())
	}
	f.footprints = append(f.footprints, Footprint{Area: g, Elevation: elevation})
	return nil
}

// Len returns the number of footprints.
func (f *Footprints) Len() int {
	return len(f.footprints)
}

// HeightAt implements Surface.
func (f *Footprints) HeightAt(x, z float32) (float32, bool) {
	p, err := geom.XY{X: float64(x), Y: float64(z)}.AsPoint()
	if err != nil {
		// NaN or infinite coordinates lie on no ground.
		return 0, false
	}
	pt := p.AsGeometry()

	height, ok := f.Base, f.HasBase
	for _, fp := range f.footprints {
		if (!ok || fp.Elevation > height) && geom.Intersects(pt, fp.Area) {
			height, ok = fp.Elevation, true
		}
	}
	return height, ok
}
