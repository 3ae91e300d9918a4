package terrain

import (
	"errors"
	"fmt"
	"math"
)

// ErrHeightfieldShape is returned when the sample count does not match the grid.
var ErrHeightfieldShape = errors.New("heightfield sample count mismatch")

// Heightfield is a regular grid of height samples on the XZ plane,
// interpolated bilinearly. Positions outside the grid have no ground.
type Heightfield struct {
	OriginX, OriginZ float32
	Spacing          float32
	Cols, Rows       int
	Heights          []float32 // row-major, Rows*Cols samples
}

// NewHeightfield validates and builds a heightfield.
func NewHeightfield(originX, originZ, spacing float32, cols, rows int, heights []float32) (*Heightfield, error) {
	if cols < 2 || rows < 2 || spacing <= 0 {
		return nil, fmt.Errorf("%w: need at least 2x2 samples and positive spacing, got %dx%d spacing %v", ErrHeightfieldShape, cols, rows, spacing)
	}
	if len(heights) != cols*rows {
		return nil, fmt.Errorf("%w: want %d samples, got %d", ErrHeightfieldShape, cols*rows, len(heights))
	}
	return &Heightfield{
		OriginX: originX,
		OriginZ: originZ,
		Spacing: spacing,
		Cols:    cols,
		Rows:    rows,
		Heights: heights,
	}, nil
}

// HeightAt implements Surface.
func (h *Heightfield) HeightAt(x, z float32) (float32, bool) {
	fx := float64((x - h.OriginX) / h.Spacing)
	fz := float64((z - h.OriginZ) / h.Spacing)
	maxX, maxZ := float64(h.Cols-1), float64(h.Rows-1)
	if fx < 0 || fz < 0 || fx > maxX || fz > maxZ || math.IsNaN(fx) || math.IsNaN(fz) {
		return 0, false
	}

	x0 := min(int(fx), h.Cols-2)
	z0 := min(int(fz), h.Rows-2)
	tx := float32(fx - float64(x0))
	tz := float32(fz - float64(z0))

	h00 := h.sample(x0, z0)
	h10 := h.sample(x0+1, z0)
	h01 := h.sample(x0, z0+1)
	h11 := h.sample(x0+1, z0+1)

	near := h00 + (h10-h00)*tx
	far := h01 + (h11-h01)*tx
	return near + (far-near)*tz, true
}

func (h *Heightfield) sample(col, row int) float32 {
	return h.Heights[row*h.Cols+col]
}
