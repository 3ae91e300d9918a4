// Package spatial holds the uniform spatial hash used to narrow projectile
// collision tests to nearby minions.
package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/volleyworks/volley/pkg/core"
)

// Index maps a cell key to occupant indices into the tick's minion snapshot.
// It is rebuilt once per tick and read-only while the arrow stages run.
type Index interface {
	// Key quantizes a world position to its cell key.
	Key(pos mgl32.Vec3) core.CellKey
	// Lookup returns the occupants of a cell. The slice must not be modified.
	// Occupants of one cell have no guaranteed order.
	Lookup(key core.CellKey) []int
}

// HashCell hashes integer cell coordinates on the XZ plane. Distinct cells
// can collide.
func HashCell(ix, iz int32) core.CellKey {
	return core.CellKey(ix*73856093 ^ iz*19349663)
}

// Quantize returns the integer cell coordinates of pos for the given cell size.
func Quantize(pos mgl32.Vec3, cellSize float32) (ix, iz int32) {
	return int32(math.Floor(float64(pos.X() / cellSize))), int32(math.Floor(float64(pos.Z() / cellSize)))
}

// Buckets is a multi-valued hash from cell key to minion indices.
type Buckets struct {
	cellSize float32
	cells    map[core.CellKey][]int
	count    int
}

// NewBuckets creates an empty index with the given cell edge length.
func NewBuckets(cellSize float32) *Buckets {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Buckets{
		cellSize: cellSize,
		cells:    make(map[core.CellKey][]int),
	}
}

// CellSize returns the cell edge length.
func (b *Buckets) CellSize() float32 {
	return b.cellSize
}

// Key implements Index.
func (b *Buckets) Key(pos mgl32.Vec3) core.CellKey {
	return HashCell(Quantize(pos, b.cellSize))
}

// Lookup implements Index.
func (b *Buckets) Lookup(key core.CellKey) []int {
	return b.cells[key]
}

// Rebuild clears the index and inserts index i for positions[i], keeping
// insertion order within a cell. Slices of cells still occupied are reused
// across ticks; cells left empty are dropped.
func (b *Buckets) Rebuild(positions []mgl32.Vec3) {
	for k, v := range b.cells {
		b.cells[k] = v[:0]
	}
	for i, p := range positions {
		k := b.Key(p)
		b.cells[k] = append(b.cells[k], i)
	}
	for k, v := range b.cells {
		if len(v) == 0 {
			delete(b.cells, k)
		}
	}
	b.count = len(positions)
}

// Cells returns the number of occupied cells.
func (b *Buckets) Cells() int {
	return len(b.cells)
}

// Len returns the number of indexed occupants.
func (b *Buckets) Len() int {
	return b.count
}
