// Package systems provides the bubble simulation systems.
package systems

import (
	"cmp"
	"math"
	"slices"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/bubblecomplex/components"
)

// SpatialEntry is one bubble as seen by the broad phase.
type SpatialEntry struct {
	E        ecs.Entity
	ID       uint32
	Category components.Category
	Position r2.Vec
	Radius   float64
}

// SpatialIndex answers circle overlap queries against a snapshot of bubbles.
type SpatialIndex interface {
	// Rebuild replaces the snapshot.
	Rebuild(entries []SpatialEntry)
	// QueryOverlap appends every entry in mask whose circle overlaps the
	// query circle, nearest first, and returns the updated slice.
	QueryOverlap(dst []ecs.Entity, center r2.Vec, radius float64, mask components.CategoryMask) []ecs.Entity
}

// SpatialGrid provides neighbor lookups using a cell-based grid.
type SpatialGrid struct {
	cellSize  float64
	cols      int
	rows      int
	cells     [][]SpatialEntry
	maxRadius float64 // largest radius inserted since the last rebuild

	hits []spatialHit // scratch for sorting query results
}

type spatialHit struct {
	e      ecs.Entity
	id     uint32
	distSq float64
}

// NewSpatialGrid creates a spatial grid covering the given world size.
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1

	cells := make([][]SpatialEntry, cols*rows)
	for i := range cells {
		cells[i] = make([]SpatialEntry, 0, 4)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    cells,
	}
}

// Clear removes all entries from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.maxRadius = 0
}

// Insert adds an entry to the cell containing its center.
func (g *SpatialGrid) Insert(entry SpatialEntry) {
	col, row := g.cellOf(entry.Position)
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], entry)
	if entry.Radius > g.maxRadius {
		g.maxRadius = entry.Radius
	}
}

// Rebuild clears the grid and inserts all entries.
func (g *SpatialGrid) Rebuild(entries []SpatialEntry) {
	g.Clear()
	for _, e := range entries {
		g.Insert(e)
	}
}

// QueryOverlap finds entries overlapping the circle (center, radius).
// Touching circles count as overlapping.
func (g *SpatialGrid) QueryOverlap(dst []ecs.Entity, center r2.Vec, radius float64, mask components.CategoryMask) []ecs.Entity {
	reach := radius + g.maxRadius
	minCol, minRow := g.cellOf(r2.Vec{X: center.X - reach, Y: center.Y - reach})
	maxCol, maxRow := g.cellOf(r2.Vec{X: center.X + reach, Y: center.Y + reach})

	g.hits = g.hits[:0]
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, entry := range g.cells[row*g.cols+col] {
				if !mask.Has(entry.Category) {
					continue
				}
				d := r2.Sub(entry.Position, center)
				distSq := d.X*d.X + d.Y*d.Y
				limit := radius + entry.Radius
				if distSq <= limit*limit {
					g.hits = append(g.hits, spatialHit{e: entry.E, id: entry.ID, distSq: distSq})
				}
			}
		}
	}

	slices.SortFunc(g.hits, func(a, b spatialHit) int {
		if c := cmp.Compare(a.distSq, b.distSq); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	for _, h := range g.hits {
		dst = append(dst, h.e)
	}
	return dst
}

// cellOf returns the clamped cell coordinates for a world position.
func (g *SpatialGrid) cellOf(p r2.Vec) (col, row int) {
	col = clampCell(p.X/g.cellSize, g.cols)
	row = clampCell(p.Y/g.cellSize, g.rows)
	return col, row
}

func clampCell(v float64, n int) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v >= float64(n) {
		return n - 1
	}
	return int(v)
}
