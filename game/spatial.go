package game

import "math"

// SpatialCellSize is about twice the radius of the largest hull in play.
const SpatialCellSize = 80.0

// SpatialGrid is a uniform grid used for broad-phase collision queries.
// Actors are bucketed by their center; queries widen the search box by the
// largest radius seen so a center-only insert never misses an overlap.
type SpatialGrid struct {
	cols, rows int
	cells      [][]*Actor
	maxRadius  float64
}

// NewSpatialGrid sizes a grid to cover a width x height arena
func NewSpatialGrid(width, height float64) *SpatialGrid {
	cols := int(math.Ceil(width/SpatialCellSize)) + 1
	rows := int(math.Ceil(height/SpatialCellSize)) + 1
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &SpatialGrid{
		cols:  cols,
		rows:  rows,
		cells: make([][]*Actor, cols*rows),
	}
}

func (g *SpatialGrid) cellIdx(x, y float64) int {
	cx := clampCell(x, g.cols)
	cy := clampCell(y, g.rows)
	return cy*g.cols + cx
}

func clampCell(v float64, n int) int {
	if math.IsNaN(v) {
		return 0
	}
	c := int(math.Floor(v / SpatialCellSize))
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}

// Insert adds an actor to the cell holding its center
func (g *SpatialGrid) Insert(a *Actor) {
	idx := g.cellIdx(a.Position.X, a.Position.Y)
	a.cell = idx
	g.cells[idx] = append(g.cells[idx], a)
	if a.Radius > g.maxRadius {
		g.maxRadius = a.Radius
	}
}

// Remove drops an actor from its current cell
func (g *SpatialGrid) Remove(a *Actor) {
	if a.cell < 0 || a.cell >= len(g.cells) {
		return
	}
	cell := g.cells[a.cell]
	for i, other := range cell {
		if other == a {
			cell[i] = cell[len(cell)-1]
			cell[len(cell)-1] = nil
			g.cells[a.cell] = cell[:len(cell)-1]
			break
		}
	}
	a.cell = -1
}

// Move rebuckets an actor after its position changed
func (g *SpatialGrid) Move(a *Actor) {
	idx := g.cellIdx(a.Position.X, a.Position.Y)
	if idx == a.cell {
		return
	}
	g.Remove(a)
	g.Insert(a)
}

// QueryBuf appends every actor whose cell overlaps the box around (x, y)
// widened by radius plus the largest inserted radius.
func (g *SpatialGrid) QueryBuf(x, y, radius float64, buf []*Actor) []*Actor {
	reach := radius + g.maxRadius
	minCX := clampCell(x-reach, g.cols)
	maxCX := clampCell(x+reach, g.cols)
	minCY := clampCell(y-reach, g.rows)
	maxCY := clampCell(y+reach, g.rows)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			buf = append(buf, g.cells[cy*g.cols+cx]...)
		}
	}
	return buf
}

// Query returns all actors in cells that overlap the given bounding box
func (g *SpatialGrid) Query(x, y, radius float64) []*Actor {
	return g.QueryBuf(x, y, radius, nil)
}
