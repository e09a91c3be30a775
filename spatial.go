package main

const (
	SpatialCellSize = 4.0 // ~2x largest body radius
	SpatialCols     = 16  // ceil(ArenaWidth/4) + 1
	SpatialRows     = 16
)

// BodyRef identifies a body in the grid
type BodyRef struct {
	Kind byte // 'e'=entity, 'd'=destructible, 't'=trap
	Idx  int  // index into the corresponding flat list
}

// SpatialGrid is a fixed-size grid for broad-phase proximity queries on
// the ground (XZ) plane
type SpatialGrid struct {
	cells [SpatialCols * SpatialRows][]BodyRef
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func clampCell(c, n int) int {
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}

func cellIdx(x, z float64) int {
	cx := clampCell(int(x/SpatialCellSize), SpatialCols)
	cz := clampCell(int(z/SpatialCellSize), SpatialRows)
	return cz*SpatialCols + cx
}

// Insert adds a body reference at the given position
func (g *SpatialGrid) Insert(x, z float64, ref BodyRef) {
	idx := cellIdx(x, z)
	g.cells[idx] = append(g.cells[idx], ref)
}

// Query returns all body refs in cells overlapping the given bounding box
func (g *SpatialGrid) Query(x, z, radius float64) []BodyRef {
	return g.QueryBuf(x, z, radius, nil)
}

// QueryBuf appends results to buf and returns the extended slice, avoiding
// per-call allocation on the hot path
func (g *SpatialGrid) QueryBuf(x, z, radius float64, buf []BodyRef) []BodyRef {
	// clamp both ends so fully out-of-bounds queries still hit the edge
	// cells that out-of-bounds inserts were clamped into
	minCX := clampCell(int((x-radius)/SpatialCellSize), SpatialCols)
	maxCX := clampCell(int((x+radius)/SpatialCellSize), SpatialCols)
	minCZ := clampCell(int((z-radius)/SpatialCellSize), SpatialRows)
	maxCZ := clampCell(int((z+radius)/SpatialCellSize), SpatialRows)
	for cz := minCZ; cz <= maxCZ; cz++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cz*SpatialCols + cx
			buf = append(buf, g.cells[idx]...)
		}
	}
	return buf
}
