package game

import "testing"

func gridActor(x, y, r float64) *Actor {
	return &Actor{Position: Vec(x, y), Radius: r, cell: -1}
}

func contains(list []*Actor, a *Actor) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func TestSpatialGridInsertAndQuery(t *testing.T) {
	grid := NewSpatialGrid(4000, 4000)
	a := gridActor(100, 100, 10)
	grid.Insert(a)

	if !contains(grid.Query(100, 100, 50), a) {
		t.Error("expected to find actor at (100,100)")
	}
	if contains(grid.Query(3000, 3000, 50), a) {
		t.Error("should not find actor at (3000,3000)")
	}
}

func TestSpatialGridReachCoversLargestRadius(t *testing.T) {
	grid := NewSpatialGrid(4000, 4000)
	big := gridActor(160, 160, 80)
	grid.Insert(big)

	// a small actor two cells away still overlaps the big hull
	if !contains(grid.Query(300, 160, 4), big) {
		t.Error("expected large actor found from a neighbouring cell")
	}
}

func TestSpatialGridMove(t *testing.T) {
	grid := NewSpatialGrid(4000, 4000)
	a := gridActor(100, 100, 5)
	grid.Insert(a)

	a.Position = Vec(2000, 2000)
	grid.Move(a)

	if contains(grid.Query(100, 100, 10), a) {
		t.Error("actor should have left its old cell")
	}
	if !contains(grid.Query(2000, 2000, 10), a) {
		t.Error("actor should be found in its new cell")
	}

	grid.Remove(a)
	if contains(grid.Query(2000, 2000, 10), a) {
		t.Error("removed actor should not be found")
	}
}

func TestSpatialGridClampsOutOfBounds(t *testing.T) {
	grid := NewSpatialGrid(800, 600)
	a := gridActor(-200, -200, 5)
	grid.Insert(a)

	if !contains(grid.Query(10, 10, 5), a) {
		t.Error("expected out-of-bounds actor clamped into the edge cell")
	}
}

func TestSpatialGridQueryBufReuse(t *testing.T) {
	grid := NewSpatialGrid(800, 600)
	grid.Insert(gridActor(100, 100, 5))
	grid.Insert(gridActor(110, 100, 5))

	buf := make([]*Actor, 0, 8)
	buf = grid.QueryBuf(100, 100, 10, buf)
	if len(buf) != 2 {
		t.Fatalf("expected 2 results, got %d", len(buf))
	}
	buf = grid.QueryBuf(700, 500, 10, buf[:0])
	if len(buf) != 0 {
		t.Errorf("expected 0 results, got %d", len(buf))
	}
}
