package server

import (
	"math"
	"time"
)

type cellKey struct {
	X int
	Y int
}

const (
	spatialCellSize   = 64.0
	spatialMaxPerCell = 16
)

// hotspotSpatialIndex hashes hotspot rectangles into fixed-size cells so the
// per-tick contact sweep only tests actors against nearby zones.
type hotspotSpatialIndex struct {
	cellSize    float64
	invCellSize float64
	maxPerCell  int
	cells       map[cellKey][]string
	entries     map[string][]cellKey
}

func newHotspotSpatialIndex(cellSize float64, maxPerCell int) *hotspotSpatialIndex {
	if cellSize <= 0 {
		cellSize = spatialCellSize
	}
	if maxPerCell <= 0 {
		maxPerCell = spatialMaxPerCell
	}
	return &hotspotSpatialIndex{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		maxPerCell:  maxPerCell,
		cells:       make(map[cellKey][]string),
		entries:     make(map[string][]cellKey),
	}
}

// Upsert registers or refreshes the hotspot's cells. Returns false when any
// destination cell is already at capacity.
func (idx *hotspotSpatialIndex) Upsert(hs *hotspotState) bool {
	if idx == nil || hs == nil || hs.ID == "" {
		return true
	}
	newCells := idx.cellsForBounds(hs.bounds())
	oldCells, existed := idx.entries[hs.ID]
	if !existed && idx.maxPerCell > 0 {
		for _, cell := range newCells {
			if len(idx.cells[cell]) >= idx.maxPerCell {
				return false
			}
		}
	}
	if existed {
		idx.removeFromCells(hs.ID, oldCells)
	}
	idx.entries[hs.ID] = newCells
	for _, cell := range newCells {
		idx.cells[cell] = append(idx.cells[cell], hs.ID)
	}
	return true
}

func (idx *hotspotSpatialIndex) Remove(id string) {
	if idx == nil || id == "" {
		return
	}
	cells, ok := idx.entries[id]
	if !ok {
		return
	}
	idx.removeFromCells(id, cells)
	delete(idx.entries, id)
}

func (idx *hotspotSpatialIndex) removeFromCells(id string, cells []cellKey) {
	for _, cell := range cells {
		bucket := idx.cells[cell]
		for i, candidate := range bucket {
			if candidate == id {
				bucket = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
		if len(bucket) == 0 {
			delete(idx.cells, cell)
		} else {
			idx.cells[cell] = bucket
		}
	}
}

// Query returns the IDs of hotspots whose cells intersect the rectangle,
// deduplicated, in registration order within each cell.
func (idx *hotspotSpatialIndex) Query(minX, minY, maxX, maxY float64) []string {
	if idx == nil {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, cell := range idx.cellsForBounds(minX, minY, maxX, maxY) {
		for _, id := range idx.cells[cell] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func (idx *hotspotSpatialIndex) cellsForBounds(minX, minY, maxX, maxY float64) []cellKey {
	x0 := int(math.Floor(minX * idx.invCellSize))
	y0 := int(math.Floor(minY * idx.invCellSize))
	x1 := int(math.Floor(maxX * idx.invCellSize))
	y1 := int(math.Floor(maxY * idx.invCellSize))
	cells := make([]cellKey, 0, (x1-x0+1)*(y1-y0+1))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			cells = append(cells, cellKey{X: x, Y: y})
		}
	}
	return cells
}

func rectsOverlap(aMinX, aMinY, aMaxX, aMaxY, bMinX, bMinY, bMaxX, bMaxY float64) bool {
	return aMinX < bMaxX && aMaxX > bMinX && aMinY < bMaxY && aMaxY > bMinY
}

// sweepContacts diffs each actor's current hotspot overlaps against the
// previous tick and delivers begin/end notifications exactly once per
// transition. The hotspot core never computes overlap itself; this sweep is
// the collision layer it listens to.
func (w *World) sweepContacts(now time.Time) {
	for _, actorID := range w.actorOrder {
		actor, ok := w.actors[actorID]
		if !ok {
			continue
		}
		minX, minY := actor.X-actorHalf, actor.Y-actorHalf
		maxX, maxY := actor.X+actorHalf, actor.Y+actorHalf

		current := make(map[string]struct{})
		for _, hotspotID := range w.index.Query(minX, minY, maxX, maxY) {
			hs, ok := w.hotspots[hotspotID]
			if !ok {
				continue
			}
			hMinX, hMinY, hMaxX, hMaxY := hs.bounds()
			if !rectsOverlap(minX, minY, maxX, maxY, hMinX, hMinY, hMaxX, hMaxY) {
				continue
			}
			current[hotspotID] = struct{}{}
			if _, touching := actor.touching[hotspotID]; !touching {
				hs.handleContactBegin(actor, now)
			}
		}
		for hotspotID := range actor.touching {
			if _, still := current[hotspotID]; still {
				continue
			}
			if hs, ok := w.hotspots[hotspotID]; ok {
				hs.handleContactEnd(actor)
			}
		}
		actor.touching = current
	}
}
