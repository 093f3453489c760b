package compose

import (
	"github.com/cockroachdb/errors"
)

// MapMesh locates each tile's indices in the map's index buffer
type MapMesh interface {
	TileIndices(x, y int) (firstIndex, indexCount int)
}

// IndexRange is a run of indices drawn by one indexed draw
type IndexRange struct {
	FirstIndex int
	IndexCount int
}

// MergeScanlines returns one range per run of tiles in each row of r whose indices are adjacent in
// the index buffer. For a mesh laid out row by row, that is one range per row. Tiles without
// indices are skipped.
func MergeScanlines(mesh MapMesh, r TileRange) []IndexRange {
	if r.Empty() {
		return nil
	}

	var ranges []IndexRange
	for y := r.YMin; y < r.YMax; y++ {
		open := false
		var current IndexRange

		for x := r.XMin; x < r.XMax; x++ {
			first, count := mesh.TileIndices(x, y)
			if count == 0 {
				continue
			}

			if open && current.FirstIndex+current.IndexCount == first {
				current.IndexCount += count
				continue
			}

			if open {
				ranges = append(ranges, current)
			}
			current = IndexRange{FirstIndex: first, IndexCount: count}
			open = true
		}

		if open {
			ranges = append(ranges, current)
		}
	}

	return ranges
}

// TableMesh is a MapMesh for an index buffer holding every tile's indices back to back, row by row
type TableMesh struct {
	tilesX int
	tilesY int
	first  []int
	counts []int
}

// NewTableMesh builds a mesh from the index count of every tile, given row by row
func NewTableMesh(tilesX, tilesY int, counts []int) (*TableMesh, error) {
	if tilesX < 0 || tilesY < 0 || len(counts) != tilesX*tilesY {
		return nil, errors.Newf("%d index counts given for a %dx%d grid", len(counts), tilesX, tilesY)
	}

	mesh := &TableMesh{
		tilesX: tilesX,
		tilesY: tilesY,
		first:  make([]int, len(counts)),
		counts: make([]int, len(counts)),
	}

	next := 0
	for i, count := range counts {
		if count < 0 {
			return nil, errors.Newf("tile %d has a negative index count", i)
		}
		mesh.first[i] = next
		mesh.counts[i] = count
		next += count
	}

	return mesh, nil
}

// NewUniformMesh builds a mesh where every tile has the same number of indices
func NewUniformMesh(tilesX, tilesY, indicesPerTile int) (*TableMesh, error) {
	if tilesX < 0 || tilesY < 0 {
		return nil, errors.Newf("invalid grid %dx%d", tilesX, tilesY)
	}

	counts := make([]int, tilesX*tilesY)
	for i := range counts {
		counts[i] = indicesPerTile
	}
	return NewTableMesh(tilesX, tilesY, counts)
}

func (m *TableMesh) TileIndices(x, y int) (int, int) {
	if x < 0 || y < 0 || x >= m.tilesX || y >= m.tilesY {
		return 0, 0
	}
	index := y*m.tilesX + x
	return m.first[index], m.counts[index]
}

// IndexCount is the total number of indices in the mesh
func (m *TableMesh) IndexCount() int {
	if len(m.counts) == 0 {
		return 0
	}
	last := len(m.counts) - 1
	return m.first[last] + m.counts[last]
}
