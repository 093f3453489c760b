package compose

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// reversedMesh lays each row's tiles out right to left, so no two tiles are adjacent in the order
// they are visited
type reversedMesh struct {
	tilesX int
}

func (m reversedMesh) TileIndices(x, y int) (int, int) {
	return (y*m.tilesX + (m.tilesX - 1 - x)) * 6, 6
}

func TestMergeScanlines_OneRangePerRow(t *testing.T) {
	mesh, err := NewUniformMesh(4, 4, 6)
	require.NoError(t, err)
	require.Equal(t, 96, mesh.IndexCount())

	ranges := MergeScanlines(mesh, TileRange{XMin: 1, XMax: 4, YMin: 0, YMax: 2})
	require.Equal(t, []IndexRange{
		{FirstIndex: 6, IndexCount: 18},
		{FirstIndex: 30, IndexCount: 18},
	}, ranges)
}

func TestMergeScanlines_EmptyRange(t *testing.T) {
	mesh, err := NewUniformMesh(4, 4, 6)
	require.NoError(t, err)

	require.Empty(t, MergeScanlines(mesh, TileRange{XMin: 2, XMax: 2, YMin: 0, YMax: 4}))
}

func TestMergeScanlines_SkipsEmptyTiles(t *testing.T) {
	mesh, err := NewTableMesh(4, 2, []int{
		6, 0, 6, 6,
		0, 0, 0, 0,
	})
	require.NoError(t, err)

	ranges := MergeScanlines(mesh, TileRange{XMin: 0, XMax: 4, YMin: 0, YMax: 2})
	require.Equal(t, []IndexRange{{FirstIndex: 0, IndexCount: 18}}, ranges)
}

func TestMergeScanlines_NonAdjacentTiles(t *testing.T) {
	ranges := MergeScanlines(reversedMesh{tilesX: 4}, TileRange{XMin: 0, XMax: 3, YMin: 0, YMax: 1})
	require.Equal(t, []IndexRange{
		{FirstIndex: 18, IndexCount: 6},
		{FirstIndex: 12, IndexCount: 6},
		{FirstIndex: 6, IndexCount: 6},
	}, ranges)
}

func TestMergeScanlines_PreservesIndexCount(t *testing.T) {
	random := rand.New(rand.NewSource(11))

	for i := 0; i < 200; i++ {
		tilesX := random.Intn(20) + 1
		tilesY := random.Intn(20) + 1
		counts := make([]int, tilesX*tilesY)
		for j := range counts {
			counts[j] = random.Intn(4) * 6
		}

		mesh, err := NewTableMesh(tilesX, tilesY, counts)
		require.NoError(t, err)

		xMin := random.Intn(tilesX)
		yMin := random.Intn(tilesY)
		r := TileRange{
			XMin: xMin,
			XMax: xMin + random.Intn(tilesX-xMin) + 1,
			YMin: yMin,
			YMax: yMin + random.Intn(tilesY-yMin) + 1,
		}

		expected := 0
		for y := r.YMin; y < r.YMax; y++ {
			for x := r.XMin; x < r.XMax; x++ {
				_, count := mesh.TileIndices(x, y)
				expected += count
			}
		}

		ranges := MergeScanlines(mesh, r)
		merged := 0
		for _, indexRange := range ranges {
			merged += indexRange.IndexCount
			require.Greater(t, indexRange.IndexCount, 0)
		}
		require.Equal(t, expected, merged)
		require.LessOrEqual(t, len(ranges), r.Count())
	}
}

func TestNewTableMesh_Invalid(t *testing.T) {
	_, err := NewTableMesh(2, 2, []int{1, 2, 3})
	require.Error(t, err)

	_, err = NewTableMesh(2, 1, []int{1, -2})
	require.Error(t, err)

	_, err = NewUniformMesh(-1, 2, 6)
	require.Error(t, err)
}

func TestTableMesh_OutOfBounds(t *testing.T) {
	mesh, err := NewUniformMesh(2, 2, 6)
	require.NoError(t, err)

	first, count := mesh.TileIndices(2, 0)
	require.Equal(t, 0, first)
	require.Equal(t, 0, count)
}
