package graph

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
)

func box(t *testing.T, id int32, x0, y0 float64, successors ...int32) *lanelet.Lanelet {
	left := []r2.Point{{X: x0, Y: y0 + 3}, {X: x0 + 10, Y: y0 + 3}}
	right := []r2.Point{{X: x0, Y: y0}, {X: x0 + 10, Y: y0}}
	l, err := lanelet.NewWithTopology(id, left, right, nil, nil, nil, nil, successors)
	require.NoError(t, err)
	return l
}

func TestChain(t *testing.T) {
	g := Build([]*lanelet.Lanelet{box(t, 1, 0, 0, 2), box(t, 2, 10, 0, 3), box(t, 3, 20, 0)})
	assert.Equal(t, []int32{1, 2, 3}, g.FindPaths(1, 3, false))
	assert.Equal(t, []int32{}, g.FindPaths(3, 1, false))
	assert.Equal(t, []int32{2}, g.FindPaths(2, 2, true))
	assert.Equal(t, []int32{3}, g.Successors(2))
	assert.Equal(t, []int32{2, 3}, g.Reachable(2, false))
}

// 两条平行车道：1->2 与 3->4，1与3同向相邻
func parallelRoads(t *testing.T) []*lanelet.Lanelet {
	l1, l2 := box(t, 1, 0, 0, 2), box(t, 2, 10, 0)
	l3, l4 := box(t, 3, 0, 3, 4), box(t, 4, 10, 3)
	l1.SetLeftAdjacent(3, false)
	l3.SetRightAdjacent(1, false)
	return []*lanelet.Lanelet{l1, l2, l3, l4}
}

func TestAdjacencyMode(t *testing.T) {
	g := Build(parallelRoads(t))
	assert.Empty(t, g.FindPaths(1, 4, false))
	assert.Equal(t, []int32{1, 3, 4}, g.FindPaths(1, 4, true))
	assert.Equal(t, []int32{3, 1, 2}, g.FindPaths(3, 2, true))
}

func TestOppositeAdjacencyIgnored(t *testing.T) {
	l1, l2 := box(t, 1, 0, 0), box(t, 2, 0, 3)
	l1.SetLeftAdjacent(2, true)
	l2.SetLeftAdjacent(1, true)
	g := Build([]*lanelet.Lanelet{l1, l2})
	assert.Empty(t, g.FindPaths(1, 2, true))
}

func TestPreferLongitudinalPath(t *testing.T) {
	// 1->2->5->6 与 1->(相邻)3->6，纵向路径代价3，经由相邻路径代价5
	l1 := box(t, 1, 0, 0, 2)
	l2 := box(t, 2, 10, 0, 5)
	l5 := box(t, 5, 20, 0, 6)
	l3 := box(t, 3, 0, 3, 6)
	l6 := box(t, 6, 30, 0)
	l1.SetLeftAdjacent(3, false)
	g := Build([]*lanelet.Lanelet{l1, l2, l3, l5, l6})
	assert.Equal(t, []int32{1, 2, 5, 6}, g.FindPaths(1, 6, true))
}

func TestMemoizationAndDeterminism(t *testing.T) {
	// 菱形：1->2->4 与 1->3->4 代价相同，先加入的后继优先
	g := Build([]*lanelet.Lanelet{box(t, 1, 0, 0, 2, 3), box(t, 2, 10, 0, 4), box(t, 3, 10, 3, 4), box(t, 4, 20, 0)})
	first := g.FindPaths(1, 4, false)
	assert.Equal(t, []int32{1, 2, 4}, first)
	first[0] = 99
	for i := 0; i < 5; i++ {
		assert.Equal(t, []int32{1, 2, 4}, g.FindPaths(1, 4, false))
	}
	assert.Len(t, g.paths, 1)
}

func TestLoopTerminates(t *testing.T) {
	g := Build([]*lanelet.Lanelet{box(t, 1, 0, 0, 2), box(t, 2, 10, 0, 1), box(t, 3, 20, 0)})
	assert.Empty(t, g.FindPaths(1, 3, false))
	assert.Equal(t, []int32{2, 1}, g.FindPaths(2, 1, false))
}
