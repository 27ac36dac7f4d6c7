package lane_test

import (
	"sync"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
)

// fakeNetwork 仅实现车道构建所需能力的路网
type fakeNetwork struct {
	lanelets map[int32]*lanelet.Lanelet
	lanes    map[int32][]*lane.Lane
	nextID   int32
}

func newFakeNetwork(lanelets ...*lanelet.Lanelet) *fakeNetwork {
	return &fakeNetwork{
		lanelets: lo.SliceToMap(lanelets, func(l *lanelet.Lanelet) (int32, *lanelet.Lanelet) { return l.ID(), l }),
		lanes:    make(map[int32][]*lane.Lane),
		nextID:   1000,
	}
}

func (n *fakeNetwork) FindLaneletByID(id int32) (*lanelet.Lanelet, error) {
	if l, ok := n.lanelets[id]; ok {
		return l, nil
	}
	return nil, errors.Errorf("lanelet %d not found", id)
}

func (n *fakeNetwork) FindLanesByBaseLanelet(id int32) []*lane.Lane { return n.lanes[id] }

func (n *fakeNetwork) AddLanes(lanes []*lane.Lane, baseID int32) []*lane.Lane {
	out := make([]*lane.Lane, 0, len(lanes))
	for _, l := range lanes {
		existing, ok := lo.Find(n.lanes[baseID], func(x *lane.Lane) bool {
			return x.ContainedLaneletsKey() == l.ContainedLaneletsKey()
		})
		if ok {
			out = append(out, existing)
			continue
		}
		n.lanes[baseID] = append(n.lanes[baseID], l)
		out = append(out, l)
	}
	return out
}

func (n *fakeNetwork) NextID() int32 {
	n.nextID++
	return n.nextID
}

func (n *fakeNetwork) LaneParameters() lane.Parameters { return lane.DefaultParameters() }

// segment 沿x轴的10米车道片，宽3米
func segment(t *testing.T, id int32, x0 float64, types []lanelet.LaneletType, predecessors, successors []int32) *lanelet.Lanelet {
	left := []r2.Point{{X: x0, Y: 3}, {X: x0 + 5, Y: 3}, {X: x0 + 10, Y: 3}}
	right := []r2.Point{{X: x0, Y: 0}, {X: x0 + 5, Y: 0}, {X: x0 + 10, Y: 0}}
	l, err := lanelet.NewWithTopology(id, left, right, types,
		[]lanelet.UserType{lanelet.UserCar, lanelet.UserBicycle}, nil, predecessors, successors)
	require.NoError(t, err)
	return l
}

func chain(t *testing.T) *fakeNetwork {
	urban := []lanelet.LaneletType{lanelet.TypeUrban}
	return newFakeNetwork(
		segment(t, 1, 0, urban, nil, []int32{2}),
		segment(t, 2, 10, urban, []int32{1}, []int32{3}),
		segment(t, 3, 20, urban, []int32{2}, nil),
	)
}

func TestStraightChainSingleLane(t *testing.T) {
	rn := chain(t)
	seed := rn.lanelets[2]
	lanes, err := lane.CreateLanesBySingleLanelets([]*lanelet.Lanelet{seed}, rn, 25, 25, 3, r2.Point{X: 15, Y: 1.5})
	require.NoError(t, err)
	require.Len(t, lanes, 1)
	l := lanes[0]
	assert.Equal(t, []int32{1, 2, 3}, lanelet.IDs(l.ContainedLanelets()))
	assert.InDelta(t, 30.0, l.Length(), 1e-9)
	for _, id := range []int32{1, 2, 3} {
		assert.True(t, l.ContainsLanelet(id))
	}
	assert.False(t, l.ContainsLanelet(4))
	assert.Len(t, l.CenterVertices(), 7)
	assert.Equal(t, []int32{2, 3}, lanelet.IDs(l.SuccessorLanelets(rn.lanelets[1], rn)))
}

func TestCacheIdempotence(t *testing.T) {
	rn := chain(t)
	seeds := []*lanelet.Lanelet{rn.lanelets[2]}
	pos := r2.Point{X: 15, Y: 1.5}
	first, err := lane.CreateLanesBySingleLanelets(seeds, rn, 25, 25, 3, pos)
	require.NoError(t, err)
	second, err := lane.CreateLanesBySingleLanelets(seeds, rn, 25, 25, 3, pos)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	assert.Same(t, first[0], second[0])
	assert.Len(t, rn.lanes[2], 1)
}

func TestFovLimitsExpansion(t *testing.T) {
	rn := chain(t)
	lanes, err := lane.CreateLanesBySingleLanelets([]*lanelet.Lanelet{rn.lanelets[1]}, rn, 5, 3, 3, r2.Point{X: 1, Y: 1.5})
	require.NoError(t, err)
	require.Len(t, lanes, 1)
	assert.Equal(t, []int32{1}, lanelet.IDs(lanes[0].ContainedLanelets()))
}

func TestLoopSafety(t *testing.T) {
	urban := []lanelet.LaneletType{lanelet.TypeUrban}
	rn := newFakeNetwork(
		segment(t, 1, 0, urban, []int32{3}, []int32{2}),
		segment(t, 2, 10, urban, []int32{1}, []int32{3}),
		segment(t, 3, 20, urban, []int32{2}, []int32{1}),
	)
	paths := lane.CombineLaneletAndSuccessorsToLane(rn.lanelets[1], rn, 1000, 5, 0)
	require.Len(t, paths, 1)
	assert.Equal(t, []int32{1, 2, 3}, lanelet.IDs(paths[0]))

	paths = lane.CombineLaneletAndPredecessorsToLane(rn.lanelets[1], rn, 1000, 5, 0)
	require.Len(t, paths, 1)
	assert.Equal(t, []int32{1, 3, 2}, lanelet.IDs(paths[0]))
}

func TestIntersectionBudget(t *testing.T) {
	incoming := []lanelet.LaneletType{lanelet.TypeIncoming}
	rn := newFakeNetwork(
		segment(t, 1, 0, nil, nil, []int32{2}),
		segment(t, 2, 10, incoming, []int32{1}, []int32{3}),
		segment(t, 3, 20, nil, []int32{2}, nil),
	)
	paths := lane.CombineLaneletAndSuccessorsToLane(rn.lanelets[1], rn, 1000, 0, 0)
	assert.Equal(t, []int32{1, 2}, lanelet.IDs(paths[0]))
	paths = lane.CombineLaneletAndSuccessorsToLane(rn.lanelets[1], rn, 1000, 1, 0)
	assert.Equal(t, []int32{1, 2, 3}, lanelet.IDs(paths[0]))
}

func TestForkAndBorder(t *testing.T) {
	rn := newFakeNetwork(
		segment(t, 1, 0, nil, nil, []int32{2, 3, 4}),
		segment(t, 2, 10, nil, []int32{1}, nil),
		segment(t, 3, 10, nil, []int32{1}, nil),
		segment(t, 4, 10, []lanelet.LaneletType{lanelet.TypeBorder}, []int32{1}, nil),
	)
	paths := lane.CombineLaneletAndSuccessorsToLane(rn.lanelets[1], rn, 1000, 3, 0)
	require.Len(t, paths, 2)
	assert.Equal(t, []int32{1, 2}, lanelet.IDs(paths[0]))
	assert.Equal(t, []int32{1, 3}, lanelet.IDs(paths[1]))

	lanes, err := lane.CreateLanesBySingleLanelets([]*lanelet.Lanelet{rn.lanelets[1]}, rn, 50, 50, 3, r2.Point{X: 5, Y: 1.5})
	require.NoError(t, err)
	assert.Len(t, lanes, 2)
}

func TestBorderOnlyNeighborsKeepOtherSide(t *testing.T) {
	border := []lanelet.LaneletType{lanelet.TypeBorder}
	// 前驱只有border：车道仍沿后继延伸
	rn := newFakeNetwork(
		segment(t, 9, -10, border, nil, []int32{1}),
		segment(t, 1, 0, nil, []int32{9}, []int32{2}),
		segment(t, 2, 10, nil, []int32{1}, nil),
	)
	lanes, err := lane.CreateLanesBySingleLanelets([]*lanelet.Lanelet{rn.lanelets[1]}, rn, 50, 50, 3, r2.Point{X: 5, Y: 1.5})
	require.NoError(t, err)
	require.Len(t, lanes, 1)
	assert.Equal(t, []int32{1, 2}, lanelet.IDs(lanes[0].ContainedLanelets()))

	// 后继只有border：车道仍沿前驱延伸，顺序为行驶方向
	rn = newFakeNetwork(
		segment(t, 1, 0, nil, nil, []int32{2}),
		segment(t, 2, 10, nil, []int32{1}, []int32{9}),
		segment(t, 9, 20, border, []int32{2}, nil),
	)
	lanes, err = lane.CreateLanesBySingleLanelets([]*lanelet.Lanelet{rn.lanelets[2]}, rn, 50, 50, 3, r2.Point{X: 15, Y: 1.5})
	require.NoError(t, err)
	require.Len(t, lanes, 1)
	assert.Equal(t, []int32{1, 2}, lanelet.IDs(lanes[0].ContainedLanelets()))
}

func TestCreateLaneByContainedLanelets(t *testing.T) {
	a := segment(t, 1, 0, []lanelet.LaneletType{lanelet.TypeUrban, lanelet.TypeIncoming}, nil, []int32{2})
	b := segment(t, 2, 10, []lanelet.LaneletType{lanelet.TypeUrban}, []int32{1}, nil)
	l, err := lane.CreateLaneByContainedLanelets([]*lanelet.Lanelet{a, b, a}, 77, lane.DefaultParameters())
	require.NoError(t, err)
	assert.Equal(t, int32(77), l.ID())
	assert.Equal(t, []int32{1, 2}, lanelet.IDs(l.ContainedLanelets()))
	assert.Equal(t, map[lanelet.LaneletType]struct{}{lanelet.TypeUrban: {}}, l.LaneletTypes())
	assert.Len(t, l.UsersOneWay(), 2)
	assert.Len(t, l.LeftBorder(), 5)

	_, err = lane.CreateLaneByContainedLanelets(nil, 1, lane.DefaultParameters())
	assert.Error(t, err)
}

func TestReversedLaneletJoin(t *testing.T) {
	a := segment(t, 1, 0, nil, nil, nil)
	left := []r2.Point{{X: 20, Y: 0}, {X: 10, Y: 0}}
	right := []r2.Point{{X: 20, Y: 3}, {X: 10, Y: 3}}
	b, err := lanelet.New(2, left, right, nil, nil, nil)
	require.NoError(t, err)
	l, err := lane.CreateLaneByContainedLanelets([]*lanelet.Lanelet{a, b}, 5, lane.DefaultParameters())
	require.NoError(t, err)
	assert.InDelta(t, 20.0, l.Length(), 1e-9)
	assert.InDelta(t, 20.0, l.CenterVertices()[len(l.CenterVertices())-1].X, 1e-9)
	assert.InDelta(t, 3.0, l.LeftBorder()[len(l.LeftBorder())-1].Y, 1e-9)
}

func TestSameTypeFork(t *testing.T) {
	g := newFakeNetwork(
		segment(t, 1, 0, []lanelet.LaneletType{lanelet.TypeMainCarriageWay}, nil, []int32{2, 3}),
		segment(t, 2, 10, []lanelet.LaneletType{lanelet.TypeExitRamp}, []int32{1}, nil),
		segment(t, 3, 10, []lanelet.LaneletType{lanelet.TypeMainCarriageWay}, []int32{1}, nil),
	)
	l, err := lane.CombineLaneletAndSuccessorsWithSameTypeToLane(g.lanelets[1], lanelet.TypeMainCarriageWay, g)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 3}, lanelet.IDs(l.ContainedLanelets()))
	// ID来自路网计数器，不再是车道片ID之和
	assert.Equal(t, int32(1001), l.ID())

	l, err = lane.CombineLaneletAndSuccessorsWithSameTypeToLane(g.lanelets[1], lanelet.TypeBusLane, g)
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, lanelet.IDs(l.ContainedLanelets()))
	assert.Equal(t, int32(1002), l.ID())
	assert.Equal(t, lanelet.TypeExitRamp, lane.ClassifyingLaneletType(g.lanelets[2]))
	assert.Equal(t, lanelet.TypeUrban, lane.ClassifyingLaneletType(segment(t, 9, 0, nil, nil, nil)))
}

func TestLaneRelations(t *testing.T) {
	rn := chain(t)
	params := lane.DefaultParameters()
	full, err := lane.CreateLaneByContainedLanelets([]*lanelet.Lanelet{rn.lanelets[1], rn.lanelets[2], rn.lanelets[3]}, 10, params)
	require.NoError(t, err)
	part, err := lane.CreateLaneByContainedLanelets([]*lanelet.Lanelet{rn.lanelets[2], rn.lanelets[3]}, 11, params)
	require.NoError(t, err)
	assert.True(t, full.IsPartOf(part))
	assert.False(t, part.IsPartOf(full))
	assert.True(t, part.Contains([]*lanelet.Lanelet{rn.lanelets[1], rn.lanelets[3]}))
	assert.False(t, part.Contains([]*lanelet.Lanelet{rn.lanelets[1]}))
	assert.Equal(t, []*lane.Lane{full}, lane.RemoveSubPartLanes([]*lane.Lane{part, full}))
	assert.Equal(t, []int32{2, 3, 1}, lanelet.IDs(lane.ExtractLaneletsFromLanes([]*lane.Lane{part, full})))
}

func TestLaneCurvilinearCoordinateSystem(t *testing.T) {
	rn := chain(t)
	l, err := lane.CreateLaneByContainedLanelets([]*lanelet.Lanelet{rn.lanelets[1], rn.lanelets[2], rn.lanelets[3]}, 10, lane.DefaultParameters())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := l.CurvilinearCoordinateSystem()
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()
	for _, r := range results[1:] {
		assert.Same(t, results[0], r)
	}
	c, err := l.CurvilinearCoordinateSystem()
	require.NoError(t, err)
	s, d, err := c.ConvertToCurvilinearCoords(15, 2.5)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, s, 1e-6)
	assert.InDelta(t, 1.0, d, 1e-6)
}

func TestAdjacentLanes(t *testing.T) {
	a := segment(t, 1, 0, nil, nil, nil)
	left := []r2.Point{{X: 0, Y: 6}, {X: 10, Y: 6}}
	right := []r2.Point{{X: 0, Y: 3}, {X: 10, Y: 3}}
	b, err := lanelet.New(2, left, right, nil, nil, nil)
	require.NoError(t, err)
	a.SetLeftAdjacent(2, false)
	b.SetRightAdjacent(1, false)
	params := lane.DefaultParameters()
	la, err := lane.CreateLaneByContainedLanelets([]*lanelet.Lanelet{a}, 10, params)
	require.NoError(t, err)
	lb, err := lane.CreateLaneByContainedLanelets([]*lanelet.Lanelet{b}, 11, params)
	require.NoError(t, err)
	assert.True(t, lane.AreLaneletsInDirectlyAdjacentLanes(la, lb, []*lanelet.Lanelet{a, b}))
	assert.False(t, lane.AreLaneletsInDirectlyAdjacentLanes(la, lb, []*lanelet.Lanelet{a}))
}
