package obstacle

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/roadnetwork"
)

func newLanelet(t *testing.T, id int32, left, right []r2.Point, predecessors, successors []int32) *lanelet.Lanelet {
	l, err := lanelet.NewWithTopology(id, left, right, []lanelet.LaneletType{lanelet.TypeUrban},
		[]lanelet.UserType{lanelet.UserCar}, nil, predecessors, successors)
	require.NoError(t, err)
	return l
}

// box 沿x轴的矩形车道片
func box(t *testing.T, id int32, x0, x1, y0, y1 float64, predecessors, successors []int32) *lanelet.Lanelet {
	xm := (x0 + x1) / 2
	return newLanelet(t, id,
		[]r2.Point{{X: x0, Y: y1}, {X: xm, Y: y1}, {X: x1, Y: y1}},
		[]r2.Point{{X: x0, Y: y0}, {X: xm, Y: y0}, {X: x1, Y: y0}},
		predecessors, successors)
}

// straightNetwork 1->2->3沿x轴首尾相接，4位于2的左侧且同向
func straightNetwork(t *testing.T) *roadnetwork.RoadNetwork {
	l2 := box(t, 2, 10, 20, 0, 3, []int32{1}, []int32{3})
	l4 := box(t, 4, 10, 20, 3, 6, nil, nil)
	l2.SetLeftAdjacent(4, false)
	l4.SetRightAdjacent(2, false)
	rn, err := roadnetwork.New([]*lanelet.Lanelet{
		box(t, 1, 0, 10, 0, 3, nil, []int32{2}),
		l2,
		box(t, 3, 20, 30, 0, 3, []int32{2}, nil),
		l4,
	}, nil, roadnetwork.DefaultParameters())
	require.NoError(t, err)
	return rn
}

// forkNetwork 1分叉为直行的2（长10米）与左转45度的3（长20米）
func forkNetwork(t *testing.T) *roadnetwork.RoadNetwork {
	d := r2.Point{X: math.Sqrt2 / 2, Y: math.Sqrt2 / 2}
	diag := func(start r2.Point) []r2.Point {
		return []r2.Point{start, start.Add(d.Mul(10)), start.Add(d.Mul(20))}
	}
	rn, err := roadnetwork.New([]*lanelet.Lanelet{
		box(t, 1, 0, 10, 0, 3, nil, []int32{3, 2}),
		box(t, 2, 10, 20, 0, 3, []int32{1}, nil),
		newLanelet(t, 3, diag(r2.Point{X: 10, Y: 3}), diag(r2.Point{X: 10, Y: 0}), []int32{1}, nil),
	}, nil, roadnetwork.DefaultParameters())
	require.NoError(t, err)
	return rn
}

func at(step int, x, y, orientation float64) *State {
	return &State{TimeStep: step, X: x, Y: y, Orientation: orientation}
}

func TestStateManagement(t *testing.T) {
	o := New(1, RoleDynamic, at(0, 5, 1.5, 0), []*State{at(1, 15, 1.5, 0), at(2, 25, 1.5, 0)}, 4, 2)
	assert.Equal(t, 0, o.FirstTimeStep())
	assert.Equal(t, 2, o.FinalTimeStep())
	assert.Equal(t, []int{0, 1, 2}, o.TimeSteps())
	assert.True(t, o.TimeStepExists(2))
	assert.False(t, o.TimeStepExists(3))

	_, err := o.StateByTimeStep(3)
	assert.ErrorIs(t, err, ErrTimeStepNotFound)

	require.True(t, o.Propagate())
	assert.Equal(t, 1, o.CurrentState().TimeStep)
	s, err := o.StateByTimeStep(0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, s.X)
	assert.Equal(t, 0, o.FirstTimeStep())
	require.True(t, o.Propagate())
	assert.False(t, o.Propagate())

	o.AppendStateToPrediction(at(3, 35, 1.5, 0))
	assert.Equal(t, 3, o.FinalTimeStep())
	o.AppendStateToHistory(at(-1, 0, 1.5, 0))
	assert.Equal(t, -1, o.FirstTimeStep())
}

func TestStaticObstacleState(t *testing.T) {
	o := New(1, RoleStatic, at(0, 5, 1.5, 0), nil, 4, 2)
	s, err := o.StateByTimeStep(42)
	require.NoError(t, err)
	assert.Same(t, o.CurrentState(), s)
	assert.True(t, o.TimeStepExists(-7))
}

func TestOccupancyGeometry(t *testing.T) {
	o := New(1, RoleDynamic, at(0, 15, 1.5, 0), nil, 4, 2)
	shape, err := o.OccupancyPolygon(0)
	require.NoError(t, err)
	assert.Equal(t, orb.Ring{{13, 2.5}, {17, 2.5}, {17, 0.5}, {13, 0.5}, {13, 2.5}}, shape)

	front, err := o.FrontXY(0)
	require.NoError(t, err)
	assert.InDelta(t, 17, front.X, 1e-9)
	assert.InDelta(t, 1.5, front.Y, 1e-9)
	back, err := o.BackXY(0)
	require.NoError(t, err)
	assert.InDelta(t, 13, back.X, 1e-9)
	assert.InDelta(t, 1.5, back.Y, 1e-9)

	_, err = o.OccupancyPolygon(1)
	assert.ErrorIs(t, err, ErrTimeStepNotFound)
}

func TestOccupiedLanelets(t *testing.T) {
	rn := straightNetwork(t)
	o := New(1, RoleDynamic, at(0, 15, 1.5, 0), nil, 4, 2)

	byShape, err := o.OccupiedLaneletsByShape(rn, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, lanelet.IDs(byShape))

	front, err := o.OccupiedLaneletsByFront(rn, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, lanelet.IDs(front))
	state, err := o.OccupiedLaneletsByState(rn, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, lanelet.IDs(state))

	driving, err := o.OccupiedLaneletsDrivingDirection(rn, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, lanelet.IDs(driving))
	notDriving, err := o.OccupiedLaneletsNotDrivingDirection(rn, 0)
	require.NoError(t, err)
	assert.Empty(t, notDriving)

	road, err := o.OccupiedLaneletsRoad(rn, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, lanelet.IDs(road))

	lanes, err := o.OccupiedLanes(rn, 0)
	require.NoError(t, err)
	require.Len(t, lanes, 1)
	assert.Equal(t, []int32{1, 2, 3}, lanes[0].ContainedLaneletIDs())
}

func TestOppositeDirection(t *testing.T) {
	rn := straightNetwork(t)
	o := New(1, RoleDynamic, at(0, 15, 1.5, math.Pi), nil, 4, 2)

	driving, err := o.OccupiedLaneletsDrivingDirection(rn, 0)
	require.NoError(t, err)
	assert.Empty(t, driving)
	notDriving, err := o.OccupiedLaneletsNotDrivingDirection(rn, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, lanelet.IDs(notDriving))
}

func TestCurvilinearPosition(t *testing.T) {
	rn := straightNetwork(t)
	o := New(1, RoleDynamic, at(0, 15, 1.5, 0), nil, 4, 2)

	ref, err := o.ReferenceLane(rn, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, ref.ContainedLaneletIDs())

	lon, err := o.LonPosition(rn, 0)
	require.NoError(t, err)
	assert.InDelta(t, 15, lon, 1e-6)
	lat, err := o.LatPosition(rn, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, lat, 1e-6)
	theta, err := o.CurvilinearOrientation(rn, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, theta, 1e-6)

	front, err := o.FrontS(rn, 0)
	require.NoError(t, err)
	assert.InDelta(t, 17, front, 1e-6)
	rear, err := o.RearS(rn, 0)
	require.NoError(t, err)
	assert.InDelta(t, 13, rear, 1e-6)
	left, err := o.LeftD(rn, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, left, 1e-6)
	right, err := o.RightD(rn, 0)
	require.NoError(t, err)
	assert.InDelta(t, -1, right, 1e-6)

	other := New(2, RoleDynamic, at(0, 15, 4.5, 0), nil, 4, 2)
	d, err := o.LateralDistanceTo(rn, 0, other)
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-6)
	assert.Contains(t, o.Cache().lateralDistance[0], int32(2))
}

func TestSetCurrentStateEviction(t *testing.T) {
	rn := straightNetwork(t)
	o := New(1, RoleDynamic, at(0, 15, 1.5, 0), nil, 4, 2)
	_, err := o.ReferenceLane(rn, 0)
	require.NoError(t, err)
	_, err = o.OccupiedLaneletsByShape(rn, 0)
	require.NoError(t, err)

	same := at(0, 15, 1.5, 0)
	same.Velocity = 3
	o.SetCurrentState(same)
	assert.Contains(t, o.Cache().referenceLane, 0)
	assert.NotContains(t, o.Cache().occupiedLanelets, 0)

	o.SetCurrentState(at(0, 16, 1.5, 0))
	assert.NotContains(t, o.Cache().referenceLane, 0)

	lon, err := o.LonPosition(rn, 0)
	require.NoError(t, err)
	assert.InDelta(t, 16, lon, 1e-6)

	o.SetTrajectoryPrediction([]*State{at(1, 20, 1.5, 0)})
	assert.Empty(t, o.Cache().referenceLane)
	assert.Equal(t, 1, o.FinalTimeStep())
}

func TestSetCurrentStateKeepsPreviousStep(t *testing.T) {
	o := New(1, RoleDynamic, at(0, 5, 1.5, 0), nil, 4, 2)
	o.SetCurrentState(at(1, 15, 1.5, 0))
	assert.Equal(t, 0, o.FirstTimeStep())
	assert.Equal(t, 1, o.FinalTimeStep())
	s, err := o.StateByTimeStep(0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, s.X)

	// 回退到更早的时间步时，原当前状态转入预测
	o.SetCurrentState(at(0, 6, 1.5, 0))
	assert.Equal(t, 6.0, o.CurrentState().X)
	s, err = o.StateByTimeStep(1)
	require.NoError(t, err)
	assert.Equal(t, 15.0, s.X)
	assert.Equal(t, []int{0, 1}, o.TimeSteps())
}

func TestCoverageWithZeroFieldOfView(t *testing.T) {
	rn := straightNetwork(t)
	ls := lo.Map([]int32{1, 2, 3}, func(id int32, _ int) *lanelet.Lanelet {
		l, err := rn.FindLaneletByID(id)
		require.NoError(t, err)
		return l
	})
	short, err := lane.CreateLaneByContainedLanelets(ls[:2], rn.NextID(), rn.LaneParameters())
	require.NoError(t, err)
	long, err := lane.CreateLaneByContainedLanelets(ls, rn.NextID(), rn.LaneParameters())
	require.NoError(t, err)

	// 障碍物位于车道起点，后方长度为0且后视距为0
	o := New(1, RoleStatic, at(0, 0, 1.5, 0), nil, 4, 2)
	o.SetSensorParameters(SensorParameters{FieldOfViewFront: 15, FieldOfViewRear: 0})
	s, err := o.StateByTimeStep(0)
	require.NoError(t, err)
	best := o.bestCoverage([]*lane.Lane{short, long}, s)
	require.Len(t, best, 1)
	assert.Same(t, short, best[0])
}

func TestReferenceLaneStaticPrefersLongerLane(t *testing.T) {
	rn := forkNetwork(t)
	o := New(1, RoleStatic, at(0, 5, 1.5, 0), nil, 4, 1)

	lanes, err := o.OccupiedLanesAndAdjacent(rn, 0)
	require.NoError(t, err)
	assert.Len(t, lanes, 2)

	ref, err := o.ReferenceLane(rn, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 3}, ref.ContainedLaneletIDs())
}

func TestReferenceLaneFollowsTrajectory(t *testing.T) {
	rn := forkNetwork(t)
	o := New(1, RoleDynamic, at(0, 5, 1.5, 0), []*State{at(1, 15, 1.5, 0)}, 4, 1)

	final, err := o.OccupiedLaneletsDrivingDirection(rn, 1)
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, lanelet.IDs(final))

	ref, err := o.ReferenceLane(rn, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, ref.ContainedLaneletIDs())
}

func TestReferenceLaneOffRoad(t *testing.T) {
	rn := straightNetwork(t)
	o := New(1, RoleDynamic, at(0, 100, 100, 0), nil, 4, 2)
	_, err := o.ReferenceLane(rn, 0)
	assert.ErrorIs(t, err, ErrNoReferenceLane)
}
