package obstacle

import (
	"fmt"
	"math"
	"slices"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/geometry"
)

// Obstacle 矩形障碍物
// 功能：记录障碍物的历史、当前与预测状态，并缓存其在路网上的占用与曲线坐标
// 说明：非并发安全，每个障碍物由一个goroutine使用
type Obstacle struct {
	id            int32
	role          Role
	length, width float64

	current    *State
	history    map[int]*State
	prediction map[int]*State
	firstStep  int
	finalStep  int

	sensor SensorParameters
	params Parameters
	cache  *Cache
}

// New 创建障碍物
// 参数：id-障碍物ID，role-角色，current-当前状态，prediction-预测轨迹，length/width-车长车宽
func New(id int32, role Role, current *State, prediction []*State, length, width float64) *Obstacle {
	o := &Obstacle{
		id:         id,
		role:       role,
		length:     length,
		width:      width,
		current:    current,
		history:    make(map[int]*State),
		prediction: lo.SliceToMap(prediction, func(s *State) (int, *State) { return s.TimeStep, s }),
		sensor:     DefaultSensorParameters(),
		params:     DefaultParameters(),
		cache:      NewCache(),
	}
	o.updateTimeSteps()
	return o
}

func (o *Obstacle) ID() int32                          { return o.id }
func (o *Obstacle) Role() Role                         { return o.role }
func (o *Obstacle) IsStatic() bool                     { return o.role == RoleStatic }
func (o *Obstacle) Length() float64                    { return o.length }
func (o *Obstacle) Width() float64                     { return o.width }
func (o *Obstacle) CurrentState() *State               { return o.current }
func (o *Obstacle) FirstTimeStep() int                 { return o.firstStep }
func (o *Obstacle) FinalTimeStep() int                 { return o.finalStep }
func (o *Obstacle) Cache() *Cache                      { return o.cache }
func (o *Obstacle) SensorParameters() SensorParameters { return o.sensor }
func (o *Obstacle) Parameters() Parameters             { return o.params }

func (o *Obstacle) SetSensorParameters(p SensorParameters) { o.sensor = p }
func (o *Obstacle) SetParameters(p Parameters)             { o.params = p }

func (o *Obstacle) String() string {
	return fmt.Sprintf("Obstacle %d", o.id)
}

func (o *Obstacle) updateTimeSteps() {
	o.firstStep, o.finalStep = o.current.TimeStep, o.current.TimeStep
	for t := range o.history {
		o.firstStep = min(o.firstStep, t)
	}
	for t := range o.prediction {
		o.finalStep = max(o.finalStep, t)
	}
}

// SetCurrentState 替换当前状态并移除该时间步的缓存
// 说明：同一时间步的位置与朝向都未变化时保留参考车道；
// 时间步不同时原当前状态按先后转入历史或预测，仍可按时间步查询
func (o *Obstacle) SetCurrentState(s *State) {
	old, err := o.StateByTimeStep(s.TimeStep)
	keepReference := err == nil && old.X == s.X && old.Y == s.Y && old.Orientation == s.Orientation
	if prev := o.current; !o.IsStatic() && prev.TimeStep != s.TimeStep {
		if prev.TimeStep < s.TimeStep {
			o.history[prev.TimeStep] = prev
		} else {
			o.prediction[prev.TimeStep] = prev
		}
	}
	delete(o.history, s.TimeStep)
	delete(o.prediction, s.TimeStep)
	o.current = s
	o.updateTimeSteps()
	o.cache.RemoveTimeStep(s.TimeStep, !keepReference)
}

// SetTrajectoryPrediction 替换预测轨迹并清空缓存
func (o *Obstacle) SetTrajectoryPrediction(states []*State) {
	o.prediction = lo.SliceToMap(states, func(s *State) (int, *State) { return s.TimeStep, s })
	o.updateTimeSteps()
	o.cache.Clear()
}

// AppendStateToHistory 追加历史状态
func (o *Obstacle) AppendStateToHistory(s *State) {
	o.history[s.TimeStep] = s
	o.firstStep = min(o.firstStep, s.TimeStep)
}

// AppendStateToPrediction 追加预测状态
func (o *Obstacle) AppendStateToPrediction(s *State) {
	o.prediction[s.TimeStep] = s
	o.finalStep = max(o.finalStep, s.TimeStep)
}

// Propagate 前进一个时间步：当前状态转入历史，下一步的预测状态成为当前状态
// 返回：是否存在下一时间步
func (o *Obstacle) Propagate() bool {
	next := o.current.TimeStep + 1
	s, ok := o.prediction[next]
	if !ok {
		return false
	}
	o.history[o.current.TimeStep] = o.current
	o.current = s
	delete(o.prediction, next)
	o.updateTimeSteps()
	return true
}

// TimeStepExists 时间步是否在障碍物的轨迹范围内
func (o *Obstacle) TimeStepExists(timeStep int) bool {
	return o.IsStatic() || (o.firstStep <= timeStep && timeStep <= o.finalStep)
}

// TimeSteps 当前与预测的全部时间步，升序排列
func (o *Obstacle) TimeSteps() []int {
	steps := append(lo.Keys(o.prediction), o.current.TimeStep)
	slices.Sort(steps)
	return slices.Compact(steps)
}

// StateByTimeStep 某一时间步的状态
// 说明：静态障碍物在任意时间步都返回当前状态
func (o *Obstacle) StateByTimeStep(timeStep int) (*State, error) {
	if o.IsStatic() || o.current.TimeStep == timeStep {
		return o.current, nil
	}
	if s, ok := o.prediction[timeStep]; ok {
		return s, nil
	}
	if s, ok := o.history[timeStep]; ok {
		return s, nil
	}
	return nil, errors.Wrapf(ErrTimeStepNotFound, "%v at %d (range %d..%d)", o, timeStep, o.firstStep, o.finalStep)
}

// OccupancyPolygon 障碍物在某一时间步占据的多边形
// 算法说明：在局部坐标系下构造以原点为中心的矩形，再按状态旋转平移
func (o *Obstacle) OccupancyPolygon(timeStep int) (orb.Ring, error) {
	return memo(o.cache.shapes, timeStep, func() (orb.Ring, error) {
		s, err := o.StateByTimeStep(timeStep)
		if err != nil {
			return nil, err
		}
		local, err := geometry.AddObjectDimensions([]r2.Point{{}}, o.length, o.width)
		if err != nil {
			return nil, err
		}
		return geometry.NewRing(geometry.RotateAndTranslateVertices(local, s.Position(), s.Orientation)), nil
	})
}

// FrontXY 车头中点坐标
func (o *Obstacle) FrontXY(timeStep int) (r2.Point, error) {
	return memo(o.cache.frontXY, timeStep, func() (r2.Point, error) {
		return o.offsetAlongHeading(timeStep, 0)
	})
}

// BackXY 车尾中点坐标
func (o *Obstacle) BackXY(timeStep int) (r2.Point, error) {
	return memo(o.cache.backXY, timeStep, func() (r2.Point, error) {
		return o.offsetAlongHeading(timeStep, math.Pi)
	})
}

func (o *Obstacle) offsetAlongHeading(timeStep int, delta float64) (r2.Point, error) {
	s, err := o.StateByTimeStep(timeStep)
	if err != nil {
		return r2.Point{}, err
	}
	theta := s.Orientation + delta
	return r2.Point{X: s.X + o.length/2*math.Cos(theta), Y: s.Y + o.length/2*math.Sin(theta)}, nil
}

// OccupiedLaneletsByShape 与障碍物外轮廓相交的车道片
func (o *Obstacle) OccupiedLaneletsByShape(rn entity.IRoadNetwork, timeStep int) ([]*lanelet.Lanelet, error) {
	return memo(o.cache.occupiedLanelets, timeStep, func() ([]*lanelet.Lanelet, error) {
		shape, err := o.OccupancyPolygon(timeStep)
		if err != nil {
			return nil, err
		}
		return rn.FindOccupiedLaneletsByShape(shape), nil
	})
}

// OccupiedLaneletsByState 包含障碍物参考点的车道片（不考虑外形）
func (o *Obstacle) OccupiedLaneletsByState(rn entity.IRoadNetwork, timeStep int) ([]*lanelet.Lanelet, error) {
	return memo(o.cache.occupiedLaneletsState, timeStep, func() ([]*lanelet.Lanelet, error) {
		s, err := o.StateByTimeStep(timeStep)
		if err != nil {
			return nil, err
		}
		return rn.FindLaneletsByPosition(s.X, s.Y), nil
	})
}

// OccupiedLaneletsByFront 包含车头中点的车道片
func (o *Obstacle) OccupiedLaneletsByFront(rn entity.IRoadNetwork, timeStep int) ([]*lanelet.Lanelet, error) {
	return memo(o.cache.occupiedLaneletsFront, timeStep, func() ([]*lanelet.Lanelet, error) {
		p, err := o.FrontXY(timeStep)
		if err != nil {
			return nil, err
		}
		return rn.FindLaneletsByPosition(p.X, p.Y), nil
	})
}

// OccupiedLaneletsByBack 包含车尾中点的车道片
func (o *Obstacle) OccupiedLaneletsByBack(rn entity.IRoadNetwork, timeStep int) ([]*lanelet.Lanelet, error) {
	return memo(o.cache.occupiedLaneletsBack, timeStep, func() ([]*lanelet.Lanelet, error) {
		p, err := o.BackXY(timeStep)
		if err != nil {
			return nil, err
		}
		return rn.FindLaneletsByPosition(p.X, p.Y), nil
	})
}

// relevantPathLanelets 障碍物前后一段时间内占用车道片之间路径上的车道片
// 说明：起止时间步为当前时间步前后RelevantTimeInterval步，并限制在轨迹范围内
func (o *Obstacle) relevantPathLanelets(rn entity.IRoadNetwork, timeStep int) (map[int32]struct{}, error) {
	start := max(o.firstStep, timeStep-o.params.RelevantTimeInterval)
	end := min(o.finalStep, timeStep+o.params.RelevantTimeInterval)
	if o.IsStatic() {
		start, end = timeStep, timeStep
	}
	initial, err := o.OccupiedLaneletsByShape(rn, start)
	if err != nil {
		return nil, err
	}
	final, err := o.OccupiedLaneletsByShape(rn, end)
	if err != nil {
		return nil, err
	}
	relevant := make(map[int32]struct{})
	for _, a := range initial {
		for _, b := range final {
			for _, id := range rn.FindPaths(a.ID(), b.ID(), true) {
				relevant[id] = struct{}{}
			}
		}
	}
	return relevant, nil
}

// OccupiedLaneletsDrivingDirection 障碍物顺行占用的车道片
// 算法说明：
// 1. 取与外轮廓相交、且车道朝向与障碍物朝向之差小于容差的车道片
// 2. 只保留位于前后一段时间内占用车道片之间路径上的车道片
func (o *Obstacle) OccupiedLaneletsDrivingDirection(rn entity.IRoadNetwork, timeStep int) ([]*lanelet.Lanelet, error) {
	return memo(o.cache.occupiedLaneletsDrivingDir, timeStep, func() ([]*lanelet.Lanelet, error) {
		s, err := o.StateByTimeStep(timeStep)
		if err != nil {
			return nil, err
		}
		occupied, err := o.OccupiedLaneletsByShape(rn, timeStep)
		if err != nil {
			return nil, err
		}
		relevant, err := o.relevantPathLanelets(rn, timeStep)
		if err != nil {
			return nil, err
		}
		return lo.Filter(occupied, func(l *lanelet.Lanelet, _ int) bool {
			if _, ok := relevant[l.ID()]; !ok {
				return false
			}
			diff := geometry.SubtractOrientations(l.OrientationAtPosition(s.X, s.Y), s.Orientation)
			return math.Abs(diff) < o.params.DrivingDirectionTolerance
		}), nil
	})
}

// OccupiedLaneletsNotDrivingDirection 占用但不属于顺行的车道片
func (o *Obstacle) OccupiedLaneletsNotDrivingDirection(rn entity.IRoadNetwork, timeStep int) ([]*lanelet.Lanelet, error) {
	return memo(o.cache.occupiedLaneletsNotDrivingDir, timeStep, func() ([]*lanelet.Lanelet, error) {
		driving, err := o.OccupiedLaneletsDrivingDirection(rn, timeStep)
		if err != nil {
			return nil, err
		}
		all, err := o.OccupiedLaneletsByShape(rn, timeStep)
		if err != nil {
			return nil, err
		}
		return lo.Filter(all, func(l *lanelet.Lanelet, _ int) bool {
			return !lo.ContainsBy(driving, func(x *lanelet.Lanelet) bool { return x.ID() == l.ID() })
		}), nil
	})
}

// OccupiedLaneletsRoad 占用车道片中位于行驶路径及其同向相邻车道片上的部分
func (o *Obstacle) OccupiedLaneletsRoad(rn entity.IRoadNetwork, timeStep int) ([]*lanelet.Lanelet, error) {
	return memo(o.cache.occupiedLaneletsRoad, timeStep, func() ([]*lanelet.Lanelet, error) {
		occupied, err := o.OccupiedLaneletsByShape(rn, timeStep)
		if err != nil {
			return nil, err
		}
		relevant, err := o.relevantPathLanelets(rn, timeStep)
		if err != nil {
			return nil, err
		}
		for id := range relevant {
			l, err := rn.FindLaneletByID(id)
			if err != nil {
				return nil, err
			}
			for _, adj := range lanelet.AdjacentLanelets(l, rn, true) {
				relevant[adj.ID()] = struct{}{}
			}
		}
		return lo.Filter(occupied, func(l *lanelet.Lanelet, _ int) bool {
			_, ok := relevant[l.ID()]
			return ok
		}), nil
	})
}

// createLanes 以给定车道片为起点构建覆盖视距的车道
func (o *Obstacle) createLanes(rn entity.IRoadNetwork, seeds []*lanelet.Lanelet, timeStep int) ([]*lane.Lane, error) {
	s, err := o.StateByTimeStep(timeStep)
	if err != nil {
		return nil, err
	}
	return lane.CreateLanesBySingleLanelets(seeds, rn, o.sensor.FieldOfViewRear, o.sensor.FieldOfViewFront,
		o.params.NumIntersectionsPerDirection, s.Position())
}

// OccupiedLanes 障碍物占用的车道
func (o *Obstacle) OccupiedLanes(rn entity.IRoadNetwork, timeStep int) ([]*lane.Lane, error) {
	return memo(o.cache.occupiedLanes, timeStep, func() ([]*lane.Lane, error) {
		lanelets, err := o.OccupiedLaneletsRoad(rn, timeStep)
		if err != nil {
			return nil, err
		}
		return o.createLanes(rn, lanelets, timeStep)
	})
}

// OccupiedLanesAndAdjacent 由顺行占用车道片及其相邻车道片构建的车道
// 说明：没有顺行占用车道片时使用全部占用车道片
func (o *Obstacle) OccupiedLanesAndAdjacent(rn entity.IRoadNetwork, timeStep int) ([]*lane.Lane, error) {
	lets, err := o.OccupiedLaneletsDrivingDirection(rn, timeStep)
	if err != nil {
		return nil, err
	}
	if len(lets) == 0 {
		if lets, err = o.OccupiedLaneletsByShape(rn, timeStep); err != nil {
			return nil, err
		}
	}
	seeds := make([]*lanelet.Lanelet, 0)
	for _, l := range lets {
		seeds = append(seeds, lanelet.AdjacentLanelets(l, rn, false)...)
	}
	seeds = lo.UniqBy(seeds, (*lanelet.Lanelet).ID)
	slices.SortFunc(seeds, func(a, b *lanelet.Lanelet) int { return int(a.ID()) - int(b.ID()) })
	return o.createLanes(rn, seeds, timeStep)
}

// OccupiedLanesDrivingDirection 占用车道中的参考车道以及与参考车道直接相邻的车道
func (o *Obstacle) OccupiedLanesDrivingDirection(rn entity.IRoadNetwork, timeStep int) ([]*lane.Lane, error) {
	return memo(o.cache.occupiedLanesDrivingDir, timeStep, func() ([]*lane.Lane, error) {
		lanes, err := o.OccupiedLanes(rn, timeStep)
		if err != nil || len(lanes) <= 1 {
			return lanes, err
		}
		ref, err := o.ReferenceLane(rn, timeStep)
		if err != nil {
			return nil, err
		}
		occupied, err := o.OccupiedLaneletsDrivingDirection(rn, timeStep)
		if err != nil {
			return nil, err
		}
		return lo.Filter(lanes, func(l *lane.Lane, _ int) bool {
			return l.ID() == ref.ID() || lane.AreLaneletsInDirectlyAdjacentLanes(ref, l, occupied)
		}), nil
	})
}

// OccupiedRoadLanes 占用车道中与参考车道重合、包含或直接相邻的车道
func (o *Obstacle) OccupiedRoadLanes(rn entity.IRoadNetwork, timeStep int) ([]*lane.Lane, error) {
	lanes, err := o.OccupiedLanes(rn, timeStep)
	if err != nil || len(lanes) <= 1 {
		return lanes, err
	}
	ref, err := o.ReferenceLane(rn, timeStep)
	if err != nil {
		return nil, err
	}
	occupied, err := o.OccupiedLaneletsRoad(rn, timeStep)
	if err != nil {
		return nil, err
	}
	return lo.Filter(lanes, func(l *lane.Lane, _ int) bool {
		return l.ID() == ref.ID() || l.IsPartOf(ref) || ref.IsPartOf(l) ||
			lane.AreLaneletsInDirectlyAdjacentLanes(ref, l, occupied)
	}), nil
}
