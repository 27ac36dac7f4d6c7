package obstacle

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/ccs"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/geometry"
)

// 比较车道长度与视野覆盖率时的浮点容差
const tieEps = 1e-9

// ReferenceLane 障碍物在某一时间步的参考车道
// 功能：依次尝试当前占用车道、相邻车道片构建的车道、前序时间步与后续时间步的占用车道
// 返回：参考车道；都失败时返回ErrNoReferenceLane
func (o *Obstacle) ReferenceLane(rn entity.IRoadNetwork, timeStep int) (*lane.Lane, error) {
	return memo(o.cache.referenceLane, timeStep, func() (*lane.Lane, error) {
		ref, err := o.computeReference(rn, timeStep)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			return nil, errors.Wrapf(ErrNoReferenceLane, "%v at %d", o, timeStep)
		}
		log.Debugf("%v at %d: reference %v", o, timeStep, ref)
		return ref, nil
	})
}

func (o *Obstacle) computeReference(rn entity.IRoadNetwork, timeStep int) (*lane.Lane, error) {
	lanes, err := o.OccupiedLanesAndAdjacent(rn, timeStep)
	if err != nil {
		return nil, err
	}
	if ref, err := o.referenceAmong(rn, timeStep, lanes); err != nil || ref != nil {
		return ref, err
	}

	// 尝试由占用车道片的相邻车道片构建车道
	occupied, err := o.OccupiedLaneletsByShape(rn, timeStep)
	if err != nil {
		return nil, err
	}
	seeds := make([]*lanelet.Lanelet, 0)
	for _, l := range occupied {
		seeds = append(seeds, lanelet.AdjacentLanelets(l, rn, false)...)
	}
	if lanes, err = o.createLanes(rn, lo.UniqBy(seeds, (*lanelet.Lanelet).ID), timeStep); err != nil {
		return nil, err
	}
	if ref, err := o.referenceAmong(rn, timeStep, lanes); err != nil || ref != nil {
		return ref, err
	}

	// 依次尝试更早与更晚时间步的占用车道
	steps := make([]int, 0)
	for t := timeStep - 1; t >= o.firstStep; t-- {
		steps = append(steps, t)
	}
	for t := timeStep + 1; t <= o.finalStep; t++ {
		steps = append(steps, t)
	}
	for _, t := range steps {
		if _, err := o.StateByTimeStep(t); err != nil {
			continue
		}
		lanes, err := o.OccupiedLanes(rn, t)
		if err != nil {
			return nil, err
		}
		if ref, err := o.referenceAmong(rn, t, lanes); err != nil || ref != nil {
			return ref, err
		}
	}
	return nil, nil
}

// referenceAmong 在候选车道中选择参考车道
// 算法说明：
// 1. 同时包含首末时间步顺行车道片的车道优先，其次是包含末时间步顺行车道片的车道，都没有时保留全部
// 2. 统计从当前时间步到末时间步各车道包含占用车道片的次数，保留次数最多的车道
// 3. 优先保留前后长度都满足视距的车道，其次保留视野覆盖率最高的车道
// 4. 再保留前方距离最长的车道，最后取ID最小的车道
func (o *Obstacle) referenceAmong(rn entity.IRoadNetwork, timeStep int, lanes []*lane.Lane) (*lane.Lane, error) {
	if len(lanes) == 0 {
		return nil, nil
	}
	first, err := o.OccupiedLaneletsDrivingDirection(rn, o.firstStep)
	if err != nil {
		return nil, err
	}
	final, err := o.OccupiedLaneletsDrivingDirection(rn, o.finalStep)
	if err != nil {
		return nil, err
	}
	startEnd := lo.Filter(lanes, func(l *lane.Lane, _ int) bool { return l.Contains(first) && l.Contains(final) })
	end := lo.Filter(lanes, func(l *lane.Lane, _ int) bool { return l.Contains(final) })
	candidates := lanes
	switch {
	case len(startEnd) > 0:
		candidates = startEnd
	case len(end) > 0:
		candidates = end
	}
	if len(candidates) > 1 {
		if candidates, err = o.mostOccupied(rn, timeStep, candidates); err != nil {
			return nil, err
		}
	}
	if len(candidates) > 1 {
		s, err := o.StateByTimeStep(timeStep)
		if err != nil {
			return nil, err
		}
		candidates = o.bestCoverage(candidates, s)
	}
	return lo.MinBy(candidates, func(a, b *lane.Lane) bool { return a.ID() < b.ID() }), nil
}

// mostOccupied 从当前时间步到末时间步包含占用车道片次数最多的车道
func (o *Obstacle) mostOccupied(rn entity.IRoadNetwork, timeStep int, lanes []*lane.Lane) ([]*lane.Lane, error) {
	counts := make([]int, len(lanes))
	for t := timeStep; t <= o.finalStep; t++ {
		if _, err := o.StateByTimeStep(t); err != nil {
			continue
		}
		occupied, err := o.OccupiedLaneletsRoad(rn, t)
		if err != nil {
			return nil, err
		}
		for i, l := range lanes {
			if l.Contains(occupied) {
				counts[i]++
			}
		}
	}
	best := slices.Max(counts)
	if best == 0 {
		return lanes, nil
	}
	return lo.Filter(lanes, func(_ *lane.Lane, i int) bool { return counts[i] == best }), nil
}

// bestCoverage 按视距满足情况、视野覆盖率与前方距离筛选车道
func (o *Obstacle) bestCoverage(lanes []*lane.Lane, s *State) []*lane.Lane {
	type extent struct{ rear, ahead float64 }
	extents := lo.Map(lanes, func(l *lane.Lane, _ int) extent {
		pl := l.PathLength()
		idx := l.FindClosestIndex(s.X, s.Y, true)
		return extent{rear: pl[idx] - pl[0], ahead: pl[len(pl)-1] - pl[idx]}
	})
	idx := lo.Range(len(lanes))
	if full := lo.Filter(idx, func(i int, _ int) bool {
		return extents[i].ahead >= o.sensor.FieldOfViewFront && extents[i].rear >= o.sensor.FieldOfViewRear
	}); len(full) > 0 {
		idx = full
	}
	coverage := func(i int) float64 {
		return coverageRatio(o.sensor.FieldOfViewFront, extents[i].ahead) + coverageRatio(o.sensor.FieldOfViewRear, extents[i].rear)
	}
	idx = keepMax(idx, coverage)
	idx = keepMax(idx, func(i int) float64 { return extents[i].ahead })
	return lo.Map(idx, func(i int, _ int) *lane.Lane { return lanes[i] })
}

// coverageRatio 单侧视野覆盖率min(fov/extent, 1)
// 说明：视距为0时该侧不参与比较，取0；车道在该侧没有长度时取1
func coverageRatio(fov, extent float64) float64 {
	if fov <= 0 {
		return 0
	}
	if extent <= 0 {
		return 1
	}
	return math.Min(fov/extent, 1)
}

// keepMax 保留取值与最大值相差不超过容差的元素
func keepMax(idx []int, value func(int) float64) []int {
	best := math.Inf(-1)
	for _, i := range idx {
		best = max(best, value(i))
	}
	return lo.Filter(idx, func(i int, _ int) bool { return value(i) >= best-tieEps })
}

// ConvertedPosition 障碍物参考点在给定曲线坐标系下的坐标
func (o *Obstacle) ConvertedPosition(timeStep int, c *ccs.CurvilinearCoordinateSystem) (CurvilinearPosition, error) {
	if byCCS, ok := o.cache.convertedPositions[timeStep]; ok {
		if p, ok := byCCS[c]; ok {
			return p, nil
		}
	}
	s, err := o.StateByTimeStep(timeStep)
	if err != nil {
		return CurvilinearPosition{}, err
	}
	lon, lat, err := c.ConvertToCurvilinearCoords(s.X, s.Y)
	if err != nil {
		return CurvilinearPosition{}, errors.Wrapf(err, "%v at %d", o, timeStep)
	}
	tangent, err := c.TangentOrientation(lon)
	if err != nil {
		return CurvilinearPosition{}, errors.Wrapf(err, "%v at %d", o, timeStep)
	}
	p := CurvilinearPosition{S: lon, D: lat, Orientation: geometry.SubtractOrientations(s.Orientation, tangent)}
	if _, ok := o.cache.convertedPositions[timeStep]; !ok {
		o.cache.convertedPositions[timeStep] = make(map[*ccs.CurvilinearCoordinateSystem]CurvilinearPosition)
	}
	o.cache.convertedPositions[timeStep][c] = p
	return p, nil
}

// ReferenceCCS 参考车道的曲线坐标系
func (o *Obstacle) ReferenceCCS(rn entity.IRoadNetwork, timeStep int) (*ccs.CurvilinearCoordinateSystem, error) {
	ref, err := o.ReferenceLane(rn, timeStep)
	if err != nil {
		return nil, err
	}
	return ref.CurvilinearCoordinateSystem()
}

func (o *Obstacle) referencePosition(rn entity.IRoadNetwork, timeStep int) (CurvilinearPosition, error) {
	c, err := o.ReferenceCCS(rn, timeStep)
	if err != nil {
		return CurvilinearPosition{}, err
	}
	return o.ConvertedPosition(timeStep, c)
}

// LonPosition 参考车道上的纵向位置
func (o *Obstacle) LonPosition(rn entity.IRoadNetwork, timeStep int) (float64, error) {
	p, err := o.referencePosition(rn, timeStep)
	return p.S, err
}

// LatPosition 参考车道上的横向位置
func (o *Obstacle) LatPosition(rn entity.IRoadNetwork, timeStep int) (float64, error) {
	p, err := o.referencePosition(rn, timeStep)
	return p.D, err
}

// CurvilinearOrientation 相对参考车道的朝向
func (o *Obstacle) CurvilinearOrientation(rn entity.IRoadNetwork, timeStep int) (float64, error) {
	p, err := o.referencePosition(rn, timeStep)
	return geometry.ConstrainAngle(p.Orientation), err
}

// rectangleExtent 矩形四角在曲线坐标系下相对参考点的纵向与横向取值范围
func (o *Obstacle) rectangleExtent(theta float64) (minLon, maxLon, minLat, maxLat float64) {
	hl, hw := o.length/2, o.width/2
	cos, sin := math.Cos(theta), math.Sin(theta)
	minLon, maxLon = math.Inf(1), math.Inf(-1)
	minLat, maxLat = math.Inf(1), math.Inf(-1)
	for _, corner := range [][2]float64{{hl, hw}, {hl, -hw}, {-hl, hw}, {-hl, -hw}} {
		lon := corner[0]*cos - corner[1]*sin
		lat := corner[0]*sin + corner[1]*cos
		minLon, maxLon = min(minLon, lon), max(maxLon, lon)
		minLat, maxLat = min(minLat, lat), max(maxLat, lat)
	}
	return
}

// FrontSIn 给定曲线坐标系下车身最前端的纵向位置
func (o *Obstacle) FrontSIn(timeStep int, c *ccs.CurvilinearCoordinateSystem) (float64, error) {
	p, err := o.ConvertedPosition(timeStep, c)
	if err != nil {
		return 0, err
	}
	_, maxLon, _, _ := o.rectangleExtent(p.Orientation)
	return p.S + maxLon, nil
}

// RearSIn 给定曲线坐标系下车身最后端的纵向位置
func (o *Obstacle) RearSIn(timeStep int, c *ccs.CurvilinearCoordinateSystem) (float64, error) {
	p, err := o.ConvertedPosition(timeStep, c)
	if err != nil {
		return 0, err
	}
	minLon, _, _, _ := o.rectangleExtent(p.Orientation)
	return p.S + minLon, nil
}

// LeftDIn 给定曲线坐标系下车身最左侧的横向位置
func (o *Obstacle) LeftDIn(timeStep int, c *ccs.CurvilinearCoordinateSystem) (float64, error) {
	p, err := o.ConvertedPosition(timeStep, c)
	if err != nil {
		return 0, err
	}
	_, _, _, maxLat := o.rectangleExtent(p.Orientation)
	return p.D + maxLat, nil
}

// RightDIn 给定曲线坐标系下车身最右侧的横向位置
func (o *Obstacle) RightDIn(timeStep int, c *ccs.CurvilinearCoordinateSystem) (float64, error) {
	p, err := o.ConvertedPosition(timeStep, c)
	if err != nil {
		return 0, err
	}
	_, _, minLat, _ := o.rectangleExtent(p.Orientation)
	return p.D + minLat, nil
}

// FrontS 参考车道上车身最前端的纵向位置
func (o *Obstacle) FrontS(rn entity.IRoadNetwork, timeStep int) (float64, error) {
	c, err := o.ReferenceCCS(rn, timeStep)
	if err != nil {
		return 0, err
	}
	return o.FrontSIn(timeStep, c)
}

// RearS 参考车道上车身最后端的纵向位置
func (o *Obstacle) RearS(rn entity.IRoadNetwork, timeStep int) (float64, error) {
	c, err := o.ReferenceCCS(rn, timeStep)
	if err != nil {
		return 0, err
	}
	return o.RearSIn(timeStep, c)
}

// LeftD 参考车道上车身最左侧的横向位置
func (o *Obstacle) LeftD(rn entity.IRoadNetwork, timeStep int) (float64, error) {
	return memo(o.cache.leftLat, timeStep, func() (float64, error) {
		c, err := o.ReferenceCCS(rn, timeStep)
		if err != nil {
			return 0, err
		}
		return o.LeftDIn(timeStep, c)
	})
}

// RightD 参考车道上车身最右侧的横向位置
func (o *Obstacle) RightD(rn entity.IRoadNetwork, timeStep int) (float64, error) {
	return memo(o.cache.rightLat, timeStep, func() (float64, error) {
		c, err := o.ReferenceCCS(rn, timeStep)
		if err != nil {
			return 0, err
		}
		return o.RightDIn(timeStep, c)
	})
}

// LateralDistanceTo 在本障碍物参考车道上与另一障碍物的横向距离
// 返回：本车右侧与对方左侧、本车左侧与对方右侧两个距离中的较小值
func (o *Obstacle) LateralDistanceTo(rn entity.IRoadNetwork, timeStep int, other *Obstacle) (float64, error) {
	if d, ok := o.cache.lateralDistance[timeStep][other.id]; ok {
		return d, nil
	}
	c, err := o.ReferenceCCS(rn, timeStep)
	if err != nil {
		return 0, err
	}
	left, err := o.LeftD(rn, timeStep)
	if err != nil {
		return 0, err
	}
	right, err := o.RightD(rn, timeStep)
	if err != nil {
		return 0, err
	}
	otherLeft, err := other.LeftDIn(timeStep, c)
	if err != nil {
		return 0, err
	}
	otherRight, err := other.RightDIn(timeStep, c)
	if err != nil {
		return 0, err
	}
	d := math.Min(math.Abs(right-otherLeft), math.Abs(left-otherRight))
	if _, ok := o.cache.lateralDistance[timeStep]; !ok {
		o.cache.lateralDistance[timeStep] = make(map[int32]float64)
	}
	o.cache.lateralDistance[timeStep][other.id] = d
	return d, nil
}
