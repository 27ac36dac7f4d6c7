package roadnetwork

import (
	"github.com/golang/geo/r2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
)

// NextID 分配一个新的合成车道片ID
func (rn *RoadNetwork) NextID() int32 {
	rn.mtx.Lock()
	defer rn.mtx.Unlock()
	rn.idCounter++
	return rn.idCounter
}

// IDCounter 最近一次分配的合成车道片ID
func (rn *RoadNetwork) IDCounter() int32 {
	rn.mtx.Lock()
	defer rn.mtx.Unlock()
	return rn.idCounter
}

// AddLanes 注册以baseID为基准构建的车道
// 功能：按组成车道片集合去重，已存在的车道只追加基准车道片
// 返回：与输入一一对应的缓存中的规范车道实例
func (rn *RoadNetwork) AddLanes(lanes []*lane.Lane, baseID int32) []*lane.Lane {
	rn.mtx.Lock()
	defer rn.mtx.Unlock()
	out := make([]*lane.Lane, 0, len(lanes))
	for _, l := range lanes {
		key := l.ContainedLaneletsKey()
		if e, ok := rn.lanes[key]; ok {
			e.bases[baseID] = struct{}{}
			out = append(out, e.lane)
			continue
		}
		rn.lanes[key] = &laneEntry{lane: l, bases: map[int32]struct{}{baseID: {}}}
		rn.laneOrder = append(rn.laneOrder, key)
		out = append(out, l)
	}
	return out
}

// FindLanesByBaseLanelet 以该车道片为基准构建过、且包含该车道片的车道
func (rn *RoadNetwork) FindLanesByBaseLanelet(id int32) []*lane.Lane {
	return rn.filterLanes(func(e *laneEntry) bool {
		_, ok := e.bases[id]
		return ok && e.lane.ContainsLanelet(id)
	})
}

// FindLanesByContainedLanelet 包含该车道片的全部车道
func (rn *RoadNetwork) FindLanesByContainedLanelet(id int32) []*lane.Lane {
	return rn.filterLanes(func(e *laneEntry) bool { return e.lane.ContainsLanelet(id) })
}

// Lanes 缓存中的全部车道，按注册顺序排列
func (rn *RoadNetwork) Lanes() []*lane.Lane {
	return rn.filterLanes(func(*laneEntry) bool { return true })
}

func (rn *RoadNetwork) filterLanes(pred func(*laneEntry) bool) []*lane.Lane {
	rn.mtx.Lock()
	defer rn.mtx.Unlock()
	out := make([]*lane.Lane, 0)
	for _, key := range rn.laneOrder {
		if e := rn.lanes[key]; pred(e) {
			out = append(out, e.lane)
		}
	}
	return out
}

// CreateLanesAtPosition 为给定位置处的车道片构建覆盖前后视距的车道
func (rn *RoadNetwork) CreateLanesAtPosition(position r2.Point, fovRear, fovFront float64) ([]*lane.Lane, error) {
	seeds := rn.FindLaneletsByPosition(position.X, position.Y)
	return lane.CreateLanesBySingleLanelets(seeds, rn, fovRear, fovFront, rn.params.NumIntersectionsPerDirection, position)
}

// BuildClassifiedLanes 按分类类型构建贯通车道
// 功能：对每个没有同分类类型前驱的车道片，沿同类型后继拼接为一条车道
// 返回：构建的车道，按起始车道片ID升序排列
func (rn *RoadNetwork) BuildClassifiedLanes() ([]*lane.Lane, error) {
	out := make([]*lane.Lane, 0)
	for _, l := range sortByID(append([]*lanelet.Lanelet(nil), rn.lanelets...)) {
		typ := lane.ClassifyingLaneletType(l)
		if lo.SomeBy(l.Predecessors(), func(id int32) bool {
			pre, ok := rn.laneletByID[id]
			return ok && lane.ClassifyingLaneletType(pre) == typ
		}) {
			continue
		}
		ln, err := lane.CombineLaneletAndSuccessorsWithSameTypeToLane(l, typ, rn)
		if err != nil {
			return nil, err
		}
		out = append(out, ln)
	}
	log.Debugf("built %d classified lanes", len(out))
	return out, nil
}
