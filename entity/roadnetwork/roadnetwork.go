package roadnetwork

import (
	"slices"
	"sync"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/graph"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/intersection"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/geometry"
)

var (
	ErrLaneletNotFound       = errors.New("lanelet not found")
	ErrDuplicateLanelet      = errors.New("duplicate lanelet id")
	ErrIncomingGroupNotFound = errors.New("incoming group not found")
)

var (
	_ entity.IRoadNetwork  = (*RoadNetwork)(nil)
	_ intersection.Network = (*RoadNetwork)(nil)
)

// Parameters 路网参数
type Parameters struct {
	NumIntersectionsPerDirection int             // 构建车道时每个方向可穿过的路口数
	ParallelThreshold            int             // 精确相交判定并行执行的候选数下限
	Lane                         lane.Parameters // 车道参数
}

// DefaultParameters 默认参数
func DefaultParameters() Parameters {
	return Parameters{
		NumIntersectionsPerDirection: 3,
		ParallelThreshold:            16,
		Lane:                         lane.DefaultParameters(),
	}
}

// RoadNetwork 路网
// 功能：持有全部车道片与路口，提供空间查询、拓扑查询与车道缓存
// 说明：车道片在构造后只读；车道缓存、ID计数器与拓扑图由互斥锁保护，可在多个goroutine间共享
type RoadNetwork struct {
	params Parameters

	lanelets      []*lanelet.Lanelet
	laneletByID   map[int32]*lanelet.Lanelet
	intersections []*intersection.Intersection
	index         *spatialIndex

	graphOnce sync.Once
	graph     *graph.LaneletGraph

	mtx       sync.Mutex
	lanes     map[string]*laneEntry
	laneOrder []string // 车道的注册顺序
	idCounter int32
}

// laneEntry 车道缓存条目
type laneEntry struct {
	lane  *lane.Lane
	bases map[int32]struct{} // 以这些车道片为基准构建时得到过该车道
}

// New 创建路网
// 功能：校验车道片引用并建立R树索引
// 参数：lanelets-全部车道片，intersections-全部路口，params-路网参数
// 返回：路网；ID重复或引用了不存在的车道片时返回错误
// 算法说明：
// 1. 第一遍按ID建立索引并检查重复
// 2. 第二遍检查前驱、后继与左右相邻引用的车道片都存在
// 3. 合成车道片ID从最大车道片ID之后开始分配
func New(lanelets []*lanelet.Lanelet, intersections []*intersection.Intersection, params Parameters) (*RoadNetwork, error) {
	byID := make(map[int32]*lanelet.Lanelet, len(lanelets))
	var maxID int32
	for _, l := range lanelets {
		if _, ok := byID[l.ID()]; ok {
			return nil, errors.Wrapf(ErrDuplicateLanelet, "lanelet %d", l.ID())
		}
		byID[l.ID()] = l
		maxID = max(maxID, l.ID())
	}
	for _, l := range lanelets {
		refs := append(append([]int32(nil), l.Predecessors()...), l.Successors()...)
		for _, dir := range []lanelet.Direction{lanelet.DirectionLeft, lanelet.DirectionRight} {
			if adj, ok := l.Adjacent(dir); ok {
				refs = append(refs, adj.ID)
			}
		}
		for _, id := range refs {
			if _, ok := byID[id]; !ok {
				return nil, errors.Wrapf(ErrLaneletNotFound, "%v references lanelet %d", l, id)
			}
		}
	}
	index, err := newSpatialIndex(lanelets)
	if err != nil {
		return nil, errors.Wrap(err, "build spatial index")
	}
	log.Infof("road network: %d lanelets, %d intersections", len(lanelets), len(intersections))
	return &RoadNetwork{
		params:        params,
		lanelets:      slices.Clone(lanelets),
		laneletByID:   byID,
		intersections: slices.Clone(intersections),
		index:         index,
		lanes:         make(map[string]*laneEntry),
		idCounter:     maxID,
	}, nil
}

func (rn *RoadNetwork) Parameters() Parameters { return rn.params }

// LaneParameters 构建车道时使用的参数
func (rn *RoadNetwork) LaneParameters() lane.Parameters { return rn.params.Lane }

// Lanelets 全部车道片
func (rn *RoadNetwork) Lanelets() []*lanelet.Lanelet { return rn.lanelets }

// Intersections 全部路口
func (rn *RoadNetwork) Intersections() []*intersection.Intersection { return rn.intersections }

// FindLaneletByID 根据ID查找车道片，不存在时返回ErrLaneletNotFound
func (rn *RoadNetwork) FindLaneletByID(id int32) (*lanelet.Lanelet, error) {
	if l, ok := rn.laneletByID[id]; ok {
		return l, nil
	}
	return nil, errors.Wrapf(ErrLaneletNotFound, "id %d", id)
}

// FindOccupiedLaneletsByShape 与形状相交的车道片
// 功能：先用R树筛选包围盒相交的候选车道片，再逐个做精确的部分相交判定
// 返回：按ID升序排列的车道片
// 说明：候选数不少于ParallelThreshold时并行判定
func (rn *RoadNetwork) FindOccupiedLaneletsByShape(shape orb.Ring) []*lanelet.Lanelet {
	if len(shape) == 0 {
		return []*lanelet.Lanelet{}
	}
	candidates := rn.index.search(geometry.RingBound(shape))
	hit := func(l *lanelet.Lanelet) bool {
		return l.CheckIntersection(shape, lanelet.PartiallyContained)
	}
	var occupied []*lanelet.Lanelet
	if rn.params.ParallelThreshold > 0 && len(candidates) >= rn.params.ParallelThreshold {
		occupied = parallel.GoMapFilter(candidates, func(l *lanelet.Lanelet) (*lanelet.Lanelet, bool) {
			return l, hit(l)
		})
	} else {
		occupied = lo.Filter(candidates, func(l *lanelet.Lanelet, _ int) bool { return hit(l) })
	}
	return sortByID(occupied)
}

// FindLaneletsByPosition 包含给定点的车道片，按ID升序排列
func (rn *RoadNetwork) FindLaneletsByPosition(x, y float64) []*lanelet.Lanelet {
	p := r2.Point{X: x, Y: y}
	candidates := rn.index.search(r2.RectFromPoints(p))
	return sortByID(lo.Filter(candidates, func(l *lanelet.Lanelet, _ int) bool {
		return l.ContainsPoint(x, y)
	}))
}

func sortByID(lanelets []*lanelet.Lanelet) []*lanelet.Lanelet {
	if lanelets == nil {
		return []*lanelet.Lanelet{}
	}
	slices.SortFunc(lanelets, func(a, b *lanelet.Lanelet) int { return int(a.ID()) - int(b.ID()) })
	return lanelets
}

// TopologicalMap 车道片拓扑图，首次访问时构建
func (rn *RoadNetwork) TopologicalMap() *graph.LaneletGraph {
	rn.graphOnce.Do(func() {
		rn.graph = graph.Build(rn.lanelets)
	})
	return rn.graph
}

// FindPaths 两个车道片之间的最短路径
func (rn *RoadNetwork) FindPaths(src, dst int32, considerAdjacency bool) []int32 {
	return rn.TopologicalMap().FindPaths(src, dst, considerAdjacency)
}

// FindIncomingGroupByLanelet 查找以该车道片为进口车道片的进口道组
func (rn *RoadNetwork) FindIncomingGroupByLanelet(id int32) (*intersection.IncomingGroup, error) {
	for _, in := range rn.intersections {
		if g, ok := in.FindIncomingGroupByLanelet(id); ok {
			return g, nil
		}
	}
	return nil, errors.Wrapf(ErrIncomingGroupNotFound, "lanelet %d", id)
}

// FindIntersectionByLanelet 查找包含该进口车道片的路口
func (rn *RoadNetwork) FindIntersectionByLanelet(id int32) (*intersection.Intersection, bool) {
	return lo.Find(rn.intersections, func(in *intersection.Intersection) bool {
		return in.IsLaneletIncoming(id)
	})
}

// FindOutgoingGroupByLanelet 查找包含该出口车道片的出口道组
func (rn *RoadNetwork) FindOutgoingGroupByLanelet(id int32) (*intersection.OutgoingGroup, bool) {
	for _, in := range rn.intersections {
		if g, ok := lo.Find(in.OutgoingGroups(), func(g *intersection.OutgoingGroup) bool { return g.Contains(id) }); ok {
			return g, true
		}
	}
	return nil, false
}

// IntersectionMemberLanelets 计算全部路口的成员车道片并为其标记路口相关类型
func (rn *RoadNetwork) IntersectionMemberLanelets() (map[int32][]*lanelet.Lanelet, error) {
	out := make(map[int32][]*lanelet.Lanelet, len(rn.intersections))
	for _, in := range rn.intersections {
		members, err := in.MemberLanelets(rn)
		if err != nil {
			return nil, err
		}
		out[in.ID()] = members
	}
	return out, nil
}
