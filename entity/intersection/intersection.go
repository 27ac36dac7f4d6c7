package intersection

import (
	"math"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/geometry"
)

const (
	// FourWayStopSign 全向停车标志类型
	FourWayStopSign = "stop_4_way"
	// 判断两进口道垂直或相对时允许的角度误差
	angleTolerance = 20 * math.Pi / 180
)

// Type 路口类型
type Type int

const (
	TypeUnknown Type = iota
	TypeFourWayStop
	TypeT
	TypeUncontrolled
)

func (t Type) String() string {
	switch t {
	case TypeFourWayStop:
		return "four_way_stop"
	case TypeT:
		return "t_intersection"
	case TypeUncontrolled:
		return "uncontrolled"
	}
	return "unknown"
}

// Network 计算路口成员车道片所需的路网能力
type Network interface {
	lanelet.Getter
	FindPaths(src, dst int32, considerAdjacency bool) []int32
}

// Intersection 路口
// 功能：管理进口道组、出口道组与人行横道组，惰性计算路口内的成员车道片
// 说明：增加进口道组或出口道组、修改已加入的进口道组都会清空成员缓存与类型缓存，下次访问时重新计算
type Intersection struct {
	id int32

	mtx       sync.Mutex
	incomings []*IncomingGroup
	outgoings []*OutgoingGroup
	crossings []*CrossingGroup
	members   []*lanelet.Lanelet // nil表示尚未计算
	types     map[Type]struct{}  // nil表示尚未计算
}

// New 创建路口
// 说明：进口道组加入路口后，其成员变化同样会清空路口缓存
func New(id int32, incomings []*IncomingGroup, outgoings []*OutgoingGroup, crossings []*CrossingGroup) *Intersection {
	i := &Intersection{
		id:        id,
		incomings: slices.Clone(incomings),
		outgoings: slices.Clone(outgoings),
		crossings: slices.Clone(crossings),
	}
	for _, g := range i.incomings {
		g.onChange = i.resetCache
	}
	return i
}

func (i *Intersection) resetCache() {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	i.members, i.types = nil, nil
}

func (i *Intersection) ID() int32 { return i.id }

// IncomingGroups 进口道组
func (i *Intersection) IncomingGroups() []*IncomingGroup {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	return slices.Clone(i.incomings)
}

// OutgoingGroups 出口道组
func (i *Intersection) OutgoingGroups() []*OutgoingGroup {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	return slices.Clone(i.outgoings)
}

// CrossingGroups 人行横道组
func (i *Intersection) CrossingGroups() []*CrossingGroup {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	return slices.Clone(i.crossings)
}

// AddIncomingGroup 增加进口道组并清空缓存
func (i *Intersection) AddIncomingGroup(g *IncomingGroup) {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	i.incomings = append(i.incomings, g)
	g.onChange = i.resetCache
	i.members, i.types = nil, nil
}

// AddOutgoingGroup 增加出口道组并清空缓存
func (i *Intersection) AddOutgoingGroup(g *OutgoingGroup) {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	i.outgoings = append(i.outgoings, g)
	i.members, i.types = nil, nil
}

// AddCrossingGroup 增加人行横道组
func (i *Intersection) AddCrossingGroup(g *CrossingGroup) {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	i.crossings = append(i.crossings, g)
}

// FindIncomingGroupByLanelet 查找包含指定进口车道片的进口道组
func (i *Intersection) FindIncomingGroupByLanelet(id int32) (*IncomingGroup, bool) {
	return lo.Find(i.IncomingGroups(), func(g *IncomingGroup) bool { return g.IsIncoming(id) })
}

// IsLaneletIncoming 车道片是否为本路口的进口车道片
func (i *Intersection) IsLaneletIncoming(id int32) bool {
	_, ok := i.FindIncomingGroupByLanelet(id)
	return ok
}

// MemberLanelets 路口的成员车道片
// 功能：对每个进口车道片与其各方向出口车道片，取二者之间的最短路径（不经由相邻车道片）并合并
// 返回：按发现顺序排列的车道片；首次计算时为车道片追加路口相关类型
// 说明：进口车道片标记incoming，出口车道片标记intersection与对应方向的出口类型，
// 路径上新发现的车道片标记intersection与对应的转向类型
func (i *Intersection) MemberLanelets(rn Network) ([]*lanelet.Lanelet, error) {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	if i.members != nil {
		return i.members, nil
	}
	members := make([]*lanelet.Lanelet, 0)
	seen := make(map[int32]struct{})
	for _, g := range i.incomings {
		for _, in := range g.incoming {
			in.AddLaneletType(lanelet.TypeIncoming)
			if _, ok := seen[in.ID()]; !ok {
				seen[in.ID()] = struct{}{}
				members = append(members, in)
			}
			for _, dir := range []struct {
				outgoings []*lanelet.Lanelet
				outType   lanelet.LaneletType
				turnType  lanelet.LaneletType
			}{
				{g.left, lanelet.TypeIntersectionLeftOutgoing, lanelet.TypeLeft},
				{g.straight, lanelet.TypeIntersectionStraightOutgoing, lanelet.TypeStraight},
				{g.right, lanelet.TypeIntersectionRightOutgoing, lanelet.TypeRight},
			} {
				for _, out := range dir.outgoings {
					out.AddLaneletType(dir.outType)
					out.AddLaneletType(lanelet.TypeIntersection)
					for _, id := range rn.FindPaths(in.ID(), out.ID(), false) {
						if _, ok := seen[id]; ok {
							continue
						}
						l, err := rn.FindLaneletByID(id)
						if err != nil {
							return nil, errors.Wrapf(err, "intersection %d", i.id)
						}
						seen[id] = struct{}{}
						members = append(members, l)
						l.AddLaneletType(lanelet.TypeIntersection)
						l.AddLaneletType(dir.turnType)
					}
				}
			}
		}
		i.findLeftOf(g)
	}
	log.Debugf("intersection %d: %d member lanelets", i.id, len(members))
	i.members = members
	return members, nil
}

// findLeftOf 由右转出口所在的出口道组确定本进口道位于哪个进口道组左侧
func (i *Intersection) findLeftOf(g *IncomingGroup) {
	if len(g.right) == 0 {
		return
	}
	out, ok := lo.Find(i.outgoings, func(o *OutgoingGroup) bool { return o.Contains(g.right[0].ID()) })
	if !ok {
		return
	}
	if other, ok := lo.Find(i.incomings, func(x *IncomingGroup) bool { return x.id == out.IncomingGroupID }); ok {
		g.SetIsLeftOf(other)
	}
}

// HasIntersectionType 路口是否属于指定类型
func (i *Intersection) HasIntersectionType(t Type) bool {
	_, ok := i.Types()[t]
	return ok
}

// Types 路口类型集合
func (i *Intersection) Types() map[Type]struct{} {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	if i.types == nil {
		i.types = i.computeTypes()
	}
	return i.types
}

// computeTypes 判定路口类型
// 算法说明：
// 1. 4个进口道且每个进口道都有车道片关联全向停车标志时为全向停车路口
// 2. 3个进口道且其中一个与另外两个垂直、另外两个相对时为T型路口
// 3. 非全向停车路口中，所有进口车道片都没有信号灯、交通标志与停止线时为无控制路口，且总是包含未知类型
func (i *Intersection) computeTypes() map[Type]struct{} {
	types := make(map[Type]struct{})
	fourWayStop := false
	switch len(i.incomings) {
	case 4:
		if lo.EveryBy(i.incomings, func(g *IncomingGroup) bool {
			return lo.SomeBy(g.incoming, func(l *lanelet.Lanelet) bool { return l.HasTrafficSign(FourWayStopSign) })
		}) {
			types[TypeFourWayStop] = struct{}{}
			fourWayStop = true
		}
	case 3:
		if isTIntersection(i.incomings) {
			types[TypeT] = struct{}{}
		}
	}
	if !fourWayStop {
		if lo.EveryBy(i.incomings, func(g *IncomingGroup) bool {
			return lo.EveryBy(g.incoming, func(l *lanelet.Lanelet) bool {
				return len(l.TrafficLightIDs()) == 0 && len(l.TrafficSigns()) == 0 && l.StopLine() == nil
			})
		}) {
			types[TypeUncontrolled] = struct{}{}
		}
		types[TypeUnknown] = struct{}{}
	}
	return types
}

func isTIntersection(groups []*IncomingGroup) bool {
	orientations := make([]float64, 0, len(groups))
	for _, g := range groups {
		if len(g.incoming) == 0 {
			return false
		}
		orientations = append(orientations, exitOrientation(g.incoming[0]))
	}
	for k := range orientations {
		a, b, c := orientations[k], orientations[(k+1)%3], orientations[(k+2)%3]
		if isPerpendicular(a, b) && isPerpendicular(a, c) && isOpposite(b, c) {
			return true
		}
	}
	return false
}

// exitOrientation 车道片末段的行驶方向
func exitOrientation(l *lanelet.Lanelet) float64 {
	o := l.Orientation()
	return o[len(o)-1]
}

func isPerpendicular(a, b float64) bool {
	return math.Abs(math.Abs(geometry.SubtractOrientations(a, b))-math.Pi/2) <= angleTolerance
}

func isOpposite(a, b float64) bool {
	return math.Pi-math.Abs(geometry.SubtractOrientations(a, b)) <= angleTolerance
}
