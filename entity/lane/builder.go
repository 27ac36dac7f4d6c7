package lane

import (
	"slices"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/geometry"
)

const (
	reversedJoinTolerance = 0.1  // 末端中心点距离小于该值时视为反向拼接
	maxJoinGap            = 10.0 // 相邻车道片首尾间距超过该值时停止拼接
	pointQueryRadius      = 0.1  // 按点查询车道片时使用的圆半径
)

var ErrNoLaneFound = errors.New("no lane found")

// Network 车道构建所需的路网能力
type Network interface {
	lanelet.Getter
	FindLanesByBaseLanelet(id int32) []*Lane
	AddLanes(lanes []*Lane, baseID int32) []*Lane
	NextID() int32
	LaneParameters() Parameters
}

// PathNetwork 支持空间查询与路径搜索的路网
type PathNetwork interface {
	Network
	FindOccupiedLaneletsByShape(shape orb.Ring) []*lanelet.Lanelet
	FindPaths(src, dst int32, considerAdjacency bool) []int32
}

// expansion 单方向递归展开的公共参数
// 说明：neighbors决定展开方向，后继展开取Successors，前驱展开取Predecessors
type expansion struct {
	fov       float64
	neighbors func(*lanelet.Lanelet) []int32
	g         lanelet.Getter
}

// expand 从当前车道片向一个方向递归展开
// 算法说明：
// 1. 当前车道片加入累积列表，累积长度=offset+列表中各车道片长度
// 2. 经过incoming类型车道片时路口预算减一
// 3. 出现环时不再加入当前车道片；无邻居、长度达到视距或路口预算耗尽时返回当前单条路径
// 4. 否则对每个非border邻居分别展开；只有分叉时才复制累积列表
func (e *expansion) expand(cur *lanelet.Lanelet, numIntersections int, acc []*lanelet.Lanelet, length float64) [][]*lanelet.Lanelet {
	if lo.ContainsBy(acc, func(x *lanelet.Lanelet) bool { return x.ID() == cur.ID() }) {
		return [][]*lanelet.Lanelet{acc}
	}
	acc = append(acc, cur)
	length += cur.Length()
	if cur.HasLaneletType(lanelet.TypeIncoming) {
		numIntersections--
	}
	neighbors := e.neighbors(cur)
	if len(neighbors) == 0 || length >= e.fov || numIntersections < 0 {
		return [][]*lanelet.Lanelet{acc}
	}
	next := make([]*lanelet.Lanelet, 0, len(neighbors))
	for _, id := range neighbors {
		n, err := e.g.FindLaneletByID(id)
		if err != nil {
			log.Warnf("%v: neighbor %d not found: %v", cur, id, err)
			continue
		}
		if n.HasLaneletType(lanelet.TypeBorder) {
			continue
		}
		next = append(next, n)
	}
	paths := make([][]*lanelet.Lanelet, 0, len(next))
	for i, n := range next {
		branch := acc
		if i < len(next)-1 {
			branch = slices.Clip(slices.Clone(acc))
		}
		paths = append(paths, e.expand(n, numIntersections, branch, length)...)
	}
	return paths
}

// CombineLaneletAndSuccessorsToLane 从车道片出发沿后继展开得到全部候选路径
// 参数：l-起始车道片，fov-视距预算，numIntersections-可穿过的路口数，offset-起始长度偏移（可为负）
// 返回：每条分支一条车道片序列，首元素为l
func CombineLaneletAndSuccessorsToLane(l *lanelet.Lanelet, g lanelet.Getter, fov float64, numIntersections int, offset float64) [][]*lanelet.Lanelet {
	e := &expansion{fov: fov, neighbors: (*lanelet.Lanelet).Successors, g: g}
	return e.expand(l, numIntersections, nil, offset)
}

// CombineLaneletAndPredecessorsToLane 从车道片出发沿前驱展开得到全部候选路径
// 返回：每条分支一条逆行驶方向的车道片序列，首元素为l
func CombineLaneletAndPredecessorsToLane(l *lanelet.Lanelet, g lanelet.Getter, fov float64, numIntersections int, offset float64) [][]*lanelet.Lanelet {
	e := &expansion{fov: fov, neighbors: (*lanelet.Lanelet).Predecessors, g: g}
	return e.expand(l, numIntersections, nil, offset)
}

// CreateLaneByContainedLanelets 拼接车道片生成车道
// 功能：依次拼接各车道片的左右边界，每个车道片（首个除外）跳过与上一个共享的首顶点
// 参数：lanelets-按行驶方向排列的车道片，id-合并车道片的新ID，params-参考线参数
// 返回：车道；类型与使用者取全部车道片的交集
// 说明：末端中心点与上一车道片末端重合的车道片按反向拼接；与上一车道片相距过远时停止拼接
func CreateLaneByContainedLanelets(lanelets []*lanelet.Lanelet, id int32, params Parameters) (*Lane, error) {
	if len(lanelets) == 0 {
		return nil, errors.Wrapf(geometry.ErrEmptyInput, "lane %d has no lanelets", id)
	}
	var (
		left, right, center []r2.Point
		types               map[lanelet.LaneletType]struct{}
		usersOneWay         map[lanelet.UserType]struct{}
		usersBidirectional  map[lanelet.UserType]struct{}
		contained           []*lanelet.Lanelet
	)
	for _, l := range lanelets {
		if lo.ContainsBy(contained, func(x *lanelet.Lanelet) bool { return x.ID() == l.ID() }) {
			continue
		}
		l1, r1, c1 := l.LeftBorder(), l.RightBorder(), l.CenterVertices()
		if len(contained) > 0 {
			prev := contained[len(contained)-1]
			if geometry.EuclideanDistance2Dim(lo.LastOrEmpty(c1), lo.LastOrEmpty(prev.CenterVertices())) < reversedJoinTolerance {
				log.Warnf("lane %d: %v joined in reverse after %v", id, l, prev)
				// 反向车道片的左右边界互换
				l1, r1, c1 = reversed(r1), reversed(l1), reversed(c1)
			}
			if geometry.EuclideanDistance2Dim(c1[0], center[len(center)-1]) > maxJoinGap {
				log.Warnf("lane %d: gap between %v and %v, stop joining", id, prev, l)
				break
			}
			l1, r1, c1 = l1[1:], r1[1:], c1[1:]
		}
		contained = append(contained, l)
		left = append(left, l1...)
		right = append(right, r1...)
		center = append(center, c1...)
		types = intersect(types, l.LaneletTypes(), len(contained) == 1)
		usersOneWay = intersect(usersOneWay, l.UsersOneWay(), len(contained) == 1)
		usersBidirectional = intersect(usersBidirectional, l.UsersBidirectional(), len(contained) == 1)
	}
	merged, err := lanelet.New(id, left, right, lo.Keys(types), lo.Keys(usersOneWay), lo.Keys(usersBidirectional))
	if err != nil {
		return nil, errors.Wrapf(err, "merge lanelets %v", lanelet.IDs(contained))
	}
	return New(contained, merged, params), nil
}

func reversed[T any](items []T) []T {
	out := slices.Clone(items)
	slices.Reverse(out)
	return out
}

// intersect 集合交集，first为true时直接取第二个集合
func intersect[T comparable](acc, next map[T]struct{}, first bool) map[T]struct{} {
	if first {
		out := make(map[T]struct{}, len(next))
		for k := range next {
			out[k] = struct{}{}
		}
		return out
	}
	return lo.PickBy(acc, func(k T, _ struct{}) bool {
		_, ok := next[k]
		return ok
	})
}

// CreateLanesBySingleLanelets 为每个初始车道片构建覆盖视距的车道
// 参数：seeds-初始车道片，rn-路网，fovRear/fovFront-后/前视距，numIntersections-可穿过的路口数，position-参考位置
// 返回：按组成车道片集合去重并移除子车道后的车道
// 算法说明：
// 1. 跳过border类型的初始车道片
// 2. 若缓存中已有以该车道片为基准、前后长度满足视距（或已到路网尽头）的车道则直接复用
// 3. 否则分别向后继与前驱展开，取两组分支的笛卡尔积拼接生成新车道；只有一侧有分支时单独使用该侧
// 4. 无法生成时退化为只含该车道片的车道
// 5. 新车道注册到路网缓存，使用缓存返回的规范实例
func CreateLanesBySingleLanelets(
	seeds []*lanelet.Lanelet,
	rn Network,
	fovRear, fovFront float64,
	numIntersections int,
	position r2.Point,
) ([]*Lane, error) {
	lanes := make([]*Lane, 0)
	seen := make(map[string]struct{})
	collect := func(l *Lane) {
		if _, ok := seen[l.key]; !ok {
			seen[l.key] = struct{}{}
			lanes = append(lanes, l)
		}
	}
	params := rn.LaneParameters()
	for _, seed := range seeds {
		if seed.HasLaneletType(lanelet.TypeBorder) {
			continue
		}
		if cached := reusableLanes(rn, seed.ID(), fovRear, fovFront, position, seen); len(cached) > 0 {
			log.Debugf("%v: reuse %d cached lanes", seed, len(cached))
			lo.ForEach(cached, func(l *Lane, _ int) { collect(l) })
			continue
		}

		idx := seed.FindClosestIndex(position.X, position.Y, true)
		s := seed.PathLength()[idx]
		sucParts := CombineLaneletAndSuccessorsToLane(seed, rn, fovFront, numIntersections, -s)
		preParts := CombineLaneletAndPredecessorsToLane(seed, rn, fovRear, numIntersections, s-seed.Length())
		log.Debugf("%v: %d successor branches, %d predecessor branches", seed, len(sucParts), len(preParts))

		newLanes := make([]*Lane, 0, max(len(sucParts), 1)*max(len(preParts), 1))
		for _, contained := range joinParts(sucParts, preParts) {
			l, err := CreateLaneByContainedLanelets(contained, rn.NextID(), params)
			if err != nil {
				return nil, err
			}
			if l.ContainsLanelet(seed.ID()) {
				newLanes = append(newLanes, l)
			}
		}
		if len(newLanes) == 0 {
			merged, err := lanelet.New(rn.NextID(), seed.LeftBorder(), seed.RightBorder(),
				lo.Keys(seed.LaneletTypes()), lo.Keys(seed.UsersOneWay()), lo.Keys(seed.UsersBidirectional()))
			if err != nil {
				return nil, err
			}
			newLanes = append(newLanes, New([]*lanelet.Lanelet{seed}, merged, params))
		}
		for _, l := range rn.AddLanes(newLanes, seed.ID()) {
			collect(l)
		}
	}
	return RemoveSubPartLanes(lanes), nil
}

// joinParts 拼接前驱与后继分支，得到按行驶方向排列的车道片序列
// 说明：两侧都有分支时取笛卡尔积；某一侧因邻居全为border而没有分支时只用另一侧
func joinParts(sucParts, preParts [][]*lanelet.Lanelet) [][]*lanelet.Lanelet {
	switch {
	case len(preParts) == 0:
		return sucParts
	case len(sucParts) == 0:
		return lo.Map(preParts, func(pre []*lanelet.Lanelet, _ int) []*lanelet.Lanelet { return reversed(pre) })
	}
	out := make([][]*lanelet.Lanelet, 0, len(sucParts)*len(preParts))
	for _, suc := range sucParts {
		for _, pre := range preParts {
			out = append(out, append(reversed(pre), suc[1:]...))
		}
	}
	return out
}

// reusableLanes 缓存中前后长度满足视距的车道
// 参数：baseID-基准车道片ID，position-参考位置，seen-本次调用已收集的车道
// 返回：前方长度超过fovFront（或末尾车道片无后继）且后方长度超过fovRear（或首个车道片无前驱）的车道
func reusableLanes(rn Network, baseID int32, fovRear, fovFront float64, position r2.Point, seen map[string]struct{}) []*Lane {
	out := make([]*Lane, 0)
	for _, l := range rn.FindLanesByBaseLanelet(baseID) {
		if _, ok := seen[l.key]; ok {
			continue
		}
		idx := l.FindClosestIndex(position.X, position.Y, true)
		pl := l.PathLength()
		rear := pl[idx]
		front := pl[len(pl)-1] - rear
		first, last := l.containedLanelets[0], l.containedLanelets[len(l.containedLanelets)-1]
		if (front > fovFront || len(last.Successors()) == 0) && (rear > fovRear || len(first.Predecessors()) == 0) {
			out = append(out, l)
		}
	}
	return out
}

// CombineLaneletAndSuccessorsWithSameTypeToLane 沿同类型后继拼接车道
// 功能：从给定车道片出发，每步选择第一个带有指定类型的后继，直到没有匹配的后继
// 参数：l-起始车道片，typ-要求的车道片类型，rn-路网
// 返回：合并车道，ID由路网计数器分配；仅带typ类型，使用者取起始车道片的使用者
// 说明：合并车道继承起始车道片的前驱与末尾车道片的后继
func CombineLaneletAndSuccessorsWithSameTypeToLane(l *lanelet.Lanelet, typ lanelet.LaneletType, rn Network) (*Lane, error) {
	contained := []*lanelet.Lanelet{l}
	visited := map[int32]struct{}{l.ID(): {}}
	for cur := l; cur != nil; {
		var next *lanelet.Lanelet
		for _, sid := range cur.Successors() {
			if _, ok := visited[sid]; ok {
				continue
			}
			suc, err := rn.FindLaneletByID(sid)
			if err != nil {
				return nil, err
			}
			if suc.HasLaneletType(typ) {
				next = suc
				break
			}
		}
		if next != nil {
			visited[next.ID()] = struct{}{}
			contained = append(contained, next)
		}
		cur = next
	}
	left := slices.Clone(l.LeftBorder())
	right := slices.Clone(l.RightBorder())
	for _, x := range contained[1:] {
		left = append(left, x.LeftBorder()[1:]...)
		right = append(right, x.RightBorder()[1:]...)
	}
	merged, err := lanelet.New(rn.NextID(), left, right, []lanelet.LaneletType{typ}, lo.Keys(l.UsersOneWay()), lo.Keys(l.UsersBidirectional()))
	if err != nil {
		return nil, err
	}
	for _, p := range l.Predecessors() {
		merged.AddPredecessor(p)
	}
	for _, s := range contained[len(contained)-1].Successors() {
		merged.AddSuccessor(s)
	}
	return New(contained, merged, rn.LaneParameters()), nil
}

// ClassifyingLaneletType 车道片的分类类型
// 返回：用于拼接贯通车道的类型
// 说明：按匝道入口、匝道出口、主车道、路肩、城市道路的顺序取第一个匹配，都不匹配时为城市道路
func ClassifyingLaneletType(l *lanelet.Lanelet) lanelet.LaneletType {
	for _, t := range []lanelet.LaneletType{
		lanelet.TypeAccessRamp,
		lanelet.TypeExitRamp,
		lanelet.TypeMainCarriageWay,
		lanelet.TypeShoulder,
		lanelet.TypeUrban,
	} {
		if l.HasLaneletType(t) {
			return t
		}
	}
	return lanelet.TypeUrban
}

// CreateLaneByPoints 构建经过起点与终点的车道
// 功能：取起终点处车道片及其相邻车道片，寻找第一对可达的车道片并拼接最短路径
// 参数：start/end-起终点，rn-支持空间查询与路径搜索的路网
// 返回：车道；不存在时返回ErrNoLaneFound
// 算法说明：
// 1. 以半径0.1米的八边形查询起终点占据的车道片，并加入各自的相邻车道片
// 2. 按起点候选、终点候选的顺序两两搜索不经由相邻边的最短路径
// 3. 第一条非空路径拼接为车道，ID由路网计数器分配
func CreateLaneByPoints(start, end r2.Point, rn PathNetwork) (*Lane, error) {
	around := func(p r2.Point) []*lanelet.Lanelet {
		out := make([]*lanelet.Lanelet, 0)
		circle := geometry.NewRing(geometry.AddObjectDimensionsCircle(p, pointQueryRadius))
		for _, l := range rn.FindOccupiedLaneletsByShape(circle) {
			out = append(out, l)
			out = append(out, lanelet.AdjacentLanelets(l, rn, false)...)
		}
		return out
	}
	initial, final := around(start), around(end)
	for _, s := range initial {
		for _, e := range final {
			path := rn.FindPaths(s.ID(), e.ID(), false)
			if len(path) == 0 {
				continue
			}
			lanelets := make([]*lanelet.Lanelet, 0, len(path))
			for _, id := range path {
				l, err := rn.FindLaneletByID(id)
				if err != nil {
					return nil, err
				}
				lanelets = append(lanelets, l)
			}
			return CreateLaneByContainedLanelets(lanelets, rn.NextID(), rn.LaneParameters())
		}
	}
	return nil, errors.Wrapf(ErrNoLaneFound, "between (%.2f, %.2f) and (%.2f, %.2f)", start.X, start.Y, end.X, end.Y)
}
