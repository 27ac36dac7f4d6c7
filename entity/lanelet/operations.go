package lanelet

import (
	"slices"

	"github.com/samber/lo"
)

// Getter 按ID查找车道片
type Getter interface {
	FindLaneletByID(id int32) (*Lanelet, error)
}

// resolveAdjacent 解析指定方向的相邻车道片，不存在或无法解析时返回nil
func resolveAdjacent(l *Lanelet, dir Direction, g Getter) (*Lanelet, Adjacency) {
	adj, ok := l.Adjacent(dir)
	if !ok {
		return nil, Adjacency{}
	}
	other, err := g.FindLaneletByID(adj.ID)
	if err != nil {
		log.Warnf("%v: adjacent %v lanelet %d not found", l, dir, adj.ID)
		return nil, Adjacency{}
	}
	return other, adj
}

// laneletsBeside 沿相邻关系链向一侧遍历
// 说明：遇到已访问的车道片立即停止；sameDirection为true时遇到反向相邻停止
func laneletsBeside(l *Lanelet, dir Direction, g Getter, sameDirection bool) []*Lanelet {
	out := make([]*Lanelet, 0)
	visited := map[int32]struct{}{l.ID(): {}}
	cur := l
	for {
		next, adj := resolveAdjacent(cur, dir, g)
		if next == nil {
			break
		}
		if _, ok := visited[next.ID()]; ok {
			break
		}
		if sameDirection && adj.OppositeDir {
			break
		}
		visited[next.ID()] = struct{}{}
		out = append(out, next)
		cur = next
	}
	return out
}

// LaneletsLeftOf 给定车道片左侧的全部车道片（由近及远）
func LaneletsLeftOf(l *Lanelet, g Getter, sameDirection bool) []*Lanelet {
	return laneletsBeside(l, DirectionLeft, g, sameDirection)
}

// LaneletsRightOf 给定车道片右侧的全部车道片（由近及远）
func LaneletsRightOf(l *Lanelet, g Getter, sameDirection bool) []*Lanelet {
	return laneletsBeside(l, DirectionRight, g, sameDirection)
}

// AdjacentLanelets 车道片自身与其左右两侧车道片的并集，按ID去重排序
func AdjacentLanelets(l *Lanelet, g Getter, sameDirection bool) []*Lanelet {
	all := make([]*Lanelet, 0)
	all = append(all, l)
	all = append(all, LaneletsLeftOf(l, g, sameDirection)...)
	all = append(all, LaneletsRightOf(l, g, sameDirection)...)
	all = lo.UniqBy(all, func(x *Lanelet) int32 { return x.ID() })
	slices.SortFunc(all, func(a, b *Lanelet) int { return int(a.ID()) - int(b.ID()) })
	return all
}

// AreLaneletsAdjacent 两车道片是否直接相邻
func AreLaneletsAdjacent(a, b *Lanelet) bool {
	if adj, ok := a.Adjacent(DirectionLeft); ok && adj.ID == b.ID() {
		return true
	}
	if adj, ok := a.Adjacent(DirectionRight); ok && adj.ID == b.ID() {
		return true
	}
	return false
}

// RoadWidth 给定位置处整条道路（含反向车道）的宽度
func RoadWidth(l *Lanelet, g Getter, x, y float64) float64 {
	return lo.SumBy(AdjacentLanelets(l, g, false), func(adj *Lanelet) float64 {
		return adj.Width(x, y)
	})
}

// BicycleLaneNextToRoad 自行车道旁是否存在机动车道
func BicycleLaneNextToRoad(l *Lanelet, g Getter) bool {
	if !l.HasLaneletType(TypeBikeLane) {
		return false
	}
	isRoad := func(x *Lanelet) bool {
		return !x.HasLaneletType(TypeBikeLane) && !x.HasLaneletType(TypeSidewalk)
	}
	return lo.SomeBy(LaneletsLeftOf(l, g, false), isRoad) || lo.SomeBy(LaneletsRightOf(l, g, false), isRoad)
}

// LineMarking 获取指定一侧的车道线
func (l *Lanelet) LineMarking(dir Direction) LineMarking {
	if dir == DirectionLeft {
		return l.lineMarkingLeft
	}
	return l.lineMarkingRight
}

// AnyLaneletsContainLineMarkingType 任一车道片在指定一侧的车道线属于给定类型
func AnyLaneletsContainLineMarkingType(lanelets []*Lanelet, markings []LineMarking, dir Direction) bool {
	return lo.SomeBy(lanelets, func(l *Lanelet) bool {
		return slices.Contains(markings, l.LineMarking(dir))
	})
}

// IDs 车道片ID列表
func IDs(lanelets []*Lanelet) []int32 {
	return lo.Map(lanelets, func(l *Lanelet, _ int) int32 { return l.ID() })
}
