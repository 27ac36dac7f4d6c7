package lane

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/ccs"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/geometry"
)

// Parameters 车道参考线平滑与曲线坐标系参数
type Parameters struct {
	CornerCuttingRefinements int            // Chaikin切角迭代次数
	ResampleStep             float64        // 重采样步长（米）
	CCS                      ccs.Parameters // 曲线坐标系参数
}

// DefaultParameters 默认参数
func DefaultParameters() Parameters {
	return Parameters{
		CornerCuttingRefinements: 4,
		ResampleStep:             2.0,
		CCS:                      ccs.DefaultParameters(),
	}
}

// Lane 车道
// 功能：由若干首尾相接的车道片拼接而成的长行驶路径，自身也是一个合并后的车道片
// 说明：构造后不再修改；曲线坐标系在首次使用时构建且只构建一次
type Lane struct {
	*lanelet.Lanelet // 合并后的车道片（ID为新分配的ID）

	containedLanelets []*lanelet.Lanelet
	containedIDs      map[int32]struct{}
	key               string

	params  Parameters
	ccsOnce sync.Once
	ccs     *ccs.CurvilinearCoordinateSystem
	ccsErr  error
}

// New 由组成车道片与合并车道片创建车道
func New(contained []*lanelet.Lanelet, merged *lanelet.Lanelet, params Parameters) *Lane {
	ids := lo.SliceToMap(contained, func(l *lanelet.Lanelet) (int32, struct{}) {
		return l.ID(), struct{}{}
	})
	return &Lane{
		Lanelet:           merged,
		containedLanelets: slices.Clone(contained),
		containedIDs:      ids,
		key:               idSetKey(ids),
		params:            params,
	}
}

func idSetKey(ids map[int32]struct{}) string {
	keys := lo.Keys(ids)
	slices.Sort(keys)
	parts := lo.Map(keys, func(id int32, _ int) string { return fmt.Sprint(id) })
	return strings.Join(parts, ",")
}

func (l *Lane) String() string {
	return fmt.Sprintf("Lane %d [%s]", l.ID(), l.key)
}

// ContainedLanelets 组成车道的车道片（按行驶方向排列）
func (l *Lane) ContainedLanelets() []*lanelet.Lanelet {
	return l.containedLanelets
}

// ContainedLaneletIDs 组成车道的车道片ID（升序）
func (l *Lane) ContainedLaneletIDs() []int32 {
	ids := lo.Keys(l.containedIDs)
	slices.Sort(ids)
	return ids
}

// ContainedLaneletsKey 组成车道片ID集合的规范字符串，用于按集合去重
func (l *Lane) ContainedLaneletsKey() string {
	return l.key
}

// ContainsLanelet 车道是否包含指定ID的车道片
func (l *Lane) ContainsLanelet(id int32) bool {
	_, ok := l.containedIDs[id]
	return ok
}

// Contains 车道是否包含给定车道片中的任意一个
func (l *Lane) Contains(lanelets []*lanelet.Lanelet) bool {
	return lo.SomeBy(lanelets, func(x *lanelet.Lanelet) bool { return l.ContainsLanelet(x.ID()) })
}

// IsPartOf 另一车道的全部车道片是否都包含在本车道中
func (l *Lane) IsPartOf(other *Lane) bool {
	for id := range other.containedIDs {
		if !l.ContainsLanelet(id) {
			return false
		}
	}
	return true
}

// SuccessorLanelets 在本车道内沿后继关系位于给定车道片之后的车道片
// 返回：按行驶方向排列；给定车道片不在车道内时返回空
func (l *Lane) SuccessorLanelets(start *lanelet.Lanelet, g lanelet.Getter) []*lanelet.Lanelet {
	out := make([]*lanelet.Lanelet, 0)
	if !l.ContainsLanelet(start.ID()) {
		return out
	}
	visited := map[int32]struct{}{start.ID(): {}}
	cur := start
	for {
		nextID, ok := lo.Find(cur.Successors(), func(id int32) bool {
			_, seen := visited[id]
			return l.ContainsLanelet(id) && !seen
		})
		if !ok {
			return out
		}
		next, err := g.FindLaneletByID(nextID)
		if err != nil {
			log.Warnf("%v: successor %d of %v not found: %v", l, nextID, cur, err)
			return out
		}
		visited[nextID] = struct{}{}
		out = append(out, next)
		cur = next
	}
}

// CurvilinearCoordinateSystem 车道的曲线坐标系
// 说明：以合并中心线经Chaikin切角与重采样后的折线为参考线，并发调用时只构建一次
func (l *Lane) CurvilinearCoordinateSystem() (*ccs.CurvilinearCoordinateSystem, error) {
	l.ccsOnce.Do(func() {
		path := geometry.ChaikinCornerCutting(l.CenterVertices(), l.params.CornerCuttingRefinements)
		log.Debugf("%v: reference path %d vertices after corner cutting (%d refinements)",
			l, len(path), l.params.CornerCuttingRefinements)
		path = geometry.Resample(path, l.params.ResampleStep)
		log.Debugf("%v: reference path %d vertices after resampling (step %.2f)", l, len(path), l.params.ResampleStep)
		l.ccs, l.ccsErr = ccs.New(path, l.params.CCS)
	})
	return l.ccs, l.ccsErr
}

// AreLaneletsInDirectlyAdjacentLanes 两条车道是否经由给定车道片中的一对相邻车道片直接相邻
func AreLaneletsInDirectlyAdjacentLanes(a, b *Lane, relevant []*lanelet.Lanelet) bool {
	for _, l1 := range relevant {
		for _, l2 := range relevant {
			if l1.ID() == l2.ID() || !lanelet.AreLaneletsAdjacent(l1, l2) {
				continue
			}
			if (a.ContainsLanelet(l1.ID()) && b.ContainsLanelet(l2.ID())) ||
				(b.ContainsLanelet(l1.ID()) && a.ContainsLanelet(l2.ID())) {
				return true
			}
		}
	}
	return false
}

// ExtractLaneletsFromLanes 多条车道中的全部车道片，按首次出现顺序去重
func ExtractLaneletsFromLanes(lanes []*Lane) []*lanelet.Lanelet {
	all := lo.FlatMap(lanes, func(l *Lane, _ int) []*lanelet.Lanelet { return l.containedLanelets })
	return lo.UniqBy(all, func(l *lanelet.Lanelet) int32 { return l.ID() })
}

// RemoveSubPartLanes 移除被其它车道完全包含的车道
func RemoveSubPartLanes(lanes []*Lane) []*Lane {
	return lo.Filter(lanes, func(l *Lane, i int) bool {
		for j, other := range lanes {
			if i != j && other.key != l.key && other.IsPartOf(l) {
				return false
			}
		}
		return true
	})
}
