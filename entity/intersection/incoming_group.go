package intersection

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
)

// IncomingGroup 路口的一组进口道
// 功能：记录进口车道片及其左转、直行、右转出口与对向车道片
type IncomingGroup struct {
	id int32

	incoming []*lanelet.Lanelet
	straight []*lanelet.Lanelet
	left     []*lanelet.Lanelet
	right    []*lanelet.Lanelet
	oncoming []*lanelet.Lanelet
	isLeftOf *IncomingGroup

	onChange func() // 所属路口的缓存失效回调，未加入路口时为nil
}

// NewIncomingGroup 创建进口道组，进口车道片会被标记为incoming类型
func NewIncomingGroup(id int32, incoming, straight, left, right, oncoming []*lanelet.Lanelet) *IncomingGroup {
	g := &IncomingGroup{
		id:       id,
		straight: slices.Clone(straight),
		left:     slices.Clone(left),
		right:    slices.Clone(right),
		oncoming: slices.Clone(oncoming),
	}
	g.SetIncomingLanelets(incoming)
	return g
}

func (g *IncomingGroup) ID() int32                             { return g.id }
func (g *IncomingGroup) IncomingLanelets() []*lanelet.Lanelet  { return g.incoming }
func (g *IncomingGroup) StraightOutgoings() []*lanelet.Lanelet { return g.straight }
func (g *IncomingGroup) LeftOutgoings() []*lanelet.Lanelet     { return g.left }
func (g *IncomingGroup) RightOutgoings() []*lanelet.Lanelet    { return g.right }
func (g *IncomingGroup) Oncomings() []*lanelet.Lanelet         { return g.oncoming }

// IsLeftOf 位于本进口道右侧的进口道组，未知时为nil
func (g *IncomingGroup) IsLeftOf() *IncomingGroup         { return g.isLeftOf }
func (g *IncomingGroup) SetIsLeftOf(other *IncomingGroup) { g.isLeftOf = other }

// SetIncomingLanelets 替换进口车道片并标记为incoming类型
func (g *IncomingGroup) SetIncomingLanelets(incoming []*lanelet.Lanelet) {
	for _, l := range incoming {
		l.AddLaneletType(lanelet.TypeIncoming)
	}
	g.incoming = slices.Clone(incoming)
	g.changed()
}

// AddIncomingLanelet 追加进口车道片
func (g *IncomingGroup) AddIncomingLanelet(l *lanelet.Lanelet) {
	l.AddLaneletType(lanelet.TypeIncoming)
	g.incoming = append(g.incoming, l)
	g.changed()
}

func (g *IncomingGroup) AddStraightOutgoing(l *lanelet.Lanelet) {
	g.straight = append(g.straight, l)
	g.changed()
}

func (g *IncomingGroup) AddLeftOutgoing(l *lanelet.Lanelet) {
	g.left = append(g.left, l)
	g.changed()
}

func (g *IncomingGroup) AddRightOutgoing(l *lanelet.Lanelet) {
	g.right = append(g.right, l)
	g.changed()
}

func (g *IncomingGroup) AddOncoming(l *lanelet.Lanelet) {
	g.oncoming = append(g.oncoming, l)
	g.changed()
}

// changed 通知所属路口重新计算成员车道片
func (g *IncomingGroup) changed() {
	if g.onChange != nil {
		g.onChange()
	}
}

// IsIncoming 车道片是否为本组的进口车道片
func (g *IncomingGroup) IsIncoming(id int32) bool {
	return lo.ContainsBy(g.incoming, func(l *lanelet.Lanelet) bool { return l.ID() == id })
}

// CollectIncomingSuccessors 从出口车道片沿前驱反向广度优先遍历，收集转向路径上的车道片
// 参数：candidates-起始出口车道片，rn-车道片查询，considerIncomings-是否在结果末尾附加到达的进口车道片
// 返回：按遍历顺序排列的车道片
// 说明：已访问的车道片与本组进口车道片不再展开
func (g *IncomingGroup) CollectIncomingSuccessors(candidates []*lanelet.Lanelet, rn lanelet.Getter, considerIncomings bool) ([]*lanelet.Lanelet, error) {
	members := make([]*lanelet.Lanelet, 0)
	visited := make(map[int32]struct{})
	reached := make([]*lanelet.Lanelet, 0)
	queue := slices.Clone(candidates)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if g.IsIncoming(cur.ID()) {
			if considerIncomings && !lo.ContainsBy(reached, func(l *lanelet.Lanelet) bool { return l.ID() == cur.ID() }) {
				reached = append(reached, cur)
			}
			continue
		}
		if _, ok := visited[cur.ID()]; ok {
			continue
		}
		visited[cur.ID()] = struct{}{}
		members = append(members, cur)
		for _, id := range cur.Predecessors() {
			pre, err := rn.FindLaneletByID(id)
			if err != nil {
				return nil, errors.Wrapf(err, "predecessor of %v", cur)
			}
			queue = append(queue, pre)
		}
	}
	return append(members, reached...), nil
}

// AllSuccessorLeft 左转出口到进口之间的车道片（不含进口）
func (g *IncomingGroup) AllSuccessorLeft(rn lanelet.Getter) ([]*lanelet.Lanelet, error) {
	return g.CollectIncomingSuccessors(g.left, rn, false)
}

// AllSuccessorRight 右转出口到进口之间的车道片（不含进口）
func (g *IncomingGroup) AllSuccessorRight(rn lanelet.Getter) ([]*lanelet.Lanelet, error) {
	return g.CollectIncomingSuccessors(g.right, rn, false)
}

// AllSuccessorStraight 直行出口到进口之间的车道片（不含进口）
func (g *IncomingGroup) AllSuccessorStraight(rn lanelet.Getter) ([]*lanelet.Lanelet, error) {
	return g.CollectIncomingSuccessors(g.straight, rn, false)
}

// AllLeftTurningLanelets 左转相关的全部车道片（含到达的进口车道片）
func (g *IncomingGroup) AllLeftTurningLanelets(rn lanelet.Getter) ([]*lanelet.Lanelet, error) {
	return g.CollectIncomingSuccessors(g.left, rn, true)
}

// AllRightTurningLanelets 右转相关的全部车道片（含到达的进口车道片）
func (g *IncomingGroup) AllRightTurningLanelets(rn lanelet.Getter) ([]*lanelet.Lanelet, error) {
	return g.CollectIncomingSuccessors(g.right, rn, true)
}

// AllStraightGoingLanelets 直行相关的全部车道片（含到达的进口车道片）
func (g *IncomingGroup) AllStraightGoingLanelets(rn lanelet.Getter) ([]*lanelet.Lanelet, error) {
	return g.CollectIncomingSuccessors(g.straight, rn, true)
}

// OutgoingGroup 路口的一组出口道
type OutgoingGroup struct {
	ID              int32
	Outgoing        []*lanelet.Lanelet
	IncomingGroupID int32 // 同一道路方向上的进口道组ID，-1表示无
}

// Contains 出口道组是否包含指定车道片
func (g *OutgoingGroup) Contains(id int32) bool {
	return lo.ContainsBy(g.Outgoing, func(l *lanelet.Lanelet) bool { return l.ID() == id })
}

// CrossingGroup 路口的一组人行横道
type CrossingGroup struct {
	ID              int32
	Crossing        []*lanelet.Lanelet
	IncomingGroupID int32 // 所在进口道组ID，-1表示无
}
