package lanelet

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/geometry"
	"gonum.org/v1/gonum/floats"
)

// StopLine 停止线
type StopLine struct {
	Points      []r2.Point  // 停止线端点
	LineMarking LineMarking // 线型
}

// TrafficSign 交通标志
type TrafficSign struct {
	ID   int32
	Type string // 标志类型，如"stop_4_way"
}

// Lanelet 车道片实体
// 功能：道路网络的最小有向单元，由左右边界折线围成
// 说明：中心线、外轮廓、包围盒、朝向、弧长与宽度在构造与修改边界时立即计算，
// 之后读取无需加锁；前驱/后继/相邻关系只保存ID，由路网解析
type Lanelet struct {
	id int32

	leftBorder   []r2.Point
	rightBorder  []r2.Point
	centerLine   []r2.Point
	outerPolygon orb.Ring
	boundingBox  r2.Rect

	orientation []float64 // 中心线各顶点朝向
	pathLength  []float64 // 中心线累积弧长
	width       []float64 // 各顶点处左右边界距离
	minWidth    float64

	typesMtx           sync.RWMutex
	types              map[LaneletType]struct{}
	usersOneWay        map[UserType]struct{}
	usersBidirectional map[UserType]struct{}

	predecessors  []int32
	successors    []int32
	adjacentLeft  *Adjacency
	adjacentRight *Adjacency

	stopLine         *StopLine
	trafficLightIDs  []int32
	trafficSigns     []TrafficSign
	lineMarkingLeft  LineMarking
	lineMarkingRight LineMarking
}

// New 创建车道片
// 功能：根据左右边界构造车道片并立即计算全部派生几何
// 参数：id-车道片ID，left/right-左右边界（顶点数相同），types-类型标签，usersOneWay/usersBidirectional-允许的道路使用者
// 返回：车道片；边界长度不一致或少于2个点时返回错误
func New(
	id int32,
	left, right []r2.Point,
	types []LaneletType,
	usersOneWay, usersBidirectional []UserType,
) (*Lanelet, error) {
	l := &Lanelet{
		id:                 id,
		types:              toSet(types),
		usersOneWay:        toSet(usersOneWay),
		usersBidirectional: toSet(usersBidirectional),
		predecessors:       make([]int32, 0),
		successors:         make([]int32, 0),
	}
	if err := l.SetBorders(left, right); err != nil {
		return nil, err
	}
	return l, nil
}

// NewWithTopology 创建车道片并同时指定前驱与后继
func NewWithTopology(
	id int32,
	left, right []r2.Point,
	types []LaneletType,
	usersOneWay, usersBidirectional []UserType,
	predecessors, successors []int32,
) (*Lanelet, error) {
	l, err := New(id, left, right, types, usersOneWay, usersBidirectional)
	if err != nil {
		return nil, err
	}
	for _, p := range predecessors {
		l.AddPredecessor(p)
	}
	for _, s := range successors {
		l.AddSuccessor(s)
	}
	return l, nil
}

func toSet[T comparable](items []T) map[T]struct{} {
	set := make(map[T]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// SetBorders 替换左右边界并重新计算全部派生几何
func (l *Lanelet) SetBorders(left, right []r2.Point) error {
	if len(left) != len(right) {
		return errors.Wrapf(ErrBorderMismatch, "lanelet %d: left %d, right %d", l.id, len(left), len(right))
	}
	if len(left) < 2 {
		return errors.Wrapf(geometry.ErrTooFewPoints, "lanelet %d has %d border vertices", l.id, len(left))
	}
	l.leftBorder = slices.Clone(left)
	l.rightBorder = slices.Clone(right)
	if err := l.CreateCenterVertices(); err != nil {
		return err
	}
	l.ConstructOuterPolygon()
	return l.computeDerived()
}

// CreateCenterVertices 计算中心线，第i个点为左右边界第i个点的中点
func (l *Lanelet) CreateCenterVertices() error {
	if len(l.leftBorder) != len(l.rightBorder) {
		return errors.Wrapf(ErrBorderMismatch, "lanelet %d", l.id)
	}
	l.centerLine = make([]r2.Point, len(l.leftBorder))
	for i := range l.leftBorder {
		l.centerLine[i] = geometry.Midpoint(l.leftBorder[i], l.rightBorder[i])
	}
	return nil
}

// ConstructOuterPolygon 构造外轮廓：左边界正向 + 右边界逆向 + 闭合点
func (l *Lanelet) ConstructOuterPolygon() {
	points := make([]r2.Point, 0, 2*len(l.leftBorder))
	points = append(points, l.leftBorder...)
	for i := len(l.rightBorder) - 1; i >= 0; i-- {
		points = append(points, l.rightBorder[i])
	}
	l.outerPolygon = geometry.NewRing(points)
	l.boundingBox = geometry.RingBound(l.outerPolygon)
}

func (l *Lanelet) computeDerived() error {
	orientation, err := geometry.ComputeOrientationFromPolyline(l.centerLine)
	if err != nil {
		return errors.Wrapf(err, "lanelet %d", l.id)
	}
	l.orientation = orientation
	l.pathLength = geometry.ComputePathLengthFromPolyline(l.centerLine)
	l.width, err = geometry.ComputeDistanceFromPolylines(l.leftBorder, l.rightBorder)
	if err != nil {
		return errors.Wrapf(err, "lanelet %d", l.id)
	}
	l.minWidth = floats.Min(l.width)
	return nil
}

// ID 获取车道片ID，nil时返回-1
func (l *Lanelet) ID() int32 {
	if l == nil {
		return -1
	}
	return l.id
}

func (l *Lanelet) String() string {
	return fmt.Sprintf("Lanelet %d", l.id)
}

func (l *Lanelet) LeftBorder() []r2.Point     { return l.leftBorder }
func (l *Lanelet) RightBorder() []r2.Point    { return l.rightBorder }
func (l *Lanelet) CenterVertices() []r2.Point { return l.centerLine }
func (l *Lanelet) OuterPolygon() orb.Ring     { return l.outerPolygon }
func (l *Lanelet) BoundingBox() r2.Rect       { return l.boundingBox }
func (l *Lanelet) Orientation() []float64     { return l.orientation }
func (l *Lanelet) PathLength() []float64      { return l.pathLength }

// WidthAlongLanelet 各中心线顶点处的宽度
func (l *Lanelet) WidthAlongLanelet() []float64 { return l.width }

// MinWidth 最小宽度
func (l *Lanelet) MinWidth() float64 { return l.minWidth }

// Length 中心线长度
func (l *Lanelet) Length() float64 {
	return l.pathLength[len(l.pathLength)-1]
}

// CheckIntersection 判断形状与车道片外轮廓的关系
// 参数：shape-闭合多边形，mode-部分重叠或完全包含
// 返回：是否满足给定的关系
func (l *Lanelet) CheckIntersection(shape orb.Ring, mode ContainmentType) bool {
	switch mode {
	case FullyContained:
		return geometry.PolygonContains(l.outerPolygon, shape)
	default:
		return geometry.PolygonsIntersect(l.outerPolygon, shape)
	}
}

// ContainsPoint 点是否在车道片内
func (l *Lanelet) ContainsPoint(x, y float64) bool {
	p := r2.Point{X: x, Y: y}
	return l.boundingBox.ContainsPoint(p) && geometry.PointInPolygon(l.outerPolygon, p)
}

// FindClosestIndex 距离给定点最近的中心线顶点索引
// 参数：x,y-查询点，considerLastIndex-是否允许返回最后一个顶点
// 说明：默认不考虑最后一个顶点，避免在车道片衔接处匹配到下一个车道片的起点
func (l *Lanelet) FindClosestIndex(x, y float64, considerLastIndex bool) int {
	p := r2.Point{X: x, Y: y}
	n := len(l.centerLine)
	if !considerLastIndex && n > 1 {
		n--
	}
	best, bestDist := 0, math.Inf(1)
	for i := 0; i < n; i++ {
		if d := geometry.EuclideanDistance2Dim(l.centerLine[i], p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// OrientationAtPosition 给定位置处的车道朝向
// 说明：取最近顶点与其下一个顶点连线的方向
func (l *Lanelet) OrientationAtPosition(x, y float64) float64 {
	idx := l.FindClosestIndex(x, y, false)
	a, b := l.centerLine[idx], l.centerLine[idx+1]
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

// Width 给定位置处的车道宽度
// 说明：将点投影到中心线得到弧长，再对顶点宽度做线性插值
func (l *Lanelet) Width(x, y float64) float64 {
	s := l.ProjectArcLength(x, y)
	w, err := geometry.Interpolate(s, l.pathLength, l.width)
	if err != nil {
		return l.width[l.FindClosestIndex(x, y, true)]
	}
	return w
}

// ProjectArcLength 点在中心线上的投影弧长（限制在中心线范围内）
func (l *Lanelet) ProjectArcLength(x, y float64) float64 {
	p := r2.Point{X: x, Y: y}
	bestS, bestDist := 0.0, math.Inf(1)
	for i := 0; i+1 < len(l.centerLine); i++ {
		a := l.centerLine[i]
		ab := l.centerLine[i+1].Sub(a)
		seg := ab.Norm()
		if seg == 0 {
			continue
		}
		t := min(max(p.Sub(a).Dot(ab)/(seg*seg), 0), 1)
		if d := p.Sub(a.Add(ab.Mul(t))).Norm(); d < bestDist {
			bestS, bestDist = l.pathLength[i]+t*seg, d
		}
	}
	return bestS
}

// LaneletTypes 类型标签集合的副本
func (l *Lanelet) LaneletTypes() map[LaneletType]struct{} {
	l.typesMtx.RLock()
	defer l.typesMtx.RUnlock()
	return maps.Clone(l.types)
}

// HasLaneletType 是否带有指定类型
func (l *Lanelet) HasLaneletType(t LaneletType) bool {
	l.typesMtx.RLock()
	defer l.typesMtx.RUnlock()
	_, ok := l.types[t]
	return ok
}

// HasLaneletTypes 是否带有任一指定类型
func (l *Lanelet) HasLaneletTypes(types []LaneletType) bool {
	for _, t := range types {
		if l.HasLaneletType(t) {
			return true
		}
	}
	return false
}

// AddLaneletType 追加类型标签
// 说明：路口成员计算会在构造完成后为车道片追加标签，因此单独加锁
func (l *Lanelet) AddLaneletType(t LaneletType) {
	l.typesMtx.Lock()
	defer l.typesMtx.Unlock()
	l.types[t] = struct{}{}
}

// UsersOneWay 单向允许的道路使用者
func (l *Lanelet) UsersOneWay() map[UserType]struct{} { return l.usersOneWay }

// UsersBidirectional 双向允许的道路使用者
func (l *Lanelet) UsersBidirectional() map[UserType]struct{} { return l.usersBidirectional }

// Predecessors 前驱ID
func (l *Lanelet) Predecessors() []int32 { return l.predecessors }

// Successors 后继ID
func (l *Lanelet) Successors() []int32 { return l.successors }

// AddPredecessor 添加前驱（已存在时忽略）
func (l *Lanelet) AddPredecessor(id int32) {
	if !slices.Contains(l.predecessors, id) {
		l.predecessors = append(l.predecessors, id)
	}
}

// AddSuccessor 添加后继（已存在时忽略）
func (l *Lanelet) AddSuccessor(id int32) {
	if !slices.Contains(l.successors, id) {
		l.successors = append(l.successors, id)
	}
}

// SetLeftAdjacent 设置左侧相邻
func (l *Lanelet) SetLeftAdjacent(id int32, oppositeDir bool) {
	l.adjacentLeft = &Adjacency{ID: id, OppositeDir: oppositeDir}
}

// SetRightAdjacent 设置右侧相邻
func (l *Lanelet) SetRightAdjacent(id int32, oppositeDir bool) {
	l.adjacentRight = &Adjacency{ID: id, OppositeDir: oppositeDir}
}

// Adjacent 获取指定方向的相邻关系，不存在时返回false
func (l *Lanelet) Adjacent(dir Direction) (Adjacency, bool) {
	adj := l.adjacentLeft
	if dir == DirectionRight {
		adj = l.adjacentRight
	}
	if adj == nil {
		return Adjacency{}, false
	}
	return *adj, true
}

func (l *Lanelet) StopLine() *StopLine { return l.stopLine }

// SetStopLine 关联停止线
func (l *Lanelet) SetStopLine(s *StopLine) { l.stopLine = s }

func (l *Lanelet) TrafficLightIDs() []int32 { return l.trafficLightIDs }

// AddTrafficLight 关联信号灯
func (l *Lanelet) AddTrafficLight(id int32) {
	if !slices.Contains(l.trafficLightIDs, id) {
		l.trafficLightIDs = append(l.trafficLightIDs, id)
	}
}

// TrafficSigns 关联的交通标志
func (l *Lanelet) TrafficSigns() []TrafficSign { return l.trafficSigns }

// TrafficSignIDs 关联的交通标志ID
func (l *Lanelet) TrafficSignIDs() []int32 {
	ids := make([]int32, len(l.trafficSigns))
	for i, s := range l.trafficSigns {
		ids[i] = s.ID
	}
	return ids
}

// AddTrafficSign 关联交通标志，同一ID只关联一次
func (l *Lanelet) AddTrafficSign(sign TrafficSign) {
	if !slices.ContainsFunc(l.trafficSigns, func(s TrafficSign) bool { return s.ID == sign.ID }) {
		l.trafficSigns = append(l.trafficSigns, sign)
	}
}

// HasTrafficSign 是否关联了指定类型的交通标志
func (l *Lanelet) HasTrafficSign(typ string) bool {
	return slices.ContainsFunc(l.trafficSigns, func(s TrafficSign) bool { return s.Type == typ })
}

func (l *Lanelet) LineMarkingLeft() LineMarking  { return l.lineMarkingLeft }
func (l *Lanelet) LineMarkingRight() LineMarking { return l.lineMarkingRight }

// SetLineMarkings 设置左右车道线
func (l *Lanelet) SetLineMarkings(left, right LineMarking) {
	l.lineMarkingLeft = left
	l.lineMarkingRight = right
}
