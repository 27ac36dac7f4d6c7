package geometry

import (
	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const segmentEps = 1e-12

// NewRing 由顶点构造闭合多边形环（首尾点相同）
func NewRing(points []r2.Point) orb.Ring {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// RingVertices 多边形环转为顶点（不含重复的闭合点）
func RingVertices(ring orb.Ring) []r2.Point {
	n := len(ring)
	if n > 1 && ring.Closed() {
		n--
	}
	out := make([]r2.Point, n)
	for i := range out {
		out[i] = r2.Point{X: ring[i][0], Y: ring[i][1]}
	}
	return out
}

// RingBound 多边形环的包围盒
func RingBound(ring orb.Ring) r2.Rect {
	b := ring.Bound()
	return r2.RectFromPoints(r2.Point{X: b.Min[0], Y: b.Min[1]}, r2.Point{X: b.Max[0], Y: b.Max[1]})
}

// PointInPolygon 点是否在多边形内（边界视为在内）
func PointInPolygon(ring orb.Ring, p r2.Point) bool {
	return planar.RingContains(ring, orb.Point{p.X, p.Y})
}

// RingArea 多边形面积
func RingArea(ring orb.Ring) float64 {
	return planar.Area(ring)
}

// SegmentsIntersect 两线段是否相交（含端点接触与共线重叠）
func SegmentsIntersect(p1, p2, q1, q2 r2.Point) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)
	if ((d1 > segmentEps && d2 < -segmentEps) || (d1 < -segmentEps && d2 > segmentEps)) &&
		((d3 > segmentEps && d4 < -segmentEps) || (d3 < -segmentEps && d4 > segmentEps)) {
		return true
	}
	return (isZero(d1) && onSegment(q1, q2, p1)) ||
		(isZero(d2) && onSegment(q1, q2, p2)) ||
		(isZero(d3) && onSegment(p1, p2, q1)) ||
		(isZero(d4) && onSegment(p1, p2, q2))
}

// PolygonsIntersect 两个简单多边形是否相交（部分重叠即可）
// 功能：包围盒预筛，再检测边相交或相互包含
func PolygonsIntersect(a, b orb.Ring) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	if edgesCross(a, b) {
		return true
	}
	return planar.RingContains(a, b[0]) || planar.RingContains(b, a[0])
}

// PolygonContains outer是否完全包含inner
func PolygonContains(outer, inner orb.Ring) bool {
	if len(outer) == 0 || len(inner) == 0 {
		return false
	}
	for _, p := range inner {
		if !planar.RingContains(outer, p) {
			return false
		}
	}
	// 顶点都在内部时，仍可能因凹多边形的边穿出而不被包含
	for i := 0; i+1 < len(inner); i++ {
		mid := orb.Point{(inner[i][0] + inner[i+1][0]) / 2, (inner[i][1] + inner[i+1][1]) / 2}
		if !planar.RingContains(outer, mid) {
			return false
		}
	}
	return true
}

func edgesCross(a, b orb.Ring) bool {
	for i := 0; i+1 < len(a); i++ {
		p1, p2 := toR2(a[i]), toR2(a[i+1])
		for j := 0; j+1 < len(b); j++ {
			if SegmentsIntersect(p1, p2, toR2(b[j]), toR2(b[j+1])) {
				return true
			}
		}
	}
	return false
}

func toR2(p orb.Point) r2.Point {
	return r2.Point{X: p[0], Y: p[1]}
}

func orient(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

func isZero(v float64) bool {
	return v <= segmentEps && v >= -segmentEps
}

func onSegment(a, b, p r2.Point) bool {
	return min(a.X, b.X)-segmentEps <= p.X && p.X <= max(a.X, b.X)+segmentEps &&
		min(a.Y, b.Y)-segmentEps <= p.Y && p.Y <= max(a.Y, b.Y)+segmentEps
}
