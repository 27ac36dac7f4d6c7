package geometry

import (
	"slices"

	"github.com/golang/geo/r2"
)

// ConvexHull 单调链算法求凸包
// 功能：返回逆时针排列的凸包顶点（不重复首点），共线点被剔除
// 参数：points-任意点集
// 返回：凸包顶点；少于3个点时原样返回去重后的点
func ConvexHull(points []r2.Point) []r2.Point {
	pts := slices.Clone(points)
	slices.SortFunc(pts, func(a, b r2.Point) int {
		switch {
		case a.X < b.X:
			return -1
		case a.X > b.X:
			return 1
		case a.Y < b.Y:
			return -1
		case a.Y > b.Y:
			return 1
		}
		return 0
	})
	pts = slices.Compact(pts)
	if len(pts) < 3 {
		return pts
	}
	turn := func(o, a, b r2.Point) float64 {
		return a.Sub(o).Cross(b.Sub(o))
	}
	hull := make([]r2.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// ChaikinCornerCutting Chaikin割角平滑
// 功能：对折线做refinements轮割角，端点保持不变
// 参数：points-折线顶点，refinements-迭代次数
// 返回：平滑后的折线
func ChaikinCornerCutting(points []r2.Point, refinements int) []r2.Point {
	out := slices.Clone(points)
	if len(out) < 3 {
		return out
	}
	for r := 0; r < refinements; r++ {
		next := make([]r2.Point, 0, 2*len(out))
		next = append(next, out[0])
		for i := 0; i < len(out)-1; i++ {
			a, b := out[i], out[i+1]
			next = append(next,
				a.Mul(0.75).Add(b.Mul(0.25)),
				a.Mul(0.25).Add(b.Mul(0.75)),
			)
		}
		next = append(next, out[len(out)-1])
		out = next
	}
	return out
}

// Resample 按固定弧长步长重采样折线，始终保留首尾点
func Resample(points []r2.Point, step float64) []r2.Point {
	if len(points) < 2 || step <= 0 {
		return slices.Clone(points)
	}
	lengths := ComputePathLengthFromPolyline(points)
	total := lengths[len(lengths)-1]
	out := []r2.Point{points[0]}
	seg := 0
	for s := step; s < total-step*1e-3; s += step {
		for seg < len(points)-2 && lengths[seg+1] < s {
			seg++
		}
		ds := lengths[seg+1] - lengths[seg]
		if ds <= 0 {
			continue
		}
		k := (s - lengths[seg]) / ds
		out = append(out, points[seg].Add(points[seg+1].Sub(points[seg]).Mul(k)))
	}
	return append(out, points[len(points)-1])
}

// RemoveDuplicateVertices 去除相邻的重复顶点
func RemoveDuplicateVertices(points []r2.Point, eps float64) []r2.Point {
	out := make([]r2.Point, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && VerticesEqual(out[len(out)-1], p, eps) {
			continue
		}
		out = append(out, p)
	}
	return out
}
