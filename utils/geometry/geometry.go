// 二维几何内核：顶点、折线、朝角与插值等基础运算
package geometry

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

const interpolationTolerance = 1e-8

var (
	ErrEmptyInput         = errors.New("empty input")
	ErrTooFewPoints       = errors.New("too few points")
	ErrLengthMismatch     = errors.New("length mismatch")
	ErrDegenerateInterval = errors.New("consecutive interpolation nodes are equal")
)

// VerticesEqual 带容差的顶点相等判断
func VerticesEqual(a, b r2.Point, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps
}

// EuclideanDistance2Dim 二维欧氏距离
func EuclideanDistance2Dim(a, b r2.Point) float64 {
	return a.Sub(b).Norm()
}

// ScalarProduct 二维向量点积
func ScalarProduct(a, b r2.Point) float64 {
	return a.Dot(b)
}

// Midpoint 两点中点
func Midpoint(a, b r2.Point) r2.Point {
	return a.Add(b).Mul(0.5)
}

// ConstrainAngle 将角度限制到(-π, π]
func ConstrainAngle(angle float64) float64 {
	angle = math.Mod(angle+math.Pi, 2*math.Pi)
	if angle <= 0 {
		angle += 2 * math.Pi
	}
	return angle - math.Pi
}

// SubtractOrientations 朝向角相减
// 功能：计算a-b并归一化到(-π, π]
// 参数：a,b-朝向角（弧度）
// 返回：角度差
func SubtractOrientations(a, b float64) float64 {
	return ConstrainAngle(a - b)
}

// ComputeOrientationFromPolyline 计算折线每个顶点处的朝向
// 功能：第i个顶点的朝向为第i段的atan2方向，最后一个顶点沿用最后一段的方向
// 参数：points-折线顶点
// 返回：与顶点一一对应的朝向数组；少于2个点时返回ErrTooFewPoints
func ComputeOrientationFromPolyline(points []r2.Point) ([]float64, error) {
	if len(points) < 2 {
		return nil, errors.Wrapf(ErrTooFewPoints, "orientation needs at least 2 points, got %d", len(points))
	}
	orientation := make([]float64, len(points))
	for i := 0; i < len(points)-1; i++ {
		d := points[i+1].Sub(points[i])
		orientation[i] = math.Atan2(d.Y, d.X)
	}
	orientation[len(points)-1] = orientation[len(points)-2]
	return orientation, nil
}

// ComputePathLengthFromPolyline 计算折线累积弧长，首元素为0
func ComputePathLengthFromPolyline(points []r2.Point) []float64 {
	if len(points) == 0 {
		return []float64{}
	}
	segments := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		segments[i] = points[i].Sub(points[i-1]).Norm()
	}
	return floats.CumSum(make([]float64, len(points)), segments)
}

// ComputeDistanceFromPolylines 逐点计算两条等长折线之间的距离
func ComputeDistanceFromPolylines(a, b []r2.Point) ([]float64, error) {
	if len(a) != len(b) {
		return nil, errors.Wrapf(ErrLengthMismatch, "polylines have %d and %d vertices", len(a), len(b))
	}
	distances := make([]float64, len(a))
	for i := range a {
		distances[i] = EuclideanDistance2Dim(a[i], b[i])
	}
	return distances, nil
}

// Interpolate 一维线性插值
// 功能：在节点(xs, ys)上对x做线性插值，超出范围时取端点值
// 参数：x-查询点，xs-升序节点，ys-节点值
// 返回：插值结果；任意一对相邻节点间距小于1e-8时返回ErrDegenerateInterval
func Interpolate(x float64, xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, errors.Wrapf(ErrLengthMismatch, "interpolation nodes %d, values %d", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return 0, errors.Wrap(ErrEmptyInput, "interpolation without nodes")
	}
	for i := 0; i < len(xs)-1; i++ {
		if math.Abs(xs[i+1]-xs[i]) < interpolationTolerance {
			return 0, errors.Wrapf(ErrDegenerateInterval, "xs[%d]=%v, xs[%d]=%v", i, xs[i], i+1, xs[i+1])
		}
	}
	if x <= xs[0] {
		return ys[0], nil
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1], nil
	}
	for i := 0; i < len(xs)-1; i++ {
		if x > xs[i+1] {
			continue
		}
		return ys[i] + (ys[i+1]-ys[i])*(x-xs[i])/(xs[i+1]-xs[i]), nil
	}
	return ys[len(ys)-1], nil
}

// RotateAndTranslateVertices 先绕原点旋转再平移
func RotateAndTranslateVertices(points []r2.Point, ref r2.Point, orientation float64) []r2.Point {
	cos, sin := math.Cos(orientation), math.Sin(orientation)
	out := make([]r2.Point, len(points))
	for i, p := range points {
		out[i] = r2.Point{
			X: cos*p.X - sin*p.Y + ref.X,
			Y: sin*p.X + cos*p.Y + ref.Y,
		}
	}
	return out
}

// AddObjectDimensions 按物体长宽膨胀参考点
// 功能：根据参考点数量构造障碍物外轮廓
// 参数：points-参考点，length-长度，width-宽度
// 返回：膨胀后的轮廓顶点；输入为空时返回ErrEmptyInput
// 算法说明：参考点按左后角起顺时针排列
// 1. 1个点：以该点为中心的矩形，顶点为(-l/2,+w/2),(+l/2,+w/2),(+l/2,-w/2),(-l/2,-w/2)
// 2. 4个点：四个角点依次按上述偏移外扩
// 3. 6个点：前两点按(-l/2,+w/2)，第3点按(+l/2,+w/2)，第4点按(+l/2,-w/2)，后两点按(-l/2,-w/2)平移
// 4. 其它：对四个(±l/2, ±w/2)平移副本求凸包
func AddObjectDimensions(points []r2.Point, length, width float64) ([]r2.Point, error) {
	hl, hw := length/2, width/2
	leftRear := r2.Point{X: -hl, Y: hw}
	leftFront := r2.Point{X: hl, Y: hw}
	rightFront := r2.Point{X: hl, Y: -hw}
	rightRear := r2.Point{X: -hl, Y: -hw}
	var offsets []r2.Point
	switch len(points) {
	case 0:
		return nil, errors.Wrap(ErrEmptyInput, "cannot add object dimensions to no points")
	case 1:
		p := points[0]
		return []r2.Point{p.Add(leftRear), p.Add(leftFront), p.Add(rightFront), p.Add(rightRear)}, nil
	case 4:
		offsets = []r2.Point{leftRear, leftFront, rightFront, rightRear}
	case 6:
		offsets = []r2.Point{leftRear, leftRear, leftFront, rightFront, rightRear, rightRear}
	default:
		inflated := make([]r2.Point, 0, 4*len(points))
		for _, offset := range []r2.Point{leftRear, leftFront, rightFront, rightRear} {
			for _, p := range points {
				inflated = append(inflated, p.Add(offset))
			}
		}
		return ConvexHull(inflated), nil
	}
	out := make([]r2.Point, len(points))
	for i, p := range points {
		out[i] = p.Add(offsets[i])
	}
	return out, nil
}

// AddObjectDimensionsCircle 以外切正八边形近似圆形物体
func AddObjectDimensionsCircle(center r2.Point, radius float64) []r2.Point {
	// 外切半径使八边形完全包含圆
	r := radius / math.Cos(math.Pi/8)
	out := make([]r2.Point, 8)
	for i := range out {
		angle := math.Pi/4 + float64(i)*math.Pi/4
		out[i] = r2.Point{X: center.X + r*math.Cos(angle), Y: center.Y + r*math.Sin(angle)}
	}
	return out
}
