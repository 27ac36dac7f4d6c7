package ccs

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/geometry"
)

const (
	lambdaTolerance = 1e-9
	minSegment      = 1e-9
)

var (
	ErrOutOfProjectionDomain = errors.New("point outside projection domain")
	ErrInvalidReferencePath  = errors.New("invalid reference path")
)

// Parameters 曲线坐标系数值参数
type Parameters struct {
	Eps2                  float64 // 参考线端点外延的单段长度
	NumAdditionalSegments int     // 每端外延的段数
	ProjectionDomainLimit float64 // 投影域的最大横向距离
}

// DefaultParameters 默认参数
func DefaultParameters() Parameters {
	return Parameters{
		Eps2:                  1.0,
		NumAdditionalSegments: 2,
		ProjectionDomainLimit: 25.0,
	}
}

// CurvilinearCoordinateSystem 曲线坐标系
// 功能：以参考折线为轴，在笛卡尔坐标(x, y)与曲线坐标(s, d)之间转换
// 说明：s为沿参考线的弧长（从原始首点起算，外延部分为负），d为横向偏移（左正右负）；
// 每段的法向在两端顶点法向之间线性插值，使正逆变换互为反函数
type CurvilinearCoordinateSystem struct {
	params Parameters

	referencePath []r2.Point // 原始参考线
	path          []r2.Point // 外延后的参考线
	s             []float64  // path各顶点的弧长坐标
	normals       []r2.Point // path各顶点的单位法向（左侧）
	offset        float64    // 首端外延长度
}

// New 创建曲线坐标系
// 功能：外延参考线并预计算顶点弧长与法向
// 参数：referencePath-参考折线（至少2个不重合的点），params-数值参数
// 返回：曲线坐标系；参考线无效时返回ErrInvalidReferencePath
func New(referencePath []r2.Point, params Parameters) (*CurvilinearCoordinateSystem, error) {
	path := geometry.RemoveDuplicateVertices(referencePath, minSegment)
	if dropped := len(referencePath) - len(path); dropped > 0 {
		log.Debugf("reference path: %d duplicate vertices removed", dropped)
	}
	if len(path) < 2 {
		return nil, errors.Wrapf(ErrInvalidReferencePath, "need 2 distinct vertices, got %d", len(path))
	}
	if params.NumAdditionalSegments < 0 || params.Eps2 < 0 {
		return nil, errors.Wrapf(ErrInvalidReferencePath, "bad extension parameters %+v", params)
	}
	c := &CurvilinearCoordinateSystem{
		params:        params,
		referencePath: append([]r2.Point(nil), referencePath...),
		offset:        float64(params.NumAdditionalSegments) * params.Eps2,
	}
	head := path[0].Sub(path[1]).Normalize()
	tail := path[len(path)-1].Sub(path[len(path)-2]).Normalize()
	extended := make([]r2.Point, 0, len(path)+2*params.NumAdditionalSegments)
	if params.Eps2 > 0 {
		for i := params.NumAdditionalSegments; i > 0; i-- {
			extended = append(extended, path[0].Add(head.Mul(float64(i)*params.Eps2)))
		}
	}
	extended = append(extended, path...)
	if params.Eps2 > 0 {
		for i := 1; i <= params.NumAdditionalSegments; i++ {
			extended = append(extended, path[len(path)-1].Add(tail.Mul(float64(i)*params.Eps2)))
		}
	}
	c.path = extended
	c.s = geometry.ComputePathLengthFromPolyline(extended)
	for i := range c.s {
		c.s[i] -= c.offset
	}
	c.normals = vertexNormals(extended)
	return c, nil
}

// vertexNormals 参考线各顶点的单位左法向
// 算法说明：
// 1. 首尾顶点取相邻段的法向
// 2. 中间顶点取两侧段法向之和的方向
// 3. 两侧段方向相反（折返）时和向量退化，改用后一段的法向
func vertexNormals(path []r2.Point) []r2.Point {
	n := len(path)
	segNormals := make([]r2.Point, n-1)
	for i := 0; i < n-1; i++ {
		segNormals[i] = path[i+1].Sub(path[i]).Normalize().Ortho()
	}
	normals := make([]r2.Point, n)
	normals[0] = segNormals[0]
	normals[n-1] = segNormals[n-2]
	for i := 1; i < n-1; i++ {
		sum := segNormals[i-1].Add(segNormals[i])
		if sum.Norm() < 1e-6 {
			log.Warnf("reference path turns back at vertex %d (%.2f, %.2f)", i, path[i].X, path[i].Y)
			normals[i] = segNormals[i]
			continue
		}
		normals[i] = sum.Normalize()
	}
	return normals
}

// ReferencePath 原始参考线
func (c *CurvilinearCoordinateSystem) ReferencePath() []r2.Point {
	return c.referencePath
}

// Length 原始参考线长度
func (c *CurvilinearCoordinateSystem) Length() float64 {
	return c.s[len(c.s)-1] - c.offset
}

// SRange 可转换的弧长范围（包含两端外延）
func (c *CurvilinearCoordinateSystem) SRange() (float64, float64) {
	return c.s[0], c.s[len(c.s)-1]
}

// Eps2 外延单段长度
func (c *CurvilinearCoordinateSystem) Eps2() float64 {
	return c.params.Eps2
}

// Parameters 数值参数
func (c *CurvilinearCoordinateSystem) Parameters() Parameters {
	return c.params
}

type projection struct {
	segment int
	lambda  float64
	s, d    float64
}

// project 将点投影到外延后的参考线上
// 参数：p-笛卡尔坐标点
// 返回：横向距离最小的投影；无解或超出投影域横向限制时第二个返回值为false
// 算法说明：
// 1. 段i上的基点P(λ)=a+λb，法向n(λ)=ni+λ(ni+1-ni)，λ∈[0,1]
// 2. 要求p-P(λ)与n(λ)平行，即叉积为0，整理为关于λ的一元二次方程
// 3. 对每个有效根计算带符号横向距离d，保留|d|最小的解
func (c *CurvilinearCoordinateSystem) project(p r2.Point) (projection, bool) {
	best := projection{d: math.Inf(1)}
	found := false
	for i := 0; i < len(c.path)-1; i++ {
		a := c.path[i]
		b := c.path[i+1].Sub(a)
		ni := c.normals[i]
		m := c.normals[i+1].Sub(ni)
		pa := p.Sub(a)
		// cross(pa - λb, ni + λm) = 0
		qa := -b.Cross(m)
		qb := pa.Cross(m) - b.Cross(ni)
		qc := pa.Cross(ni)
		for _, lambda := range solveQuadratic(qa, qb, qc) {
			if lambda < -lambdaTolerance || lambda > 1+lambdaTolerance {
				continue
			}
			lambda = min(max(lambda, 0), 1)
			base := a.Add(b.Mul(lambda))
			normal := ni.Add(m.Mul(lambda))
			if normal.Norm() < 1e-12 {
				continue
			}
			d := p.Sub(base).Dot(normal.Normalize())
			if math.Abs(d) < math.Abs(best.d) {
				best = projection{
					segment: i,
					lambda:  lambda,
					s:       c.s[i] + lambda*(c.s[i+1]-c.s[i]),
					d:       d,
				}
				found = true
			}
		}
	}
	if !found || math.Abs(best.d) > c.params.ProjectionDomainLimit {
		return projection{}, false
	}
	return best, true
}

// solveQuadratic 求aλ²+bλ+c=0的实根，a接近0时退化为一次方程
func solveQuadratic(a, b, c float64) []float64 {
	scale := max(math.Abs(a), math.Abs(b), math.Abs(c))
	if scale == 0 {
		return nil
	}
	if math.Abs(a) < 1e-12*scale {
		if math.Abs(b) < 1e-15 {
			return nil
		}
		return []float64{-c / b}
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		if disc > -1e-12*scale*scale {
			disc = 0
		} else {
			return nil
		}
	}
	sq := math.Sqrt(disc)
	// 数值稳定的求根公式
	q := -0.5 * (b + math.Copysign(sq, b))
	roots := []float64{q / a}
	if q != 0 {
		roots = append(roots, c/q)
	}
	return roots
}

// CartesianPointInProjectionDomain 点是否位于投影域内
func (c *CurvilinearCoordinateSystem) CartesianPointInProjectionDomain(x, y float64) bool {
	_, ok := c.project(r2.Point{X: x, Y: y})
	return ok
}

// ConvertToCurvilinearCoords 笛卡尔坐标转曲线坐标
// 功能：将点(x, y)投影到参考线上
// 参数：x,y-笛卡尔坐标
// 返回：s-纵向弧长，d-横向偏移；点位于投影域外时返回ErrOutOfProjectionDomain
func (c *CurvilinearCoordinateSystem) ConvertToCurvilinearCoords(x, y float64) (s, d float64, err error) {
	proj, ok := c.project(r2.Point{X: x, Y: y})
	if !ok {
		return 0, 0, errors.Wrapf(ErrOutOfProjectionDomain, "point (%v, %v) for %v", x, y, c)
	}
	return proj.s, proj.d, nil
}

// ConvertToCartesianCoords 曲线坐标转笛卡尔坐标
// 参数：s-纵向弧长（须在SRange内），d-横向偏移
// 返回：笛卡尔坐标；|d|超出投影域限制或s超出范围时返回ErrOutOfProjectionDomain
// 说明：沿插值法向偏移，与ConvertToCurvilinearCoords互为反函数
func (c *CurvilinearCoordinateSystem) ConvertToCartesianCoords(s, d float64) (r2.Point, error) {
	if math.Abs(d) > c.params.ProjectionDomainLimit {
		return r2.Point{}, errors.Wrapf(ErrOutOfProjectionDomain, "lateral offset %v exceeds %v", d, c.params.ProjectionDomainLimit)
	}
	i, lambda, err := c.locate(s)
	if err != nil {
		return r2.Point{}, err
	}
	a := c.path[i]
	base := a.Add(c.path[i+1].Sub(a).Mul(lambda))
	normal := c.normals[i].Add(c.normals[i+1].Sub(c.normals[i]).Mul(lambda)).Normalize()
	return base.Add(normal.Mul(d)), nil
}

// Tangent 弧长s处参考线的单位切向
// 说明：取s所在段的方向，段内不插值
func (c *CurvilinearCoordinateSystem) Tangent(s float64) (r2.Point, error) {
	i, _, err := c.locate(s)
	if err != nil {
		return r2.Point{}, err
	}
	return c.path[i+1].Sub(c.path[i]).Normalize(), nil
}

// TangentOrientation 弧长s处参考线的朝向角
func (c *CurvilinearCoordinateSystem) TangentOrientation(s float64) (float64, error) {
	t, err := c.Tangent(s)
	if err != nil {
		return 0, err
	}
	return math.Atan2(t.Y, t.X), nil
}

// locate 弧长s所在的段序号与段内比例
func (c *CurvilinearCoordinateSystem) locate(s float64) (int, float64, error) {
	sMin, sMax := c.SRange()
	if s < sMin-lambdaTolerance || s > sMax+lambdaTolerance {
		return 0, 0, errors.Wrapf(ErrOutOfProjectionDomain, "longitudinal coordinate %v outside [%v, %v]", s, sMin, sMax)
	}
	i := sort.SearchFloat64s(c.s, s) - 1
	i = min(max(i, 0), len(c.s)-2)
	ds := c.s[i+1] - c.s[i]
	lambda := min(max((s-c.s[i])/ds, 0), 1)
	return i, lambda, nil
}

// ConvertPolygonToCurvilinear 将多边形的每个顶点转为曲线坐标
// 返回：按输入顺序排列的(s, d)；任一顶点位于投影域外时返回该错误
func (c *CurvilinearCoordinateSystem) ConvertPolygonToCurvilinear(points []r2.Point) ([][2]float64, error) {
	out := make([][2]float64, 0, len(points))
	for _, p := range points {
		s, d, err := c.ConvertToCurvilinearCoords(p.X, p.Y)
		if err != nil {
			return nil, err
		}
		out = append(out, [2]float64{s, d})
	}
	return out, nil
}

func (c *CurvilinearCoordinateSystem) String() string {
	return fmt.Sprintf("CCS(%d vertices, %.2fm)", len(c.referencePath), c.Length())
}
