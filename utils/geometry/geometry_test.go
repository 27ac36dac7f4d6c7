package geometry_test

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/geometry"
)

func TestSubtractOrientations(t *testing.T) {
	assert.InDelta(t, 0.0, geometry.SubtractOrientations(math.Pi, math.Pi), 1e-12)
	assert.InDelta(t, math.Pi, geometry.SubtractOrientations(math.Pi, 0), 1e-12)
	assert.InDelta(t, math.Pi, geometry.SubtractOrientations(0, math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi/2, geometry.SubtractOrientations(math.Pi, -math.Pi/2), 1e-12)
	assert.InDelta(t, 0.2, geometry.SubtractOrientations(-math.Pi+0.1, math.Pi-0.1), 1e-12)
}

func TestComputeOrientationFromPolyline(t *testing.T) {
	_, err := geometry.ComputeOrientationFromPolyline([]r2.Point{{X: 0, Y: 0}})
	assert.True(t, errors.Is(err, geometry.ErrTooFewPoints))

	orientation, err := geometry.ComputeOrientationFromPolyline([]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}})
	require.NoError(t, err)
	require.Len(t, orientation, 3)
	assert.InDelta(t, 0.0, orientation[0], 1e-12)
	assert.InDelta(t, math.Pi/2, orientation[1], 1e-12)
	assert.InDelta(t, math.Pi/2, orientation[2], 1e-12)
}

func TestComputePathLengthFromPolyline(t *testing.T) {
	lengths := geometry.ComputePathLengthFromPolyline([]r2.Point{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 3, Y: 6}})
	assert.Equal(t, []float64{0, 5, 7}, lengths)
	for i := 1; i < len(lengths); i++ {
		assert.GreaterOrEqual(t, lengths[i], lengths[i-1])
	}
	assert.Empty(t, geometry.ComputePathLengthFromPolyline(nil))
}

func TestInterpolate(t *testing.T) {
	xs := []float64{0, 1, 3}
	ys := []float64{0, 10, 30}
	v, err := geometry.Interpolate(2, xs, ys)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, v, 1e-12)
	v, err = geometry.Interpolate(-1, xs, ys)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	v, err = geometry.Interpolate(5, xs, ys)
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)

	_, err = geometry.Interpolate(0.5, []float64{0, 1e-9, 1}, []float64{0, 1, 2})
	assert.True(t, errors.Is(err, geometry.ErrDegenerateInterval))
	// 退化区间不包含查询点时同样报错
	_, err = geometry.Interpolate(0.5, []float64{0, 1, 1 + 1e-9, 2}, []float64{0, 1, 2, 3})
	assert.True(t, errors.Is(err, geometry.ErrDegenerateInterval))
	_, err = geometry.Interpolate(-1, []float64{0, 0, 1}, []float64{0, 1, 2})
	assert.True(t, errors.Is(err, geometry.ErrDegenerateInterval))
	_, err = geometry.Interpolate(0.5, []float64{0, 1}, []float64{0})
	assert.True(t, errors.Is(err, geometry.ErrLengthMismatch))
}

func TestAddObjectDimensions(t *testing.T) {
	_, err := geometry.AddObjectDimensions(nil, 4, 2)
	assert.True(t, errors.Is(err, geometry.ErrEmptyInput))

	rect, err := geometry.AddObjectDimensions([]r2.Point{{X: 1, Y: 1}}, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []r2.Point{{X: -1, Y: 2}, {X: 3, Y: 2}, {X: 3, Y: 0}, {X: -1, Y: 0}}, rect)

	// 左后角起顺时针的四个角点
	corners := []r2.Point{{X: -1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: -1}}
	inflated, err := geometry.AddObjectDimensions(corners, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []r2.Point{{X: -2, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: -2}, {X: -2, Y: -2}}, inflated)
	assert.InDelta(t, 16.0, geometry.RingArea(geometry.NewRing(inflated)), 1e-9)

	six := []r2.Point{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	inflated, err = geometry.AddObjectDimensions(six, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []r2.Point{
		{X: -1, Y: 2}, {X: 0, Y: 2}, {X: 3, Y: 2}, {X: 3, Y: -1}, {X: 0, Y: -1}, {X: -1, Y: -1},
	}, inflated)

	hull, err := geometry.AddObjectDimensions([]r2.Point{{X: 0, Y: 0}, {X: 2, Y: 0}}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, hull, 4)
	assert.InDelta(t, 8.0, geometry.RingArea(geometry.NewRing(hull)), 1e-9)
}

func TestAddObjectDimensionsCircle(t *testing.T) {
	octagon := geometry.AddObjectDimensionsCircle(r2.Point{}, 1)
	require.Len(t, octagon, 8)
	assert.InDelta(t, math.Pi/4, math.Atan2(octagon[0].Y, octagon[0].X), 1e-12)
	ring := geometry.NewRing(octagon)
	for _, angle := range []float64{0, 0.3, 1.2, 2.5, 4} {
		assert.True(t, geometry.PointInPolygon(ring, r2.Point{X: math.Cos(angle), Y: math.Sin(angle)}))
	}
}

func TestRotateAndTranslateVertices(t *testing.T) {
	out := geometry.RotateAndTranslateVertices([]r2.Point{{X: 1, Y: 0}}, r2.Point{X: 1, Y: 1}, math.Pi/2)
	assert.InDelta(t, 1.0, out[0].X, 1e-12)
	assert.InDelta(t, 2.0, out[0].Y, 1e-12)
}

func TestComputeDistanceFromPolylines(t *testing.T) {
	d, err := geometry.ComputeDistanceFromPolylines(
		[]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}},
		[]r2.Point{{X: 0, Y: 3}, {X: 1, Y: 4}},
	)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, d)
	_, err = geometry.ComputeDistanceFromPolylines([]r2.Point{{}}, nil)
	assert.True(t, errors.Is(err, geometry.ErrLengthMismatch))
}

func TestConvexHull(t *testing.T) {
	hull := geometry.ConvexHull([]r2.Point{
		{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}, {X: 1, Y: 0},
	})
	assert.ElementsMatch(t, []r2.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}, hull)
}

func TestResampleAndCornerCutting(t *testing.T) {
	line := []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}
	resampled := geometry.Resample(line, 2.5)
	assert.Len(t, resampled, 5)
	assert.Equal(t, line[0], resampled[0])
	assert.Equal(t, line[1], resampled[len(resampled)-1])

	corner := []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}
	smooth := geometry.ChaikinCornerCutting(corner, 2)
	assert.Equal(t, corner[0], smooth[0])
	assert.Equal(t, corner[2], smooth[len(smooth)-1])
	assert.Greater(t, len(smooth), len(corner))
}

func TestPolygonPredicates(t *testing.T) {
	square := geometry.NewRing([]r2.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}})
	assert.True(t, square.Closed())
	assert.Len(t, square, 5)

	inner := geometry.NewRing([]r2.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 2}})
	overlapping := geometry.NewRing([]r2.Point{{X: 3, Y: 3}, {X: 6, Y: 3}, {X: 6, Y: 6}, {X: 3, Y: 6}})
	outside := geometry.NewRing([]r2.Point{{X: 10, Y: 10}, {X: 11, Y: 10}, {X: 11, Y: 11}})

	assert.True(t, geometry.PolygonsIntersect(square, inner))
	assert.True(t, geometry.PolygonsIntersect(inner, square))
	assert.True(t, geometry.PolygonsIntersect(square, overlapping))
	assert.False(t, geometry.PolygonsIntersect(square, outside))

	assert.True(t, geometry.PolygonContains(square, inner))
	assert.False(t, geometry.PolygonContains(square, overlapping))

	bound := geometry.RingBound(square)
	assert.Equal(t, r2.Point{X: 0, Y: 0}, bound.Lo())
	assert.Equal(t, r2.Point{X: 4, Y: 4}, bound.Hi())
}
