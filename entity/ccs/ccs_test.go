package ccs

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/randengine"
)

func straightPath() []r2.Point {
	return []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}}
}

func bentPath() []r2.Point {
	return []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 5}, {X: 25, Y: 15}}
}

func TestNewRejectsDegeneratePath(t *testing.T) {
	_, err := New([]r2.Point{{X: 1, Y: 1}}, DefaultParameters())
	assert.True(t, errors.Is(err, ErrInvalidReferencePath))
	_, err = New([]r2.Point{{X: 1, Y: 1}, {X: 1, Y: 1}}, DefaultParameters())
	assert.True(t, errors.Is(err, ErrInvalidReferencePath))
}

func TestStraightConversion(t *testing.T) {
	c, err := New(straightPath(), DefaultParameters())
	require.NoError(t, err)
	assert.InDelta(t, 20.0, c.Length(), 1e-9)
	sMin, sMax := c.SRange()
	assert.InDelta(t, -2.0, sMin, 1e-9)
	assert.InDelta(t, 22.0, sMax, 1e-9)

	s, d, err := c.ConvertToCurvilinearCoords(5, 2)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, s, 1e-9)
	assert.InDelta(t, 2.0, d, 1e-9)

	s, d, err = c.ConvertToCurvilinearCoords(15, -3)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, s, 1e-9)
	assert.InDelta(t, -3.0, d, 1e-9)

	// 外延区域内仍可投影
	s, _, err = c.ConvertToCurvilinearCoords(-1, 0)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, s, 1e-9)
}

func TestOutsideProjectionDomain(t *testing.T) {
	c, err := New(straightPath(), DefaultParameters())
	require.NoError(t, err)

	assert.False(t, c.CartesianPointInProjectionDomain(-10, 0))
	_, _, err = c.ConvertToCurvilinearCoords(-10, 0)
	assert.True(t, errors.Is(err, ErrOutOfProjectionDomain))

	assert.False(t, c.CartesianPointInProjectionDomain(10, 30))
	_, _, err = c.ConvertToCurvilinearCoords(10, 30)
	assert.True(t, errors.Is(err, ErrOutOfProjectionDomain))

	_, err = c.ConvertToCartesianCoords(50, 0)
	assert.True(t, errors.Is(err, ErrOutOfProjectionDomain))
	assert.True(t, c.CartesianPointInProjectionDomain(10, 3))
}

func TestTangent(t *testing.T) {
	c, err := New(bentPath(), DefaultParameters())
	require.NoError(t, err)
	theta, err := c.TangentOrientation(5)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, theta, 1e-9)
	theta, err = c.TangentOrientation(c.Length() - 1)
	require.NoError(t, err)
	assert.InDelta(t, math.Atan2(10, 5), theta, 1e-9)
}

func TestRoundTrip(t *testing.T) {
	c, err := New(bentPath(), DefaultParameters())
	require.NoError(t, err)
	engine := randengine.New(7)
	bound := r2.RectFromPoints(bentPath()...).ExpandedByMargin(4)
	checked := 0
	for _, p := range engine.PointsInRect(bound, 500) {
		if !c.CartesianPointInProjectionDomain(p.X, p.Y) {
			continue
		}
		s, d, err := c.ConvertToCurvilinearCoords(p.X, p.Y)
		require.NoError(t, err)
		back, err := c.ConvertToCartesianCoords(s, d)
		require.NoError(t, err)
		assert.InDelta(t, p.X, back.X, 1e-6)
		assert.InDelta(t, p.Y, back.Y, 1e-6)
		checked++
	}
	assert.Greater(t, checked, 100)
}

func TestConvertPolygonToCurvilinear(t *testing.T) {
	c, err := New(straightPath(), DefaultParameters())
	require.NoError(t, err)
	converted, err := c.ConvertPolygonToCurvilinear([]r2.Point{{X: 1, Y: 1}, {X: 3, Y: -1}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, converted[0][0], 1e-9)
	assert.InDelta(t, -1.0, converted[1][1], 1e-9)
}
