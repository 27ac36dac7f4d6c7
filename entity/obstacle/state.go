package obstacle

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

var (
	ErrTimeStepNotFound = errors.New("time step not found")
	ErrNoReferenceLane  = errors.New("no reference lane found")
)

// Role 障碍物角色
type Role int

const (
	RoleDynamic Role = iota
	RoleStatic
)

// State 障碍物在某一时间步的状态
type State struct {
	TimeStep     int
	X, Y         float64
	Orientation  float64 // 全局朝向（弧度）
	Velocity     float64
	Acceleration float64
}

func (s *State) Position() r2.Point { return r2.Point{X: s.X, Y: s.Y} }

func (s *State) String() string {
	return fmt.Sprintf("State{t=%d, (%.2f, %.2f), theta=%.3f}", s.TimeStep, s.X, s.Y, s.Orientation)
}

// SensorParameters 传感器参数
type SensorParameters struct {
	FieldOfViewFront float64  // 前方视距（米）
	FieldOfViewRear  float64  // 后方视距（米）
	FieldOfView      orb.Ring // 视野多边形，可为空
}

// DefaultSensorParameters 前后视距均为250米
func DefaultSensorParameters() SensorParameters {
	return SensorParameters{FieldOfViewFront: 250, FieldOfViewRear: 250}
}

// Parameters 障碍物在路网上定位时使用的参数
type Parameters struct {
	NumIntersectionsPerDirection int     // 构建车道时每个方向可穿过的路口数
	RelevantTimeInterval         int     // 判定行驶方向车道片时前后参考的时间步数
	DrivingDirectionTolerance    float64 // 与车道片朝向之差小于该值时视为顺行（弧度）
}

// DefaultParameters 默认参数
func DefaultParameters() Parameters {
	return Parameters{
		NumIntersectionsPerDirection: 3,
		RelevantTimeInterval:         10,
		DrivingDirectionTolerance:    0.785,
	}
}

// CurvilinearPosition 曲线坐标系下的位置
type CurvilinearPosition struct {
	S           float64 // 纵向弧长
	D           float64 // 横向偏移，左正
	Orientation float64 // 相对参考线切向的朝向
}
