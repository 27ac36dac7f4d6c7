package config

import (
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/ccs"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/obstacle"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/roadnetwork"
)

// RuntimeConfig 运行时配置
// 功能：存储补全默认值后的配置，并投影为各模块使用的参数结构
type RuntimeConfig struct {
	All Config      // 全部配置
	R   RoadNetwork // 补全默认值后的路网参数
	S   Sensor      // 补全默认值后的传感器参数
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：对未指定的参数填入默认值
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{All: config, R: config.RoadNetwork, S: config.Sensor}

	rnDefault := roadnetwork.DefaultParameters()
	obDefault := obstacle.DefaultParameters()
	setDefault(&rc.R.NumIntersectionsPerDirection, rnDefault.NumIntersectionsPerDirection)
	setDefault(&rc.R.Eps2, rnDefault.Lane.CCS.Eps2)
	setDefault(&rc.R.NumAdditionalSegmentsCCS, rnDefault.Lane.CCS.NumAdditionalSegments)
	setDefault(&rc.R.ProjectionDomainLimit, rnDefault.Lane.CCS.ProjectionDomainLimit)
	setDefault(&rc.R.CornerCuttingRefinements, rnDefault.Lane.CornerCuttingRefinements)
	setDefault(&rc.R.ResampleStep, rnDefault.Lane.ResampleStep)
	setDefault(&rc.R.ParallelThreshold, rnDefault.ParallelThreshold)
	setDefault(&rc.R.RelevantTimeInterval, obDefault.RelevantTimeInterval)
	setDefault(&rc.R.DrivingDirectionTolerance, obDefault.DrivingDirectionTolerance)

	sensorDefault := obstacle.DefaultSensorParameters()
	setDefault(&rc.S.FovFront, sensorDefault.FieldOfViewFront)
	setDefault(&rc.S.FovRear, sensorDefault.FieldOfViewRear)
	return rc
}

func setDefault[T int | float64](v *T, def T) {
	if *v == 0 {
		*v = def
	}
}

// CCSParameters 曲线坐标系参数
func (rc *RuntimeConfig) CCSParameters() ccs.Parameters {
	return ccs.Parameters{
		Eps2:                  rc.R.Eps2,
		NumAdditionalSegments: rc.R.NumAdditionalSegmentsCCS,
		ProjectionDomainLimit: rc.R.ProjectionDomainLimit,
	}
}

// RoadNetworkParameters 路网参数
func (rc *RuntimeConfig) RoadNetworkParameters() roadnetwork.Parameters {
	return roadnetwork.Parameters{
		NumIntersectionsPerDirection: rc.R.NumIntersectionsPerDirection,
		ParallelThreshold:            rc.R.ParallelThreshold,
		Lane: lane.Parameters{
			CornerCuttingRefinements: rc.R.CornerCuttingRefinements,
			ResampleStep:             rc.R.ResampleStep,
			CCS:                      rc.CCSParameters(),
		},
	}
}

// ObstacleParameters 障碍物定位参数
func (rc *RuntimeConfig) ObstacleParameters() obstacle.Parameters {
	return obstacle.Parameters{
		NumIntersectionsPerDirection: rc.R.NumIntersectionsPerDirection,
		RelevantTimeInterval:         rc.R.RelevantTimeInterval,
		DrivingDirectionTolerance:    rc.R.DrivingDirectionTolerance,
	}
}

// SensorParameters 传感器参数
func (rc *RuntimeConfig) SensorParameters() obstacle.SensorParameters {
	return obstacle.SensorParameters{FieldOfViewFront: rc.S.FovFront, FieldOfViewRear: rc.S.FovRear}
}
