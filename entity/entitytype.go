package entity

import (
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
)

// entity/roadnetwork/roadnetwork.go的依赖倒置
// 障碍物等路网使用者只依赖该接口
type IRoadNetwork interface {
	lane.PathNetwork

	FindLaneletsByPosition(x, y float64) []*lanelet.Lanelet // 包含给定点的车道片
	FindLanesByContainedLanelet(id int32) []*lane.Lane       // 包含该车道片的全部已缓存车道
}
