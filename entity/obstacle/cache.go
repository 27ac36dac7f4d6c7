package obstacle

import (
	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/ccs"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
)

// Cache 障碍物在各时间步的路网查询缓存
// 说明：条目只会被整体移除，不会原地修改；移除后下次访问时重新计算
type Cache struct {
	shapes                        map[int]orb.Ring
	occupiedLanelets              map[int][]*lanelet.Lanelet
	occupiedLaneletsState         map[int][]*lanelet.Lanelet
	occupiedLaneletsFront         map[int][]*lanelet.Lanelet
	occupiedLaneletsBack          map[int][]*lanelet.Lanelet
	occupiedLaneletsDrivingDir    map[int][]*lanelet.Lanelet
	occupiedLaneletsNotDrivingDir map[int][]*lanelet.Lanelet
	occupiedLaneletsRoad          map[int][]*lanelet.Lanelet
	occupiedLanes                 map[int][]*lane.Lane
	occupiedLanesDrivingDir       map[int][]*lane.Lane
	referenceLane                 map[int]*lane.Lane
	frontXY                       map[int]r2.Point
	backXY                        map[int]r2.Point
	leftLat                       map[int]float64
	rightLat                      map[int]float64
	lateralDistance               map[int]map[int32]float64
	convertedPositions            map[int]map[*ccs.CurvilinearCoordinateSystem]CurvilinearPosition
}

// NewCache 创建空缓存
func NewCache() *Cache {
	c := &Cache{}
	c.Clear()
	return c
}

// RemoveTimeStep 移除某一时间步的全部缓存
// 参数：timeStep-时间步，clearReferenceLane-是否同时移除参考车道
// 说明：障碍物位置不变时参考车道仍然有效，可以保留
func (c *Cache) RemoveTimeStep(timeStep int, clearReferenceLane bool) {
	delete(c.shapes, timeStep)
	delete(c.occupiedLanelets, timeStep)
	delete(c.occupiedLaneletsState, timeStep)
	delete(c.occupiedLaneletsFront, timeStep)
	delete(c.occupiedLaneletsBack, timeStep)
	delete(c.occupiedLaneletsDrivingDir, timeStep)
	delete(c.occupiedLaneletsNotDrivingDir, timeStep)
	delete(c.occupiedLaneletsRoad, timeStep)
	delete(c.occupiedLanes, timeStep)
	delete(c.occupiedLanesDrivingDir, timeStep)
	if clearReferenceLane {
		delete(c.referenceLane, timeStep)
	}
	delete(c.frontXY, timeStep)
	delete(c.backXY, timeStep)
	delete(c.leftLat, timeStep)
	delete(c.rightLat, timeStep)
	delete(c.lateralDistance, timeStep)
	delete(c.convertedPositions, timeStep)
}

// Clear 清空全部缓存
func (c *Cache) Clear() {
	c.shapes = make(map[int]orb.Ring)
	c.occupiedLanelets = make(map[int][]*lanelet.Lanelet)
	c.occupiedLaneletsState = make(map[int][]*lanelet.Lanelet)
	c.occupiedLaneletsFront = make(map[int][]*lanelet.Lanelet)
	c.occupiedLaneletsBack = make(map[int][]*lanelet.Lanelet)
	c.occupiedLaneletsDrivingDir = make(map[int][]*lanelet.Lanelet)
	c.occupiedLaneletsNotDrivingDir = make(map[int][]*lanelet.Lanelet)
	c.occupiedLaneletsRoad = make(map[int][]*lanelet.Lanelet)
	c.occupiedLanes = make(map[int][]*lane.Lane)
	c.occupiedLanesDrivingDir = make(map[int][]*lane.Lane)
	c.referenceLane = make(map[int]*lane.Lane)
	c.frontXY = make(map[int]r2.Point)
	c.backXY = make(map[int]r2.Point)
	c.leftLat = make(map[int]float64)
	c.rightLat = make(map[int]float64)
	c.lateralDistance = make(map[int]map[int32]float64)
	c.convertedPositions = make(map[int]map[*ccs.CurvilinearCoordinateSystem]CurvilinearPosition)
}

// memo 查缓存，未命中时计算并写入
func memo[V any](m map[int]V, timeStep int, compute func() (V, error)) (V, error) {
	if v, ok := m[timeStep]; ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	m[timeStep] = v
	return v, nil
}
