package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义单类数据的输入路径，支持MongoDB集合与YAML文件两种数据源
type InputPath struct {
	DB   string `yaml:"db,omitempty"`   // 数据库名
	Col  string `yaml:"col,omitempty"`  // 集合名
	File string `yaml:"file,omitempty"` // 文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// Input 指定路网所有输入数据的配置项
// 说明：File非空时从单个YAML文件读取车道片与路口，否则分别从两个MongoDB集合读取
type Input struct {
	URI           string     `yaml:"uri,omitempty"`           // MongoDB连接字符串
	File          string     `yaml:"file,omitempty"`          // 场景YAML文件
	Lanelets      InputPath  `yaml:"lanelets,omitempty"`      // 车道片
	Intersections *InputPath `yaml:"intersections,omitempty"` // 路口，可为空
}

// RoadNetwork 路网与曲线坐标系参数
// 说明：零值字段在NewRuntimeConfig中替换为默认值
type RoadNetwork struct {
	NumIntersectionsPerDirection int     `yaml:"num_intersections_per_direction,omitempty"` // 构建车道时每个方向可穿过的路口数
	Eps2                         float64 `yaml:"eps2,omitempty"`                            // 参考线端点外延的单段长度
	NumAdditionalSegmentsCCS     int     `yaml:"num_additional_segments_ccs,omitempty"`     // 参考线每端外延的段数
	ProjectionDomainLimit        float64 `yaml:"projection_domain_limit,omitempty"`         // 投影域的最大横向距离
	CornerCuttingRefinements     int     `yaml:"corner_cutting_refinements,omitempty"`      // 参考线Chaikin切角迭代次数
	ResampleStep                 float64 `yaml:"resample_step,omitempty"`                   // 参考线重采样步长
	ParallelThreshold            int     `yaml:"parallel_threshold,omitempty"`              // 候选车道片数达到该值时并行做精确相交判断
	RelevantTimeInterval         int     `yaml:"relevant_time_interval,omitempty"`          // 判定行驶方向车道片时前后参考的时间步数
	DrivingDirectionTolerance    float64 `yaml:"driving_direction_tolerance,omitempty"`     // 顺行判定的朝向容差（弧度）
}

// Sensor 障碍物传感器参数
type Sensor struct {
	FovFront float64 `yaml:"fov_front,omitempty"` // 前方视距（米）
	FovRear  float64 `yaml:"fov_rear,omitempty"`  // 后方视距（米）
}

// Config YAML配置文件的根结构
type Config struct {
	Input       Input       `yaml:"input"`                  // 输入
	RoadNetwork RoadNetwork `yaml:"road_network,omitempty"` // 路网参数
	Sensor      Sensor      `yaml:"sensor,omitempty"`       // 传感器参数
}
