package input

// PointDoc 二维点
type PointDoc struct {
	X float64 `yaml:"x" bson:"x"`
	Y float64 `yaml:"y" bson:"y"`
}

// AdjacencyDoc 相邻关系
type AdjacencyDoc struct {
	ID          int32 `yaml:"id" bson:"id"`
	OppositeDir bool  `yaml:"opposite_dir,omitempty" bson:"opposite_dir,omitempty"` // 是否为反向车道
}

// StopLineDoc 停止线
type StopLineDoc struct {
	Points      []PointDoc `yaml:"points" bson:"points"`
	LineMarking string     `yaml:"line_marking,omitempty" bson:"line_marking,omitempty"`
}

// TrafficSignDoc 交通标志
type TrafficSignDoc struct {
	ID   int32  `yaml:"id" bson:"id"`
	Type string `yaml:"type" bson:"type"`
}

// LaneletDoc 车道片的输入描述
// 说明：类型、使用者与线型均使用字符串名称，未知名称在构建时忽略并记录警告
type LaneletDoc struct {
	ID                 int32            `yaml:"id" bson:"id"`
	LeftBorder         []PointDoc       `yaml:"left_border" bson:"left_border"`
	RightBorder        []PointDoc       `yaml:"right_border" bson:"right_border"`
	Predecessors       []int32          `yaml:"predecessors,omitempty" bson:"predecessors,omitempty"`
	Successors         []int32          `yaml:"successors,omitempty" bson:"successors,omitempty"`
	AdjacentLeft       *AdjacencyDoc    `yaml:"adjacent_left,omitempty" bson:"adjacent_left,omitempty"`
	AdjacentRight      *AdjacencyDoc    `yaml:"adjacent_right,omitempty" bson:"adjacent_right,omitempty"`
	Types              []string         `yaml:"types,omitempty" bson:"types,omitempty"`
	UsersOneWay        []string         `yaml:"users_one_way,omitempty" bson:"users_one_way,omitempty"`
	UsersBidirectional []string         `yaml:"users_bidirectional,omitempty" bson:"users_bidirectional,omitempty"`
	LineMarkingLeft    string           `yaml:"line_marking_left,omitempty" bson:"line_marking_left,omitempty"`
	LineMarkingRight   string           `yaml:"line_marking_right,omitempty" bson:"line_marking_right,omitempty"`
	StopLine           *StopLineDoc     `yaml:"stop_line,omitempty" bson:"stop_line,omitempty"`
	TrafficLights      []int32          `yaml:"traffic_lights,omitempty" bson:"traffic_lights,omitempty"`
	TrafficSigns       []TrafficSignDoc `yaml:"traffic_signs,omitempty" bson:"traffic_signs,omitempty"`
}

// IncomingGroupDoc 进口道组
type IncomingGroupDoc struct {
	ID       int32   `yaml:"id" bson:"id"`
	Incoming []int32 `yaml:"incoming" bson:"incoming"`
	Straight []int32 `yaml:"straight,omitempty" bson:"straight,omitempty"`
	Left     []int32 `yaml:"left,omitempty" bson:"left,omitempty"`
	Right    []int32 `yaml:"right,omitempty" bson:"right,omitempty"`
	Oncoming []int32 `yaml:"oncoming,omitempty" bson:"oncoming,omitempty"`
}

// OutgoingGroupDoc 出口道组
type OutgoingGroupDoc struct {
	ID              int32   `yaml:"id" bson:"id"`
	Outgoing        []int32 `yaml:"outgoing" bson:"outgoing"`
	IncomingGroupID *int32  `yaml:"incoming_group_id,omitempty" bson:"incoming_group_id,omitempty"` // 为空表示无
}

// CrossingGroupDoc 人行横道组
type CrossingGroupDoc struct {
	ID              int32   `yaml:"id" bson:"id"`
	Crossing        []int32 `yaml:"crossing" bson:"crossing"`
	IncomingGroupID *int32  `yaml:"incoming_group_id,omitempty" bson:"incoming_group_id,omitempty"`
}

// IntersectionDoc 路口的输入描述
type IntersectionDoc struct {
	ID        int32              `yaml:"id" bson:"id"`
	Incomings []IncomingGroupDoc `yaml:"incomings" bson:"incomings"`
	Outgoings []OutgoingGroupDoc `yaml:"outgoings,omitempty" bson:"outgoings,omitempty"`
	Crossings []CrossingGroupDoc `yaml:"crossings,omitempty" bson:"crossings,omitempty"`
}

// Scenario 场景文件的根结构
type Scenario struct {
	Lanelets      []LaneletDoc      `yaml:"lanelets"`
	Intersections []IntersectionDoc `yaml:"intersections,omitempty"`
}
