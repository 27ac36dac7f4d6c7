package lanelet

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var (
	ErrBorderMismatch  = errors.New("left and right borders differ in length")
	ErrUnknownTypeName = errors.New("unknown type name")
)

// LaneletType 车道片类型标签
type LaneletType int

const (
	TypeUnknown LaneletType = iota
	TypeInterstate
	TypeUrban
	TypeCrosswalk
	TypeBusStop
	TypeCountry
	TypeHighway
	TypeDriveWay
	TypeMainCarriageWay
	TypeAccessRamp
	TypeExitRamp
	TypeShoulder
	TypeBikeLane
	TypeSidewalk
	TypeBusLane
	TypeIntersection
	TypeIncoming
	TypeLeft
	TypeStraight
	TypeRight
	TypeIntersectionLeftOutgoing
	TypeIntersectionStraightOutgoing
	TypeIntersectionRightOutgoing
	TypeBorder
	TypeParking
	TypeRestricted
	TypeRestrictedArea
)

var laneletTypeNames = map[LaneletType]string{
	TypeUnknown:                      "unknown",
	TypeInterstate:                   "interstate",
	TypeUrban:                        "urban",
	TypeCrosswalk:                    "crosswalk",
	TypeBusStop:                      "busStop",
	TypeCountry:                      "country",
	TypeHighway:                      "highway",
	TypeDriveWay:                     "driveWay",
	TypeMainCarriageWay:              "mainCarriageWay",
	TypeAccessRamp:                   "accessRamp",
	TypeExitRamp:                     "exitRamp",
	TypeShoulder:                     "shoulder",
	TypeBikeLane:                     "bicycleLane",
	TypeSidewalk:                     "sidewalk",
	TypeBusLane:                      "busLane",
	TypeIntersection:                 "intersection",
	TypeIncoming:                     "incoming",
	TypeLeft:                         "left",
	TypeStraight:                     "straight",
	TypeRight:                        "right",
	TypeIntersectionLeftOutgoing:     "intersectionLeftOutgoing",
	TypeIntersectionStraightOutgoing: "intersectionStraightOutgoing",
	TypeIntersectionRightOutgoing:    "intersectionRightOutgoing",
	TypeBorder:                       "border",
	TypeParking:                      "parking",
	TypeRestricted:                   "restricted",
	TypeRestrictedArea:               "restrictedArea",
}

// 以大写且去掉下划线的名称为键
var laneletTypesByKey = func() map[string]LaneletType {
	m := lo.MapEntries(laneletTypeNames, func(t LaneletType, name string) (string, LaneletType) {
		return normalizeName(name), t
	})
	m["BIKELANE"] = TypeBikeLane
	return m
}()

func normalizeName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "_", ""))
}

func (t LaneletType) String() string {
	if name, ok := laneletTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// LaneletTypeFromString 字符串转车道片类型
// 功能：忽略大小写与下划线匹配类型名
// 返回：匹配的类型；无法匹配时返回ErrUnknownTypeName
func LaneletTypeFromString(name string) (LaneletType, error) {
	if t, ok := laneletTypesByKey[normalizeName(name)]; ok {
		return t, nil
	}
	return TypeUnknown, errors.Wrapf(ErrUnknownTypeName, "lanelet type %q", name)
}

// LineMarking 车道线类型
type LineMarking int

const (
	LineMarkingUnknown LineMarking = iota
	LineMarkingSolid
	LineMarkingDashed
	LineMarkingSolidSolid
	LineMarkingDashedDashed
	LineMarkingSolidDashed
	LineMarkingDashedSolid
	LineMarkingCurb
	LineMarkingLoweredCurb
	LineMarkingBroadDashed
	LineMarkingBroadSolid
	LineMarkingNoMarking
)

var lineMarkingNames = map[LineMarking]string{
	LineMarkingUnknown:      "unknown",
	LineMarkingSolid:        "solid",
	LineMarkingDashed:       "dashed",
	LineMarkingSolidSolid:   "solid_solid",
	LineMarkingDashedDashed: "dashed_dashed",
	LineMarkingSolidDashed:  "solid_dashed",
	LineMarkingDashedSolid:  "dashed_solid",
	LineMarkingCurb:         "curb",
	LineMarkingLoweredCurb:  "lowered_curb",
	LineMarkingBroadDashed:  "broad_dashed",
	LineMarkingBroadSolid:   "broad_solid",
	LineMarkingNoMarking:    "no_marking",
}

var lineMarkingsByName = lo.Invert(lineMarkingNames)

func (m LineMarking) String() string {
	if name, ok := lineMarkingNames[m]; ok {
		return name
	}
	return "unknown"
}

// LineMarkingFromString 字符串转车道线类型，未知名称返回LineMarkingUnknown
func LineMarkingFromString(name string) LineMarking {
	if m, ok := lineMarkingsByName[strings.ToLower(name)]; ok {
		return m
	}
	return LineMarkingUnknown
}

// LineMarkingOptionsFromString 字符串转一组可接受的车道线
// 说明："solid"/"dashed"/"broad"表示一族线型，其它名称只匹配自身
func LineMarkingOptionsFromString(name string) []LineMarking {
	switch strings.ToLower(name) {
	case "solid":
		return []LineMarking{LineMarkingSolid, LineMarkingSolidSolid, LineMarkingSolidDashed, LineMarkingBroadSolid}
	case "dashed":
		return []LineMarking{LineMarkingDashed, LineMarkingDashedDashed, LineMarkingDashedSolid, LineMarkingBroadDashed}
	case "broad":
		return []LineMarking{LineMarkingBroadSolid, LineMarkingBroadDashed}
	}
	return []LineMarking{LineMarkingFromString(name)}
}

// UserType 道路使用者类型
type UserType int

const (
	UserUnknown UserType = iota
	UserVehicle
	UserCar
	UserTruck
	UserBus
	UserPriorityVehicle
	UserMotorcycle
	UserBicycle
	UserPedestrian
	UserTrain
	UserTaxi
)

var userTypeNames = map[UserType]string{
	UserUnknown:         "unknown",
	UserVehicle:         "vehicle",
	UserCar:             "car",
	UserTruck:           "truck",
	UserBus:             "bus",
	UserPriorityVehicle: "priorityVehicle",
	UserMotorcycle:      "motorcycle",
	UserBicycle:         "bicycle",
	UserPedestrian:      "pedestrian",
	UserTrain:           "train",
	UserTaxi:            "taxi",
}

var userTypesByKey = lo.MapEntries(userTypeNames, func(t UserType, name string) (string, UserType) {
	return normalizeName(name), t
})

func (u UserType) String() string {
	if name, ok := userTypeNames[u]; ok {
		return name
	}
	return "unknown"
}

// UserTypeFromString 字符串转道路使用者类型
func UserTypeFromString(name string) (UserType, error) {
	if u, ok := userTypesByKey[normalizeName(name)]; ok {
		return u, nil
	}
	return UserUnknown, errors.Wrapf(ErrUnknownTypeName, "road user %q", name)
}

// Direction 左右方向
type Direction int

const (
	DirectionLeft Direction = iota
	DirectionRight
)

func (d Direction) String() string {
	if d == DirectionLeft {
		return "left"
	}
	return "right"
}

// MatchDirection 字符串转方向
func MatchDirection(name string) (Direction, error) {
	switch strings.ToLower(name) {
	case "left":
		return DirectionLeft, nil
	case "right":
		return DirectionRight, nil
	}
	return DirectionLeft, errors.Wrapf(ErrUnknownTypeName, "direction %q", name)
}

// ContainmentType 形状与车道片的重叠判定方式
type ContainmentType int

const (
	PartiallyContained ContainmentType = iota
	FullyContained
)

// Adjacency 相邻关系
type Adjacency struct {
	ID          int32 // 相邻车道片ID
	OppositeDir bool  // 是否为反向车道
}
