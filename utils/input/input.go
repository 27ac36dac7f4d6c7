package input

import (
	"context"
	"os"

	"git.fiblab.net/general/common/v2/mongoutil"
	"git.fiblab.net/general/common/v2/parallel"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/intersection"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v2"
)

var (
	ErrNoInput               = errors.New("neither input file nor lanelet collection specified")
	ErrUnknownLanelet        = errors.New("unknown lanelet referenced by intersection")
	ErrDuplicateIntersection = errors.New("duplicated intersection id")
)

// Load 加载场景
// 功能：根据配置从YAML文件或MongoDB集合读取车道片与路口描述
// 参数：ctx-上下文，cfg-输入配置
// 返回：场景描述
// 说明：File非空时优先读取文件
func Load(ctx context.Context, cfg config.Input) (*Scenario, error) {
	if cfg.File != "" {
		return ReadFile(cfg.File)
	}
	if cfg.URI == "" || cfg.Lanelets.Col == "" {
		return nil, ErrNoInput
	}
	client := mongoutil.NewClient(cfg.URI)
	defer client.Disconnect(context.Background())

	s := &Scenario{}
	var err error
	if s.Lanelets, err = download[LaneletDoc](ctx, client, cfg.Lanelets); err != nil {
		return nil, err
	}
	if cfg.Intersections != nil {
		if s.Intersections, err = download[IntersectionDoc](ctx, client, *cfg.Intersections); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ReadFile 从YAML文件读取场景
func ReadFile(path string) (*Scenario, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}
	var s Scenario
	if err := yaml.UnmarshalStrict(file, &s); err != nil {
		return nil, errors.Wrapf(err, "parse scenario %s", path)
	}
	log.Infof("read %d lanelets and %d intersections from %s", len(s.Lanelets), len(s.Intersections), path)
	return &s, nil
}

// download 读取集合中的全部文档
func download[T any](ctx context.Context, client *mongo.Client, p config.InputPath) ([]T, error) {
	log.Infof("start fetching from %s.%s", p.GetDb(), p.GetColl())
	coll := client.Database(p.GetDb()).Collection(p.GetColl())
	cur, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, errors.Wrapf(err, "find in %s.%s", p.GetDb(), p.GetColl())
	}
	docs := make([]T, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrapf(err, "decode %s.%s", p.GetDb(), p.GetColl())
	}
	log.Infof("finish fetching %d documents from %s.%s", len(docs), p.GetDb(), p.GetColl())
	return docs, nil
}

func toPoints(docs []PointDoc) []r2.Point {
	return lo.Map(docs, func(p PointDoc, _ int) r2.Point { return r2.Point{X: p.X, Y: p.Y} })
}

// parseNames 将名称列表转换为枚举，未知名称记录警告后忽略
func parseNames[T any](id int32, names []string, parse func(string) (T, error)) []T {
	out := make([]T, 0, len(names))
	for _, name := range names {
		v, err := parse(name)
		if err != nil {
			log.Warnf("lanelet %d: %v", id, err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// BuildLanelet 由输入描述构造车道片
func (d *LaneletDoc) BuildLanelet() (*lanelet.Lanelet, error) {
	l, err := lanelet.NewWithTopology(
		d.ID,
		toPoints(d.LeftBorder), toPoints(d.RightBorder),
		parseNames(d.ID, d.Types, lanelet.LaneletTypeFromString),
		parseNames(d.ID, d.UsersOneWay, lanelet.UserTypeFromString),
		parseNames(d.ID, d.UsersBidirectional, lanelet.UserTypeFromString),
		d.Predecessors, d.Successors,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "lanelet %d", d.ID)
	}
	if d.AdjacentLeft != nil {
		l.SetLeftAdjacent(d.AdjacentLeft.ID, d.AdjacentLeft.OppositeDir)
	}
	if d.AdjacentRight != nil {
		l.SetRightAdjacent(d.AdjacentRight.ID, d.AdjacentRight.OppositeDir)
	}
	l.SetLineMarkings(lanelet.LineMarkingFromString(d.LineMarkingLeft), lanelet.LineMarkingFromString(d.LineMarkingRight))
	if d.StopLine != nil {
		l.SetStopLine(&lanelet.StopLine{
			Points:      toPoints(d.StopLine.Points),
			LineMarking: lanelet.LineMarkingFromString(d.StopLine.LineMarking),
		})
	}
	for _, id := range d.TrafficLights {
		l.AddTrafficLight(id)
	}
	for _, sign := range d.TrafficSigns {
		l.AddTrafficSign(lanelet.TrafficSign{ID: sign.ID, Type: sign.Type})
	}
	return l, nil
}

// Build 构造车道片与路口
// 功能：并行构造全部车道片，再按ID解析路口中引用的车道片
// 返回：按输入顺序排列的车道片与路口；任一车道片无效或路口引用了不存在的车道片时返回错误
func (s *Scenario) Build() ([]*lanelet.Lanelet, []*intersection.Intersection, error) {
	type built struct {
		l   *lanelet.Lanelet
		err error
	}
	results := parallel.GoMap(s.Lanelets, func(d LaneletDoc) built {
		l, err := d.BuildLanelet()
		return built{l, err}
	})
	lanelets := make([]*lanelet.Lanelet, 0, len(results))
	byID := make(map[int32]*lanelet.Lanelet, len(results))
	for _, r := range results {
		if r.err != nil {
			return nil, nil, r.err
		}
		lanelets = append(lanelets, r.l)
		byID[r.l.ID()] = r.l
	}

	resolve := func(interID int32, ids []int32) ([]*lanelet.Lanelet, error) {
		out, missing := utils.FindByIDs(byID, ids)
		if len(missing) > 0 {
			return nil, errors.Wrapf(ErrUnknownLanelet, "intersection %d references lanelets %v", interID, missing)
		}
		return out, nil
	}
	groupID := func(id *int32) int32 {
		if id == nil {
			return -1
		}
		return *id
	}

	intersections := make([]*intersection.Intersection, 0, len(s.Intersections))
	seen := make(map[int32]struct{}, len(s.Intersections))
	for _, doc := range s.Intersections {
		if _, ok := seen[doc.ID]; ok {
			return nil, nil, errors.Wrapf(ErrDuplicateIntersection, "%d", doc.ID)
		}
		seen[doc.ID] = struct{}{}

		incomings := make([]*intersection.IncomingGroup, 0, len(doc.Incomings))
		for _, g := range doc.Incomings {
			lists := make([][]*lanelet.Lanelet, 0, 5)
			for _, ids := range [][]int32{g.Incoming, g.Straight, g.Left, g.Right, g.Oncoming} {
				ls, err := resolve(doc.ID, ids)
				if err != nil {
					return nil, nil, err
				}
				lists = append(lists, ls)
			}
			incomings = append(incomings, intersection.NewIncomingGroup(g.ID, lists[0], lists[1], lists[2], lists[3], lists[4]))
		}
		outgoings := make([]*intersection.OutgoingGroup, 0, len(doc.Outgoings))
		for _, g := range doc.Outgoings {
			ls, err := resolve(doc.ID, g.Outgoing)
			if err != nil {
				return nil, nil, err
			}
			outgoings = append(outgoings, &intersection.OutgoingGroup{ID: g.ID, Outgoing: ls, IncomingGroupID: groupID(g.IncomingGroupID)})
		}
		crossings := make([]*intersection.CrossingGroup, 0, len(doc.Crossings))
		for _, g := range doc.Crossings {
			ls, err := resolve(doc.ID, g.Crossing)
			if err != nil {
				return nil, nil, err
			}
			crossings = append(crossings, &intersection.CrossingGroup{ID: g.ID, Crossing: ls, IncomingGroupID: groupID(g.IncomingGroupID)})
		}
		intersections = append(intersections, intersection.New(doc.ID, incomings, outgoings, crossings))
	}
	log.Infof("built %d lanelets and %d intersections", len(lanelets), len(intersections))
	return lanelets, intersections, nil
}
