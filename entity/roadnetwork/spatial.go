package roadnetwork

import (
	"github.com/dhconnelly/rtreego"
	"github.com/golang/geo/r2"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
)

const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
	// rtreego要求矩形各边长度为正，退化的包围盒按该值补齐
	minRectLength = 1e-6
)

// spatialEntry R树中的车道片条目
type spatialEntry struct {
	lanelet *lanelet.Lanelet
	bounds  rtreego.Rect
}

func (e *spatialEntry) Bounds() rtreego.Rect { return e.bounds }

// spatialIndex 车道片包围盒的R树索引
type spatialIndex struct {
	tree *rtreego.Rtree
}

func newSpatialIndex(lanelets []*lanelet.Lanelet) (*spatialIndex, error) {
	tree := rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren)
	for _, l := range lanelets {
		rect, err := toRect(l.BoundingBox())
		if err != nil {
			return nil, err
		}
		tree.Insert(&spatialEntry{lanelet: l, bounds: rect})
	}
	return &spatialIndex{tree: tree}, nil
}

// search 与给定包围盒相交的全部车道片
func (s *spatialIndex) search(box r2.Rect) []*lanelet.Lanelet {
	// 查询框向外扩展，使恰好落在包围盒边界上的点也能命中
	rect, err := toRect(box.ExpandedByMargin(minRectLength))
	if err != nil {
		log.Warnf("invalid query box %v: %v", box, err)
		return nil
	}
	results := s.tree.SearchIntersect(rect)
	out := make([]*lanelet.Lanelet, 0, len(results))
	for _, item := range results {
		out = append(out, item.(*spatialEntry).lanelet)
	}
	return out
}

func toRect(box r2.Rect) (rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{box.X.Lo, box.Y.Lo},
		[]float64{max(box.X.Length(), minRectLength), max(box.Y.Length(), minRectLength)},
	)
}
