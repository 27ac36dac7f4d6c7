package graph

import (
	"slices"
	"sync"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/container"
)

const (
	SuccessorWeight = 1.0 // 后继边权重
	AdjacentWeight  = 4.0 // 同向相邻边权重，使搜索优先选择纵向路径
)

type edge struct {
	to     int32
	weight float64
}

type pathKey struct {
	src, dst          int32
	considerAdjacency bool
}

// LaneletGraph 车道片拓扑图
// 功能：维护仅含后继边与含后继+同向相邻边两种有向图，提供带缓存的最短路查询
// 说明：拓扑在构建后不再变化，因此路径缓存永久有效；查询可在多个goroutine中并发调用
type LaneletGraph struct {
	successorEdges map[int32][]edge
	adjacentEdges  map[int32][]edge

	mtx   sync.Mutex
	paths map[pathKey][]int32
}

// Build 由车道片集合构建拓扑图
// 说明：相邻边仅在同向时加入，并按双向处理；重复边只保留一条
func Build(lanelets []*lanelet.Lanelet) *LaneletGraph {
	g := &LaneletGraph{
		successorEdges: make(map[int32][]edge, len(lanelets)),
		adjacentEdges:  make(map[int32][]edge, len(lanelets)),
		paths:          make(map[pathKey][]int32),
	}
	addEdge := func(edges map[int32][]edge, from, to int32, weight float64) {
		if lo.ContainsBy(edges[from], func(e edge) bool { return e.to == to }) {
			return
		}
		edges[from] = append(edges[from], edge{to: to, weight: weight})
	}
	for _, l := range lanelets {
		id := l.ID()
		for _, dir := range []lanelet.Direction{lanelet.DirectionLeft, lanelet.DirectionRight} {
			if adj, ok := l.Adjacent(dir); ok && !adj.OppositeDir {
				addEdge(g.adjacentEdges, id, adj.ID, AdjacentWeight)
				addEdge(g.adjacentEdges, adj.ID, id, AdjacentWeight)
			}
		}
		for _, suc := range l.Successors() {
			addEdge(g.successorEdges, id, suc, SuccessorWeight)
			addEdge(g.adjacentEdges, id, suc, SuccessorWeight)
		}
	}
	log.Debugf("lanelet graph built over %d lanelets", len(lanelets))
	return g
}

// FindPaths 两个车道片之间的最短路径
// 参数：src-起点ID，dst-终点ID，considerAdjacency-是否允许经由同向相邻车道片
// 返回：起点到终点的车道片ID序列；src==dst时为[src]；不可达时为空
func (g *LaneletGraph) FindPaths(src, dst int32, considerAdjacency bool) []int32 {
	if src == dst {
		return []int32{src}
	}
	key := pathKey{src: src, dst: dst, considerAdjacency: considerAdjacency}
	g.mtx.Lock()
	if path, ok := g.paths[key]; ok {
		g.mtx.Unlock()
		return slices.Clone(path)
	}
	g.mtx.Unlock()

	edges := g.successorEdges
	if considerAdjacency {
		edges = g.adjacentEdges
	}
	path := dijkstra(edges, src, dst)

	g.mtx.Lock()
	g.paths[key] = path
	g.mtx.Unlock()
	return slices.Clone(path)
}

// dijkstra 最短路搜索
// 算法说明：优先队列中相同代价的节点按入队顺序出队，邻接边按加入顺序遍历，结果确定
func dijkstra(edges map[int32][]edge, src, dst int32) []int32 {
	dist := map[int32]float64{src: 0}
	prev := make(map[int32]int32)
	done := make(map[int32]struct{})
	pq := container.NewPriorityQueue[int32]()
	pq.HeapPush(src, 0)
	for pq.Len() > 0 {
		cur, d := pq.HeapPop()
		if _, ok := done[cur]; ok {
			continue
		}
		done[cur] = struct{}{}
		if cur == dst {
			break
		}
		for _, e := range edges[cur] {
			nd := d + e.weight
			old, ok := dist[e.to]
			if !ok {
				old = mathutil.INF
			}
			if nd < old {
				dist[e.to] = nd
				prev[e.to] = cur
				pq.HeapPush(e.to, nd)
			}
		}
	}
	if _, ok := done[dst]; !ok {
		return []int32{}
	}
	path := []int32{dst}
	for cur := dst; cur != src; {
		cur = prev[cur]
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path
}

// Successors 后继图中的直接后继ID
func (g *LaneletGraph) Successors(id int32) []int32 {
	return lo.Map(g.successorEdges[id], func(e edge, _ int) int32 { return e.to })
}

// Reachable 从起点出发可达的全部车道片ID（含起点），按ID排序
func (g *LaneletGraph) Reachable(src int32, considerAdjacency bool) []int32 {
	edges := g.successorEdges
	if considerAdjacency {
		edges = g.adjacentEdges
	}
	visited := map[int32]struct{}{src: {}}
	queue := []int32{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range edges[cur] {
			if _, ok := visited[e.to]; !ok {
				visited[e.to] = struct{}{}
				queue = append(queue, e.to)
			}
		}
	}
	ids := lo.Keys(visited)
	slices.Sort(ids)
	return ids
}
