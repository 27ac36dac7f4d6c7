// 随机数引擎，包装了golang.org/x/exp/rand，提供几何采样等常用随机方法
package randengine

import (
	"flag"
	"sync"

	"github.com/golang/geo/r2"
	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供可复现的随机数与随机点生成
// 说明：PointsInRect可在多个goroutine间共享
type Engine struct {
	*rand.Rand            // 底层随机数生成器
	mtx        sync.Mutex // 互斥锁，用于线程安全操作
}

// New 创建随机数引擎
// 参数：seed-随机数种子（会叠加rand.seed_offset）
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// Uniform 在[lo, hi)内均匀采样（非线程安全）
func (e *Engine) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*e.Float64()
}

// PointInRect 在矩形内均匀采样一个点（非线程安全）
func (e *Engine) PointInRect(rect r2.Rect) r2.Point {
	return r2.Point{
		X: e.Uniform(rect.X.Lo, rect.X.Hi),
		Y: e.Uniform(rect.Y.Lo, rect.Y.Hi),
	}
}

// PointsInRect 在矩形内采样n个点（线程安全）
func (e *Engine) PointsInRect(rect r2.Rect, n int) []r2.Point {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	out := make([]r2.Point, n)
	for i := range out {
		out[i] = e.PointInRect(rect)
	}
	return out
}
