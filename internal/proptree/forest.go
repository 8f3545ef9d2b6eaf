package proptree

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/metrics"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

// DefaultCapacity 是默认缓存的属性树数量上限。
const DefaultCapacity = 1024

// Forest 维护 identity -> 属性树 的有界缓存。
//
// 同一 identity 只构建一次，并发的首次请求通过 singleflight 合并；
// 超出容量时淘汰最久未使用的树。
type Forest struct {
	log.Binder

	builder *Builder
	trees   *lru.Cache[string, *Tree]
	group   singleflight.Group

	hits     atomic.Int64
	misses   atomic.Int64
	released atomic.Int64
}

// Stats 是 Forest 的运行统计，Released 包含淘汰、Forget 与 Purge 释放的树。
type Stats struct {
	Hits     int64
	Misses   int64
	Released int64
	Len      int
}

// NewForest 创建 Forest，capacity 非正数时使用 DefaultCapacity。
func NewForest(builder *Builder, capacity int) (*Forest, error) {
	if builder == nil {
		return nil, merr.WrapErrParameterMissing("builder")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	f := &Forest{builder: builder}
	f.BindComponent("proptree-forest")
	trees, err := lru.NewWithEvict[string, *Tree](capacity, f.onEvict)
	if err != nil {
		return nil, err
	}
	f.trees = trees
	return f, nil
}

func (f *Forest) onEvict(identity string, _ *Tree) {
	f.released.Inc()
	metrics.TreesCached.Dec()
	f.Logger().Debug("property tree released", log.FieldIdentity(identity))
}

// Build 返回 identity 对应的属性树，不存在时用 obj 构建并缓存。
//
// identity 已存在时直接返回缓存的树；若 obj 与树的根对象不同，只记录告警，不重建。
func (f *Forest) Build(identity string, obj any) (*Tree, error) {
	if tree, ok := f.trees.Get(identity); ok {
		f.hits.Inc()
		if obj != nil && tree.Root() != obj {
			f.Logger().Warn("identity already bound to another instance, keep the existing tree",
				log.FieldIdentity(identity))
		}
		return tree, nil
	}

	v, err, _ := f.group.Do(identity, func() (any, error) {
		if tree, ok := f.trees.Peek(identity); ok {
			return tree, nil
		}
		f.misses.Inc()
		tree, err := f.builder.Build(identity, obj)
		if err != nil {
			return nil, err
		}
		f.trees.Add(identity, tree)
		metrics.TreesCached.Inc()
		return tree, nil
	})
	if err != nil {
		f.Logger().Warn("build property tree failed",
			log.FieldIdentity(identity),
			zap.Int32("code", merr.Code(err)),
			zap.Stringer("errorType", merr.GetErrorType(err)),
			zap.Error(err))
		return nil, err
	}
	return v.(*Tree), nil
}

// Get 返回已缓存的属性树。
func (f *Forest) Get(identity string) (*Tree, bool) {
	tree, ok := f.trees.Get(identity)
	if ok {
		f.hits.Inc()
	}
	return tree, ok
}

// Forget 丢弃 identity 对应的属性树，返回是否存在。
func (f *Forest) Forget(identity string) bool {
	return f.trees.Remove(identity)
}

// Purge 丢弃全部属性树。
func (f *Forest) Purge() {
	f.trees.Purge()
}

func (f *Forest) Len() int {
	return f.trees.Len()
}

func (f *Forest) Stats() Stats {
	return Stats{
		Hits:     f.hits.Load(),
		Misses:   f.misses.Load(),
		Released: f.released.Load(),
		Len:      f.trees.Len(),
	}
}
