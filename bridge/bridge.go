// Package bridge 是宿主（例如编辑器的属性面板）访问对象属性的入口。
//
// 宿主以稳定的字符串标识挂载对象实例，之后通过路径读取、写入或列出属性：
//
//	b, _ := bridge.New(bridge.DefaultConfig())
//	_ = b.Attach("node_42", node)
//	list := b.GetPropertyList("node_42")
//	_ = b.Set("node_42", "origin/x", 3.5)
package bridge

import (
	"runtime"
	"slices"

	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/internal/diskcache"
	"github.com/lk2023060901/propbridge/internal/json"
	"github.com/lk2023060901/propbridge/internal/proptree"
	"github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/metrics"
	"github.com/lk2023060901/propbridge/pkg/util/conc"
	"github.com/lk2023060901/propbridge/pkg/util/merr"

	_ "github.com/lk2023060901/propbridge/internal/serializer/wellknown"
)

// Bridge 维护 identity -> 属性树 的映射并对外提供按路径的读写。
//
// 所有读写都不会返回错误或 panic：路径不存在、值不可转换、成员只读时分别返回
// 不存在或 false，原因记录在日志中。
type Bridge struct {
	log.Binder

	cfg    Config
	cache  *diskcache.Cache
	forest *proptree.Forest
	closed atomic.Bool
}

// New 根据配置创建 Bridge。
func New(cfg Config, opts ...Option) (*Bridge, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cacheDir != "" {
		cfg.Cache.Dir = o.cacheDir
	}
	if o.cacheDisabled {
		cfg.Cache.Enabled = false
	}
	if o.capacity > 0 {
		cfg.Tree.Capacity = o.capacity
	}
	if o.maxDepth > 0 {
		cfg.Tree.MaxDepth = o.maxDepth
	}
	if o.workers > 0 {
		cfg.Tree.Workers = o.workers
	}
	if o.compress {
		cfg.Cache.Compress = true
	}

	engine, _, ok := json.Lookup(cfg.JSON.Engine)
	if !ok {
		return nil, merr.WrapErrParameterInvalid("sonic|jsoniter", cfg.JSON.Engine, "json.engine")
	}
	cfg.JSON.Engine = engine
	if o.registerer != nil {
		metrics.Register(o.registerer)
	}

	b := &Bridge{cfg: cfg}
	b.BindComponent("bridge")
	if o.logger != nil {
		b.SetLogger(o.logger)
	}

	builderOpts := []proptree.BuilderOption{proptree.WithMaxDepth(cfg.Tree.MaxDepth)}
	if cfg.Cache.Enabled {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir = DefaultCacheDir
		}
		cacheOpts := []diskcache.Option{diskcache.WithJSONEngine(engine)}
		if cfg.Cache.Compress {
			z, err := diskcache.NewZstdCompressor(cfg.Cache.CompressMinSize)
			if err != nil {
				return nil, merr.WrapErrIoFailed("zstd", err)
			}
			cacheOpts = append(cacheOpts, diskcache.WithCompressor(z))
		}
		cache, err := diskcache.New(dir, cacheOpts...)
		if err != nil {
			return nil, err
		}
		b.cache = cache
		builderOpts = append(builderOpts, proptree.WithStore(cache))
	}

	builder := proptree.NewBuilder(o.registry, builderOpts...)
	forest, err := proptree.NewForest(builder, cfg.Tree.Capacity)
	if err != nil {
		return nil, err
	}
	b.forest = forest

	if o.logger != nil {
		builder.SetLogger(o.logger.With(log.FieldComponent("proptree-builder")))
		forest.SetLogger(o.logger.With(log.FieldComponent("proptree-forest")))
		if b.cache != nil {
			b.cache.SetLogger(o.logger.With(log.FieldComponent("diskcache")))
		}
	}

	b.Logger().Info("property bridge created",
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.String("cacheDir", cfg.Cache.Dir),
		zap.Bool("compress", cfg.Cache.Compress),
		zap.Int("capacity", cfg.Tree.Capacity),
		zap.Int("maxDepth", cfg.Tree.MaxDepth),
		zap.String("json", engine))
	return b, nil
}

func (b *Bridge) Config() Config { return b.cfg }

// Cache 返回使用的磁盘缓存，关闭缓存时返回 nil。
func (b *Bridge) Cache() *diskcache.Cache { return b.cache }

// Attach 为 identity 构建属性树。obj 必须是指向结构体的非 nil 指针。
// identity 已挂载时沿用已有的树。
func (b *Bridge) Attach(identity string, obj any) error {
	if b.closed.Load() {
		return merr.WrapErrOperationNotSupported("attach", "bridge closed")
	}
	_, err := b.forest.Build(identity, obj)
	return err
}

// AttachAll 并发挂载 objs 中的全部对象，返回所有失败原因的合并错误。
// 某个对象失败不影响其余对象的挂载。
func (b *Bridge) AttachAll(objs map[string]any) error {
	if b.closed.Load() {
		return merr.WrapErrOperationNotSupported("attach", "bridge closed")
	}
	if len(objs) == 0 {
		return nil
	}
	identities := lo.Keys(objs)
	slices.Sort(identities)

	workers := b.cfg.Tree.Workers
	if workers <= 0 || workers > len(identities) {
		workers = min(len(identities), runtime.GOMAXPROCS(0))
	}
	pool := conc.NewPool[*proptree.Tree](workers, conc.WithConcealPanic(true))
	defer pool.Release()

	futures := make([]*conc.Future[*proptree.Tree], 0, len(identities))
	for _, identity := range identities {
		obj := objs[identity]
		futures = append(futures, pool.Submit(func() (*proptree.Tree, error) {
			return b.forest.Build(identity, obj)
		}))
	}
	err := conc.AwaitAll(futures...)
	if err != nil {
		b.Logger().Warn("attach objects partially failed", zap.Int("total", len(identities)), zap.Error(err))
	}
	return err
}

func (b *Bridge) tree(identity string) (*proptree.Tree, bool) {
	if b.closed.Load() {
		return nil, false
	}
	tree, ok := b.forest.Get(identity)
	if !ok {
		b.Logger().Debug("identity not attached", zap.Error(merr.WrapErrIdentityUnknown(identity)))
	}
	return tree, ok
}

// GetPropertyList 按声明顺序返回 identity 的全部叶子属性，未挂载时返回空列表。
func (b *Bridge) GetPropertyList(identity string) []PropertyInfo {
	tree, ok := b.tree(identity)
	if !ok {
		return []PropertyInfo{}
	}
	return tree.PropertyList()
}

// Get 读取 identity 下 path 的当前值。
func (b *Bridge) Get(identity, path string) (any, bool) {
	tree, ok := b.tree(identity)
	if !ok {
		return nil, false
	}
	return tree.Get(path)
}

// Set 写入 identity 下 path 的值，成功时返回 true。
func (b *Bridge) Set(identity, path string, value any) bool {
	tree, ok := b.tree(identity)
	if !ok {
		return false
	}
	return tree.Set(path, value)
}

// Detach 释放 identity 的属性树，返回其是否存在。磁盘缓存不受影响。
func (b *Bridge) Detach(identity string) bool {
	return b.forest.Forget(identity)
}

func (b *Bridge) Stats() proptree.Stats {
	return b.forest.Stats()
}

// Close 释放全部属性树，之后的调用都视为未挂载。
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.forest.Purge()
	if b.cache != nil {
		b.cache.Close()
	}
	b.Logger().Info("property bridge closed")
	return nil
}
