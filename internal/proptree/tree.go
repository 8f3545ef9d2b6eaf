package proptree

import (
	"reflect"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/internal/member"
	"github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

// Store 是叶子读写穿透的持久化缓存，由 diskcache.Cache 实现。
type Store interface {
	// LoadInto 返回 identity 下 path 的缓存值，每个 (identity, path) 在进程内最多返回一次。
	LoadInto(identity, path string) (string, bool)
	// Persist 写入或覆盖 identity 下 path 的缓存值。
	Persist(identity, path, value string) error
}

// Tree 是一个对象实例的属性树。
//
// 形状在构建后固定，值总是通过访问器实时读写。同一棵树上的调用由互斥锁串行化。
type Tree struct {
	mu sync.Mutex

	identity string
	root     reflect.Value
	nodes    []Node
	props    []PropertyInfo
	cached   map[string]struct{}
	store    Store
	logger   *log.MLogger
}

func newTree(identity string, root reflect.Value, nodes []Node, store Store, logger *log.MLogger) *Tree {
	t := &Tree{
		identity: identity,
		root:     root,
		nodes:    nodes,
		store:    store,
		logger:   logger,
	}
	for _, n := range nodes {
		t.props = n.collect(t.props)
	}
	if store != nil {
		t.cached = make(map[string]struct{})
		for _, p := range t.props {
			if p.Flags.Has(FlagCached) {
				t.cached[p.Path] = struct{}{}
			}
		}
	}
	return t
}

// write 沿节点链把 op 应用到 path 对应的叶子，值类型祖先逐级写回。
func (t *Tree) write(path string, op leafOp) bool {
	for _, n := range t.nodes {
		if n.write(t, t.root, path, op) {
			return true
		}
	}
	return false
}

func (t *Tree) Identity() string { return t.identity }

// Root 返回构建时传入的对象实例。
func (t *Tree) Root() any { return t.root.Interface() }

// Nodes 返回根层节点，按声明顺序排列。
func (t *Tree) Nodes() []Node { return t.nodes }

// Get 读取 path 对应叶子的当前值，路径不存在或读取失败时返回 false。
func (t *Tree) Get(path string) (any, bool) {
	if err := member.ValidatePath(path); err != nil {
		t.logger.Debug("get rejected", zap.Error(err))
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.cached[path]; ok {
		t.write(path, seed)
	}
	for _, n := range t.nodes {
		if v, ok := n.get(t, t.root, path); ok {
			return v, true
		}
	}
	t.logger.Debug("path not found", log.FieldPath(path), zap.Error(merr.WrapErrPathNotFound(t.identity, path)))
	return nil, false
}

// Set 写入 path 对应叶子，成功时返回 true。
func (t *Tree) Set(path string, value any) bool {
	if err := member.ValidatePath(path); err != nil {
		t.logger.Debug("set rejected", zap.Error(err))
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.write(path, assign(value)) {
		return true
	}
	t.logger.Debug("set found no writable leaf", log.FieldPath(path), zap.Error(merr.WrapErrPathNotFound(t.identity, path)))
	return false
}

// PropertyList 按遍历顺序返回全部叶子路径及其类型标签与标记，返回值可由调用方修改。
func (t *Tree) PropertyList() []PropertyInfo {
	out := make([]PropertyInfo, len(t.props))
	copy(out, t.props)
	return out
}

// Paths 返回全部叶子路径。
func (t *Tree) Paths() []string {
	return lo.Map(t.props, func(p PropertyInfo, _ int) string { return p.Path })
}

// Len 返回叶子路径数量。
func (t *Tree) Len() int { return len(t.props) }
