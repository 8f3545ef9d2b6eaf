package proptree

import (
	"reflect"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/internal/member"
	"github.com/lk2023060901/propbridge/internal/serializer"
	"github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/metrics"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
	"github.com/lk2023060901/propbridge/pkg/util/typeutil"
)

// DefaultMaxDepth 是默认的最大嵌套深度。
const DefaultMaxDepth = 32

// Builder 根据对象实例构建属性树。
type Builder struct {
	log.Binder

	registry *serializer.Registry
	store    Store
	maxDepth int
}

type BuilderOption func(*Builder)

// WithStore 设置叶子读写穿透的缓存，nil 表示不使用缓存。
func WithStore(store Store) BuilderOption {
	return func(b *Builder) {
		b.store = store
	}
}

// WithMaxDepth 设置最大嵌套深度，非正数保持默认值。
func WithMaxDepth(depth int) BuilderOption {
	return func(b *Builder) {
		if depth > 0 {
			b.maxDepth = depth
		}
	}
}

// NewBuilder 创建 Builder，registry 为 nil 时使用默认 Registry。
func NewBuilder(registry *serializer.Registry, opts ...BuilderOption) *Builder {
	if registry == nil {
		registry = serializer.Default()
	}
	b := &Builder{
		registry: registry,
		maxDepth: DefaultMaxDepth,
	}
	b.BindComponent("proptree-builder")
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// visit 标识祖先链上的一个对象：地址相同但类型不同（例如结构体与其首个字段）不是同一对象。
type visit struct {
	addr uintptr
	typ  reflect.Type
}

func visitOf(v reflect.Value) visit {
	return visit{addr: v.Pointer(), typ: v.Type()}
}

// buildPass 保存单次构建的状态。
type buildPass struct {
	identity  string
	ancestors typeutil.Set[visit]
	opaque    int
}

// Build 为 identity 构建属性树。obj 必须是指向结构体的非 nil 指针。
func (b *Builder) Build(identity string, obj any) (*Tree, error) {
	if identity == "" {
		return nil, merr.WrapErrParameterMissing("identity")
	}
	root := reflect.ValueOf(obj)
	if !root.IsValid() || root.Kind() != reflect.Pointer || root.IsNil() || root.Elem().Kind() != reflect.Struct {
		return nil, merr.WrapErrParameterInvalidMsg("object for %s must be a non-nil pointer to struct, got %T", identity, obj)
	}

	start := time.Now()
	pass := &buildPass{identity: identity, ancestors: typeutil.NewSet(visitOf(root))}
	nodes := b.buildNodes(pass, root, "", 0)

	logger := b.Logger().With(log.FieldIdentity(identity))
	tree := newTree(identity, root, nodes, b.store, logger)
	if dups := lo.FindDuplicates(tree.Paths()); len(dups) > 0 {
		logger.Warn("duplicated property paths, first declared wins", zap.Error(merr.WrapErrPathDuplicated(identity, dups)))
	}

	metrics.TreeBuildTotal.Inc()
	metrics.TreeBuildLatency.Observe(float64(time.Since(start).Microseconds()) / 1000)
	logger.Debug("property tree built",
		log.FieldType(root.Type()),
		zap.Int("leaves", tree.Len()),
		zap.Int("opaque", pass.opaque),
		zap.Duration("cost", time.Since(start)))
	return tree, nil
}

// buildNodes 按声明顺序为 owner 的每个可序列化成员构建节点。
func (b *Builder) buildNodes(pass *buildPass, owner reflect.Value, prefix string, depth int) []Node {
	templates := member.Enumerate(owner.Type())
	nodes := make([]Node, 0, len(templates))
	for _, tmpl := range templates {
		nodes = append(nodes, b.buildNode(pass, owner, tmpl, prefix, depth))
	}
	return nodes
}

func (b *Builder) buildNode(pass *buildPass, owner reflect.Value, tmpl *member.Descriptor, prefix string, depth int) Node {
	if ser, res := b.registry.Resolve(tmpl.Type); res != serializer.Unresolved {
		kind := Primitive
		if res == serializer.Custom {
			kind = Custom
		}
		return &Leaf{desc: tmpl.Bind(prefix, ser.Expansion()), ser: ser, kind: kind}
	}

	desc := tmpl.Bind(prefix, member.Scalar)
	t := tmpl.Type
	switch {
	case t.Kind() == reflect.Struct:
		if depth+1 > b.maxDepth {
			return b.opaque(pass, desc, OpaqueDepthLimit, depth+1)
		}
		cur, ok := desc.Value(owner)
		if !ok {
			cur = reflect.New(t).Elem()
		}
		children := b.buildNodes(pass, cur, desc.Path(), depth+1)
		if len(children) == 0 {
			return b.opaque(pass, desc, OpaqueNoMembers, depth)
		}
		return &Branch{desc: desc, children: children, byValue: true}

	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		cur, ok := desc.Value(owner)
		if !ok || cur.IsNil() {
			return b.opaque(pass, desc, OpaqueNil, depth)
		}
		key := visitOf(cur)
		if pass.ancestors.Contain(key) {
			return b.opaque(pass, desc, OpaqueCyclic, depth)
		}
		if depth+1 > b.maxDepth {
			return b.opaque(pass, desc, OpaqueDepthLimit, depth+1)
		}
		pass.ancestors.Insert(key)
		children := b.buildNodes(pass, cur, desc.Path(), depth+1)
		pass.ancestors.Remove(key)
		if len(children) == 0 {
			return b.opaque(pass, desc, OpaqueNoMembers, depth)
		}
		return &Branch{desc: desc, children: children}

	default:
		return b.opaque(pass, desc, OpaqueContainer, depth)
	}
}

// opaque 把成员退化为黑盒叶子，并记录原因。
func (b *Builder) opaque(pass *buildPass, desc *member.Descriptor, kind LeafKind, depth int) *Leaf {
	ser := serializer.Opaque()
	if kind == OpaqueCyclic {
		ser = serializer.Cyclic()
	}
	pass.opaque++
	metrics.OpaqueLeafTotal.WithLabelValues(kind.String()).Inc()
	b.Logger().Debug("member degenerated to opaque leaf",
		log.FieldIdentity(pass.identity),
		log.FieldPath(desc.Path()),
		log.FieldType(desc.Type),
		zap.Stringer("reason", kind),
		zap.Error(b.degenerationErr(desc, kind, depth)))
	return &Leaf{desc: desc, ser: ser, kind: kind}
}

// degenerationErr 返回退化原因对应的错误，nil 引用不视为错误。
func (b *Builder) degenerationErr(desc *member.Descriptor, kind LeafKind, depth int) error {
	switch kind {
	case OpaqueCyclic:
		return merr.WrapErrCyclicReference(desc.Path(), desc.Type)
	case OpaqueDepthLimit:
		return merr.WrapErrDepthExceeded(desc.Path(), depth, b.maxDepth)
	case OpaqueNoMembers, OpaqueContainer:
		return merr.WrapErrMissingSerializer(desc.Type, desc.Path())
	default:
		return nil
	}
}
