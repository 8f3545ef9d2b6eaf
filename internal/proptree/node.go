package proptree

import (
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/internal/member"
	"github.com/lk2023060901/propbridge/internal/serializer"
	"github.com/lk2023060901/propbridge/pkg/log"
)

// Node 是属性树中的节点，Leaf 或 Branch。
//
// 节点只描述树的形状，不持有对象实例；读写时由父节点把当前所属对象传下来。
type Node interface {
	Path() string
	Descriptor() *member.Descriptor

	get(t *Tree, owner reflect.Value, path string) (any, bool)
	write(t *Tree, owner reflect.Value, path string, op leafOp) bool
	collect(out []PropertyInfo) []PropertyInfo
}

// leafOp 是沿写回链到达叶子后执行的修改，返回 false 表示叶子未被修改。
type leafOp func(t *Tree, l *Leaf, ctx serializer.Context) bool

// assign 把 value 写入叶子，可缓存成员写穿透到 Store。
func assign(value any) leafOp {
	return func(t *Tree, l *Leaf, ctx serializer.Context) bool {
		if !l.ser.Set(ctx, value) {
			return false
		}
		if l.desc.Cache && t.store != nil {
			if raw, ok := l.ser.Encode(ctx); ok {
				if err := t.store.Persist(t.identity, ctx.Path, raw); err != nil {
					t.logger.Warn("persist cached value failed", log.FieldPath(ctx.Path), zap.Error(err))
				}
			}
		}
		return true
	}
}

// seed 把 Store 中的缓存值解码回叶子，每个路径在进程内至多生效一次。
func seed(t *Tree, l *Leaf, ctx serializer.Context) bool {
	if !l.desc.Cache || t.store == nil {
		return false
	}
	raw, ok := t.store.LoadInto(t.identity, ctx.Path)
	if !ok {
		return false
	}
	if !l.ser.Decode(ctx, raw) {
		t.logger.Warn("discard cached value", log.FieldPath(ctx.Path), zap.String("raw", raw))
		return false
	}
	return true
}

var (
	_ Node = (*Leaf)(nil)
	_ Node = (*Branch)(nil)
)

// Leaf 把读写委托给解析出的 Serializer。
type Leaf struct {
	desc *member.Descriptor
	ser  serializer.Serializer
	kind LeafKind
}

func (l *Leaf) Path() string                      { return l.desc.Path() }
func (l *Leaf) Descriptor() *member.Descriptor    { return l.desc }
func (l *Leaf) Serializer() serializer.Serializer { return l.ser }
func (l *Leaf) Kind() LeafKind                    { return l.kind }

func (l *Leaf) context(t *Tree, owner reflect.Value, path string) (serializer.Context, bool) {
	ok, component := l.desc.IsPropertyName(path)
	if !ok {
		return serializer.Context{}, false
	}
	return serializer.Context{
		Identity:  t.identity,
		Owner:     owner,
		Member:    l.desc,
		Path:      path,
		Component: component,
	}, true
}

func (l *Leaf) get(t *Tree, owner reflect.Value, path string) (any, bool) {
	ctx, ok := l.context(t, owner, path)
	if !ok {
		return nil, false
	}
	return l.ser.Get(ctx)
}

func (l *Leaf) write(t *Tree, owner reflect.Value, path string, op leafOp) bool {
	ctx, ok := l.context(t, owner, path)
	if !ok {
		return false
	}
	return op(t, l, ctx)
}

func (l *Leaf) collect(out []PropertyInfo) []PropertyInfo {
	tag := l.ser.TypeTag(l.desc.Type)
	flags := flagsOf(l.desc, l.kind)
	for _, p := range l.desc.LeafPaths() {
		out = append(out, PropertyInfo{Path: p, TypeTag: tag, Flags: flags, Kind: l.kind})
	}
	return out
}

// Branch 递归到自身成员。
//
// 值类型结构体成员在写入（包括缓存值回填）时先复制出可寻址副本，子节点写成功后再整体
// 写回自身成员槽位；这一过程沿所有值类型祖先逐级向上，直到根对象。
type Branch struct {
	desc     *member.Descriptor
	children []Node
	byValue  bool
}

func (b *Branch) Path() string                   { return b.desc.Path() }
func (b *Branch) Descriptor() *member.Descriptor { return b.desc }
func (b *Branch) Children() []Node               { return b.children }

func (b *Branch) covers(path string) bool {
	return strings.HasPrefix(path, b.desc.Path()+member.PathSeparator)
}

// current 返回子节点使用的所属对象：值类型为结构体值，指针类型为非 nil 指针。
func (b *Branch) current(owner reflect.Value) (reflect.Value, bool) {
	v, ok := b.desc.Value(owner)
	if !ok {
		return reflect.Value{}, false
	}
	if !b.byValue && v.IsNil() {
		return reflect.Value{}, false
	}
	return v, true
}

func (b *Branch) get(t *Tree, owner reflect.Value, path string) (any, bool) {
	if !b.covers(path) {
		return nil, false
	}
	cur, ok := b.current(owner)
	if !ok {
		return nil, false
	}
	for _, c := range b.children {
		if v, ok := c.get(t, cur, path); ok {
			return v, true
		}
	}
	return nil, false
}

func (b *Branch) write(t *Tree, owner reflect.Value, path string, op leafOp) bool {
	if !b.covers(path) {
		return false
	}
	cur, ok := b.current(owner)
	if !ok {
		return false
	}
	if !b.byValue {
		for _, c := range b.children {
			if c.write(t, cur, path, op) {
				return true
			}
		}
		return false
	}

	if !b.desc.CanWrite() {
		t.logger.Warn("write-back refused by read-only value member", log.FieldPath(path), zap.String("member", b.desc.Path()))
		return false
	}
	tmp := reflect.New(cur.Type()).Elem()
	tmp.Set(cur)
	for _, c := range b.children {
		if !c.write(t, tmp, path, op) {
			continue
		}
		if !b.desc.SetValue(owner, tmp) {
			t.logger.Warn("write-back failed", log.FieldPath(path), zap.String("member", b.desc.Path()))
			return false
		}
		return true
	}
	return false
}

func (b *Branch) collect(out []PropertyInfo) []PropertyInfo {
	for _, c := range b.children {
		out = c.collect(out)
	}
	return out
}
