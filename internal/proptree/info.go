package proptree

import (
	"strings"

	"github.com/lk2023060901/propbridge/internal/member"
)

// LeafKind 说明一个叶子是如何得到的。
type LeafKind int

const (
	// Custom 表示命中精确类型注册的自定义 Serializer。
	Custom LeafKind = iota
	// Primitive 表示基础类型。
	Primitive
	// OpaqueNoMembers 表示既无 Serializer 也没有可序列化成员的结构体。
	OpaqueNoMembers
	// OpaqueContainer 表示 slice、map、array、interface 或指向非结构体的指针。
	OpaqueContainer
	// OpaqueNil 表示构建时为 nil 的指针成员。
	OpaqueNil
	// OpaqueCyclic 表示指回祖先对象的引用。
	OpaqueCyclic
	// OpaqueDepthLimit 表示超过最大嵌套深度而停止展开的成员。
	OpaqueDepthLimit
)

func (k LeafKind) String() string {
	switch k {
	case Custom:
		return "custom"
	case Primitive:
		return "primitive"
	case OpaqueNoMembers:
		return "no_members"
	case OpaqueContainer:
		return "container"
	case OpaqueNil:
		return "nil"
	case OpaqueCyclic:
		return "cyclic"
	case OpaqueDepthLimit:
		return "depth_limit"
	default:
		return "unknown"
	}
}

// IsOpaque 判断叶子是否为退化得到的黑盒叶子。
func (k LeafKind) IsOpaque() bool {
	return k >= OpaqueNoMembers
}

// Flags 是属性列表中每条叶子路径附带的标记位。
type Flags uint8

const (
	FlagShown Flags = 1 << iota
	FlagHidden
	FlagCached
	FlagReadOnly
	FlagOpaque
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagShown, "shown"},
	{FlagHidden, "hidden"},
	{FlagCached, "cached"},
	{FlagReadOnly, "readonly"},
	{FlagOpaque, "opaque"},
}

func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

func (f Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

func flagsOf(desc *member.Descriptor, kind LeafKind) Flags {
	var f Flags
	switch desc.Visibility {
	case member.Shown:
		f |= FlagShown
	case member.HiddenCached:
		f |= FlagHidden
	}
	if desc.Cache {
		f |= FlagCached
	}
	if !desc.CanWrite() {
		f |= FlagReadOnly
	}
	if kind.IsOpaque() {
		f |= FlagOpaque
	}
	return f
}

// PropertyInfo 是属性列表中的一项。
type PropertyInfo struct {
	Path    string   `json:"path"`
	TypeTag string   `json:"type"`
	Flags   Flags    `json:"flags"`
	Kind    LeafKind `json:"kind"`
}
