package serializer

import (
	"reflect"

	"github.com/lk2023060901/propbridge/internal/member"
)

// Context 是单次 Get/Set 调用的上下文。
//
// Serializer 本身无状态，成员、路径和所属对象全部通过 Context 传入，
// 因此同一个 Serializer 实例可以被多个节点、多个 goroutine 同时复用。
type Context struct {
	// Identity 为所属属性树的根标识，仅用于日志与缓存。
	Identity string
	// Owner 为声明该成员的结构体（可寻址）或指向它的指针。
	Owner  reflect.Value
	Member *member.Descriptor
	// Path 为本次请求命中的叶子路径。
	Path string
	// Component 为命中的分量下标，Scalar 成员恒为 0。
	Component int
}

// Serializer 抽象了“成员值 <-> 宿主值 / 缓存字符串”的转换能力。
type Serializer interface {
	// TypeTag 返回展示给宿主的类型标签。
	TypeTag(t reflect.Type) string

	// Expansion 返回该类型成员展开为几条叶子路径。
	Expansion() member.Expansion

	// Get 读取当前值，失败时返回 false。
	Get(ctx Context) (any, bool)

	// Set 写入新值，值无法转换或成员不可写时返回 false。
	Set(ctx Context, value any) bool

	// Encode 将当前值编码为缓存字符串，不支持缓存时返回 false。
	Encode(ctx Context) (string, bool)

	// Decode 将缓存字符串解码并写回成员。
	Decode(ctx Context, raw string) bool
}

// Factory 创建一个 Serializer 实例，ScanAndRegister 时调用一次。
type Factory func() (Serializer, error)

// Resolution 描述 Resolve 的匹配结果。
type Resolution int

const (
	// Unresolved 表示没有可用的 Serializer，调用方应递归展开成员。
	Unresolved Resolution = iota
	// Custom 表示命中精确类型注册的自定义 Serializer。
	Custom
	// Primitive 表示按基础类型的 Kind 命中内置 Serializer。
	Primitive
)

func (r Resolution) String() string {
	switch r {
	case Custom:
		return "custom"
	case Primitive:
		return "primitive"
	default:
		return "unresolved"
	}
}
