package bridge

import (
	"reflect"

	"github.com/lk2023060901/propbridge/internal/member"
	"github.com/lk2023060901/propbridge/internal/proptree"
	"github.com/lk2023060901/propbridge/internal/serializer"
)

type (
	PropertyInfo = proptree.PropertyInfo
	Flags        = proptree.Flags
	LeafKind     = proptree.LeafKind

	// MethodProperty 声明由 getter/setter 方法暴露的属性，见 MethodSource。
	MethodProperty = member.MethodProperty
	MethodSource   = member.MethodSource
	Visibility     = member.Visibility

	// Serializer 是宿主自定义类型的读写策略，必须无状态，调用信息全部来自 SerializerContext。
	Serializer        = serializer.Serializer
	SerializerContext = serializer.Context
	Factory           = serializer.Factory
	Registry          = serializer.Registry
	MemberDescriptor  = member.Descriptor
	Expansion         = member.Expansion
)

const (
	FlagShown    = proptree.FlagShown
	FlagHidden   = proptree.FlagHidden
	FlagCached   = proptree.FlagCached
	FlagReadOnly = proptree.FlagReadOnly
	FlagOpaque   = proptree.FlagOpaque

	Shown        = member.Shown
	HiddenCached = member.HiddenCached

	Scalar  = member.Scalar
	Vector2 = member.Vector2
	Vector3 = member.Vector3
	Vector4 = member.Vector4
)

// RegisterSerializer 在默认 Registry 中为类型 t 登记自定义 Serializer，通常在 init() 中调用。
// 工厂在首次构建属性树时实例化，之后登记的类型立即实例化。
func RegisterSerializer(t reflect.Type, factory Factory) error {
	return serializer.Register(t, factory)
}

// NewRegistry 创建一个空的 Registry，可通过 WithRegistry 交给 Bridge 使用。
// 它不包含默认 Registry 中的扩展类型，基础类型总是可用。
func NewRegistry() *Registry {
	return serializer.NewRegistry()
}

// DefaultRegistry 返回进程级默认 Registry。
func DefaultRegistry() *Registry {
	return serializer.Default()
}

// RegisterVector 在默认 Registry 中把结构体类型 t 登记为向量，
// fields 依次对应 x/y/z/w 分量。已构建的属性树不受影响。
func RegisterVector(t reflect.Type, fields ...string) error {
	return serializer.RegisterVector(t, fields...)
}
