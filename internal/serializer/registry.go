package serializer

import (
	"reflect"
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/metrics"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

type registration struct {
	typ     reflect.Type
	factory Factory
}

// Registry 维护“具体类型 -> Serializer”的映射。
//
// 注册分两步：Register 只登记工厂函数，ScanAndRegister 在首次解析时统一实例化。
// 实例化失败的工厂会被跳过并记录日志，不影响其它类型。
// 匹配只按精确类型进行，不做接口或嵌入类型的回退。
type Registry struct {
	log.Binder

	mu       sync.RWMutex
	pending  []registration
	declared map[reflect.Type]struct{}
	typeMap  map[reflect.Type]Serializer

	scanned atomic.Bool
}

// NewRegistry 创建一个空的 Registry。
func NewRegistry() *Registry {
	r := &Registry{
		declared: make(map[reflect.Type]struct{}),
		typeMap:  make(map[reflect.Type]Serializer),
	}
	r.BindComponent("serializer-registry")
	return r
}

// Register 为类型 t 登记一个 Serializer 工厂。
//
// 同一类型不允许重复登记。ScanAndRegister 之后登记的工厂会被立即实例化。
func (r *Registry) Register(t reflect.Type, factory Factory) error {
	if t == nil {
		return merr.WrapErrParameterMissing("type")
	}
	if factory == nil {
		return merr.WrapErrParameterMissing("factory", t.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.declared[t]; exists {
		return merr.WrapErrSerializerDuplicated(t)
	}
	r.declared[t] = struct{}{}
	if r.scanned.Load() {
		r.instantiateLocked(registration{typ: t, factory: factory})
		return nil
	}
	r.pending = append(r.pending, registration{typ: t, factory: factory})
	return nil
}

// RegisterType 是 Register 的泛型版本。
func RegisterType[T any](r *Registry, factory Factory) error {
	return r.Register(reflect.TypeFor[T](), factory)
}

// ScanAndRegister 实例化全部已登记的工厂，只在第一次调用时生效。
func (r *Registry) ScanAndRegister() {
	if r.scanned.Load() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanned.Load() {
		return
	}
	for _, reg := range r.pending {
		r.instantiateLocked(reg)
	}
	r.pending = nil
	r.scanned.Store(true)
	r.Logger().Debug("serializer registry scanned", zap.Int("registered", len(r.typeMap)))
}

func (r *Registry) instantiateLocked(reg registration) {
	s, err := instantiate(reg)
	if err != nil {
		metrics.SerializerSkippedTotal.Inc()
		r.Logger().Warn("skip serializer", log.FieldType(reg.typ), zap.Error(err))
		return
	}
	r.typeMap[reg.typ] = s
}

func instantiate(reg registration) (s Serializer, err error) {
	defer func() {
		if p := recover(); p != nil {
			s, err = nil, merr.WrapErrSerializerInstantiation(reg.typ, merr.WrapErrMemberAccess("factory", p))
		}
	}()
	s, err = reg.factory()
	if err != nil {
		return nil, merr.WrapErrSerializerInstantiation(reg.typ, err)
	}
	if s == nil {
		return nil, merr.WrapErrSerializerInstantiation(reg.typ, merr.WrapErrParameterMissing("serializer"))
	}
	return s, nil
}

// Resolve 返回类型 t 对应的 Serializer。
//
// 先按精确类型匹配自定义 Serializer，再按 Kind 匹配内置基础类型 Serializer，
// 都不命中时返回 Unresolved。
func (r *Registry) Resolve(t reflect.Type) (Serializer, Resolution) {
	if t == nil {
		return nil, Unresolved
	}
	r.ScanAndRegister()

	r.mu.RLock()
	s, ok := r.typeMap[t]
	r.mu.RUnlock()
	if ok {
		return s, Custom
	}
	if IsPrimitive(t) {
		return primitive, Primitive
	}
	return nil, Unresolved
}

// Registered 返回已成功实例化的自定义类型，按类型名排序。
func (r *Registry) Registered() []reflect.Type {
	r.ScanAndRegister()

	r.mu.RLock()
	types := lo.Keys(r.typeMap)
	r.mu.RUnlock()
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })
	return types
}

var defaultRegistry = NewRegistry()

// Default 返回进程级默认 Registry，扩展包在 init() 中向其登记。
func Default() *Registry {
	return defaultRegistry
}

// Register 向默认 Registry 登记工厂。
func Register(t reflect.Type, factory Factory) error {
	return defaultRegistry.Register(t, factory)
}

// MustRegister 与 Register 相同，失败时 panic，供 init() 使用。
func MustRegister(t reflect.Type, factory Factory) {
	if err := Register(t, factory); err != nil {
		panic(err)
	}
}
