package member

import (
	"reflect"

	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

// Accessor 抽象了对成员的读写能力。
//
// owner 为声明该成员的结构体（或指向它的指针），每次调用时传入，
// Accessor 本身不持有任何对象实例。
type Accessor interface {
	// Name 返回 Go 层面的成员名（字段名或 getter 方法名）。
	Name() string
	Type() reflect.Type
	CanRead() bool
	CanWrite() bool
	Get(owner reflect.Value) (reflect.Value, error)
	Set(owner reflect.Value, v reflect.Value) error
}

type fieldAccessor struct {
	field    reflect.StructField
	readOnly bool
}

var _ Accessor = (*fieldAccessor)(nil)

func (a *fieldAccessor) Name() string       { return a.field.Name }
func (a *fieldAccessor) Type() reflect.Type { return a.field.Type }
func (a *fieldAccessor) CanRead() bool      { return true }
func (a *fieldAccessor) CanWrite() bool     { return !a.readOnly }

func (a *fieldAccessor) Get(owner reflect.Value) (reflect.Value, error) {
	s, err := indirect(owner, a.field.Name)
	if err != nil {
		return reflect.Value{}, err
	}
	return s.FieldByIndexErr(a.field.Index)
}

func (a *fieldAccessor) Set(owner reflect.Value, v reflect.Value) error {
	if a.readOnly {
		return merr.WrapErrMemberNotWritable(a.field.Name, "readonly")
	}
	f, err := a.Get(owner)
	if err != nil {
		return err
	}
	if !f.CanSet() {
		return merr.WrapErrMemberNotWritable(a.field.Name, "owner not addressable")
	}
	f.Set(v)
	return nil
}

// MethodProperty 声明一个由 getter/setter 方法对暴露的属性。
// Setter 为空表示只读属性。
type MethodProperty struct {
	Name       string
	Getter     string
	Setter     string
	Visibility Visibility
	Cache      bool
}

// MethodSource 由希望通过方法暴露属性的类型实现（指针接收者亦可）。
type MethodSource interface {
	PropertyMethods() []MethodProperty
}

type methodAccessor struct {
	getter string
	setter string
	typ    reflect.Type
}

var _ Accessor = (*methodAccessor)(nil)

func (a *methodAccessor) Name() string       { return a.getter }
func (a *methodAccessor) Type() reflect.Type { return a.typ }
func (a *methodAccessor) CanRead() bool      { return a.getter != "" }
func (a *methodAccessor) CanWrite() bool     { return a.setter != "" }

func (a *methodAccessor) Get(owner reflect.Value) (reflect.Value, error) {
	m, err := methodOn(owner, a.getter)
	if err != nil {
		return reflect.Value{}, err
	}
	out := m.Call(nil)
	return out[0], nil
}

func (a *methodAccessor) Set(owner reflect.Value, v reflect.Value) error {
	if a.setter == "" {
		return merr.WrapErrMemberNotWritable(a.getter, "getter only")
	}
	m, err := methodOn(owner, a.setter)
	if err != nil {
		return err
	}
	out := m.Call([]reflect.Value{v})
	if len(out) == 1 {
		switch r := out[0].Interface().(type) {
		case bool:
			if !r {
				return merr.WrapErrMemberNotWritable(a.setter, "setter rejected value")
			}
		case error:
			return merr.WrapErrMemberAccess(a.setter, r)
		}
	}
	return nil
}

// newMethodAccessor 校验方法签名：getter 无参单返回值，
// setter 接收一个同类型参数，可选返回 bool 或 error。
func newMethodAccessor(owner reflect.Type, p MethodProperty) (*methodAccessor, error) {
	ptr := reflect.PointerTo(owner)
	getter, ok := ptr.MethodByName(p.Getter)
	if !ok {
		return nil, merr.WrapErrMemberNotReadable(p.Getter, "getter not found")
	}
	gt := getter.Type
	if gt.NumIn() != 1 || gt.NumOut() != 1 {
		return nil, merr.WrapErrMemberNotReadable(p.Getter, "getter signature must be func() T")
	}
	acc := &methodAccessor{getter: p.Getter, typ: gt.Out(0)}
	if p.Setter == "" {
		return acc, nil
	}
	setter, ok := ptr.MethodByName(p.Setter)
	if !ok {
		return nil, merr.WrapErrMemberNotWritable(p.Setter, "setter not found")
	}
	st := setter.Type
	if st.NumIn() != 2 || st.In(1) != acc.typ || st.NumOut() > 1 {
		return nil, merr.WrapErrMemberNotWritable(p.Setter, "setter signature must be func(T) [bool|error]")
	}
	if st.NumOut() == 1 {
		o := st.Out(0)
		if o.Kind() != reflect.Bool && !o.Implements(errorType) {
			return nil, merr.WrapErrMemberNotWritable(p.Setter, "setter may only return bool or error")
		}
	}
	acc.setter = p.Setter
	return acc, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func methodOn(owner reflect.Value, name string) (reflect.Value, error) {
	if owner.Kind() != reflect.Pointer && owner.CanAddr() {
		owner = owner.Addr()
	}
	if owner.Kind() == reflect.Pointer && owner.IsNil() {
		return reflect.Value{}, merr.WrapErrMemberAccess(name, "nil owner")
	}
	m := owner.MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, merr.WrapErrMemberAccess(name, "method not found on owner")
	}
	return m, nil
}

func indirect(owner reflect.Value, member string) (reflect.Value, error) {
	for owner.Kind() == reflect.Pointer || owner.Kind() == reflect.Interface {
		if owner.IsNil() {
			return reflect.Value{}, merr.WrapErrMemberAccess(member, "nil owner")
		}
		owner = owner.Elem()
	}
	if owner.Kind() != reflect.Struct {
		return reflect.Value{}, merr.WrapErrMemberAccess(member, "owner is not a struct")
	}
	return owner, nil
}
