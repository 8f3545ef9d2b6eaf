package serializer

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/internal/member"
	"github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

// vectorSerializer 把一个 2~4 分量的结构体展开为 x/y/z/w 叶子路径。
//
// 注册类型为值类型时，写分量会先复制出一份可寻址的副本，修改后整体写回成员；
// 注册类型为指针时直接修改指向的结构体。
type vectorSerializer struct {
	typ    reflect.Type
	elem   reflect.Type
	fields [][]int
	exp    member.Expansion
}

var _ Serializer = (*vectorSerializer)(nil)

// NewVector 为结构体类型 t（或指向结构体的指针）创建向量 Serializer，
// fields 依次为 x/y/z/w 分量对应的导出字段名，字段必须是基础类型。
func NewVector(t reflect.Type, fields ...string) (Serializer, error) {
	if t == nil {
		return nil, merr.WrapErrParameterMissing("type")
	}
	elem := t
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return nil, merr.WrapErrParameterInvalid("struct", elem.Kind().String(), "vector type")
	}
	exp, ok := member.ExpansionOf(len(fields))
	if !ok || exp == member.Scalar {
		return nil, merr.WrapErrParameterInvalidMsg("vector %s needs 2 to 4 components, got %d", t, len(fields))
	}
	s := &vectorSerializer{typ: t, elem: elem, exp: exp, fields: make([][]int, 0, len(fields))}
	for _, name := range fields {
		f, ok := elem.FieldByName(name)
		if !ok || !f.IsExported() {
			return nil, merr.WrapErrParameterInvalidMsg("vector %s has no exported field %q", t, name)
		}
		if !IsPrimitive(f.Type) {
			return nil, merr.WrapErrParameterInvalidMsg("vector %s field %q is %s, not a primitive", t, name, f.Type)
		}
		s.fields = append(s.fields, f.Index)
	}
	return s, nil
}

// RegisterVector 向 r 登记一个向量类型。
func (r *Registry) RegisterVector(t reflect.Type, fields ...string) error {
	return r.Register(t, func() (Serializer, error) {
		return NewVector(t, fields...)
	})
}

// RegisterVector 向默认 Registry 登记一个向量类型。
func RegisterVector(t reflect.Type, fields ...string) error {
	return defaultRegistry.RegisterVector(t, fields...)
}

func (s *vectorSerializer) TypeTag(reflect.Type) string {
	return fmt.Sprintf("%s<%s>", s.exp, s.elem.FieldByIndex(s.fields[0]).Type.Kind())
}

func (s *vectorSerializer) Expansion() member.Expansion { return s.exp }

// component 读取成员当前值中 ctx.Component 对应的分量。
func (s *vectorSerializer) component(ctx Context) (cur reflect.Value, field reflect.Value, ok bool) {
	if ctx.Component < 0 || ctx.Component >= len(s.fields) {
		return reflect.Value{}, reflect.Value{}, false
	}
	cur, ok = ctx.Member.Value(ctx.Owner)
	if !ok {
		return reflect.Value{}, reflect.Value{}, false
	}
	st := cur
	if st.Kind() == reflect.Pointer {
		if st.IsNil() {
			return reflect.Value{}, reflect.Value{}, false
		}
		st = st.Elem()
	}
	field, err := st.FieldByIndexErr(s.fields[ctx.Component])
	if err != nil {
		return reflect.Value{}, reflect.Value{}, false
	}
	return cur, field, true
}

func (s *vectorSerializer) Get(ctx Context) (any, bool) {
	_, field, ok := s.component(ctx)
	if !ok {
		return nil, false
	}
	return field.Interface(), true
}

func (s *vectorSerializer) Set(ctx Context, value any) bool {
	cur, field, ok := s.component(ctx)
	if !ok {
		return false
	}
	v, err := assign(field.Type(), value)
	if err != nil {
		log.Debug("vector set rejected", log.FieldPath(ctx.Path), zap.Error(err))
		return false
	}
	return s.write(ctx, cur, v)
}

func (s *vectorSerializer) Encode(ctx Context) (string, bool) {
	_, field, ok := s.component(ctx)
	if !ok {
		return "", false
	}
	return FormatScalar(field)
}

func (s *vectorSerializer) Decode(ctx Context, raw string) bool {
	cur, field, ok := s.component(ctx)
	if !ok {
		return false
	}
	v, err := ParseScalar(raw, field.Type())
	if err != nil {
		log.Debug("vector decode failed", log.FieldPath(ctx.Path), zap.Error(err))
		return false
	}
	return s.write(ctx, cur, v)
}

func (s *vectorSerializer) write(ctx Context, cur reflect.Value, v reflect.Value) bool {
	idx := s.fields[ctx.Component]
	if s.typ.Kind() == reflect.Pointer {
		if !ctx.Member.CanWrite() {
			return false
		}
		cur.Elem().FieldByIndex(idx).Set(v)
		return true
	}
	tmp := reflect.New(s.elem).Elem()
	tmp.Set(cur)
	tmp.FieldByIndex(idx).Set(v)
	return ctx.Member.SetValue(ctx.Owner, tmp)
}
