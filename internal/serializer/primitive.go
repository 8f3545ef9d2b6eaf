package serializer

import (
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/internal/member"
	"github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

// primitiveSerializer 处理 bool、string 以及全部整数与浮点类型（含具名类型）。
type primitiveSerializer struct{}

var (
	primitive Serializer = primitiveSerializer{}

	// 编译期断言：确保 primitiveSerializer 实现了 Serializer 接口。
	_ Serializer = primitiveSerializer{}
)

// IsPrimitive 判断 t 是否属于内置基础类型集合。
func IsPrimitive(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (primitiveSerializer) TypeTag(t reflect.Type) string { return t.Kind().String() }

func (primitiveSerializer) Expansion() member.Expansion { return member.Scalar }

func (primitiveSerializer) Get(ctx Context) (any, bool) {
	v, ok := ctx.Member.Value(ctx.Owner)
	if !ok {
		return nil, false
	}
	return v.Interface(), true
}

func (primitiveSerializer) Set(ctx Context, value any) bool {
	v, err := assign(ctx.Member.Type, value)
	if err != nil {
		log.Debug("primitive set rejected", log.FieldPath(ctx.Path), zap.Error(err))
		return false
	}
	return ctx.Member.SetValue(ctx.Owner, v)
}

func (primitiveSerializer) Encode(ctx Context) (string, bool) {
	v, ok := ctx.Member.Value(ctx.Owner)
	if !ok {
		return "", false
	}
	return FormatScalar(v)
}

func (primitiveSerializer) Decode(ctx Context, raw string) bool {
	v, err := ParseScalar(raw, ctx.Member.Type)
	if err != nil {
		log.Debug("primitive decode failed", zap.Error(merr.WrapErrValueDecode(ctx.Path, err)))
		return false
	}
	return ctx.Member.SetValue(ctx.Owner, v)
}

// assign 将宿主传入的值转换为 t 类型：字符串按 ParseScalar 解析，其余走 member.Coerce。
func assign(t reflect.Type, value any) (reflect.Value, error) {
	if s, ok := value.(string); ok && t.Kind() != reflect.String && IsPrimitive(t) {
		return ParseScalar(s, t)
	}
	return member.Coerce(reflect.ValueOf(value), t)
}

// FormatScalar 将基础类型值格式化为缓存字符串。
// 浮点数使用最短表示，解析后逐位相等。
func FormatScalar(v reflect.Value) (string, bool) {
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return formatSigned(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return formatUnsigned(v.Uint()), true
	case reflect.Float32:
		return formatFloat(float32(v.Float()), 32), true
	case reflect.Float64:
		return formatFloat(v.Float(), 64), true
	}
	return "", false
}

// ParseScalar 将字符串解析为基础类型 t 的值。
func ParseScalar(raw string, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(raw).Convert(t), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		return parsed(b, err, raw, t)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, t.Bits())
		return parsed(i, err, raw, t)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := strconv.ParseUint(strings.TrimSpace(raw), 10, t.Bits())
		return parsed(u, err, raw, t)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), t.Bits())
		return parsed(f, err, raw, t)
	}
	return reflect.Value{}, merr.WrapErrValueNotConvertible(raw, t, "not a primitive type")
}

func parsed[T constraints.Integer | constraints.Float | ~bool](v T, err error, raw string, t reflect.Type) (reflect.Value, error) {
	if err != nil {
		return reflect.Value{}, merr.WrapErrValueNotConvertible(raw, t, err.Error())
	}
	return reflect.ValueOf(v).Convert(t), nil
}

func formatSigned[T constraints.Signed](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

func formatUnsigned[T constraints.Unsigned](v T) string {
	return strconv.FormatUint(uint64(v), 10)
}

func formatFloat[T constraints.Float](v T, bitSize int) string {
	return strconv.FormatFloat(float64(v), 'g', -1, bitSize)
}
