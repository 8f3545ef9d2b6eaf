package member

import (
	"math"
	"reflect"

	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

// Coerce 将 v 转换为类型 t 的值。
//
// 规则：可赋值直接返回；数值类型之间按值转换并检查溢出，浮点转整数要求为整数值；
// 底层类型一致的具名类型之间直接转换。其余情况返回 ErrValueNotConvertible。
func Coerce(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, merr.WrapErrValueNotConvertible(nil, t)
	}
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	switch {
	case isInt(v.Kind()):
		return fromInt(v.Int(), v, t)
	case isUint(v.Kind()):
		u := v.Uint()
		if u > math.MaxInt64 {
			if isUint(t.Kind()) && !reflect.Zero(t).OverflowUint(u) {
				return reflect.ValueOf(u).Convert(t), nil
			}
			return reflect.Value{}, merr.WrapErrValueNotConvertible(v.Interface(), t, "overflow")
		}
		return fromInt(int64(u), v, t)
	case isFloat(v.Kind()):
		return fromFloat(v.Float(), v, t)
	}
	if v.Kind() == t.Kind() && v.Type().ConvertibleTo(t) {
		switch t.Kind() {
		case reflect.Bool, reflect.String, reflect.Struct, reflect.Array, reflect.Slice, reflect.Map, reflect.Pointer:
			return v.Convert(t), nil
		}
	}
	return reflect.Value{}, merr.WrapErrValueNotConvertible(v.Interface(), t)
}

func fromInt(i int64, src reflect.Value, t reflect.Type) (reflect.Value, error) {
	zero := reflect.Zero(t)
	switch {
	case isInt(t.Kind()):
		if zero.OverflowInt(i) {
			return reflect.Value{}, merr.WrapErrValueNotConvertible(src.Interface(), t, "overflow")
		}
		return reflect.ValueOf(i).Convert(t), nil
	case isUint(t.Kind()):
		if i < 0 || zero.OverflowUint(uint64(i)) {
			return reflect.Value{}, merr.WrapErrValueNotConvertible(src.Interface(), t, "overflow")
		}
		return reflect.ValueOf(uint64(i)).Convert(t), nil
	case isFloat(t.Kind()):
		return reflect.ValueOf(float64(i)).Convert(t), nil
	}
	return reflect.Value{}, merr.WrapErrValueNotConvertible(src.Interface(), t)
}

func fromFloat(f float64, src reflect.Value, t reflect.Type) (reflect.Value, error) {
	zero := reflect.Zero(t)
	switch {
	case isFloat(t.Kind()):
		if src.Kind() == t.Kind() {
			return src.Convert(t), nil
		}
		if t.Kind() == reflect.Float32 && zero.OverflowFloat(f) {
			return reflect.Value{}, merr.WrapErrValueNotConvertible(src.Interface(), t, "overflow")
		}
		return reflect.ValueOf(f).Convert(t), nil
	case isInt(t.Kind()), isUint(t.Kind()):
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return reflect.Value{}, merr.WrapErrValueNotConvertible(src.Interface(), t, "not integral")
		}
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return reflect.Value{}, merr.WrapErrValueNotConvertible(src.Interface(), t, "overflow")
		}
		return fromInt(int64(f), src, t)
	}
	return reflect.Value{}, merr.WrapErrValueNotConvertible(src.Interface(), t)
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
