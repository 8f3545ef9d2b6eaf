package log

import (
	"reflect"

	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameIdentity  = "identity"
	FieldNamePath      = "path"
	FieldNameType      = "type"
)

func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldIdentity 标记日志所属的对象标识。
func FieldIdentity(identity string) zap.Field {
	return zap.String(FieldNameIdentity, identity)
}

// FieldPath 标记日志涉及的属性路径。
func FieldPath(path string) zap.Field {
	return zap.String(FieldNamePath, path)
}

func FieldType(t reflect.Type) zap.Field {
	if t == nil {
		return zap.String(FieldNameType, "<nil>")
	}
	return zap.Stringer(FieldNameType, t)
}
