package member

import (
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/pkg/log"
)

var (
	descriptorCache sync.Map // reflect.Type -> []*Descriptor
	methodSource    = reflect.TypeOf((*MethodSource)(nil)).Elem()
)

// Enumerate 按声明顺序返回结构体类型 t 的全部可序列化成员模板。
//
// 字段成员在前（匿名嵌入且无标签的结构体会被展开），随后是 PropertyMethods 声明的方法属性。
// 结果按类型缓存，返回的切片不可修改。
func Enumerate(t reflect.Type) []*Descriptor {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := descriptorCache.Load(t); ok {
		return cached.([]*Descriptor)
	}
	descs := append(enumerateFields(t), enumerateMethods(t)...)
	actual, _ := descriptorCache.LoadOrStore(t, descs)
	return actual.([]*Descriptor)
}

func enumerateFields(t reflect.Type) []*Descriptor {
	var descs []*Descriptor
	for _, f := range reflect.VisibleFields(t) {
		raw, present := f.Tag.Lookup(TagName)
		if f.Anonymous && !present && indirectType(f.Type).Kind() == reflect.Struct {
			// 被展开的嵌入结构体本身不是成员，其提升字段会随后出现。
			continue
		}
		tag, ok := ParseTag(raw, present)
		if !ok {
			continue
		}
		if !f.IsExported() {
			log.Debug("skip unexported member", log.FieldType(t), zap.String("field", f.Name))
			continue
		}
		if !isSerializableType(f.Type) {
			log.Debug("skip non-serializable member", log.FieldType(t), zap.String("field", f.Name), zap.Stringer("kind", f.Type.Kind()))
			continue
		}
		name := tag.Name
		if name == "" {
			name = lowerFirst(f.Name)
		}
		descs = append(descs, &Descriptor{
			Name:       name,
			Owner:      t,
			Type:       f.Type,
			Visibility: tag.Visibility,
			Cache:      tag.Cache,
			accessor:   &fieldAccessor{field: f, readOnly: tag.ReadOnly},
		})
	}
	return descs
}

func enumerateMethods(t reflect.Type) []*Descriptor {
	if !reflect.PointerTo(t).Implements(methodSource) {
		return nil
	}
	props := reflect.New(t).Interface().(MethodSource).PropertyMethods()
	descs := make([]*Descriptor, 0, len(props))
	for _, p := range props {
		if p.Visibility == NotSerialized || p.Name == "" {
			continue
		}
		acc, err := newMethodAccessor(t, p)
		if err != nil {
			log.Warn("skip invalid method property", log.FieldType(t), zap.String("name", p.Name), zap.Error(err))
			continue
		}
		if !isSerializableType(acc.Type()) {
			continue
		}
		descs = append(descs, &Descriptor{
			Name:       p.Name,
			Owner:      t,
			Type:       acc.Type(),
			Visibility: p.Visibility,
			Cache:      p.Cache || p.Visibility == HiddenCached,
			accessor:   acc,
		})
	}
	return descs
}

func isSerializableType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return false
	}
	return true
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
