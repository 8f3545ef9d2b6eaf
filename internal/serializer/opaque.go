package serializer

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/internal/json"
	"github.com/lk2023060901/propbridge/internal/member"
	"github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

// opaqueSerializer 把整个成员当作黑盒值：读写整体替换，缓存时编码为 JSON。
type opaqueSerializer struct{}

// cyclicSerializer 用于循环引用处的成员：可读、可整体赋值，但从不写入缓存。
type cyclicSerializer struct{ opaqueSerializer }

var (
	opaque Serializer = opaqueSerializer{}
	cyclic Serializer = cyclicSerializer{}

	_ Serializer = opaqueSerializer{}
	_ Serializer = cyclicSerializer{}
)

// Opaque 返回内置的黑盒对象 Serializer。
func Opaque() Serializer { return opaque }

// Cyclic 返回内置的循环引用 Serializer。
func Cyclic() Serializer { return cyclic }

func (opaqueSerializer) TypeTag(t reflect.Type) string { return t.String() }

func (opaqueSerializer) Expansion() member.Expansion { return member.Scalar }

func (opaqueSerializer) Get(ctx Context) (any, bool) {
	v, ok := ctx.Member.Value(ctx.Owner)
	if !ok {
		return nil, false
	}
	return v.Interface(), true
}

func (s opaqueSerializer) Set(ctx Context, value any) bool {
	if v, err := member.Coerce(reflect.ValueOf(value), ctx.Member.Type); err == nil {
		return ctx.Member.SetValue(ctx.Owner, v)
	}
	// 宿主可能以 JSON 文本的形式提交整个对象。
	switch raw := value.(type) {
	case string:
		return s.Decode(ctx, raw)
	case []byte:
		return s.Decode(ctx, string(raw))
	}
	log.Debug("opaque set rejected", log.FieldPath(ctx.Path), log.FieldType(ctx.Member.Type), zap.Any("value", value))
	return false
}

func (opaqueSerializer) Encode(ctx Context) (string, bool) {
	v, ok := ctx.Member.Value(ctx.Owner)
	if !ok {
		return "", false
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		log.Debug("opaque encode failed", zap.Error(merr.WrapErrValueEncode(ctx.Path, err)))
		return "", false
	}
	return string(data), true
}

func (opaqueSerializer) Decode(ctx Context, raw string) bool {
	ptr := reflect.New(ctx.Member.Type)
	if err := json.Unmarshal([]byte(raw), ptr.Interface()); err != nil {
		log.Debug("opaque decode failed", zap.Error(merr.WrapErrValueDecode(ctx.Path, err)))
		return false
	}
	return ctx.Member.SetValue(ctx.Owner, ptr.Elem())
}

func (cyclicSerializer) TypeTag(t reflect.Type) string { return "cyclic:" + t.String() }

func (cyclicSerializer) Encode(Context) (string, bool) { return "", false }

func (cyclicSerializer) Decode(Context, string) bool { return false }

func (cyclicSerializer) Set(ctx Context, value any) bool {
	v, err := member.Coerce(reflect.ValueOf(value), ctx.Member.Type)
	if err != nil {
		log.Debug("cyclic set rejected", log.FieldPath(ctx.Path), zap.Error(err))
		return false
	}
	return ctx.Member.SetValue(ctx.Owner, v)
}
