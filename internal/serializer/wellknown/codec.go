package wellknown

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/internal/member"
	"github.com/lk2023060901/propbridge/internal/serializer"
	"github.com/lk2023060901/propbridge/pkg/log"
)

// textCodec 是以文本形式缓存的标量 Serializer。
//
// Set 接受三种输入：字符串（按 parse 解析）、adapt 认可的等价类型，以及可直接转换为 T 的值。
type textCodec[T any] struct {
	tag    string
	format func(T) (string, error)
	parse  func(string) (T, error)
	adapt  func(any) (T, bool)
}

var _ serializer.Serializer = (*textCodec[int])(nil)

func (c *textCodec[T]) TypeTag(reflect.Type) string { return c.tag }

func (c *textCodec[T]) Expansion() member.Expansion { return member.Scalar }

func (c *textCodec[T]) Get(ctx serializer.Context) (any, bool) {
	v, ok := ctx.Member.Value(ctx.Owner)
	if !ok {
		return nil, false
	}
	return v.Interface(), true
}

func (c *textCodec[T]) Set(ctx serializer.Context, value any) bool {
	if raw, ok := value.(string); ok {
		return c.Decode(ctx, raw)
	}
	if c.adapt != nil {
		if v, ok := c.adapt(value); ok {
			return ctx.Member.SetValue(ctx.Owner, reflect.ValueOf(v))
		}
	}
	v, err := member.Coerce(reflect.ValueOf(value), ctx.Member.Type)
	if err != nil {
		log.Debug("well-known set rejected", log.FieldPath(ctx.Path), zap.String("tag", c.tag), zap.Error(err))
		return false
	}
	return ctx.Member.SetValue(ctx.Owner, v)
}

func (c *textCodec[T]) Encode(ctx serializer.Context) (string, bool) {
	v, ok := ctx.Member.Value(ctx.Owner)
	if !ok {
		return "", false
	}
	typed, ok := v.Interface().(T)
	if !ok {
		return "", false
	}
	raw, err := c.format(typed)
	if err != nil {
		log.Debug("well-known encode failed", log.FieldPath(ctx.Path), zap.String("tag", c.tag), zap.Error(err))
		return "", false
	}
	return raw, true
}

func (c *textCodec[T]) Decode(ctx serializer.Context, raw string) bool {
	v, err := c.parse(raw)
	if err != nil {
		log.Debug("well-known decode failed", log.FieldPath(ctx.Path), zap.String("tag", c.tag), zap.Error(err))
		return false
	}
	return ctx.Member.SetValue(ctx.Owner, reflect.ValueOf(v))
}
