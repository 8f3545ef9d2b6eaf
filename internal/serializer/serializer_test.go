package serializer

import (
	"math"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/propbridge/internal/member"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

type vec2 struct {
	X float64
	Y float64
}

type vec3i struct {
	A, B, C int32
}

type level uint8

type late struct {
	U, V int
}

type sample struct {
	Count  int             `prop:"count"`
	Name   string          `prop:"name"`
	Ratio  float32         `prop:"ratio"`
	On     bool            `prop:"on"`
	Level  level           `prop:"level"`
	Origin vec2            `prop:"origin"`
	Anchor *vec3i          `prop:"anchor"`
	Tags   []string        `prop:"tags"`
	Meta   map[string]int  `prop:"meta"`
	Self   *sample         `prop:"self"`
	Fixed  vec2            `prop:"fixed,readonly"`
	Extra  map[string]bool `prop:"extra,readonly"`
}

func ctxFor(t *testing.T, obj *sample, name string, exp member.Expansion, component int) Context {
	t.Helper()
	for _, d := range member.Enumerate(reflect.TypeOf(obj)) {
		if d.Name == name {
			bound := d.Bind("", exp)
			return Context{
				Identity:  "test",
				Owner:     reflect.ValueOf(obj),
				Member:    bound,
				Path:      bound.LeafPaths()[component],
				Component: component,
			}
		}
	}
	t.Fatalf("member %s not found", name)
	return Context{}
}

func TestResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterVector(reflect.TypeOf(vec2{}), "X", "Y"))

	s, res := r.Resolve(reflect.TypeOf(vec2{}))
	assert.Equal(t, Custom, res)
	assert.Equal(t, member.Vector2, s.Expansion())

	// 只做精确匹配，指针类型不会回退到值类型。
	_, res = r.Resolve(reflect.TypeOf(&vec2{}))
	assert.Equal(t, Unresolved, res)

	for _, v := range []any{"", true, int8(0), uint64(0), uintptr(0), float32(0), level(0)} {
		_, res = r.Resolve(reflect.TypeOf(v))
		assert.Equal(t, Primitive, res, "%T", v)
	}

	_, res = r.Resolve(reflect.TypeOf([]int{}))
	assert.Equal(t, Unresolved, res)
	_, res = r.Resolve(nil)
	assert.Equal(t, Unresolved, res)
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()
	err := r.Register(nil, func() (Serializer, error) { return Opaque(), nil })
	assert.True(t, errors.Is(err, merr.ErrParameterMissing))

	err = r.Register(reflect.TypeOf(vec2{}), nil)
	assert.True(t, errors.Is(err, merr.ErrParameterMissing))

	require.NoError(t, RegisterType[vec2](r, func() (Serializer, error) { return Opaque(), nil }))
	err = r.Register(reflect.TypeOf(vec2{}), func() (Serializer, error) { return Opaque(), nil })
	assert.True(t, errors.Is(err, merr.ErrSerializerDuplicated))
}

func TestScanSkipsBrokenFactories(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(reflect.TypeOf(vec2{}), func() (Serializer, error) {
		return nil, errors.New("no default constructor")
	}))
	require.NoError(t, r.Register(reflect.TypeOf(vec3i{}), func() (Serializer, error) {
		panic("boom")
	}))
	require.NoError(t, r.Register(reflect.TypeOf(level(0)), func() (Serializer, error) {
		return nil, nil
	}))
	require.NoError(t, r.RegisterVector(reflect.TypeOf(&vec3i{}), "A", "B", "C"))
	require.NoError(t, r.RegisterVector(reflect.TypeOf(sample{}), "Count", "Origin"))

	r.ScanAndRegister()
	r.ScanAndRegister()
	assert.Equal(t, []reflect.Type{reflect.TypeOf(&vec3i{})}, r.Registered())

	// 失败的自定义注册不影响基础类型的回退。
	_, res := r.Resolve(reflect.TypeOf(level(0)))
	assert.Equal(t, Primitive, res)

	// 扫描之后的注册立即生效。
	require.NoError(t, r.RegisterVector(reflect.TypeOf(late{}), "U", "V"))
	_, res = r.Resolve(reflect.TypeOf(late{}))
	assert.Equal(t, Custom, res)
}

func TestNewVectorValidation(t *testing.T) {
	_, err := NewVector(reflect.TypeOf(0), "X", "Y")
	assert.Error(t, err)
	_, err = NewVector(reflect.TypeOf(vec2{}), "X")
	assert.Error(t, err)
	_, err = NewVector(reflect.TypeOf(vec2{}), "X", "Q")
	assert.Error(t, err)
	_, err = NewVector(reflect.TypeOf(vec2{}), "X", "Y", "X", "Y", "X")
	assert.Error(t, err)
}

func TestPrimitiveRoundTrip(t *testing.T) {
	obj := &sample{}

	cases := []struct {
		name  string
		value any
	}{
		{"count", 42},
		{"name", "hello"},
		{"ratio", float32(0.1)},
		{"on", true},
		{"level", level(200)},
	}
	for _, c := range cases {
		ctx := ctxFor(t, obj, c.name, member.Scalar, 0)
		require.True(t, primitive.Set(ctx, c.value), c.name)
		got, ok := primitive.Get(ctx)
		require.True(t, ok)
		assert.Equal(t, c.value, got, c.name)
	}

	ctx := ctxFor(t, obj, "ratio", member.Scalar, 0)
	assert.Equal(t, "float32", primitive.TypeTag(ctx.Member.Type))
	raw, ok := primitive.Encode(ctx)
	require.True(t, ok)
	assert.Equal(t, "0.1", raw)
	obj.Ratio = 0
	require.True(t, primitive.Decode(ctx, raw))
	assert.Equal(t, math.Float32bits(0.1), math.Float32bits(obj.Ratio))
}

func TestPrimitiveStringInput(t *testing.T) {
	obj := &sample{}

	assert.True(t, primitive.Set(ctxFor(t, obj, "count", member.Scalar, 0), " 17 "))
	assert.Equal(t, 17, obj.Count)
	assert.True(t, primitive.Set(ctxFor(t, obj, "on", member.Scalar, 0), "true"))
	assert.True(t, obj.On)
	assert.True(t, primitive.Set(ctxFor(t, obj, "name", member.Scalar, 0), "42"))
	assert.Equal(t, "42", obj.Name)

	assert.False(t, primitive.Set(ctxFor(t, obj, "level", member.Scalar, 0), "256"))
	assert.False(t, primitive.Set(ctxFor(t, obj, "level", member.Scalar, 0), -1))
	assert.False(t, primitive.Set(ctxFor(t, obj, "count", member.Scalar, 0), "abc"))
	assert.False(t, primitive.Decode(ctxFor(t, obj, "count", member.Scalar, 0), "1.5"))
	assert.Equal(t, 17, obj.Count)
}

func TestVectorWriteBack(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterVector(reflect.TypeOf(vec2{}), "X", "Y"))
	s, _ := r.Resolve(reflect.TypeOf(vec2{}))

	obj := &sample{Origin: vec2{X: 1, Y: 2}}
	x := ctxFor(t, obj, "origin", member.Vector2, 0)
	y := ctxFor(t, obj, "origin", member.Vector2, 1)
	assert.Equal(t, "origin/x", x.Path)

	require.True(t, s.Set(x, 3.5))
	assert.Equal(t, vec2{X: 3.5, Y: 2}, obj.Origin)
	got, ok := s.Get(y)
	require.True(t, ok)
	assert.Equal(t, 2.0, got)

	raw, ok := s.Encode(x)
	require.True(t, ok)
	assert.Equal(t, "3.5", raw)
	require.True(t, s.Decode(y, "-4"))
	assert.Equal(t, vec2{X: 3.5, Y: -4}, obj.Origin)

	assert.False(t, s.Set(Context{Owner: x.Owner, Member: x.Member, Component: 2}, 1.0))

	fixed := ctxFor(t, obj, "fixed", member.Vector2, 0)
	assert.False(t, s.Set(fixed, 9.0))
	assert.Equal(t, vec2{}, obj.Fixed)
}

func TestVectorPointer(t *testing.T) {
	s, err := NewVector(reflect.TypeOf(&vec3i{}), "A", "B", "C")
	require.NoError(t, err)
	assert.Equal(t, "vector3<int32>", s.TypeTag(nil))

	obj := &sample{}
	z := ctxFor(t, obj, "anchor", member.Vector3, 2)
	_, ok := s.Get(z)
	assert.False(t, ok)
	assert.False(t, s.Set(z, 1))

	obj.Anchor = &vec3i{}
	require.True(t, s.Set(z, "7"))
	assert.Equal(t, int32(7), obj.Anchor.C)
}

func TestOpaque(t *testing.T) {
	obj := &sample{Tags: []string{"a", "b"}}
	tags := ctxFor(t, obj, "tags", member.Scalar, 0)

	raw, ok := Opaque().Encode(tags)
	require.True(t, ok)
	assert.JSONEq(t, `["a","b"]`, raw)

	require.True(t, Opaque().Set(tags, []string{"c"}))
	assert.Equal(t, []string{"c"}, obj.Tags)

	require.True(t, Opaque().Set(tags, `["x","y"]`))
	assert.Equal(t, []string{"x", "y"}, obj.Tags)

	assert.False(t, Opaque().Set(tags, `{"not":"a list"}`))
	assert.False(t, Opaque().Set(tags, 12))

	meta := ctxFor(t, obj, "meta", member.Scalar, 0)
	require.True(t, Opaque().Decode(meta, `{"k":1}`))
	assert.Equal(t, map[string]int{"k": 1}, obj.Meta)
	got, ok := Opaque().Get(meta)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"k": 1}, got)

	extra := ctxFor(t, obj, "extra", member.Scalar, 0)
	assert.False(t, Opaque().Decode(extra, `{"k":true}`))
	assert.Nil(t, obj.Extra)
}

func TestCyclic(t *testing.T) {
	obj := &sample{}
	obj.Self = obj
	self := ctxFor(t, obj, "self", member.Scalar, 0)

	got, ok := Cyclic().Get(self)
	require.True(t, ok)
	assert.Same(t, obj, got)

	_, ok = Cyclic().Encode(self)
	assert.False(t, ok)
	assert.False(t, Cyclic().Decode(self, "{}"))
	assert.False(t, Cyclic().Set(self, "{}"))

	other := &sample{Count: 3}
	require.True(t, Cyclic().Set(self, other))
	assert.Same(t, other, obj.Self)
	assert.Equal(t, "cyclic:*serializer.sample", Cyclic().TypeTag(reflect.TypeOf(obj)))
}
