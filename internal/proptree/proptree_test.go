package proptree

import (
	"reflect"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/propbridge/internal/member"
	"github.com/lk2023060901/propbridge/internal/serializer"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

type point struct {
	X float64 `prop:"x"`
	Y float64 `prop:"y"`
}

type node struct {
	Width       int    `prop:"width"`
	SecretToken string `prop:",hidden"`
	Origin      point  `prop:"origin"`
}

type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	loaded  map[string]bool
	persist int
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, loaded: map[string]bool{}}
}

func (s *memStore) LoadInto(identity, path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identity + "|" + path
	if s.loaded[key] {
		return "", false
	}
	v, ok := s.data[key]
	if ok {
		s.loaded[key] = true
	}
	return v, ok
}

func (s *memStore) Persist(identity, path, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identity + "|" + path
	s.data[key] = value
	s.loaded[key] = true
	s.persist++
	return nil
}

func newTestBuilder(opts ...BuilderOption) *Builder {
	return NewBuilder(serializer.NewRegistry(), opts...)
}

func TestNode42(t *testing.T) {
	obj := &node{Width: 10, SecretToken: "abc"}
	tree, err := newTestBuilder().Build("node_42", obj)
	require.NoError(t, err)

	assert.Equal(t, []string{"width", "secretToken", "origin/x", "origin/y"}, tree.Paths())

	props := tree.PropertyList()
	require.Len(t, props, 4)
	assert.Equal(t, "int", props[0].TypeTag)
	assert.Equal(t, FlagShown, props[0].Flags)
	assert.Equal(t, FlagHidden|FlagCached, props[1].Flags)
	assert.Equal(t, Primitive, props[2].Kind)

	require.True(t, tree.Set("origin/x", 3.5))
	v, ok := tree.Get("origin/x")
	require.True(t, ok)
	assert.Equal(t, 3.5, v)
	assert.Equal(t, point{X: 3.5, Y: 0}, obj.Origin)

	v, ok = tree.Get("origin/y")
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	v, ok = tree.Get("secretToken")
	require.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestRoundTripAndIdempotence(t *testing.T) {
	obj := &node{}
	tree, err := newTestBuilder().Build("rt", obj)
	require.NoError(t, err)

	first := tree.PropertyList()
	assert.Equal(t, first, tree.PropertyList())
	assert.Len(t, first, tree.Len())

	values := map[string]any{
		"width":       -7,
		"secretToken": "xyz",
		"origin/x":    0.1 + 0.2,
		"origin/y":    -1e-300,
	}
	for p, v := range values {
		require.True(t, tree.Set(p, v), p)
	}
	for p, v := range values {
		got, ok := tree.Get(p)
		require.True(t, ok, p)
		assert.Equal(t, v, got, p)
	}
}

func TestMissingPath(t *testing.T) {
	tree, err := newTestBuilder().Build("missing", &node{})
	require.NoError(t, err)

	for _, p := range []string{"height", "origin", "origin/z", "origin/x/y", "", "/width", "width/"} {
		_, ok := tree.Get(p)
		assert.False(t, ok, p)
		assert.False(t, tree.Set(p, 1), p)
	}
}

type deep struct {
	V int `prop:"v"`
}

type inner struct {
	Deep deep `prop:"deep"`
	Tag  string
}

type holder struct {
	Inner inner  `prop:"inner"`
	Ptr   *inner `prop:"ptr"`
	Fixed inner  `prop:"fixed,readonly"`
}

func TestWriteBackThroughValueAncestors(t *testing.T) {
	obj := &holder{Inner: inner{Tag: "keep"}, Ptr: &inner{}}
	tree, err := newTestBuilder().Build("wb", obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"inner/deep/v", "ptr/deep/v", "fixed/deep/v"}, tree.Paths())

	require.True(t, tree.Set("inner/deep/v", 5))
	assert.Equal(t, 5, obj.Inner.Deep.V)
	assert.Equal(t, "keep", obj.Inner.Tag)

	// 指针分支下的值类型成员写回到指针指向的对象。
	require.True(t, tree.Set("ptr/deep/v", "6"))
	assert.Equal(t, 6, obj.Ptr.Deep.V)

	assert.False(t, tree.Set("fixed/deep/v", 7))
	assert.Equal(t, 0, obj.Fixed.Deep.V)
	assert.True(t, tree.PropertyList()[2].Flags.Has(FlagShown))

	v, ok := tree.Get("fixed/deep/v")
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

type nodeA struct {
	Name string `prop:"name"`
	B    *nodeB `prop:"b"`
}

type nodeB struct {
	Score int    `prop:"score"`
	A     *nodeA `prop:"a"`
}

func TestCycle(t *testing.T) {
	a := &nodeA{Name: "a"}
	b := &nodeB{Score: 1, A: a}
	a.B = b

	tree, err := newTestBuilder().Build("A", a)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "b/score", "b/a"}, tree.Paths())

	props := tree.PropertyList()
	assert.Equal(t, OpaqueCyclic, props[2].Kind)
	assert.True(t, props[2].Flags.Has(FlagOpaque))

	v, ok := tree.Get("b/a")
	require.True(t, ok)
	assert.Same(t, a, v)

	require.True(t, tree.Set("b/score", 9))
	assert.Equal(t, 9, b.Score)
}

type pair struct {
	Left  *deepHolder `prop:"left"`
	Right *deepHolder `prop:"right"`
}

type deepHolder struct {
	Deep deep `prop:"deep"`
}

func TestSharedReferenceIsNotCyclic(t *testing.T) {
	shared := &deepHolder{}
	tree, err := newTestBuilder().Build("pair", &pair{Left: shared, Right: shared})
	require.NoError(t, err)
	assert.Equal(t, []string{"left/deep/v", "right/deep/v"}, tree.Paths())

	require.True(t, tree.Set("right/deep/v", 3))
	v, ok := tree.Get("left/deep/v")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

type aliasRoot struct {
	First point  `prop:"first"`
	Alias *point `prop:"alias"`
}

func TestAliasOfFirstFieldIsNotCyclic(t *testing.T) {
	obj := &aliasRoot{}
	obj.Alias = &obj.First

	tree, err := newTestBuilder().Build("alias", obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"first/x", "first/y", "alias/x", "alias/y"}, tree.Paths())
	for _, p := range tree.PropertyList() {
		assert.Equal(t, Primitive, p.Kind, p.Path)
	}

	require.True(t, tree.Set("alias/x", 2.5))
	assert.Equal(t, 2.5, obj.First.X)
	v, ok := tree.Get("first/x")
	require.True(t, ok)
	assert.Equal(t, 2.5, v)
}

type chain struct {
	Level int    `prop:"level"`
	Next  *chain `prop:"next"`
}

func TestDepthLimit(t *testing.T) {
	root := &chain{}
	cur := root
	for i := 1; i < 10; i++ {
		cur.Next = &chain{Level: i}
		cur = cur.Next
	}

	tree, err := newTestBuilder(WithMaxDepth(2)).Build("chain", root)
	require.NoError(t, err)
	assert.Equal(t, []string{"level", "next/level", "next/next/level", "next/next/next"}, tree.Paths())
	assert.Equal(t, OpaqueDepthLimit, tree.PropertyList()[3].Kind)
}

type unexportedOnly struct {
	n int
}

type shapes struct {
	List   []int          `prop:"list"`
	Dict   map[string]int `prop:"dict"`
	Any    any            `prop:"any"`
	Empty  unexportedOnly `prop:"empty"`
	Nil    *deepHolder    `prop:"nil"`
	IntPtr *int           `prop:"intPtr"`
}

func TestOpaqueClassification(t *testing.T) {
	obj := &shapes{List: []int{1}}
	tree, err := newTestBuilder().Build("shapes", obj)
	require.NoError(t, err)

	kinds := map[string]LeafKind{}
	for _, p := range tree.PropertyList() {
		kinds[p.Path] = p.Kind
		assert.True(t, p.Flags.Has(FlagOpaque), p.Path)
	}
	assert.Equal(t, map[string]LeafKind{
		"list":   OpaqueContainer,
		"dict":   OpaqueContainer,
		"any":    OpaqueContainer,
		"empty":  OpaqueNoMembers,
		"nil":    OpaqueNil,
		"intPtr": OpaqueContainer,
	}, kinds)

	require.True(t, tree.Set("list", "[4,5]"))
	assert.Equal(t, []int{4, 5}, obj.List)
	require.True(t, tree.Set("nil", &deepHolder{}))
	assert.NotNil(t, obj.Nil)
}

type pos3 struct {
	X, Y, Z float32
}

type body struct {
	Pos pos3 `prop:"pos"`
}

func TestCustomVector(t *testing.T) {
	reg := serializer.NewRegistry()
	require.NoError(t, reg.RegisterVector(reflect.TypeOf(pos3{}), "X", "Y", "Z"))

	obj := &body{}
	tree, err := NewBuilder(reg).Build("body", obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"pos/x", "pos/y", "pos/z"}, tree.Paths())
	assert.Equal(t, Custom, tree.PropertyList()[0].Kind)

	require.True(t, tree.Set("pos/y", 2))
	assert.Equal(t, pos3{Y: 2}, obj.Pos)
}

type dup struct {
	A int `prop:"same"`
	B int `prop:"same"`
}

func TestDuplicatePathsFirstWins(t *testing.T) {
	obj := &dup{A: 1, B: 2}
	tree, err := newTestBuilder().Build("dup", obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"same", "same"}, tree.Paths())

	v, ok := tree.Get("same")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	require.True(t, tree.Set("same", 5))
	assert.Equal(t, 5, obj.A)
	assert.Equal(t, 2, obj.B)
}

func TestCacheReadWriteThrough(t *testing.T) {
	store := newMemStore()
	store.data["cached|secretToken"] = "from-disk"
	store.data["cached|width"] = "99"

	obj := &node{SecretToken: "live", Width: 1}
	tree, err := newTestBuilder(WithStore(store)).Build("cached", obj)
	require.NoError(t, err)

	// 只有可缓存成员会从缓存中恢复。
	v, ok := tree.Get("width")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = tree.Get("secretToken")
	require.True(t, ok)
	assert.Equal(t, "from-disk", v)

	obj.SecretToken = "edited"
	v, _ = tree.Get("secretToken")
	assert.Equal(t, "edited", v)

	require.True(t, tree.Set("secretToken", "new"))
	assert.Equal(t, "new", store.data["cached|secretToken"])
	require.True(t, tree.Set("width", 3))
	assert.Equal(t, 1, store.persist)
}

type cachedInner struct {
	V int `prop:"v,cache"`
}

type methodHolder struct {
	inner cachedInner
	sets  int
}

func (h *methodHolder) Inner() cachedInner { return h.inner }

func (h *methodHolder) SetInner(v cachedInner) {
	h.inner = v
	h.sets++
}

func (h *methodHolder) PropertyMethods() []member.MethodProperty {
	return []member.MethodProperty{
		{Name: "inner", Getter: "Inner", Setter: "SetInner", Visibility: member.Shown},
	}
}

func TestCacheSeedWritesBackThroughSetter(t *testing.T) {
	store := newMemStore()
	store.data["h|inner/v"] = "7"

	obj := &methodHolder{}
	tree, err := newTestBuilder(WithStore(store)).Build("h", obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"inner/v"}, tree.Paths())
	assert.True(t, tree.PropertyList()[0].Flags.Has(FlagCached))

	v, ok := tree.Get("inner/v")
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, 7, obj.inner.V)
	assert.Equal(t, 1, obj.sets)

	// 缓存值只回填一次
	obj.inner.V = 8
	v, _ = tree.Get("inner/v")
	assert.Equal(t, 8, v)
	assert.Equal(t, 1, obj.sets)

	require.True(t, tree.Set("inner/v", 9))
	assert.Equal(t, 9, obj.inner.V)
	assert.Equal(t, "9", store.data["h|inner/v"])
}

type readonlyInner struct {
	Inner cachedInner `prop:"inner,readonly"`
}

func TestCacheSeedKeptBehindReadOnlyAncestor(t *testing.T) {
	store := newMemStore()
	store.data["ro|inner/v"] = "7"

	obj := &readonlyInner{}
	tree, err := newTestBuilder(WithStore(store)).Build("ro", obj)
	require.NoError(t, err)

	v, ok := tree.Get("inner/v")
	require.True(t, ok)
	assert.Equal(t, 0, v)
	assert.False(t, store.loaded["ro|inner/v"])
}

func TestDegenerationErrors(t *testing.T) {
	b := newTestBuilder(WithMaxDepth(4))
	desc := member.Enumerate(reflect.TypeOf(shapes{}))[0].Bind("", member.Scalar)

	assert.True(t, errors.Is(b.degenerationErr(desc, OpaqueCyclic, 1), merr.ErrCyclicReference))
	assert.True(t, errors.Is(b.degenerationErr(desc, OpaqueDepthLimit, 5), merr.ErrDepthExceeded))
	assert.True(t, errors.Is(b.degenerationErr(desc, OpaqueContainer, 1), merr.ErrMissingSerializer))
	assert.True(t, errors.Is(b.degenerationErr(desc, OpaqueNoMembers, 1), merr.ErrMissingSerializer))
	assert.NoError(t, b.degenerationErr(desc, OpaqueNil, 1))
}

func TestBuildInvalid(t *testing.T) {
	b := newTestBuilder()
	_, err := b.Build("", &node{})
	assert.True(t, errors.Is(err, merr.ErrParameterMissing))

	var nilNode *node
	for _, obj := range []any{nil, node{}, nilNode, new(int)} {
		_, err = b.Build("x", obj)
		assert.True(t, errors.Is(err, merr.ErrParameterInvalid), "%T", obj)
	}
}

func TestForest(t *testing.T) {
	f, err := NewForest(newTestBuilder(), 2)
	require.NoError(t, err)

	a := &node{Width: 1}
	t1, err := f.Build("a", a)
	require.NoError(t, err)
	t2, err := f.Build("a", &node{Width: 2})
	require.NoError(t, err)
	assert.Same(t, t1, t2)
	assert.Same(t, a, t2.Root())

	_, err = f.Build("b", &node{})
	require.NoError(t, err)
	_, err = f.Build("c", &node{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())

	_, ok := f.Get("a")
	assert.False(t, ok)

	assert.True(t, f.Forget("b"))
	assert.False(t, f.Forget("b"))

	_, err = f.Build("bad", 3)
	assert.Error(t, err)
	_, ok = f.Get("bad")
	assert.False(t, ok)

	stats := f.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(4), stats.Misses)
	assert.Equal(t, int64(2), stats.Released)
	assert.Equal(t, 1, stats.Len)

	f.Purge()
	assert.Equal(t, 0, f.Len())
}

func TestForestConcurrentFirstAccess(t *testing.T) {
	f, err := NewForest(newTestBuilder(), 0)
	require.NoError(t, err)

	obj := &node{}
	var wg sync.WaitGroup
	trees := make([]*Tree, 16)
	for i := range trees {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tree, err := f.Build("shared", obj)
			assert.NoError(t, err)
			trees[i] = tree
		}(i)
	}
	wg.Wait()

	for _, tree := range trees {
		assert.Same(t, trees[0], tree)
	}
	assert.Equal(t, int64(1), f.Stats().Misses)
}
