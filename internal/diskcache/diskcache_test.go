package diskcache

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

func TestFileName(t *testing.T) {
	name := FileName("node_42")
	assert.Regexp(t, regexp.MustCompile(`^id_[0-9a-f]{16}\.cache$`), name)
	assert.Equal(t, name, FileName("node_42"))
	assert.NotEqual(t, name, FileName("node_43"))
}

func TestNew(t *testing.T) {
	_, err := New(" ")
	assert.True(t, errors.Is(err, merr.ErrParameterMissing))

	dir := filepath.Join(t.TempDir(), "lazy")
	c, err := New(dir)
	require.NoError(t, err)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, dir, c.Dir())
}

func TestPersistSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	c, err := New(filepath.Join(dir, "cache"))
	require.NoError(t, err)

	require.NoError(t, c.Persist("node_42", "secretToken", "abc"))
	require.NoError(t, c.Persist("node_42", "origin/x", "3.5"))

	// 写入过的键在本进程内不再被加载。
	_, ok := c.LoadInto("node_42", "secretToken")
	assert.False(t, ok)

	restarted, err := New(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	v, ok := restarted.LoadInto("node_42", "secretToken")
	require.True(t, ok)
	assert.Equal(t, "abc", v)
	_, ok = restarted.LoadInto("node_42", "secretToken")
	assert.False(t, ok)

	v, ok = restarted.LoadInto("node_42", "origin/x")
	require.True(t, ok)
	assert.Equal(t, "3.5", v)

	_, ok = restarted.LoadInto("node_42", "width")
	assert.False(t, ok)
	_, ok = restarted.LoadInto("other", "secretToken")
	assert.False(t, ok)
}

func TestFileLayout(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, c.Persist("obj", "b", "2"))
	require.NoError(t, c.Persist("obj", "a", "1"))
	require.NoError(t, c.Persist("obj", "b", "3"))

	data, err := os.ReadFile(c.Path("obj"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1","b":"3"}`, string(data))
	assert.Less(t, strings.Index(string(data), `"a"`), strings.Index(string(data), `"b"`))

	entries, err := c.Entries("obj")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, entries)

	matches, err := filepath.Glob(filepath.Join(c.Dir(), "*.tmp*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMalformedFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.Path("broken"), []byte("{not json"), 0o644))

	_, ok := c.LoadInto("broken", "p")
	assert.False(t, ok)
	entries, err := c.Entries("broken")
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, c.Persist("broken", "p", "v"))
	fresh, err := New(dir)
	require.NoError(t, err)
	v, ok := fresh.LoadInto("broken", "p")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestEmptyFile(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.Path("empty"), nil, 0o644))

	entries, err := c.Entries("empty")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, c.Persist("gone", "p", "v"))
	require.NoError(t, c.Remove("gone"))
	require.NoError(t, c.Remove("gone"))

	_, err = os.Stat(c.Path("gone"))
	assert.True(t, os.IsNotExist(err))
	_, ok := c.LoadInto("gone", "p")
	assert.False(t, ok)

	// 删除后再次写入的键可以被新的进程重新加载。
	require.NoError(t, c.Persist("gone", "p", "again"))
	fresh, err := New(dir)
	require.NoError(t, err)
	v, ok := fresh.LoadInto("gone", "p")
	require.True(t, ok)
	assert.Equal(t, "again", v)
}

func TestPersistFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	c, err := New(blocker)
	require.NoError(t, err)
	err = c.Persist("id", "p", "v")
	require.Error(t, err)
	assert.True(t, errors.Is(err, merr.ErrIoFailed))

	_, ok := c.LoadInto("id", "p")
	assert.False(t, ok)
}

func TestJSONEngine(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, WithJSONEngine("jsoniter"))
	require.NoError(t, err)
	assert.Equal(t, "jsoniter", c.JSONEngine())
	require.NoError(t, c.Persist("n", "a", "1"))

	// 不同引擎写出的文件格式一致
	other, err := New(dir, WithJSONEngine("unknown"))
	require.NoError(t, err)
	assert.Equal(t, "sonic", other.JSONEngine())
	v, ok := other.LoadInto("n", "a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}
