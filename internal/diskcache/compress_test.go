package diskcache

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZstdCompressor(t *testing.T) {
	z, err := NewZstdCompressor(0)
	require.NoError(t, err)

	src := []byte(`{"origin/x": "3.5"}`)
	packed, err := z.Compress(nil, src)
	require.NoError(t, err)
	assert.True(t, isCompressed(packed))

	plain, err := z.Decompress(nil, packed)
	require.NoError(t, err)
	assert.Equal(t, src, plain)

	z.Close()
	_, err = z.Compress(nil, src)
	assert.Error(t, err)
	_, err = z.Decompress(nil, packed)
	assert.Error(t, err)
}

func TestZstdMinSize(t *testing.T) {
	z, err := NewZstdCompressor(1 << 20)
	require.NoError(t, err)
	defer z.Close()

	src := []byte(`{}`)
	out, err := z.Compress(nil, src)
	require.NoError(t, err)
	assert.False(t, isCompressed(out))
	assert.Equal(t, src, out)
}

func TestCompressedCache(t *testing.T) {
	dir := t.TempDir()
	z, err := NewZstdCompressor(0)
	require.NoError(t, err)

	c, err := New(dir, WithCompressor(z))
	require.NoError(t, err)
	require.NoError(t, c.Persist("node_42", "secretToken", "xyz"))
	c.Close()

	data, err := os.ReadFile(c.Path("node_42"))
	require.NoError(t, err)
	assert.True(t, isCompressed(data))

	// 未开启压缩的 Cache 也能读取压缩文件
	plain, err := New(dir)
	require.NoError(t, err)
	v, ok := plain.LoadInto("node_42", "secretToken")
	assert.True(t, ok)
	assert.Equal(t, "xyz", v)

	// 之后的写入恢复为 JSON 文本
	require.NoError(t, plain.Persist("node_42", "label", "a"))
	data, err = os.ReadFile(plain.Path("node_42"))
	require.NoError(t, err)
	assert.False(t, isCompressed(data))
	assert.Contains(t, string(data), `"secretToken": "xyz"`)
}
