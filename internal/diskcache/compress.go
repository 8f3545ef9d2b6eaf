package diskcache

import (
	"bytes"
	"runtime"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstd 帧的魔数，JSON 文本不可能以它开头。
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Compressor 对整个缓存文件做单次压缩/解压。
type Compressor interface {
	Compress(dst, src []byte) ([]byte, error)
	Decompress(dst, src []byte) ([]byte, error)
}

// NopCompressor 不做任何处理，缓存文件保持为 JSON 文本。
type NopCompressor struct{}

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

var _ Compressor = NopCompressor{}

// ZstdCompressor 基于 github.com/klauspost/compress/zstd 压缩缓存文件。
// 小于 minSize 的内容不压缩，直接以 JSON 文本落盘。
type ZstdCompressor struct {
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	minSize int
}

var _ Compressor = (*ZstdCompressor)(nil)

// NewZstdCompressor 创建压缩器。minSize <= 0 时总是压缩。
func NewZstdCompressor(minSize int) (*ZstdCompressor, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithZeroFrames(true),
		zstd.WithEncoderConcurrency(runtime.GOMAXPROCS(0)),
	)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	if minSize < 0 {
		minSize = 0
	}
	return &ZstdCompressor{enc: enc, dec: dec, minSize: minSize}, nil
}

func (c *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c == nil || c.enc == nil {
		return nil, zstd.ErrEncoderClosed
	}
	if len(src) < c.minSize {
		return src, nil
	}
	return c.enc.EncodeAll(src, dst[:0]), nil
}

func (c *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if c == nil || c.dec == nil {
		return nil, zstd.ErrDecoderClosed
	}
	return c.dec.DecodeAll(src, dst[:0])
}

// Close 释放 encoder/decoder，之后的调用返回 ErrEncoderClosed/ErrDecoderClosed。
func (c *ZstdCompressor) Close() {
	if c == nil {
		return
	}
	if c.enc != nil {
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
}

// 未开启压缩的 Cache 仍要能读取压缩过的文件。
var sharedDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
})

func isCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// decode 把文件内容还原为 JSON 文本。
func (c *Cache) decode(data []byte) ([]byte, error) {
	if !isCompressed(data) {
		return data, nil
	}
	if z, ok := c.compressor.(*ZstdCompressor); ok && z.dec != nil {
		return z.Decompress(nil, data)
	}
	dec, err := sharedDecoder()
	if err != nil {
		return nil, err
	}
	return dec.DecodeAll(data, nil)
}
