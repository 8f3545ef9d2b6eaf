// Package diskcache 把可缓存成员的值持久化到磁盘，每个对象标识对应一个文件。
//
// 文件名由标识的 xxhash64 决定：id_<hex>.cache，内容为扁平的 JSON 对象
// { "<path>": "<string-value>" }，键按字典序排列。开启压缩时文件内容为该 JSON 的 zstd 帧。
package diskcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/internal/json"
	"github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/metrics"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
	"github.com/lk2023060901/propbridge/pkg/util/retry"
	"github.com/lk2023060901/propbridge/pkg/util/typeutil"
)

const (
	filePrefix = "id_"
	fileSuffix = ".cache"

	keySeparator = "\x00"
)

// FileName 返回 identity 对应的缓存文件名。
func FileName(identity string) string {
	return fmt.Sprintf("%s%016x%s", filePrefix, xxhash.Sum64String(identity), fileSuffix)
}

// Cache 是基于目录的磁盘缓存。
//
// 每个 (identity, path) 在进程内只会被 LoadInto 返回一次，之后总是报告不存在，
// 避免旧的缓存值覆盖内存中已被修改的值。Persist 也会把对应的键标记为已加载。
type Cache struct {
	log.Binder

	dir        string
	compressor Compressor
	engine     string
	codec      json.API

	mu      sync.Mutex
	entries map[string]map[string]string
	loaded  *typeutil.ConcurrentSet[string]
}

// Option 配置 Cache。
type Option func(*Cache)

// WithCompressor 写入时用 comp 压缩文件内容。读取总能识别压缩过的文件。
func WithCompressor(comp Compressor) Option {
	return func(c *Cache) {
		if comp != nil {
			c.compressor = comp
		}
	}
}

// WithJSONEngine 指定缓存文件使用的 JSON 引擎，只影响本 Cache。未知名称保持缺省的 sonic。
func WithJSONEngine(name string) Option {
	return func(c *Cache) {
		if engine, api, ok := json.Lookup(name); ok {
			c.engine, c.codec = engine, api
		}
	}
}

// New 创建以 dir 为根目录的缓存，目录在首次写入时创建。
func New(dir string, opts ...Option) (*Cache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, merr.WrapErrParameterMissing("cache dir")
	}
	c := &Cache{
		dir:        dir,
		compressor: NopCompressor{},
		entries:    make(map[string]map[string]string),
		loaded:     typeutil.NewConcurrentSet[string](),
	}
	c.engine, c.codec, _ = json.Lookup(json.EngineSonic)
	for _, opt := range opts {
		opt(c)
	}
	c.BindComponent("diskcache")
	return c, nil
}

// Close 释放压缩器持有的资源。
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if z, ok := c.compressor.(*ZstdCompressor); ok {
		z.Close()
	}
	c.compressor = NopCompressor{}
}

func (c *Cache) Dir() string { return c.dir }

// JSONEngine 返回缓存文件使用的 JSON 引擎名称。
func (c *Cache) JSONEngine() string { return c.engine }

// Path 返回 identity 对应缓存文件的完整路径。
func (c *Cache) Path(identity string) string {
	return filepath.Join(c.dir, FileName(identity))
}

func loadedKey(identity, path string) string {
	return identity + keySeparator + path
}

// LoadInto 返回 identity 下 path 的缓存值。
// 文件或键不存在、读取失败、或该键已被加载过时返回 false。
func (c *Cache) LoadInto(identity, path string) (string, bool) {
	key := loadedKey(identity, path)
	if c.loaded.Contain(key) {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.entriesLocked(identity)
	if err != nil {
		metrics.CacheOpsTotal.WithLabelValues(metrics.CacheOpLoad, metrics.ResultFail).Inc()
		c.Logger().Warn("read cache file failed", log.FieldIdentity(identity), zap.Error(err))
		return "", false
	}
	v, ok := entries[path]
	if !ok {
		metrics.CacheOpsTotal.WithLabelValues(metrics.CacheOpLoad, metrics.ResultMiss).Inc()
		return "", false
	}
	if !c.loaded.Insert(key) {
		return "", false
	}
	metrics.CacheOpsTotal.WithLabelValues(metrics.CacheOpLoad, metrics.ResultHit).Inc()
	return v, true
}

// Persist 写入或覆盖 identity 下 path 的缓存值，并立即落盘。
func (c *Cache) Persist(identity, path, value string) error {
	if identity == "" {
		return merr.WrapErrParameterMissing("identity")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.entriesLocked(identity)
	if err != nil {
		metrics.CacheOpsTotal.WithLabelValues(metrics.CacheOpPersist, metrics.ResultFail).Inc()
		return err
	}
	next := make(map[string]string, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[path] = value

	err = retry.Do(log.WithIdentity(context.Background(), identity), func() error {
		err := c.writeFile(identity, next)
		if err != nil && !merr.IsRetryableErr(err) {
			return retry.Unrecoverable(err)
		}
		return err
	}, retry.Attempts(3), retry.Sleep(10*time.Millisecond), retry.MaxSleepTime(100*time.Millisecond))
	if err != nil {
		metrics.CacheOpsTotal.WithLabelValues(metrics.CacheOpPersist, metrics.ResultFail).Inc()
		return err
	}
	c.entries[identity] = next
	c.loaded.Insert(loadedKey(identity, path))
	metrics.CacheOpsTotal.WithLabelValues(metrics.CacheOpPersist, metrics.ResultSuccess).Inc()
	return nil
}

// Entries 返回 identity 的全部缓存项副本。
func (c *Cache) Entries(identity string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.entriesLocked(identity)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out, nil
}

// Remove 删除 identity 的缓存文件，并清除其已加载标记。
func (c *Cache) Remove(identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.Path(identity)); err != nil && !os.IsNotExist(err) {
		return merr.WrapErrIoFailed(c.Path(identity), err)
	}
	delete(c.entries, identity)
	prefix := identity + keySeparator
	c.loaded.Range(func(key string) bool {
		if strings.HasPrefix(key, prefix) {
			c.loaded.Remove(key)
		}
		return true
	})
	return nil
}

// entriesLocked 返回 identity 的缓存内容，首次访问时从磁盘读取。调用方需持有 mu。
func (c *Cache) entriesLocked(identity string) (map[string]string, error) {
	if entries, ok := c.entries[identity]; ok {
		return entries, nil
	}
	entries, err := c.readFile(identity)
	if err != nil {
		return nil, err
	}
	c.entries[identity] = entries
	return entries, nil
}

// readFile 读取缓存文件。文件不存在返回空表；内容损坏时告警并按空表处理。
func (c *Cache) readFile(identity string) (map[string]string, error) {
	file := c.Path(identity)
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, merr.WrapErrIoFailed(file, err)
	}
	entries := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return entries, nil
	}
	data, err = c.decode(data)
	if err == nil {
		err = c.codec.Unmarshal(data, &entries)
	}
	if err != nil {
		metrics.CacheCorruptTotal.Inc()
		c.Logger().WithRateGroup("diskcache.corrupt", 1, 10).RatedWarn(1, "malformed cache file, treat as empty",
			log.FieldIdentity(identity), zap.Error(merr.WrapErrCacheCorrupt(file, err)))
		return map[string]string{}, nil
	}
	return entries, nil
}

// writeFile 先写入同目录下的临时文件，再原子地重命名为目标文件。
func (c *Cache) writeFile(identity string, entries map[string]string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return retry.Unrecoverable(merr.WrapErrIoFailed(c.dir, err))
	}
	data, err := c.codec.MarshalIndent(entries, "", "  ")
	if err != nil {
		return retry.Unrecoverable(merr.WrapErrIoFailed(identity, err))
	}
	data, err = c.compressor.Compress(nil, data)
	if err != nil {
		return retry.Unrecoverable(merr.WrapErrIoFailed(identity, errors.Wrap(err, "compress cache file")))
	}

	target := c.Path(identity)
	tmp, err := os.CreateTemp(c.dir, FileName(identity)+".tmp*")
	if err != nil {
		return merr.WrapErrIoFailed(target, err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmpName, target)
	}
	if werr != nil {
		_ = os.Remove(tmpName)
		return merr.WrapErrIoFailed(target, errors.Wrap(werr, "write cache file"))
	}
	return nil
}
