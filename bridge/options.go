package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lk2023060901/propbridge/internal/serializer"
	"github.com/lk2023060901/propbridge/pkg/log"
)

type options struct {
	registry      *serializer.Registry
	logger        *log.MLogger
	cacheDir      string
	cacheDisabled bool
	compress      bool
	capacity      int
	maxDepth      int
	workers       int
	registerer    prometheus.Registerer
}

// Option 在 Config 之上覆盖单项设置。
type Option func(*options)

// WithRegistry 使用指定的 Serializer Registry（见 NewRegistry）代替默认 Registry。
func WithRegistry(r *serializer.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

func WithLogger(l *log.MLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithCacheDisabled 关闭磁盘缓存，可缓存成员退化为普通成员。
func WithCacheDisabled() Option {
	return func(o *options) {
		o.cacheDisabled = true
	}
}

// WithCacheCompression 以 zstd 压缩缓存文件。
func WithCacheCompression() Option {
	return func(o *options) {
		o.compress = true
	}
}

func WithTreeCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

func WithMaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}

// WithWorkers 设置 AttachAll 的并发度。
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithRegisterer 把指标注册到 r，整个进程只注册一次。
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}
