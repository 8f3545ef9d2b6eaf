package bridge

import (
	"github.com/lk2023060901/propbridge/internal/proptree"
	"github.com/lk2023060901/propbridge/pkg/log"
)

const (
	DefaultCacheDir        = "./.propcache"
	DefaultJSONEngine      = "sonic"
	DefaultCompressMinSize = 4096
)

// Config 是 Bridge 的配置，可通过 pkg/util/viper 从 YAML/JSON 文件加载。
type Config struct {
	Cache CacheConfig `json:"cache" mapstructure:"cache"`
	Tree  TreeConfig  `json:"tree" mapstructure:"tree"`
	JSON  JSONConfig  `json:"json" mapstructure:"json"`
	Log   log.Config  `json:"log" mapstructure:"log"`
}

// CacheConfig 控制可缓存成员的磁盘持久化。
type CacheConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" mapstructure:"dir"`

	// Compress 为 true 时超过 CompressMinSize 字节的缓存文件以 zstd 压缩落盘。
	Compress        bool `json:"compress" mapstructure:"compress"`
	CompressMinSize int  `json:"compress-min-size" mapstructure:"compress-min-size"`
}

// TreeConfig 控制属性树的构建与缓存。
type TreeConfig struct {
	// Capacity 为同时缓存的属性树数量上限，超出时淘汰最久未使用的树。
	Capacity int `json:"capacity" mapstructure:"capacity"`
	// MaxDepth 为构建时允许的最大嵌套深度。
	MaxDepth int `json:"max-depth" mapstructure:"max-depth"`
	// Workers 为 AttachAll 并发构建的协程数，<= 0 时使用 GOMAXPROCS。
	Workers int `json:"workers" mapstructure:"workers"`
}

type JSONConfig struct {
	// Engine 可选 sonic 或 jsoniter，只作用于本 Bridge 的缓存文件。
	// 黑盒成员值的编码使用进程级引擎，见 json.SetEngine。
	Engine string `json:"engine" mapstructure:"engine"`
}

// DefaultConfig 返回缺省配置。
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{Enabled: true, Dir: DefaultCacheDir, CompressMinSize: DefaultCompressMinSize},
		Tree:  TreeConfig{Capacity: proptree.DefaultCapacity, MaxDepth: proptree.DefaultMaxDepth},
		JSON:  JSONConfig{Engine: DefaultJSONEngine},
		Log:   log.Config{Level: "info", Format: log.FormatText},
	}
}

// Defaults 以 viper 键的形式返回缺省配置，供配置加载时注册。
func Defaults() map[string]any {
	cfg := DefaultConfig()
	return map[string]any{
		"cache.enabled":           cfg.Cache.Enabled,
		"cache.dir":               cfg.Cache.Dir,
		"cache.compress":          cfg.Cache.Compress,
		"cache.compress-min-size": cfg.Cache.CompressMinSize,
		"tree.capacity":           cfg.Tree.Capacity,
		"tree.max-depth":          cfg.Tree.MaxDepth,
		"tree.workers":            cfg.Tree.Workers,
		"json.engine":             cfg.JSON.Engine,
		"log.level":               cfg.Log.Level,
		"log.format":              cfg.Log.Format,
	}
}
