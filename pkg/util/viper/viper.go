package viper

import (
	"path/filepath"
	"strings"

	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。
// 未加载配置文件时，Unmarshal 仅返回默认值与环境变量覆盖的结果。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断。
func (c *Config) LoadFile(path string) error {
	c.ensure()

	c.v.SetConfigFile(path)

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	default:
		// 让 viper 自行推断类型，或在读取时返回清晰的错误信息。
	}

	return c.v.ReadInConfig()
}

// BindEnv 开启环境变量覆盖。
// 例如 prefix 为 PROPBRIDGE 时，cache.dir 对应 PROPBRIDGE_CACHE_DIR。
func (c *Config) BindEnv(prefix string) {
	c.ensure()
	c.v.SetEnvPrefix(prefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	c.v.AutomaticEnv()
}

// SetDefault 为指定 key 设置缺省值。
func (c *Config) SetDefault(key string, value any) {
	c.ensure()
	c.v.SetDefault(key, value)
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst interface{}) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) UnmarshalKey(key string, dst interface{}) error {
	if c.v == nil {
		return nil
	}
	return c.v.UnmarshalKey(key, dst)
}

func (c *Config) ensure() {
	if c.v == nil {
		c.v = spfviper.New()
	}
}
