// Package json 为项目提供统一的 JSON 编解码入口。
//
// 默认使用 bytedance/sonic（标准库兼容配置，map 键有序输出），
// 可通过 SetEngine 切换到 json-iterator。
package json

import (
	"strings"
	"sync/atomic"

	"github.com/bytedance/sonic"
	jsoniter "github.com/json-iterator/go"
)

const (
	EngineSonic    = "sonic"
	EngineJSONIter = "jsoniter"
)

// API 是 sonic 与 json-iterator 共同满足的最小编解码接口。
type API interface {
	Marshal(v any) ([]byte, error)
	MarshalIndent(v any, prefix, indent string) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	_ API = sonic.ConfigStd
	_ API = jsoniter.ConfigCompatibleWithStandardLibrary
)

type engineHolder struct {
	name string
	api  API
}

var current atomic.Pointer[engineHolder]

func init() {
	current.Store(&engineHolder{name: EngineSonic, api: sonic.ConfigStd})
}

// Lookup 按名称返回引擎，空名称对应 sonic。返回的 API 可独立于全局引擎使用。
func Lookup(name string) (string, API, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineSonic:
		return EngineSonic, sonic.ConfigStd, true
	case EngineJSONIter:
		return EngineJSONIter, jsoniter.ConfigCompatibleWithStandardLibrary, true
	default:
		return "", nil, false
	}
}

// SetEngine 切换进程级 JSON 引擎，未知名称返回 false 且保持原引擎。
func SetEngine(name string) bool {
	name, api, ok := Lookup(name)
	if !ok {
		return false
	}
	current.Store(&engineHolder{name: name, api: api})
	return true
}

// Engine 返回当前使用的引擎名称。
func Engine() string {
	return current.Load().name
}

func Marshal(v any) ([]byte, error) {
	return current.Load().api.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return current.Load().api.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return current.Load().api.Unmarshal(data, v)
}
