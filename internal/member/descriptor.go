package member

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/lk2023060901/propbridge/pkg/log"
	"github.com/lk2023060901/propbridge/pkg/util/merr"
)

// Descriptor 描述一个可序列化成员：访问器、声明类型、可见性以及它在属性树中的路径。
//
// Descriptor 不持有所属对象实例，读写时由调用方传入 owner。
// 通过 Enumerate 得到的 Descriptor 是按类型共享的模板，需经 Bind 绑定路径后再使用。
type Descriptor struct {
	Name       string
	Owner      reflect.Type
	Type       reflect.Type
	Visibility Visibility
	Cache      bool

	accessor  Accessor
	path      string
	expansion Expansion
	leafPaths []string
}

// Bind 返回绑定到 prefix 下的副本，并按 exp 预先计算全部叶子路径。
func (d *Descriptor) Bind(prefix string, exp Expansion) *Descriptor {
	bound := *d
	bound.path = JoinPath(prefix, d.Name)
	bound.expansion = exp
	if comps := exp.Components(); len(comps) > 0 {
		bound.leafPaths = make([]string, len(comps))
		for i, c := range comps {
			bound.leafPaths[i] = bound.path + PathSeparator + c
		}
	} else {
		bound.leafPaths = []string{bound.path}
	}
	return &bound
}

// Path 返回成员节点路径。
func (d *Descriptor) Path() string { return d.path }

func (d *Descriptor) Expansion() Expansion { return d.expansion }

// LeafPaths 返回该成员暴露的全部叶子路径，顺序与分量顺序一致。
func (d *Descriptor) LeafPaths() []string { return d.leafPaths }

func (d *Descriptor) CanRead() bool  { return d.accessor.CanRead() }
func (d *Descriptor) CanWrite() bool { return d.accessor.CanWrite() }

// IsPropertyName 判断 candidate 是否命中该成员的某条叶子路径，
// 命中时返回分量下标，未命中返回 -1。
func (d *Descriptor) IsPropertyName(candidate string) (bool, int) {
	for i, p := range d.leafPaths {
		if p == candidate {
			return true, i
		}
	}
	return false, -1
}

// Value 通过访问器读取成员的当前值。
// 不可读或读取失败时返回 false，不会 panic。
func (d *Descriptor) Value(owner reflect.Value) (v reflect.Value, ok bool) {
	if !d.accessor.CanRead() {
		return reflect.Value{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("member read panicked", log.FieldPath(d.path), log.FieldType(d.Owner), zap.Any("panic", r))
			v, ok = reflect.Value{}, false
		}
	}()
	v, err := d.accessor.Get(owner)
	if err != nil {
		log.Debug("member read failed", log.FieldPath(d.path), zap.Error(err))
		return reflect.Value{}, false
	}
	return v, true
}

// SetValue 将 value 转换为成员声明类型后写入。
// 成员不可写、类型不可转换或写入失败时返回 false，不会 panic。
func (d *Descriptor) SetValue(owner reflect.Value, value reflect.Value) (ok bool) {
	if !d.accessor.CanWrite() {
		log.Debug("member not writable", log.FieldPath(d.path), log.FieldType(d.Owner))
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("member write panicked", log.FieldPath(d.path), log.FieldType(d.Owner), zap.Any("panic", r))
			ok = false
		}
	}()
	converted, err := Coerce(value, d.Type)
	if err != nil {
		log.Debug("member value not convertible", log.FieldPath(d.path), zap.Error(err))
		return false
	}
	if err := d.accessor.Set(owner, converted); err != nil {
		log.Debug("member write failed", log.FieldPath(d.path), zap.Error(err))
		return false
	}
	return true
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s.%s(%s)", d.Owner, d.accessor.Name(), d.Type)
}

// PathSeparator 是属性路径分隔符。
const PathSeparator = "/"

// JoinPath 拼接父路径与成员名，根节点路径即成员名。
func JoinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + PathSeparator + name
}

// ValidatePath 校验路径格式：非空、无首尾分隔符、无空段。
func ValidatePath(path string) error {
	if path == "" {
		return merr.WrapErrPathInvalid(path, "empty path")
	}
	for _, seg := range strings.Split(path, PathSeparator) {
		if seg == "" {
			return merr.WrapErrPathInvalid(path, "empty segment")
		}
	}
	return nil
}
