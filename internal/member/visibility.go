package member

import "strings"

// TagName 是成员可见性标记使用的结构体标签名。
const TagName = "prop"

// Visibility 描述成员对宿主的可见性。
type Visibility int

const (
	// NotSerialized 表示成员不参与序列化。
	NotSerialized Visibility = iota
	// Shown 表示成员在属性列表中可见。
	Shown
	// HiddenCached 表示成员对宿主隐藏，但其值会写入磁盘缓存。
	HiddenCached
)

func (v Visibility) String() string {
	switch v {
	case Shown:
		return "shown"
	case HiddenCached:
		return "hidden"
	default:
		return "not_serialized"
	}
}

// Tag 是解析后的 prop 标签。
//
// 格式：`prop:"<name>[,shown|hidden][,cache][,readonly]"`，
// `prop:"-"` 或缺省标签表示不参与序列化。
type Tag struct {
	Name       string
	Visibility Visibility
	Cache      bool
	ReadOnly   bool
}

// ParseTag 解析 prop 标签。ok 为 false 表示成员不参与序列化。
func ParseTag(raw string, present bool) (tag Tag, ok bool) {
	if !present || raw == "-" {
		return Tag{}, false
	}
	parts := strings.Split(raw, ",")
	tag = Tag{Name: strings.TrimSpace(parts[0]), Visibility: Shown}
	for _, opt := range parts[1:] {
		switch strings.TrimSpace(opt) {
		case "shown":
			tag.Visibility = Shown
		case "hidden":
			tag.Visibility = HiddenCached
			tag.Cache = true
		case "cache":
			tag.Cache = true
		case "readonly":
			tag.ReadOnly = true
		}
	}
	return tag, true
}
