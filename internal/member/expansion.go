package member

// Expansion 描述一个成员展开为多少条叶子路径。
type Expansion int

const (
	Scalar Expansion = iota
	Vector2
	Vector3
	Vector4
)

var componentNames = [...]string{"x", "y", "z", "w"}

// Components 返回展开后的分量名，Scalar 返回 nil。
func (e Expansion) Components() []string {
	switch e {
	case Vector2:
		return componentNames[:2]
	case Vector3:
		return componentNames[:3]
	case Vector4:
		return componentNames[:4]
	default:
		return nil
	}
}

// Len 返回分量个数，Scalar 为 1。
func (e Expansion) Len() int {
	if n := len(e.Components()); n > 0 {
		return n
	}
	return 1
}

// ExpansionOf 根据分量个数返回对应的展开方式，不支持的个数返回 false。
func ExpansionOf(components int) (Expansion, bool) {
	switch components {
	case 1:
		return Scalar, true
	case 2:
		return Vector2, true
	case 3:
		return Vector3, true
	case 4:
		return Vector4, true
	default:
		return Scalar, false
	}
}

func (e Expansion) String() string {
	switch e {
	case Vector2:
		return "vector2"
	case Vector3:
		return "vector3"
	case Vector4:
		return "vector4"
	default:
		return "scalar"
	}
}
