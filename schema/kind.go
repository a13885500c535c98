package schema

// Kind 列类型
type Kind string

const (
	KindInteger Kind = "int"
	KindBool    Kind = "bool"
	KindFloat   Kind = "float"
	KindDouble  Kind = "double"
	KindString  Kind = "string"
	KindBinary  Kind = "binary"
	KindDate    Kind = "date"
	KindObject  Kind = "object" // 单对象链接
	KindList    Kind = "list"   // 多对象链接
)

// IsLink 是否为链接类型
func (k Kind) IsLink() bool {
	return k == KindObject || k == KindList
}

// IsNumeric 是否为数值类型
func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindFloat || k == KindDouble
}

func (k Kind) IsValid() bool {
	switch k {
	case KindInteger, KindBool, KindFloat, KindDouble, KindString, KindBinary, KindDate, KindObject, KindList:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}
