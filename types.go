package mol

import "fmt"

type TypeKind int

const (
	INT_TYPE TypeKind = iota
	FLOAT_TYPE
	BOOL_TYPE
	STRING_TYPE
	VOID_TYPE
	MATRIX_TYPE
	ARRAY_TYPE
)

// Type is the closed type variant of the language. Arrays carry their element
// kind and length; everything else is fully described by the kind alone.
// Types are plain values, so == is structural equality.
type Type struct {
	Kind TypeKind
	Elem TypeKind
	Len  int
}

var (
	IntType    = Type{Kind: INT_TYPE}
	FloatType  = Type{Kind: FLOAT_TYPE}
	BoolType   = Type{Kind: BOOL_TYPE}
	StringType = Type{Kind: STRING_TYPE}
	VoidType   = Type{Kind: VOID_TYPE}
	MatrixType = Type{Kind: MATRIX_TYPE}
)

func ArrayOf(elem TypeKind, length int) Type {
	return Type{
		Kind: ARRAY_TYPE,
		Elem: elem,
		Len:  length,
	}
}

func (t Type) String() string {
	switch t.Kind {
	case INT_TYPE:
		return "int"
	case FLOAT_TYPE:
		return "float"
	case BOOL_TYPE:
		return "bool"
	case STRING_TYPE:
		return "string"
	case VOID_TYPE:
		return "void"
	case MATRIX_TYPE:
		return "matrix"
	case ARRAY_TYPE:
		return fmt.Sprintf("%s[%d]", Type{Kind: t.Elem}, t.Len)
	}
	panic("unreachable")
}

func (t Type) isNumeric() bool {
	return t == IntType || t == FloatType
}
