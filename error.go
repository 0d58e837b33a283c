package mol

import "fmt"

// ErrorCode discriminates diagnostics so callers can match on the violation
// kind instead of the rendered message.
type ErrorCode int

const (
	ErrUnexpectedCharacter ErrorCode = iota
	ErrUnexpectedToken

	ErrVoidBinding
	ErrDuplicateBinding
	ErrUndeclaredIdentifier
	ErrIllegalAssignment
	ErrIllegalUnaryOp
	ErrIllegalBinaryOp
	ErrArityMismatch
	ErrIllegalArgument
	ErrEmptyArray
	ErrInvalidArrayElementType
	ErrInconsistentArrayType
	ErrNonIntegerIndex
	ErrIndexOnNonIndexable
	ErrIllegalArrayAssignment
	ErrZeroMatrixHeight
	ErrZeroMatrixWidth
	ErrNonIntegerMatrixHeight
	ErrNonIntegerMatrixWidth
	ErrInvalidMatrixElementType
	ErrIllegalMatrixElementType
	ErrExpectedBooleanCondition
	ErrReturnTypeMismatch
	ErrStatementAfterReturn
	ErrUnresolvedFunction
	ErrBuiltinRedefinition
	ErrDuplicateFunction
)

type Error struct {
	pos  Pos
	code ErrorCode
	msg  string
}

func NewError(pos Pos, code ErrorCode, format string, args ...interface{}) Error {
	return Error{
		pos:  pos,
		code: code,
		msg:  fmt.Sprintf(format, args...),
	}
}

func (e Error) Code() ErrorCode {
	return e.code
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: error: %s", e.pos, e.msg)
}
