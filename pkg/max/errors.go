package max

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes carried by oops errors throughout the framework.
const (
	CodeClassRegister       = "CLASS_REGISTER_FAILED"
	CodeClassDuplicate      = "CLASS_DUPLICATE"
	CodeMethodInvalid       = "METHOD_INVALID"
	CodeAttrInvalid         = "ATTR_INVALID"
	CodeAttrRegister        = "ATTR_REGISTER_FAILED"
	CodeOutOfMemory         = "OUT_OF_MEMORY"
	CodeInstanceNotLive     = "INSTANCE_NOT_LIVE"
	CodeInstanceUnknown     = "INSTANCE_UNKNOWN"
	CodeBufferNotFound      = "BUFFER_NOT_FOUND"
	CodeBufferLock          = "BUFFER_LOCK_FAILED"
	CodeMatrixInvalidPtr    = "MATRIX_INVALID_PTR"
	CodeMatrixTypeMismatch  = "MATRIX_TYPE_MISMATCH"
	CodeMatrixPlaneMismatch = "MATRIX_PLANE_MISMATCH"
	CodeMatrixLock          = "MATRIX_LOCK_FAILED"
	CodeOutletStackOverflow = "OUTLET_STACK_OVERFLOW"
	CodeNameCollision       = "NAME_COLLISION"
	CodeAttachFailed        = "ATTACH_FAILED"
	CodeConfigInvalid       = "CONFIG_INVALID"
	CodeScenarioFailed      = "SCENARIO_FAILED"
)

// ErrorCode extracts the oops code from err, or "" when err carries none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		code, _ := any(oopsErr.Code()).(string)
		return code
	}
	return ""
}

// ToErr encodes err as a host error code.
func ToErr(err error) Err {
	if err == nil {
		return ErrNone
	}
	var e Err
	if errors.As(err, &e) {
		return e
	}
	switch ErrorCode(err) {
	case CodeOutOfMemory:
		return ErrOutOfMem
	case CodeClassDuplicate:
		return ErrDuplicate
	case CodeInstanceNotLive, CodeInstanceUnknown, CodeMatrixInvalidPtr:
		return ErrInvalidPtr
	default:
		return ErrGeneric
	}
}

// ToJitErr encodes err as a Jitter error code.
func ToJitErr(err error) JitErr {
	if err == nil {
		return JitErrNone
	}
	var e JitErr
	if errors.As(err, &e) {
		return e
	}
	switch ErrorCode(err) {
	case CodeOutOfMemory:
		return JitErrOutOfMem
	case CodeMatrixInvalidPtr, CodeInstanceNotLive, CodeInstanceUnknown:
		return JitErrInvalidPtr
	case CodeMatrixTypeMismatch:
		return JitErrMismatchType
	case CodeMatrixPlaneMismatch:
		return JitErrMismatchPlane
	default:
		return JitErrGeneric
	}
}
