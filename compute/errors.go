package compute

import (
	stderrors "errors"
	"fmt"

	"github.com/grailbio/base/errors"
)

// The five failure classes the library surfaces. Everything else is a
// programmer error and panics via log. Errors are always reported at host
// call boundaries; kernels have no error channel.
var (
	// ErrCapacityExceeded: a build or find was handed more elements than the
	// index was constructed for. Recoverable by constructing a larger index.
	ErrCapacityExceeded = stderrors.New("capacity exceeded")
	// ErrBufferShape: a caller buffer length is inconsistent with the query
	// count or the configured bucket/K width.
	ErrBufferShape = stderrors.New("buffer shape mismatch")
	// ErrEncodingUnsupported: an element encoding tag is not recognised.
	ErrEncodingUnsupported = stderrors.New("unsupported element encoding")
	// ErrAllocationFailed: the backing allocator refused the request.
	ErrAllocationFailed = stderrors.New("allocation failed")
	// ErrPipelineCreation: a kernel was constructed with an unusable shape
	// (negative grid, no body, bad width).
	ErrPipelineCreation = stderrors.New("pipeline creation failed")
)

// errorf wraps one of the sentinel errors above with call-site context,
// keeping the sentinel reachable through errors.Is and attaching the grailbio
// error kind for callers that classify by kind.
func errorf(sentinel error, kind errors.Kind, format string, args ...interface{}) error {
	return &classedError{
		sentinel: sentinel,
		err:      errors.E(kind, fmt.Sprintf(format, args...)),
	}
}

type classedError struct {
	sentinel error
	err      error
}

func (e *classedError) Error() string { return e.sentinel.Error() + ": " + e.err.Error() }
func (e *classedError) Unwrap() error { return e.sentinel }

// CapacityExceededf returns an ErrCapacityExceeded with context.
func CapacityExceededf(format string, args ...interface{}) error {
	return errorf(ErrCapacityExceeded, errors.Precondition, format, args...)
}

// BufferShapef returns an ErrBufferShape with context.
func BufferShapef(format string, args ...interface{}) error {
	return errorf(ErrBufferShape, errors.Invalid, format, args...)
}

// EncodingUnsupportedf returns an ErrEncodingUnsupported with context.
func EncodingUnsupportedf(format string, args ...interface{}) error {
	return errorf(ErrEncodingUnsupported, errors.NotSupported, format, args...)
}

// AllocationFailedf returns an ErrAllocationFailed with context.
func AllocationFailedf(format string, args ...interface{}) error {
	return errorf(ErrAllocationFailed, errors.OOM, format, args...)
}

// PipelineCreationf returns an ErrPipelineCreation with context.
func PipelineCreationf(format string, args ...interface{}) error {
	return errorf(ErrPipelineCreation, errors.Invalid, format, args...)
}
