// Package engine defines the boundary between the lowering layer and the
// target execution engine: the opaque weights descriptor handed to the
// engine, the tensor and graph-builder handles the engine exposes, and the
// severity-based logger sink.
//
// The engine itself (builder, optimizer, serializer) lives behind these
// interfaces and is not part of this module.
package engine

import (
	"fmt"
	"unsafe"

	"github.com/gomlx/go-xla/pkg/types/dtypes"
	"k8s.io/klog/v2"
)

// Severity of a log message, from most to least chatty.
type Severity int

const (
	SeverityVerbose Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityVerbose:
		return "VERBOSE"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Logger is the sink for import-time diagnostics, including the transpose
// advisory. Implementations must accept messages at any severity.
type Logger interface {
	Log(severity Severity, msg string)
}

// klogSink routes messages to klog: verbose messages go to V(1), the rest
// to the matching klog severity.
type klogSink struct{}

func (klogSink) Log(severity Severity, msg string) {
	switch severity {
	case SeverityVerbose:
		klog.V(1).Info(msg)
	case SeverityInfo:
		klog.Info(msg)
	case SeverityWarning:
		klog.Warning(msg)
	default:
		klog.Error(msg)
	}
}

// DefaultLogger returns the klog-backed logger sink.
func DefaultLogger() Logger { return klogSink{} }

// Weights is the opaque-weights descriptor consumed by the engine builder:
// element type, a pointer to the first element, and the element count.
//
// The pointed-to storage is owned by the import pass (graph storage or the
// import arena) and must outlive any engine object built from it.
type Weights struct {
	DType  dtypes.DType
	Values unsafe.Pointer
	Count  int64
}

// Tensor is a handle to a tensor of the engine graph under construction.
// Dims returns the fixed-rank dimension list, -1 marking dimensions unknown
// until run time.
type Tensor interface {
	DType() dtypes.DType
	Dims() []int64
}

// ElementWiseOp enumerates the elementwise operations the lowering layer
// emits when building deferred shape computations.
type ElementWiseOp int

const (
	OpSum ElementWiseOp = iota
	OpSub
	OpProd
	OpMin
	OpMax
	OpFloorDiv
	// OpCeilDiv is sign-correct ceiling division: the quotient is rounded
	// away from zero whenever there is a remainder and the operands agree
	// in sign.
	OpCeilDiv
	// OpLess yields 1 where a < b, else 0.
	OpLess
)

// String implements fmt.Stringer.
func (op ElementWiseOp) String() string {
	switch op {
	case OpSum:
		return "sum"
	case OpSub:
		return "sub"
	case OpProd:
		return "prod"
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	case OpFloorDiv:
		return "floor_div"
	case OpCeilDiv:
		return "ceil_div"
	case OpLess:
		return "less"
	default:
		return fmt.Sprintf("ElementWiseOp(%d)", int(op))
	}
}

// Builder is the slice of the engine's graph builder the lowering layer
// uses. Implementations report failures by panicking (typically through
// exceptions.Panicf); the lowering helpers never hand them invalid
// operands without first validating or asserting.
type Builder interface {
	// Constant adds a constant tensor backed by w. The storage behind w
	// must remain valid until the engine graph is built.
	Constant(dims []int64, w Weights) Tensor

	// ElementWise applies op to a and b, which must have equal dims or
	// one of them volume 1 (broadcast).
	ElementWise(op ElementWiseOp, a, b Tensor) Tensor

	// Select picks from onTrue where cond is non-zero, else from onFalse.
	Select(cond, onTrue, onFalse Tensor) Tensor

	// Concat concatenates the inputs along axis.
	Concat(inputs []Tensor, axis int) Tensor

	// Gather gathers elements of data along axis using indices.
	Gather(data, indices Tensor, axis int) Tensor

	// Reshape changes the dims of t; the volume must be preserved.
	Reshape(t Tensor, dims []int64) Tensor

	// ShapeOf returns the run-time shape of t as a rank-1 int64 tensor.
	ShapeOf(t Tensor) Tensor
}
