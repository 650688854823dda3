package lowering

import (
	"fmt"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lowering/engine"
	"github.com/gomlx/onnx-lowering/internal/ir"
)

// ImportContext carries the ambient state of one import pass: the engine's
// graph builder, the logger sink, and the temporary-weights arena backing
// every synthesized buffer.
//
// A context is created at pass start and closed at pass end, successfully
// or not; the import pass is single-threaded, so the arena needs no
// locking. It is append-only: buffers are allocated, never freed
// individually, and released in bulk by Close.
type ImportContext struct {
	builder engine.Builder
	logger  engine.Logger
	arena   []*Weights
	closed  bool
}

// NewImportContext creates the context for one import pass. A nil logger
// selects the klog-backed default sink.
func NewImportContext(builder engine.Builder, logger engine.Logger) *ImportContext {
	if logger == nil {
		logger = engine.DefaultLogger()
	}
	return &ImportContext{builder: builder, logger: logger}
}

// Builder returns the engine's graph builder handle.
func (ctx *ImportContext) Builder() engine.Builder { return ctx.builder }

// Logf formats and delivers a message to the logger sink.
func (ctx *ImportContext) Logf(severity engine.Severity, format string, args ...any) {
	ctx.logger.Log(severity, fmt.Sprintf(format, args...))
}

// CreateTempWeights allocates a zero-initialized arena-owned buffer of the
// given dtype and shape. The buffer lives until the context is closed.
func (ctx *ImportContext) CreateTempWeights(dt ir.DataType, shape Shape) (*Weights, error) {
	if ctx.closed {
		return nil, Internalf("CreateTempWeights called on a closed import context")
	}
	if shape.IsDynamic() {
		return nil, InvalidInputf("cannot allocate weights with unknown dimensions %s", shape)
	}
	width, err := DTypeSize(dt)
	if err != nil {
		return nil, err
	}
	w := &Weights{DType: dt, Shape: shape, Data: make([]byte, shape.Volume()*int64(width))}
	ctx.arena = append(ctx.arena, w)
	return w, nil
}

// Close releases every arena allocation. It runs on every exit path of the
// import pass, including early failure, and is idempotent. Borrowed buffers
// (views into graph storage) are unaffected.
func (ctx *ImportContext) Close() {
	if ctx.closed {
		return
	}
	for _, w := range ctx.arena {
		w.Data = nil
	}
	ctx.arena = nil
	ctx.closed = true
}

// TempWeightsCount returns the number of live arena allocations.
func (ctx *ImportContext) TempWeightsCount() int { return len(ctx.arena) }

// EmitConstant hands a weight buffer to the engine builder as a constant
// tensor of the buffer's shape.
func (ctx *ImportContext) EmitConstant(w *Weights) engine.Tensor {
	return ctx.builder.Constant(w.Shape.Dimensions(), w.AsEngine())
}

// AddConstantScalar synthesizes a single-element constant: shape must have
// volume 1 (rank 0, or all dimensions 1). The value type must match the
// dtype's width; both are caller contracts.
func AddConstantScalar[T element](ctx *ImportContext, value T, dt ir.DataType, shape Shape) (engine.Tensor, error) {
	if shape.Volume() != 1 {
		exceptions.Panicf("AddConstantScalar: shape %s has volume != 1", shape)
	}
	return AddConstant(ctx, []T{value}, dt, shape)
}

// AddConstant synthesizes an arena-owned constant tensor from values.
// len(values) must equal the shape volume, and sizeof(T) the dtype width;
// both are caller contracts.
func AddConstant[T element](ctx *ImportContext, values []T, dt ir.DataType, shape Shape) (engine.Tensor, error) {
	if int64(len(values)) != shape.Volume() {
		exceptions.Panicf("AddConstant: shape %s does not match %d provided values", shape, len(values))
	}
	if width, err := DTypeSize(dt); err != nil {
		return nil, err
	} else if var0 := *new(T); int(unsafe.Sizeof(var0)) != width {
		exceptions.Panicf("AddConstant: dtype %s is %d bytes wide, values are %T", dt, width, var0)
	}
	w, err := ctx.CreateTempWeights(dt, shape)
	if err != nil {
		return nil, err
	}
	flat, err := ValuesAs[T](w)
	if err != nil {
		return nil, err
	}
	copy(flat, values)
	return ctx.EmitConstant(w), nil
}
