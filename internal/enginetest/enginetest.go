// Package enginetest provides an in-memory engine for package tests: a
// Builder that immediately evaluates the integer operations the lowering
// layer emits, and a Logger that captures messages.
//
// Evaluating instead of just recording lets tests check that a deferred
// shape computation realizes to the same values its concrete fold
// produces.
package enginetest

import (
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/go-xla/pkg/types/dtypes"
	"github.com/gomlx/onnx-lowering/engine"
)

// Tensor is an evaluated engine tensor holding int64 values.
type Tensor struct {
	dtype  dtypes.DType
	dims   []int64
	values []int64
}

// NewValues creates a rank-1 tensor with the given values, the shape-vector
// form the lowering layer exchanges with the engine.
func NewValues(values ...int64) *Tensor {
	return &Tensor{dtype: dtypes.Int64, dims: []int64{int64(len(values))}, values: values}
}

// NewDynamic creates a value-less tensor with the given dims (-1 for
// dimensions unknown until run time). Only its shape may be inspected.
func NewDynamic(dims ...int64) *Tensor {
	return &Tensor{dtype: dtypes.Float32, dims: dims}
}

// DType implements engine.Tensor.
func (t *Tensor) DType() dtypes.DType { return t.dtype }

// Dims implements engine.Tensor.
func (t *Tensor) Dims() []int64 { return t.dims }

// Values returns the evaluated values.
func (t *Tensor) Values() []int64 { return t.values }

// Builder implements engine.Builder by evaluating eagerly. It records the
// name of every operation added, so tests can assert on what was emitted.
type Builder struct {
	Ops []string
}

var _ engine.Builder = (*Builder)(nil)

func (b *Builder) record(name string) { b.Ops = append(b.Ops, name) }

// Constant implements engine.Builder for integer weights.
func (b *Builder) Constant(dims []int64, w engine.Weights) engine.Tensor {
	b.record("constant")
	values := make([]int64, w.Count)
	switch w.DType {
	case dtypes.Int64:
		copy(values, unsafe.Slice((*int64)(w.Values), w.Count))
	case dtypes.Int32:
		for i, v := range unsafe.Slice((*int32)(w.Values), w.Count) {
			values[i] = int64(v)
		}
	default:
		exceptions.Panicf("enginetest only evaluates integer constants, got %s", w.DType)
	}
	return &Tensor{dtype: w.DType, dims: dims, values: values}
}

// ElementWise implements engine.Builder.
func (b *Builder) ElementWise(op engine.ElementWiseOp, a, c engine.Tensor) engine.Tensor {
	b.record(op.String())
	x, y := values(a), values(c)
	out := make([]int64, broadcastLen(len(x), len(y)))
	for i := range out {
		va := x[pick(i, len(x))]
		vb := y[pick(i, len(y))]
		out[i] = apply(op, va, vb)
	}
	return NewValues(out...)
}

// Select implements engine.Builder.
func (b *Builder) Select(cond, onTrue, onFalse engine.Tensor) engine.Tensor {
	b.record("select")
	c, x, y := values(cond), values(onTrue), values(onFalse)
	out := make([]int64, broadcastLen(len(c), broadcastLen(len(x), len(y))))
	for i := range out {
		if c[pick(i, len(c))] != 0 {
			out[i] = x[pick(i, len(x))]
		} else {
			out[i] = y[pick(i, len(y))]
		}
	}
	return NewValues(out...)
}

// Concat implements engine.Builder for axis 0.
func (b *Builder) Concat(inputs []engine.Tensor, axis int) engine.Tensor {
	b.record("concat")
	if axis != 0 {
		exceptions.Panicf("enginetest only concatenates on axis 0, got %d", axis)
	}
	var out []int64
	for _, in := range inputs {
		out = append(out, values(in)...)
	}
	return NewValues(out...)
}

// Gather implements engine.Builder for axis 0.
func (b *Builder) Gather(data, indices engine.Tensor, axis int) engine.Tensor {
	b.record("gather")
	if axis != 0 {
		exceptions.Panicf("enginetest only gathers on axis 0, got %d", axis)
	}
	d, idx := values(data), values(indices)
	out := make([]int64, len(idx))
	for i, j := range idx {
		out[i] = d[j]
	}
	return NewValues(out...)
}

// Reshape implements engine.Builder; only the dims change.
func (b *Builder) Reshape(t engine.Tensor, dims []int64) engine.Tensor {
	b.record("reshape")
	tt := t.(*Tensor)
	return &Tensor{dtype: tt.dtype, dims: dims, values: tt.values}
}

// ShapeOf implements engine.Builder.
func (b *Builder) ShapeOf(t engine.Tensor) engine.Tensor {
	b.record("shape_of")
	dims := t.Dims()
	out := make([]int64, len(dims))
	copy(out, dims)
	return NewValues(out...)
}

func values(t engine.Tensor) []int64 {
	tt := t.(*Tensor)
	if tt.values == nil {
		exceptions.Panicf("tensor with dims %v has no values to evaluate", tt.dims)
	}
	return tt.values
}

func broadcastLen(a, b int) int {
	switch {
	case a == b:
		return a
	case a == 1:
		return b
	case b == 1:
		return a
	}
	exceptions.Panicf("cannot broadcast lengths %d and %d", a, b)
	return 0
}

func pick(i, size int) int {
	if size == 1 {
		return 0
	}
	return i
}

func apply(op engine.ElementWiseOp, a, b int64) int64 {
	switch op {
	case engine.OpSum:
		return a + b
	case engine.OpSub:
		return a - b
	case engine.OpProd:
		return a * b
	case engine.OpMin:
		return min(a, b)
	case engine.OpMax:
		return max(a, b)
	case engine.OpFloorDiv:
		q := a / b
		if r := a % b; r != 0 && (r > 0) != (b > 0) {
			q--
		}
		return q
	case engine.OpCeilDiv:
		q := a / b
		if r := a % b; r != 0 && (r > 0) == (b > 0) {
			q++
		}
		return q
	case engine.OpLess:
		if a < b {
			return 1
		}
		return 0
	}
	exceptions.Panicf("unknown elementwise op %v", op)
	return 0
}

// LogEntry is one captured log message.
type LogEntry struct {
	Severity engine.Severity
	Message  string
}

// Logger implements engine.Logger by capturing entries.
type Logger struct {
	Entries []LogEntry
}

var _ engine.Logger = (*Logger)(nil)

// Log implements engine.Logger.
func (l *Logger) Log(severity engine.Severity, msg string) {
	l.Entries = append(l.Entries, LogEntry{Severity: severity, Message: msg})
}

// Messages returns every captured message at the given severity.
func (l *Logger) Messages(severity engine.Severity) []string {
	var out []string
	for _, e := range l.Entries {
		if e.Severity == severity {
			out = append(out, e.Message)
		}
	}
	return out
}
