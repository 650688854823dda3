package lowering

import (
	"math"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lowering/engine"
	"github.com/gomlx/onnx-lowering/internal/ir"
	"github.com/x448/float16"
)

// Weights is a constant tensor operand: an untyped byte region tagged with
// a dtype and a Shape.
//
// Data either borrows graph-owned storage (buffers read directly from the
// imported model) or is owned by the import arena (synthesized buffers:
// transposed copies, zero fills, scalar constants). Once created, the bytes
// are read-only; transforms always produce a new buffer.
type Weights struct {
	DType ir.DataType
	Shape Shape
	Data  []byte
	Name  string
}

// EmptyWeights returns a valueless buffer of the given dtype.
func EmptyWeights(dt ir.DataType) *Weights {
	return &Weights{DType: dt}
}

// Count is the number of elements: the shape volume, except that a buffer
// with no shape and no data counts 0. Rank-0 buffers count 1 (the engine
// supports scalars).
func (w *Weights) Count() int64 {
	if w.Data == nil && w.Shape.Rank <= 0 {
		return 0
	}
	return w.Shape.Volume()
}

// SizeBytes is Count() times the dtype's byte width.
func (w *Weights) SizeBytes() int64 {
	width, err := DTypeSize(w.DType)
	if err != nil {
		return 0
	}
	return w.Count() * int64(width)
}

// IsEmpty reports whether the buffer holds no values.
func (w *Weights) IsEmpty() bool { return w.Data == nil }

// AsEngine converts the buffer to the engine's opaque-weights descriptor.
// A dtype without engine equivalent here is a caller bug (buffers are
// dtype-checked on creation) and panics.
func (w *Weights) AsEngine() engine.Weights {
	dt, err := DTypeOf(w.DType)
	if err != nil {
		exceptions.Panicf("weights %q: %v", w.Name, err)
	}
	desc := engine.Weights{DType: dt, Count: w.Count()}
	if len(w.Data) > 0 {
		desc.Values = unsafe.Pointer(&w.Data[0])
	}
	return desc
}

// element is the set of Go types weight bytes may be viewed as.
type element interface {
	float32 | float64 | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 | bool | float16.Float16
}

// ValuesAs returns the buffer viewed as a flat []T.
//
// The view is checked: it fails with KindInvalidInput when sizeof(T) does
// not match the stored dtype's width, so no unchecked reinterpretation ever
// crosses the API boundary. The returned slice aliases the buffer.
func ValuesAs[T element](w *Weights) ([]T, error) {
	width, err := DTypeSize(w.DType)
	if err != nil {
		return nil, err
	}
	var zero T
	if int(unsafe.Sizeof(zero)) != width {
		return nil, InvalidInputf("weights %q hold %s values (%d bytes each), cannot view as %T (%d bytes each)",
			w.Name, w.DType, width, zero, unsafe.Sizeof(zero))
	}
	count := w.Count()
	if count <= 0 {
		return nil, nil
	}
	if int64(len(w.Data)) != count*int64(width) {
		return nil, Internalf("weights %q shaped %s hold %d bytes, expected %d",
			w.Name, w.Shape, len(w.Data), count*int64(width))
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&w.Data[0])), count), nil
}

// Float32s views the buffer as []float32.
func (w *Weights) Float32s() ([]float32, error) { return ValuesAs[float32](w) }

// Float16s views the buffer as []float16.Float16.
func (w *Weights) Float16s() ([]float16.Float16, error) { return ValuesAs[float16.Float16](w) }

// Int32s views the buffer as []int32.
func (w *Weights) Int32s() ([]int32, error) { return ValuesAs[int32](w) }

// Int64s views the buffer as []int64.
func (w *Weights) Int64s() ([]int64, error) { return ValuesAs[int64](w) }

// Uint16s views the buffer as raw 16-bit words, the form the transpose
// engine moves half-precision values in.
func (w *Weights) Uint16s() ([]uint16, error) { return ValuesAs[uint16](w) }

// Ints widens an integer or bool buffer to []int64. Non-index dtypes are
// rejected: sizes, axes and subscripts are the only callers.
func (w *Weights) Ints() ([]int64, error) {
	switch w.DType {
	case ir.Int64:
		values, err := w.Int64s()
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(values))
		copy(out, values)
		return out, nil
	case ir.Int32:
		values, err := w.Int32s()
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(values))
		for i, v := range values {
			out[i] = int64(v)
		}
		return out, nil
	case ir.Bool:
		values, err := ValuesAs[bool](w)
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(values))
		for i, v := range values {
			if v {
				out[i] = 1
			}
		}
		return out, nil
	default:
		return nil, InvalidInputf("weights %q have dtype %s, expected int32, int64 or bool", w.Name, w.DType)
	}
}

// IsAllZeros reports whether every byte of the buffer is zero. Used to
// detect elidable zero shifts.
func (w *Weights) IsAllZeros() bool {
	for _, b := range w.Data {
		if b != 0 {
			return false
		}
	}
	return true
}

// WeightsFromTensor lifts a portable constant tensor into a Weights buffer
// borrowing the tensor's storage.
//
// The tensor must have a concrete shape and a payload of exactly
// volume * width bytes; violations are InvalidInput errors reported before
// any transform is attempted.
func WeightsFromTensor(ctx *ImportContext, t *ir.Tensor) (*Weights, error) {
	shape, err := ShapeFromDims(t.Dims)
	if err != nil {
		return nil, err
	}
	if shape.IsDynamic() {
		return nil, InvalidInputf("tensor %q has symbolic dimensions %s, constant tensors must be concrete", t.Name, shape)
	}
	width, err := DTypeSize(t.DataType)
	if err != nil {
		return nil, err
	}
	if want := shape.Volume() * int64(width); int64(len(t.Raw)) != want {
		return nil, InvalidInputf("tensor %q shaped %s with dtype %s requires %d bytes, model provided %d",
			t.Name, shape, t.DataType, want, len(t.Raw))
	}
	w := &Weights{DType: t.DataType, Shape: shape, Data: t.Raw, Name: t.Name}
	logWeightsTrace(ctx, w)
	return w, nil
}

// logWeightsTrace emits a verbose per-weight statistics line for floating
// point buffers, to help diagnose numeric surprises after lowering.
func logWeightsTrace(ctx *ImportContext, w *Weights) {
	if ctx == nil || w.Count() == 0 {
		return
	}
	switch w.DType {
	case ir.Float:
		values, err := w.Float32s()
		if err != nil {
			return
		}
		lo, hi := values[0], values[0]
		for _, v := range values[1:] {
			lo = math32.Min(lo, v)
			hi = math32.Max(hi, v)
		}
		ctx.Logf(engine.SeverityVerbose, "imported weights %q shaped %s, dtype %s, range [%g, %g]",
			w.Name, w.Shape, w.DType, lo, hi)
	case ir.Float16:
		values, err := w.Float16s()
		if err != nil {
			return
		}
		lo, hi := values[0].Float32(), values[0].Float32()
		for _, v := range values[1:] {
			lo = math32.Min(lo, v.Float32())
			hi = math32.Max(hi, v.Float32())
		}
		ctx.Logf(engine.SeverityVerbose, "imported weights %q shaped %s, dtype %s, range [%g, %g]",
			w.Name, w.Shape, w.DType, lo, hi)
	}
}

// ConvertInt64 demotes an int64 buffer to a new arena-owned int32 buffer.
// The engine indexes with 32 bits; out-of-range values are clamped and
// reported once per buffer as a warning.
func ConvertInt64(ctx *ImportContext, w *Weights) (*Weights, error) {
	if w.DType != ir.Int64 {
		return nil, InvalidInputf("weights %q have dtype %s, ConvertInt64 requires int64", w.Name, w.DType)
	}
	src, err := w.Int64s()
	if err != nil {
		return nil, err
	}
	out, err := ctx.CreateTempWeights(ir.Int32, w.Shape)
	if err != nil {
		return nil, err
	}
	out.Name = w.Name
	dst, err := out.Int32s()
	if err != nil {
		return nil, err
	}
	clamped := false
	for i, v := range src {
		switch {
		case v > math.MaxInt32:
			dst[i] = math.MaxInt32
			clamped = true
		case v < math.MinInt32:
			dst[i] = math.MinInt32
			clamped = true
		default:
			dst[i] = int32(v)
		}
	}
	if clamped {
		ctx.Logf(engine.SeverityWarning, "weights %q contained values outside the int32 range, they have been clamped", w.Name)
	}
	return out, nil
}

// ZeroWeightsLike synthesizes an arena-owned zero-filled buffer with w's
// shape and the given dtype. Used to supply the zero shifts some quantized
// operators leave implicit.
func ZeroWeightsLike(ctx *ImportContext, w *Weights, dt ir.DataType) (*Weights, error) {
	out, err := ctx.CreateTempWeights(dt, w.Shape)
	if err != nil {
		return nil, err
	}
	out.Name = w.Name
	return out, nil
}
