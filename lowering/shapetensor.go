package lowering

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lowering/engine"
	"github.com/gomlx/onnx-lowering/internal/ir"
)

// ShapeTensor is a possibly-symbolic integer sequence: the value that
// represents a tensor's shape, slice bounds, or axis subscripts.
//
// It is either concrete (all values known at import time) or deferred: a
// computation over engine tensors whose values only exist when the model
// runs. Arithmetic folds concrete operands immediately and otherwise emits
// the equivalent engine operations, so a deferred result is realizable
// later without re-deriving any rule.
type ShapeTensor struct {
	size   int // number of values, -1 when only known at run time
	known  bool
	values []int64
	tensor engine.Tensor // deferred form; doubles as the realization cache
}

// ShapeTensorOf creates a concrete ShapeTensor from values.
func ShapeTensorOf(values ...int64) ShapeTensor {
	return ShapeTensor{size: len(values), known: true, values: values}
}

// ShapeTensorFromShape converts a concrete Shape to a ShapeTensor. Dynamic
// shapes have no import-time values; use ShapeOfTensor for those.
func ShapeTensorFromShape(s Shape) (ShapeTensor, error) {
	if s.IsDynamic() {
		return ShapeTensor{}, InvalidInputf("shape %s has unknown dimensions, its shape tensor must come from the run-time shape of a tensor", s)
	}
	values := make([]int64, s.Rank)
	copy(values, s.Dimensions())
	return ShapeTensorOf(values...), nil
}

// ShapeOfTensor returns the shape of an engine tensor as a ShapeTensor:
// concrete when every dimension is static, deferred onto the engine's
// shape-of operation otherwise.
func ShapeOfTensor(ctx *ImportContext, t engine.Tensor) ShapeTensor {
	dims := t.Dims()
	concrete := true
	for _, d := range dims {
		if d < 0 {
			concrete = false
			break
		}
	}
	if concrete {
		values := make([]int64, len(dims))
		copy(values, dims)
		return ShapeTensorOf(values...)
	}
	return ShapeTensor{size: len(dims), tensor: ctx.Builder().ShapeOf(t)}
}

// WrapShapeValues wraps an engine tensor that already holds shape values
// (e.g. the starts input of a slice operator) as a deferred ShapeTensor.
// The tensor must be rank 0 or 1.
func WrapShapeValues(t engine.Tensor) ShapeTensor {
	dims := t.Dims()
	if len(dims) > 1 {
		exceptions.Panicf("shape values must be rank 0 or 1, got a tensor of rank %d", len(dims))
	}
	size := 1
	if len(dims) == 1 {
		size = int(dims[0])
		if dims[0] < 0 {
			size = -1
		}
	}
	return ShapeTensor{size: size, tensor: t}
}

// Iota returns the concrete sequence 0, 1, ..., n-1.
func Iota(n int) ShapeTensor {
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(i)
	}
	return ShapeTensorOf(values...)
}

// Similar returns a concrete ShapeTensor with x's size, filled with value.
// x must have a known size.
func Similar(x ShapeTensor, value int64) ShapeTensor {
	if x.size < 0 {
		exceptions.Panicf("Similar requires a shape tensor of known size")
	}
	values := make([]int64, x.size)
	for i := range values {
		values[i] = value
	}
	return ShapeTensorOf(values...)
}

// Size returns the number of values, or -1 when the size itself is only
// known at run time.
func (x ShapeTensor) Size() int { return x.size }

// ValuesKnown reports whether every value is known at import time.
func (x ShapeTensor) ValuesKnown() bool { return x.known }

// Values returns the concrete values. Deferred shape tensors have none;
// asking for them is a KindUnsupported error (the caller should switch to
// the deferred lowering strategy).
func (x ShapeTensor) Values() ([]int64, error) {
	if !x.known {
		return nil, Unsupportedf("shape tensor values are only known at run time")
	}
	return x.values, nil
}

// At returns value i of a concrete shape tensor; requesting a value of a
// deferred one is a caller bug.
func (x ShapeTensor) At(i int) int64 {
	if !x.known {
		exceptions.Panicf("shape tensor values are only known at run time")
	}
	return x.values[i]
}

// String implements fmt.Stringer.
func (x ShapeTensor) String() string {
	if x.known {
		return formatSequence(x.values)
	}
	var b strings.Builder
	b.WriteString("(deferred")
	if x.size >= 0 {
		b.WriteString(formatSequence([]int{x.size}))
	}
	b.WriteByte(')')
	return b.String()
}

// Tensor realizes the engine-tensor form, emitting a rank-1 int64 constant
// for concrete values. The realization is cached.
func (x *ShapeTensor) Tensor(ctx *ImportContext) engine.Tensor {
	if x.tensor != nil {
		return x.tensor
	}
	if !x.known {
		exceptions.Panicf("deferred shape tensor lost its engine tensor")
	}
	w, err := ctx.CreateTempWeights(ir.Int64, MakeShape(int64(x.size)))
	if err != nil {
		// Int64 is always registered and the shape is concrete.
		exceptions.Panicf("realizing shape tensor %s: %v", x, err)
	}
	flat, err := w.Int64s()
	if err != nil {
		exceptions.Panicf("realizing shape tensor %s: %v", x, err)
	}
	copy(flat, x.values)
	x.tensor = ctx.EmitConstant(w)
	return x.tensor
}

// concreteFn folds one aligned value pair of a concrete binary op.
type concreteFn func(a, b int64) int64

// binaryOp applies an elementwise operation with size-1 broadcasting.
// Mismatched sizes (neither 1) are a caller bug.
func binaryOp(ctx *ImportContext, op engine.ElementWiseOp, x, y ShapeTensor, fn concreteFn) ShapeTensor {
	size := broadcastSize(x, y)
	if x.known && y.known {
		values := make([]int64, size)
		for i := range values {
			values[i] = fn(x.values[pickIndex(i, x.size)], y.values[pickIndex(i, y.size)])
		}
		return ShapeTensor{size: size, known: true, values: values}
	}
	return ShapeTensor{size: size, tensor: ctx.Builder().ElementWise(op, x.Tensor(ctx), y.Tensor(ctx))}
}

// broadcastSize checks the sizes of two operands and returns the result
// size, allowing one side to be a single value stretched over the other.
func broadcastSize(x, y ShapeTensor) int {
	if x.size == y.size {
		return x.size
	}
	if x.size == 1 {
		return y.size
	}
	if y.size == 1 {
		return x.size
	}
	if x.size < 0 || y.size < 0 {
		return -1
	}
	exceptions.Panicf("shape tensors of sizes %d and %d cannot be combined", x.size, y.size)
	return 0
}

// Add returns x + y elementwise.
func (x ShapeTensor) Add(ctx *ImportContext, y ShapeTensor) ShapeTensor {
	return binaryOp(ctx, engine.OpSum, x, y, func(a, b int64) int64 { return a + b })
}

// Sub returns x - y elementwise.
func (x ShapeTensor) Sub(ctx *ImportContext, y ShapeTensor) ShapeTensor {
	return binaryOp(ctx, engine.OpSub, x, y, func(a, b int64) int64 { return a - b })
}

// Mul returns x * y elementwise.
func (x ShapeTensor) Mul(ctx *ImportContext, y ShapeTensor) ShapeTensor {
	return binaryOp(ctx, engine.OpProd, x, y, func(a, b int64) int64 { return a * b })
}

// Min returns the elementwise minimum of x and y.
func (x ShapeTensor) Min(ctx *ImportContext, y ShapeTensor) ShapeTensor {
	return binaryOp(ctx, engine.OpMin, x, y, func(a, b int64) int64 { return min(a, b) })
}

// Max returns the elementwise maximum of x and y.
func (x ShapeTensor) Max(ctx *ImportContext, y ShapeTensor) ShapeTensor {
	return binaryOp(ctx, engine.OpMax, x, y, func(a, b int64) int64 { return max(a, b) })
}

// CeilDiv returns ceil(x / y) elementwise, sign-correct: the quotient is
// rounded away from zero when x and y agree in sign, which is what slice
// size computation needs for negative steps.
func (x ShapeTensor) CeilDiv(ctx *ImportContext, y ShapeTensor) ShapeTensor {
	return binaryOp(ctx, engine.OpCeilDiv, x, y, divCeil)
}

// Less returns a 0/1 mask marking where x < y.
func (x ShapeTensor) Less(ctx *ImportContext, y ShapeTensor) ShapeTensor {
	return binaryOp(ctx, engine.OpLess, x, y, func(a, b int64) int64 {
		if a < b {
			return 1
		}
		return 0
	})
}

// Select picks from x where cond is non-zero and from y elsewhere.
func Select(ctx *ImportContext, cond, x, y ShapeTensor) ShapeTensor {
	size := broadcastSize(cond, ShapeTensor{size: broadcastSize(x, y)})
	if cond.known && x.known && y.known {
		values := make([]int64, size)
		for i := range values {
			c := cond.values[pickIndex(i, cond.size)]
			if c != 0 {
				values[i] = x.values[pickIndex(i, x.size)]
			} else {
				values[i] = y.values[pickIndex(i, y.size)]
			}
		}
		return ShapeTensor{size: size, known: true, values: values}
	}
	return ShapeTensor{
		size:   size,
		tensor: ctx.Builder().Select(cond.Tensor(ctx), x.Tensor(ctx), y.Tensor(ctx)),
	}
}

// pickIndex maps a result index onto an operand of the given size,
// stretching single-value operands.
func pickIndex(i, size int) int {
	if size == 1 {
		return 0
	}
	return i
}

// Concat concatenates x and y into one sequence.
func (x ShapeTensor) Concat(ctx *ImportContext, y ShapeTensor) ShapeTensor {
	if x.known && y.known {
		values := make([]int64, 0, x.size+y.size)
		values = append(values, x.values...)
		values = append(values, y.values...)
		return ShapeTensorOf(values...)
	}
	size := -1
	if x.size >= 0 && y.size >= 0 {
		size = x.size + y.size
	}
	return ShapeTensor{
		size:   size,
		tensor: ctx.Builder().Concat([]engine.Tensor{x.Tensor(ctx), y.Tensor(ctx)}, 0),
	}
}

// Gather selects data values by index: result[i] = data[indices[i]].
// Indices must be within [0, data.Size()); out-of-range concrete indices
// are a caller bug.
func Gather(ctx *ImportContext, data, indices ShapeTensor) ShapeTensor {
	if data.known && indices.known {
		values := make([]int64, indices.size)
		for i, idx := range indices.values {
			if idx < 0 || idx >= int64(data.size) {
				exceptions.Panicf("gather subscript %d out of range for shape tensor %s", idx, data)
			}
			values[i] = data.values[idx]
		}
		return ShapeTensorOf(values...)
	}
	return ShapeTensor{
		size:   indices.size,
		tensor: ctx.Builder().Gather(data.Tensor(ctx), indices.Tensor(ctx), 0),
	}
}

// divCeil is sign-correct integer ceiling division.
func divCeil(n, d int64) int64 {
	q := n / d
	if r := n % d; r != 0 && (r > 0) == (d > 0) {
		q++
	}
	return q
}
