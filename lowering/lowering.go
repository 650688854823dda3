// Package lowering converts a portable neural-network graph description
// (nodes, typed weight tensors, symbolic shapes) into the tensor and weight
// representation required by the target execution engine.
//
// It provides the pieces every per-operator importer is built from:
//
//   - the dtype registry mapping portable element types to engine types;
//   - Shape, a fixed-capacity dimension list with unknown-dimension support;
//   - Weights, typed constant buffers lifted from the model or synthesized
//     into the import arena, with checked typed views;
//   - the permutation engine physically transposing weight buffers;
//   - the broadcast resolver validating and merging shapes under the
//     trailing-alignment rule;
//   - ShapeTensor arithmetic for slice bounds and sizes that may only be
//     known when the model runs;
//   - ImportContext, the per-pass state (engine builder, logger, arena).
//
// The per-operator import logic itself, model decoding and the engine's
// builder internals live outside this package.
package lowering

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lowering/engine"
)

// TensorOrWeights is an operand at the node-importer boundary: either a
// tensor of the engine graph under construction or a constant weight
// buffer.
type TensorOrWeights struct {
	tensor  engine.Tensor
	weights *Weights
}

// FromTensor wraps an engine tensor as an operand.
func FromTensor(t engine.Tensor) TensorOrWeights { return TensorOrWeights{tensor: t} }

// FromWeights wraps a weight buffer as an operand.
func FromWeights(w *Weights) TensorOrWeights { return TensorOrWeights{weights: w} }

// IsTensor reports whether the operand is a graph tensor.
func (tw TensorOrWeights) IsTensor() bool { return tw.tensor != nil }

// IsWeights reports whether the operand is a constant buffer.
func (tw TensorOrWeights) IsWeights() bool { return tw.weights != nil }

// Tensor returns the graph-tensor form; calling it on a weights operand is
// a caller bug (use ImportContext.EmitConstant to convert first).
func (tw TensorOrWeights) Tensor() engine.Tensor {
	if tw.tensor == nil {
		exceptions.Panicf("operand holds weights, not a tensor")
	}
	return tw.tensor
}

// Weights returns the constant-buffer form; calling it on a tensor operand
// is a caller bug.
func (tw TensorOrWeights) Weights() *Weights {
	if tw.weights == nil {
		exceptions.Panicf("operand holds a tensor, not weights")
	}
	return tw.weights
}

// Shape returns the operand's shape, whichever form it holds.
func (tw TensorOrWeights) Shape() Shape {
	if tw.weights != nil {
		return tw.weights.Shape
	}
	dims := tw.Tensor().Dims()
	if len(dims) > MaxRank {
		exceptions.Panicf("engine tensor has rank %d, more than MaxRank=%d", len(dims), MaxRank)
	}
	return MakeShape(dims...)
}

// Ints widens an integer or bool weights operand to []int64. A tensor
// operand is KindUnsupported (its values do not exist at import time); a
// non-index dtype is KindInvalidInput.
func (tw TensorOrWeights) Ints() ([]int64, error) {
	if !tw.IsWeights() {
		return nil, Unsupportedf("operand is a graph tensor, its values are only known at run time")
	}
	return tw.weights.Ints()
}

// ConvertAxis resolves a portable axis attribute against a rank: negative
// axes count from the end. An axis outside [-rank, rank) is model data out
// of contract and reported as InvalidInput.
func ConvertAxis(axis, rank int) (int, error) {
	if axis < -rank || axis >= rank {
		return 0, InvalidInputf("axis %d out of range for rank %d", axis, rank)
	}
	if axis < 0 {
		axis += rank
	}
	return axis, nil
}
