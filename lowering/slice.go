package lowering

import (
	"github.com/gomlx/exceptions"
)

// This file implements the slice-geometry computations of the ONNX Slice
// operator over ShapeTensors, so they work unchanged whether the bounds are
// constants or run-time values.

// DecodeStartsAndEnds decodes, in place, the starts and ends of a slice
// according to ONNX rules: a negative index counts from the end of its
// axis, and the result is clamped into [0, dim] for a positive step and
// into [-1, dim-1] for a negative step.
//
// The asymmetric lower clamp of -1 is intentional: a negative-step slice
// must be able to address "one before the first element" as its exclusive
// end.
func DecodeStartsAndEnds(ctx *ImportContext, inputDims, steps ShapeTensor, starts, ends *ShapeTensor) {
	zeros := Similar(inputDims, 0)
	minusOnes := Similar(inputDims, -1)

	// lower = -1 where step < 0, else 0; upper = dim + lower.
	lower := Select(ctx, steps.Less(ctx, zeros), minusOnes, zeros)
	upper := inputDims.Add(ctx, lower)

	*starts = decodeIndices(ctx, *starts, inputDims, lower, upper, zeros)
	*ends = decodeIndices(ctx, *ends, inputDims, lower, upper, zeros)
}

// decodeIndices folds one starts-or-ends vector: add the axis size to
// negative entries, then clamp into [lower, upper].
func decodeIndices(ctx *ImportContext, indices, dims, lower, upper, zeros ShapeTensor) ShapeTensor {
	shifted := Select(ctx, indices.Less(ctx, zeros), indices.Add(ctx, dims), indices)
	return shifted.Max(ctx, lower).Min(ctx, upper)
}

// ComputeSliceSizes returns the per-axis result sizes of a slice whose
// starts and ends have been decoded by DecodeStartsAndEnds:
// size = max(0, ceilDiv(end - start, step)), with sign-correct ceiling
// division so negative steps count correctly.
func ComputeSliceSizes(ctx *ImportContext, starts, ends, steps, dims ShapeTensor) ShapeTensor {
	sizes := ends.Sub(ctx, starts).CeilDiv(ctx, steps)
	return sizes.Max(ctx, Similar(dims, 0))
}

// AxesToInterlaceSubscripts builds gather subscripts such that gathering
// the concatenation of a full-rank default sequence x and an override
// sequence y with them yields x with x[axes[i]] replaced by y[i], all other
// positions keeping their relative order.
//
// Used to splice axis-specific overrides (e.g. new starts for only some
// axes) into a full-rank default vector. The axes must be concrete and
// already non-negative (see ConvertAxis); a deferred axes tensor is a
// caller bug.
func AxesToInterlaceSubscripts(axes ShapeTensor, rank int) ShapeTensor {
	if !axes.ValuesKnown() {
		exceptions.Panicf("interlace subscripts require import-time axes")
	}
	subscripts := Iota(rank)
	for i, axis := range axes.values {
		if axis < 0 || axis >= int64(rank) {
			exceptions.Panicf("axis %d out of range for rank %d", axis, rank)
		}
		subscripts.values[axis] = int64(rank + i)
	}
	return subscripts
}
