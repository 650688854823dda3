package lowering

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lowering/engine"
)

// BroadcastValid checks that two shapes conform to the trailing-alignment
// broadcasting rule: aligned at the rightmost axis, each axis pair must be
// equal, or have one side equal to 1, or have either side unknown (unknown
// dimensions are optimistically assumed compatible at import time, legality
// is deferred to run time). Axes present only in the longer shape pass
// through.
//
// A violation is a KindInvalidInput error naming both shapes.
func BroadcastValid(a, b Shape) error {
	minRank := min(a.Rank, b.Rank)
	for i := 1; i <= minRank; i++ {
		da := a.Dims[a.Rank-i]
		db := b.Dims[b.Rank-i]
		if da == db || da == 1 || db == 1 || da == DynamicDim || db == DynamicDim {
			continue
		}
		return InvalidInputf("shapes %s and %s cannot be broadcast together", a, b)
	}
	return nil
}

// BroadcastShapes validates and combines two or more shapes under the
// broadcasting rule, folding pairwise. Per aligned axis the combined shape
// takes the non-1 side, or the unknown marker when either side is unknown
// and neither is a known value > 1; non-aligned leading axes come from the
// longer shape.
func BroadcastShapes(shapes ...Shape) (Shape, error) {
	if len(shapes) == 0 {
		exceptions.Panicf("BroadcastShapes requires at least one shape")
	}
	combined := shapes[0]
	for _, s := range shapes[1:] {
		var err error
		combined, err = broadcastPair(combined, s)
		if err != nil {
			return Shape{}, err
		}
	}
	return combined, nil
}

func broadcastPair(a, b Shape) (Shape, error) {
	if err := BroadcastValid(a, b); err != nil {
		return Shape{}, err
	}
	out := Shape{Rank: max(a.Rank, b.Rank)}
	for i := 1; i <= out.Rank; i++ {
		da, db := int64(1), int64(1)
		if i <= a.Rank {
			da = a.Dims[a.Rank-i]
		}
		if i <= b.Rank {
			db = b.Dims[b.Rank-i]
		}
		out.Dims[out.Rank-i] = combineDim(da, db)
	}
	return out, nil
}

// combineDim merges one aligned axis pair, assuming it already validated.
func combineDim(da, db int64) int64 {
	switch {
	case da == db:
		return da
	case da == DynamicDim:
		if db > 1 {
			return db
		}
		return DynamicDim
	case db == DynamicDim:
		if da > 1 {
			return da
		}
		return DynamicDim
	case da == 1:
		return db
	default: // db == 1
		return da
	}
}

// BroadcastTensor raises an engine tensor to the given rank by prepending
// size-1 axes. A tensor already ranked past the target indicates a bug in
// the calling node-importer and panics.
func BroadcastTensor(ctx *ImportContext, t engine.Tensor, rank int) engine.Tensor {
	dims := t.Dims()
	if len(dims) > rank {
		exceptions.Panicf("cannot broadcast tensor of rank %d down to rank %d", len(dims), rank)
	}
	if len(dims) == rank {
		return t
	}
	newDims := make([]int64, rank)
	pad := rank - len(dims)
	for i := range pad {
		newDims[i] = 1
	}
	copy(newDims[pad:], dims)
	return ctx.Builder().Reshape(t, newDims)
}

// BroadcastTensors raises every tensor to the largest rank among them.
// The binary and ternary elementwise importers use this before handing
// operands to the engine.
func BroadcastTensors(ctx *ImportContext, tensors ...engine.Tensor) []engine.Tensor {
	maxRank := 0
	for _, t := range tensors {
		maxRank = max(maxRank, len(t.Dims()))
	}
	out := make([]engine.Tensor, len(tensors))
	for i, t := range tensors {
		out[i] = BroadcastTensor(ctx, t, maxRank)
	}
	return out
}
