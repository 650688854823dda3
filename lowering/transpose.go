package lowering

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lowering/engine"
	"github.com/gomlx/onnx-lowering/internal/ir"
)

// maxTransposeRank is the rank ceiling of the buffer-level transpose path.
// Higher ranks must be lowered as an explicit engine permute operator.
const maxTransposeRank = 4

// Permutation is a bijective axis reordering: axis i of the output takes
// its data from axis p[i] of the input.
type Permutation []int

// IdentityPermutation returns the identity reordering of the given rank.
func IdentityPermutation(rank int) Permutation {
	p := make(Permutation, rank)
	for i := range p {
		p[i] = i
	}
	return p
}

// IsValid reports whether p is a bijection on [0, rank).
func (p Permutation) IsValid(rank int) bool {
	if len(p) != rank {
		return false
	}
	var seen [MaxRank]bool
	for _, axis := range p {
		if axis < 0 || axis >= rank || seen[axis] {
			return false
		}
		seen[axis] = true
	}
	return true
}

// Inverse returns the permutation q with q[p[i]] == i.
func (p Permutation) Inverse() Permutation {
	q := make(Permutation, len(p))
	for i, axis := range p {
		q[axis] = i
	}
	return q
}

// String implements fmt.Stringer, e.g. "(1, 0)".
func (p Permutation) String() string { return formatSequence([]int(p)) }

// PermuteShape applies p to a shape, without touching any data.
func PermuteShape(s Shape, p Permutation) Shape {
	if !p.IsValid(s.Rank) {
		exceptions.Panicf("permutation %s is not a bijection on the axes of shape %s", p, s)
	}
	out := Shape{Rank: s.Rank}
	for i, axis := range p {
		out.Dims[i] = s.Dims[axis]
	}
	return out
}

// IsTransposeRequired reports whether applying p to a buffer of the given
// shape would move any data: permutations that only shuffle size-1 axes
// around keep the physical layout unchanged.
func IsTransposeRequired(shape Shape, p Permutation) bool {
	prevSignificant := 0
	for dst := range shape.Rank {
		src := p[dst]
		if shape.Dims[src] != 1 {
			if src < prevSignificant {
				return true
			}
			prevSignificant = src
		}
	}
	return false
}

// TransposeWeights produces a new arena-owned buffer whose bytes are w's
// physically reordered by p: result.Shape.Dims[i] == w.Shape.Dims[p[i]].
//
// Supported: rank <= 4, element widths of 4 bytes (float32) or 2 bytes
// (float16/bfloat16, moved as opaque 16-bit words, no numeric conversion).
// Anything else returns a KindUnsupported error with the destination never
// allocated; callers then fall back to an explicit permute operator in the
// engine graph. A mismatched or non-bijective permutation is a caller bug
// and panics.
//
// On success a warning advisory names the buffer and permutation: if the
// weights are later re-uploaded through the engine's refit mechanism, the
// replacement values must already be pre-transposed.
func TransposeWeights(ctx *ImportContext, w *Weights, p Permutation) (*Weights, error) {
	if !p.IsValid(w.Shape.Rank) {
		exceptions.Panicf("cannot transpose weights %q shaped %s with permutation %s", w.Name, w.Shape, p)
	}
	if w.Shape.Rank > maxTransposeRank {
		return nil, Unsupportedf("cannot transpose weights %q: rank %d exceeds the supported maximum of %d",
			w.Name, w.Shape.Rank, maxTransposeRank)
	}

	var wordSize int
	switch w.DType {
	case ir.Float:
		wordSize = 4
	case ir.Float16, ir.BFloat16:
		wordSize = 2
	default:
		return nil, Unsupportedf("cannot transpose weights %q of dtype %s", w.Name, w.DType)
	}

	result, err := ctx.CreateTempWeights(w.DType, PermuteShape(w.Shape, p))
	if err != nil {
		return nil, err
	}
	result.Name = w.Name

	switch wordSize {
	case 4:
		src, err := ValuesAs[uint32](w)
		if err != nil {
			return nil, err
		}
		dst, err := ValuesAs[uint32](result)
		if err != nil {
			return nil, err
		}
		transposeWords(w.Shape, result.Shape, p, src, dst)
	case 2:
		src, err := ValuesAs[uint16](w)
		if err != nil {
			return nil, err
		}
		dst, err := ValuesAs[uint16](result)
		if err != nil {
			return nil, err
		}
		transposeWords(w.Shape, result.Shape, p, src, dst)
	}

	ctx.Logf(engine.SeverityWarning,
		"weights %q have been transposed with permutation %s! If you plan on overwriting the weights with the refitter, the new weights must be pre-transposed.",
		w.Name, p)
	return result, nil
}

// transposeWords performs the N-dimensional strided copy.
//
// Both shapes and the permutation are left-padded to maxTransposeRank with
// size-1 axes and identity entries, so a single odometer loop over the
// padded iteration space covers ranks 0 through 4. The words are moved
// opaquely; numeric interpretation never matters here.
func transposeWords[T uint16 | uint32](srcShape, dstShape Shape, p Permutation, src, dst []T) {
	pad := maxTransposeRank - srcShape.Rank

	expandedSrc := MakeFilledShape(maxTransposeRank, 1)
	expandedDst := MakeFilledShape(maxTransposeRank, 1)
	expandedPerm := IdentityPermutation(maxTransposeRank)
	for i := range srcShape.Rank {
		expandedSrc.Dims[pad+i] = srcShape.Dims[i]
		expandedDst.Dims[pad+i] = dstShape.Dims[i]
		expandedPerm[pad+i] = p[i] + pad
	}

	srcStrides := expandedSrc.Strides()
	dstStrides := expandedDst.Strides()

	// Odometer iteration over the padded source space.
	var coord [maxTransposeRank]int64
	total := expandedSrc.Volume()
	for range total {
		srcIdx := int64(0)
		dstIdx := int64(0)
		for i := range maxTransposeRank {
			srcIdx += coord[i] * srcStrides[i]
			dstIdx += coord[expandedPerm[i]] * dstStrides[i]
		}
		dst[dstIdx] = src[srcIdx]

		for i := maxTransposeRank - 1; i >= 0; i-- {
			coord[i]++
			if coord[i] < expandedSrc.Dims[i] {
				break
			}
			coord[i] = 0
		}
	}
}
