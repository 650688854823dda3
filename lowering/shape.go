package lowering

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lowering/internal/ir"
)

// MaxRank is the maximum rank of a Shape.
const MaxRank = 8

// DynamicDim marks a dimension whose size is unknown at import time.
const DynamicDim = int64(-1)

// Shape is a fixed-capacity ordered list of signed dimension sizes.
// It is a value type: copy freely, there is no identity.
//
// Only Dims[:Rank] is meaningful; a dimension of -1 (DynamicDim) is unknown
// until the model runs.
type Shape struct {
	Rank int
	Dims [MaxRank]int64
}

// MakeShape creates a Shape from the given dimensions.
// More than MaxRank dimensions is a caller bug and panics.
func MakeShape(dims ...int64) Shape {
	if len(dims) > MaxRank {
		exceptions.Panicf("MakeShape: rank %d exceeds MaxRank=%d", len(dims), MaxRank)
	}
	s := Shape{Rank: len(dims)}
	copy(s.Dims[:], dims)
	return s
}

// ScalarShape returns the rank-0 shape.
func ScalarShape() Shape { return Shape{} }

// MakeFilledShape returns a Shape of the given rank with every dimension
// set to value.
func MakeFilledShape(rank int, value int64) Shape {
	if rank > MaxRank {
		exceptions.Panicf("MakeFilledShape: rank %d exceeds MaxRank=%d", rank, MaxRank)
	}
	s := Shape{Rank: rank}
	for i := range rank {
		s.Dims[i] = value
	}
	return s
}

// ShapeFromDims converts a portable dimension list to a Shape, lowering
// symbolic or negative dimensions to DynamicDim.
//
// Unlike MakeShape, an over-long dimension list is model data and is
// reported as an InvalidInput error.
func ShapeFromDims(dims []ir.Dimension) (Shape, error) {
	if len(dims) > MaxRank {
		return Shape{}, InvalidInputf("tensor has rank %d, the engine supports at most %d", len(dims), MaxRank)
	}
	s := Shape{Rank: len(dims)}
	for i, d := range dims {
		if d.IsSymbolic() || d.Value < 0 {
			s.Dims[i] = DynamicDim
		} else {
			s.Dims[i] = d.Value
		}
	}
	return s, nil
}

// Dimensions returns the valid dimensions as a slice, the fixed-rank
// integer-array form exchanged with the engine. The slice aliases the
// Shape value it was taken from.
func (s *Shape) Dimensions() []int64 { return s.Dims[:s.Rank] }

// Volume is the product of all dimensions. A rank-0 shape has volume 1
// (scalars), and a shape with any unknown dimension has volume -1.
func (s Shape) Volume() int64 {
	v := int64(1)
	for _, d := range s.Dims[:s.Rank] {
		if d < 0 {
			return -1
		}
		v *= d
	}
	return v
}

// IsDynamic reports whether any dimension is unknown at import time.
func (s Shape) IsDynamic() bool {
	for _, d := range s.Dims[:s.Rank] {
		if d < 0 {
			return true
		}
	}
	return false
}

// Strides returns the row-major strides (pitches) of the shape, in
// elements: the last axis has stride 1.
func (s Shape) Strides() []int64 {
	strides := make([]int64, s.Rank)
	if s.Rank == 0 {
		return strides
	}
	strides[s.Rank-1] = 1
	for i := s.Rank - 2; i >= 0; i-- {
		strides[i] = s.Dims[i+1] * strides[i+1]
	}
	return strides
}

// Equal reports whether both shapes have the same rank and dimensions.
func (s Shape) Equal(o Shape) bool {
	if s.Rank != o.Rank {
		return false
	}
	for i := range s.Rank {
		if s.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer, e.g. "(2, 3)".
func (s Shape) String() string {
	return formatSequence(s.Dims[:s.Rank])
}

// formatSequence prints a parenthesized, comma-separated sequence.
func formatSequence[T int | int64](values []T) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", v)
	}
	b.WriteByte(')')
	return b.String()
}
