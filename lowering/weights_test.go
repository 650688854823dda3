package lowering

import (
	"math"
	"testing"

	"github.com/gomlx/go-xla/pkg/types/dtypes"
	"github.com/gomlx/onnx-lowering/engine"
	"github.com/gomlx/onnx-lowering/internal/ir"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func float32Weights(t *testing.T, ctx *ImportContext, name string, shape Shape, values []float32) *Weights {
	w, err := ctx.CreateTempWeights(ir.Float, shape)
	require.NoError(t, err)
	w.Name = name
	flat, err := w.Float32s()
	require.NoError(t, err)
	require.Len(t, flat, len(values))
	copy(flat, values)
	return w
}

func TestWeightsCount(t *testing.T) {
	ctx, _, _ := newTestContext(t)

	require.Equal(t, int64(0), EmptyWeights(ir.Float).Count())

	scalar, err := ctx.CreateTempWeights(ir.Float, ScalarShape())
	require.NoError(t, err)
	require.Equal(t, int64(1), scalar.Count())
	require.Equal(t, int64(4), scalar.SizeBytes())

	empty, err := ctx.CreateTempWeights(ir.Float, MakeShape(0))
	require.NoError(t, err)
	require.Equal(t, int64(0), empty.Count())
	require.Equal(t, int64(0), empty.SizeBytes())

	w := float32Weights(t, ctx, "w", MakeShape(2, 3), make([]float32, 6))
	require.Equal(t, int64(6), w.Count())
	require.Equal(t, int64(24), w.SizeBytes())
	require.False(t, w.IsEmpty())
	require.True(t, EmptyWeights(ir.Float).IsEmpty())
}

func TestValuesAsChecksWidth(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	w := float32Weights(t, ctx, "w", MakeShape(4), []float32{1, 2, 3, 4})

	_, err := w.Int64s()
	require.Error(t, err)
	require.Equal(t, KindInvalidInput, Kind(err))

	// Same width, different interpretation: allowed, the bits are opaque.
	words, err := w.Int32s()
	require.NoError(t, err)
	require.Len(t, words, 4)
}

func TestWeightsAsEngine(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	w := float32Weights(t, ctx, "w", MakeShape(2, 2), []float32{1, 2, 3, 4})

	desc := w.AsEngine()
	require.Equal(t, dtypes.Float32, desc.DType)
	require.Equal(t, int64(4), desc.Count)
	require.NotNil(t, desc.Values)

	empty := EmptyWeights(ir.Float)
	desc = empty.AsEngine()
	require.Equal(t, int64(0), desc.Count)
	require.Nil(t, desc.Values)
}

func TestWeightsFromTensor(t *testing.T) {
	ctx, _, logger := newTestContext(t)

	t.Run("borrows storage", func(t *testing.T) {
		raw := make([]byte, 6*4)
		w, err := WeightsFromTensor(ctx, &ir.Tensor{
			Name:     "kernel",
			DataType: ir.Float,
			Dims:     []ir.Dimension{{Value: 2}, {Value: 3}},
			Raw:      raw,
		})
		require.NoError(t, err)
		require.Equal(t, "kernel", w.Name)
		require.True(t, MakeShape(2, 3).Equal(w.Shape))
		require.Same(t, &raw[0], &w.Data[0])
		require.Equal(t, 0, ctx.TempWeightsCount())
	})

	t.Run("payload length mismatch", func(t *testing.T) {
		_, err := WeightsFromTensor(ctx, &ir.Tensor{
			Name:     "short",
			DataType: ir.Float,
			Dims:     []ir.Dimension{{Value: 2}, {Value: 3}},
			Raw:      make([]byte, 20),
		})
		require.Error(t, err)
		require.Equal(t, KindInvalidInput, Kind(err))
		require.Contains(t, err.Error(), "short")
	})

	t.Run("symbolic dims rejected", func(t *testing.T) {
		_, err := WeightsFromTensor(ctx, &ir.Tensor{
			Name:     "sym",
			DataType: ir.Float,
			Dims:     []ir.Dimension{{Param: "batch"}, {Value: 3}},
		})
		require.Error(t, err)
		require.Equal(t, KindInvalidInput, Kind(err))
	})

	t.Run("unsupported dtype", func(t *testing.T) {
		_, err := WeightsFromTensor(ctx, &ir.Tensor{
			Name:     "strings",
			DataType: ir.String,
			Dims:     []ir.Dimension{{Value: 1}},
		})
		require.Error(t, err)
		require.Equal(t, KindUnsupported, Kind(err))
	})

	t.Run("traces float ranges", func(t *testing.T) {
		w := float32Weights(t, ctx, "traced", MakeShape(3), []float32{-2, 0.5, 7})
		logWeightsTrace(ctx, w)
		messages := logger.Messages(engine.SeverityVerbose)
		require.NotEmpty(t, messages)
		require.Contains(t, messages[len(messages)-1], "[-2, 7]")
	})
}

func TestWeightsInts(t *testing.T) {
	ctx, _, _ := newTestContext(t)

	w, err := ctx.CreateTempWeights(ir.Int32, MakeShape(3))
	require.NoError(t, err)
	flat, err := w.Int32s()
	require.NoError(t, err)
	copy(flat, []int32{-1, 0, 42})
	values, err := w.Ints()
	require.NoError(t, err)
	require.Equal(t, []int64{-1, 0, 42}, values)

	b, err := ctx.CreateTempWeights(ir.Bool, MakeShape(2))
	require.NoError(t, err)
	b.Data[1] = 1
	values, err = b.Ints()
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1}, values)

	f := float32Weights(t, ctx, "f", MakeShape(1), []float32{1})
	_, err = f.Ints()
	require.Error(t, err)
	require.Equal(t, KindInvalidInput, Kind(err))
}

func TestConvertInt64(t *testing.T) {
	ctx, _, logger := newTestContext(t)

	w, err := ctx.CreateTempWeights(ir.Int64, MakeShape(4))
	require.NoError(t, err)
	w.Name = "indices"
	flat, err := w.Int64s()
	require.NoError(t, err)
	copy(flat, []int64{-5, 3, math.MaxInt32 + 10, math.MinInt64})

	out, err := ConvertInt64(ctx, w)
	require.NoError(t, err)
	require.Equal(t, ir.Int32, out.DType)
	require.Equal(t, "indices", out.Name)
	dst, err := out.Int32s()
	require.NoError(t, err)
	require.Equal(t, []int32{-5, 3, math.MaxInt32, math.MinInt32}, dst)
	require.Len(t, logger.Messages(engine.SeverityWarning), 1)

	f := float32Weights(t, ctx, "f", MakeShape(1), []float32{1})
	_, err = ConvertInt64(ctx, f)
	require.Error(t, err)
	require.Equal(t, KindInvalidInput, Kind(err))
}

func TestConvertInt64NoClampNoWarning(t *testing.T) {
	ctx, _, logger := newTestContext(t)
	w, err := ctx.CreateTempWeights(ir.Int64, MakeShape(2))
	require.NoError(t, err)
	flat, err := w.Int64s()
	require.NoError(t, err)
	copy(flat, []int64{1, 2})

	_, err = ConvertInt64(ctx, w)
	require.NoError(t, err)
	require.Empty(t, logger.Messages(engine.SeverityWarning))
}

func TestIsAllZeros(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	w, err := ctx.CreateTempWeights(ir.Float, MakeShape(3))
	require.NoError(t, err)
	require.True(t, w.IsAllZeros())
	w.Data[5] = 1
	require.False(t, w.IsAllZeros())
}

func TestZeroWeightsLike(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	src := float32Weights(t, ctx, "scale", MakeShape(2, 2), []float32{1, 2, 3, 4})

	zeros, err := ZeroWeightsLike(ctx, src, ir.Int8)
	require.NoError(t, err)
	require.Equal(t, ir.Int8, zeros.DType)
	require.True(t, src.Shape.Equal(zeros.Shape))
	require.Equal(t, "scale", zeros.Name)
	require.True(t, zeros.IsAllZeros())
}

func TestFloat16Views(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	w, err := ctx.CreateTempWeights(ir.Float16, MakeShape(2))
	require.NoError(t, err)
	halves, err := w.Float16s()
	require.NoError(t, err)
	halves[0] = float16.Fromfloat32(1.5)
	halves[1] = float16.Fromfloat32(-2)

	words, err := w.Uint16s()
	require.NoError(t, err)
	require.Equal(t, uint16(float16.Fromfloat32(1.5)), words[0])

	_, err = w.Float32s()
	require.Error(t, err)
	require.Equal(t, KindInvalidInput, Kind(err))
}
