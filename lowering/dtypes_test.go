package lowering

import (
	"testing"

	"github.com/gomlx/go-xla/pkg/types/dtypes"
	"github.com/gomlx/onnx-lowering/internal/ir"
	"github.com/stretchr/testify/require"
)

func TestDTypeOf(t *testing.T) {
	for _, test := range []struct {
		portable ir.DataType
		want     dtypes.DType
		width    int
	}{
		{ir.Float, dtypes.Float32, 4},
		{ir.Float16, dtypes.Float16, 2},
		{ir.BFloat16, dtypes.BFloat16, 2},
		{ir.Double, dtypes.Float64, 8},
		{ir.Int8, dtypes.Int8, 1},
		{ir.Int32, dtypes.Int32, 4},
		{ir.Int64, dtypes.Int64, 8},
		{ir.Uint8, dtypes.Uint8, 1},
		{ir.Bool, dtypes.Bool, 1},
	} {
		t.Run(test.portable.String(), func(t *testing.T) {
			got, err := DTypeOf(test.portable)
			require.NoError(t, err)
			require.Equal(t, test.want, got)

			width, err := DTypeSize(test.portable)
			require.NoError(t, err)
			require.Equal(t, test.width, width)

			back, err := DTypeToIR(test.want)
			require.NoError(t, err)
			require.Equal(t, test.portable, back)
		})
	}
}

func TestDTypeOfUnsupported(t *testing.T) {
	// The failure is a tag the call site reacts to, not a terminal error.
	_, err := DTypeOf(ir.String)
	require.Error(t, err)
	require.Equal(t, KindUnsupported, Kind(err))

	_, err = DTypeSize(ir.Undefined)
	require.Error(t, err)
	require.Equal(t, KindUnsupported, Kind(err))
}
