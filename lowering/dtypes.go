package lowering

import (
	"github.com/gomlx/go-xla/pkg/types/dtypes"
	"github.com/gomlx/onnx-lowering/internal/ir"
)

// dtypeEntry is one row of the registry: the engine dtype a portable dtype
// lowers to, and its byte width.
type dtypeEntry struct {
	engine dtypes.DType
	width  int
}

// dtypeRegistry maps portable dtypes to engine dtypes and byte widths.
// Absent entries (String, Undefined) have no engine equivalent.
var dtypeRegistry = map[ir.DataType]dtypeEntry{
	ir.Float:      {dtypes.Float32, 4},
	ir.Float16:    {dtypes.Float16, 2},
	ir.BFloat16:   {dtypes.BFloat16, 2},
	ir.Double:     {dtypes.Float64, 8},
	ir.Uint8:      {dtypes.Uint8, 1},
	ir.Int8:       {dtypes.Int8, 1},
	ir.Uint16:     {dtypes.Uint16, 2},
	ir.Int16:      {dtypes.Int16, 2},
	ir.Uint32:     {dtypes.Uint32, 4},
	ir.Int32:      {dtypes.Int32, 4},
	ir.Uint64:     {dtypes.Uint64, 8},
	ir.Int64:      {dtypes.Int64, 8},
	ir.Bool:       {dtypes.Bool, 1},
	ir.Complex64:  {dtypes.Complex64, 8},
	ir.Complex128: {dtypes.Complex128, 16},
}

// DTypeOf converts a portable dtype to the engine's dtype.
//
// Unsupported dtypes return a KindUnsupported error rather than a terminal
// failure: call sites decide whether to fall back (e.g. treat the tensor as
// raw bytes) or abort the import.
func DTypeOf(dt ir.DataType) (dtypes.DType, error) {
	entry, found := dtypeRegistry[dt]
	if !found {
		return dtypes.InvalidDType, Unsupportedf("dtype %s has no engine equivalent", dt)
	}
	return entry.engine, nil
}

// DTypeSize returns the byte width of one element of the given dtype.
func DTypeSize(dt ir.DataType) (int, error) {
	entry, found := dtypeRegistry[dt]
	if !found {
		return 0, Unsupportedf("dtype %s has no known byte width", dt)
	}
	return entry.width, nil
}

// DTypeToIR is the reverse lookup: engine dtype to portable dtype. Used
// when synthesizing weight buffers for engine-typed values.
func DTypeToIR(dt dtypes.DType) (ir.DataType, error) {
	for irDType, entry := range dtypeRegistry {
		if entry.engine == dt {
			return irDType, nil
		}
	}
	return ir.Undefined, Unsupportedf("engine dtype %s has no portable equivalent", dt)
}
