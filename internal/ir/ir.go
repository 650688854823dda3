// Package ir holds the portable graph description consumed by the lowering
// layer: nodes with typed attributes, and constant tensors with a dtype tag,
// a dimension list and a raw byte payload.
//
// It mirrors the ONNX proto surface the importer needs, but as plain values:
// decoding the serialized model is the responsibility of an outer layer.
package ir

import "fmt"

// DataType is the portable graph's element-type enumeration.
// The numeric values match the ONNX TensorProto.DataType tags.
type DataType int32

const (
	Undefined DataType = iota
	Float
	Uint8
	Int8
	Uint16
	Int16
	Int32
	Int64
	String
	Bool
	Float16
	Double
	Uint32
	Uint64
	Complex64
	Complex128
	BFloat16
)

// String implements fmt.Stringer.
func (dt DataType) String() string {
	switch dt {
	case Undefined:
		return "undefined"
	case Float:
		return "float32"
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case String:
		return "string"
	case Bool:
		return "bool"
	case Float16:
		return "float16"
	case Double:
		return "float64"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Complex64:
		return "complex64"
	case Complex128:
		return "complex128"
	case BFloat16:
		return "bfloat16"
	default:
		return fmt.Sprintf("DataType(%d)", int32(dt))
	}
}

// Dimension is one entry of a tensor's dimension list: either a fixed value
// or an unresolved symbolic name (Param), which is treated as unknown.
type Dimension struct {
	Value int64
	Param string
}

// IsSymbolic reports whether the dimension is only known at run time.
func (d Dimension) IsSymbolic() bool { return d.Param != "" }

// Tensor is a constant tensor of the portable graph.
//
// Raw must hold exactly volume(Dims) * width(DataType) bytes; tensors
// failing this check are rejected by the lowering layer before any
// transform is attempted.
type Tensor struct {
	Name     string
	DataType DataType
	Dims     []Dimension
	Raw      []byte
}

// AttributeType tags the value held by an Attribute.
type AttributeType int32

const (
	AttributeUndefined AttributeType = iota
	AttributeInt
	AttributeInts
	AttributeFloat
	AttributeFloats
	AttributeString
	AttributeTensor
)

// String implements fmt.Stringer.
func (at AttributeType) String() string {
	switch at {
	case AttributeInt:
		return "int"
	case AttributeInts:
		return "ints"
	case AttributeFloat:
		return "float"
	case AttributeFloats:
		return "floats"
	case AttributeString:
		return "string"
	case AttributeTensor:
		return "tensor"
	default:
		return fmt.Sprintf("AttributeType(%d)", int32(at))
	}
}

// Attribute is a named, typed node attribute.
// Only the field selected by Type is meaningful.
type Attribute struct {
	Name   string
	Type   AttributeType
	I      int64
	Ints   []int64
	F      float32
	Floats []float32
	S      string
	T      *Tensor
}

// Node is one operator of the portable graph: an operator-type tag, ordered
// named attributes, and ordered input/output name references.
type Node struct {
	Name      string
	OpType    string
	Attribute []*Attribute
	Input     []string
	Output    []string
}
