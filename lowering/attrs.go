package lowering

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/onnx-lowering/internal/ir"
)

// Node-attribute accessors shared by the per-operator importers. Required
// accessors treat a missing or mistyped attribute as a malformed node and
// panic; the "...Or" variants fall back to a default.

// getNodeAttr returns the named attribute of node, or nil. If required, a
// missing attribute panics.
func getNodeAttr(node *ir.Node, name string, required bool) *ir.Attribute {
	for _, attr := range node.Attribute {
		if attr.Name == name {
			return attr
		}
	}
	if required {
		exceptions.Panicf("node %q (%s) is missing required attribute %q", node.Name, node.OpType, name)
	}
	return nil
}

func assertAttrType(node *ir.Node, attr *ir.Attribute, attrType ir.AttributeType) {
	if attr.Type != attrType {
		exceptions.Panicf("node %q (%s): attribute %q is of type %s, expected %s",
			node.Name, node.OpType, attr.Name, attr.Type, attrType)
	}
}

// MustGetIntAttr returns an integer attribute that must be present.
func MustGetIntAttr(node *ir.Node, name string) int64 {
	attr := getNodeAttr(node, name, true)
	assertAttrType(node, attr, ir.AttributeInt)
	return attr.I
}

// MustGetIntsAttr returns an integer-list attribute that must be present.
// A single-integer attribute is accepted as a one-element list.
func MustGetIntsAttr(node *ir.Node, name string) []int64 {
	attr := getNodeAttr(node, name, true)
	if attr.Type == ir.AttributeInt {
		return []int64{attr.I}
	}
	assertAttrType(node, attr, ir.AttributeInts)
	return attr.Ints
}

// GetIntAttrOr returns an integer attribute, or defaultValue when absent.
func GetIntAttrOr(node *ir.Node, name string, defaultValue int64) int64 {
	attr := getNodeAttr(node, name, false)
	if attr == nil {
		return defaultValue
	}
	assertAttrType(node, attr, ir.AttributeInt)
	return attr.I
}

// GetBoolAttrOr returns a boolean attribute (encoded as 0/1 integer), or
// defaultValue when absent.
func GetBoolAttrOr(node *ir.Node, name string, defaultValue bool) bool {
	defaultInt := int64(0)
	if defaultValue {
		defaultInt = 1
	}
	return GetIntAttrOr(node, name, defaultInt) != 0
}

// GetFloatAttrOr returns a float attribute, or defaultValue when absent.
func GetFloatAttrOr(node *ir.Node, name string, defaultValue float32) float32 {
	attr := getNodeAttr(node, name, false)
	if attr == nil {
		return defaultValue
	}
	assertAttrType(node, attr, ir.AttributeFloat)
	return attr.F
}

// GetIntsAttrOr returns an integer-list attribute, or defaultValues when
// absent.
func GetIntsAttrOr(node *ir.Node, name string, defaultValues []int64) []int64 {
	attr := getNodeAttr(node, name, false)
	if attr == nil {
		return defaultValues
	}
	assertAttrType(node, attr, ir.AttributeInts)
	return attr.Ints
}

// GetStringAttrOr returns a string attribute, or defaultValue when absent.
func GetStringAttrOr(node *ir.Node, name string, defaultValue string) string {
	attr := getNodeAttr(node, name, false)
	if attr == nil {
		return defaultValue
	}
	assertAttrType(node, attr, ir.AttributeString)
	return attr.S
}

// MustGetTensorAttr returns a tensor attribute that must be present.
func MustGetTensorAttr(node *ir.Node, name string) *ir.Tensor {
	attr := getNodeAttr(node, name, true)
	assertAttrType(node, attr, ir.AttributeTensor)
	return attr.T
}

// ShapeFromAttr reads an integer-list attribute as a Shape, with a default
// value for every dimension when the attribute is absent. Mirrors how
// kernel/stride/dilation attributes default per spatial dimension.
func ShapeFromAttr(node *ir.Node, name string, rank int, defaultValue int64) Shape {
	attr := getNodeAttr(node, name, false)
	if attr == nil {
		return MakeFilledShape(rank, defaultValue)
	}
	assertAttrType(node, attr, ir.AttributeInts)
	if len(attr.Ints) != rank {
		exceptions.Panicf("node %q (%s): attribute %q has %d values, expected %d",
			node.Name, node.OpType, name, len(attr.Ints), rank)
	}
	return MakeShape(attr.Ints...)
}
