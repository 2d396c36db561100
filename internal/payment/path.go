package payment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var ErrPathNotFound = errors.New("payload path not found")

// ParsePayload decodes a JSON object body into a generic tree.
func ParsePayload(body []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &s, nil
}

// Lookup walks a dotted path ("transaction.amount_in_cents") from root and renders the
// scalar it lands on the way a JSON string concatenation would. Objects, lists, nulls
// and missing keys are errors.
func Lookup(root *structpb.Struct, path string) (string, error) {
	if root == nil || path == "" {
		return "", fmt.Errorf("%w: %q", ErrPathNotFound, path)
	}
	cur := structpb.NewStructValue(root)
	for _, part := range strings.Split(path, ".") {
		obj := cur.GetStructValue()
		if obj == nil {
			return "", fmt.Errorf("%w: %q", ErrPathNotFound, path)
		}
		next, ok := obj.GetFields()[part]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrPathNotFound, path)
		}
		cur = next
	}
	switch v := cur.GetKind().(type) {
	case *structpb.Value_StringValue:
		return v.StringValue, nil
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(v.NumberValue, 'f', -1, 64), nil
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(v.BoolValue), nil
	default:
		return "", fmt.Errorf("%w: %q is not a scalar", ErrPathNotFound, path)
	}
}

// LookupStruct returns the object at path or nil.
func LookupStruct(root *structpb.Struct, path string) *structpb.Struct {
	cur := root
	for _, part := range strings.Split(path, ".") {
		if cur == nil {
			return nil
		}
		cur = cur.GetFields()[part].GetStructValue()
	}
	return cur
}

// LookupString is Lookup with a default for absent or non-scalar values.
func LookupString(root *structpb.Struct, path string) string {
	v, err := Lookup(root, path)
	if err != nil {
		return ""
	}
	return v
}
