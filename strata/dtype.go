package strata

import "fmt"

// DataType identifies a fixed-size array element type.
type DataType string

// Supported element types.
const (
	Bool    DataType = "bool"
	Int8    DataType = "int8"
	Int16   DataType = "int16"
	Int32   DataType = "int32"
	Int64   DataType = "int64"
	Uint8   DataType = "uint8"
	Uint16  DataType = "uint16"
	Uint32  DataType = "uint32"
	Uint64  DataType = "uint64"
	Float32 DataType = "float32"
	Float64 DataType = "float64"
)

// Size returns the element size in bytes, or 0 for an unknown type.
func (d DataType) Size() uint64 {
	switch d {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// ParseDataType validates a data type name from a metadata document.
func ParseDataType(s string) (DataType, error) {
	d := DataType(s)
	if d.Size() == 0 {
		return "", fmt.Errorf("unsupported data type: %q", s)
	}
	return d, nil
}
