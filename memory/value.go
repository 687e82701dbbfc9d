package memory

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"gamemem/process"
)

// ValueType selects how bytes read from the target are decoded
type ValueType int

const (
	Int8 ValueType = iota + 1
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	// Pointer is Uint32 or Uint64 depending on the connection's pointer width
	Pointer
)

var valueTypeNames = map[ValueType]string{
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Pointer: "pointer",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// ParseValueType accepts the names printed by String
func ParseValueType(s string) (ValueType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range valueTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

// Resolve maps Pointer onto the unsigned integer type of the given width
func (t ValueType) Resolve(width process.PointerWidth) ValueType {
	if t != Pointer {
		return t
	}
	if width == process.PointerWidth32 {
		return Uint32
	}
	return Uint64
}

// Size in bytes. Pointer must be resolved first.
func (t ValueType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// Value is a decoded read. The raw bits are kept so every accessor is lossless
// for its own type.
type Value struct {
	Type ValueType
	bits uint64
}

func decodeValue(t ValueType, buf []byte) Value {
	var bits uint64
	switch t.Size() {
	case 1:
		bits = uint64(buf[0])
	case 2:
		bits = uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		bits = uint64(binary.LittleEndian.Uint32(buf))
	case 8:
		bits = binary.LittleEndian.Uint64(buf)
	}
	return Value{Type: t, bits: bits}
}

// Int64 sign extends signed types
func (v Value) Int64() int64 {
	switch v.Type {
	case Int8:
		return int64(int8(v.bits))
	case Int16:
		return int64(int16(v.bits))
	case Int32:
		return int64(int32(v.bits))
	case Float32:
		return int64(v.Float64())
	case Float64:
		return int64(v.Float64())
	}
	return int64(v.bits)
}

func (v Value) Uint64() uint64 {
	return v.bits
}

func (v Value) Float64() float64 {
	switch v.Type {
	case Float32:
		return float64(math.Float32frombits(uint32(v.bits)))
	case Float64:
		return math.Float64frombits(v.bits)
	case Int8, Int16, Int32, Int64:
		return float64(v.Int64())
	}
	return float64(v.bits)
}

func (v Value) Address() process.ProcessMemoryAddress {
	return process.ProcessMemoryAddress(v.bits)
}

func (v Value) String() string {
	switch v.Type {
	case Int8, Int16, Int32, Int64:
		return fmt.Sprintf("%d", v.Int64())
	case Float32, Float64:
		return fmt.Sprintf("%g", v.Float64())
	case Uint32, Uint64:
		return fmt.Sprintf("%d (0x%X)", v.bits, v.bits)
	}
	return fmt.Sprintf("%d", v.bits)
}
