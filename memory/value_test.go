package memory

import (
	"testing"

	"gamemem/process"
)

func TestValueTypeSizes(t *testing.T) {
	tests := []struct {
		typ   ValueType
		width process.PointerWidth
		want  int
	}{
		{Int8, process.PointerWidth64, 1},
		{Uint16, process.PointerWidth64, 2},
		{Float32, process.PointerWidth64, 4},
		{Float64, process.PointerWidth32, 8},
		{Pointer, process.PointerWidth32, 4},
		{Pointer, process.PointerWidth64, 8},
	}
	for _, tt := range tests {
		if got := tt.typ.Resolve(tt.width).Size(); got != tt.want {
			t.Errorf("%s with %s: size %d, want %d", tt.typ, tt.width, got, tt.want)
		}
	}
	if Pointer.Size() != 0 {
		t.Error("unresolved pointer has a size")
	}
}

func TestParseValueType(t *testing.T) {
	for typ, name := range valueTypeNames {
		got, err := ParseValueType(" " + name + " ")
		if err != nil || got != typ {
			t.Errorf("ParseValueType(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseValueType("int128"); err == nil {
		t.Error("expected error for int128")
	}
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		typ  ValueType
		buf  []byte
		want string
	}{
		{Int8, []byte{0xFF}, "-1"},
		{Uint8, []byte{0xFF}, "255"},
		{Int16, []byte{0x00, 0x80}, "-32768"},
		{Int32, []byte{0xF6, 0xFF, 0xFF, 0xFF}, "-10"},
		{Uint32, []byte{0x10, 0x00, 0x00, 0x00}, "16 (0x10)"},
		{Float32, []byte{0x00, 0x00, 0xC0, 0x3F}, "1.5"},
		{Float64, []byte{0, 0, 0, 0, 0, 0, 0xF8, 0x3F}, "1.5"},
		{Int64, []byte{0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, "-2"},
	}
	for _, tt := range tests {
		if got := decodeValue(tt.typ, tt.buf).String(); got != tt.want {
			t.Errorf("decode %s % x = %s, want %s", tt.typ, tt.buf, got, tt.want)
		}
	}

	f := decodeValue(Float32, []byte{0x00, 0x00, 0xC0, 0xBF})
	if f.Int64() != -1 || f.Float64() != -1.5 {
		t.Errorf("float conversions: %d %v", f.Int64(), f.Float64())
	}
}
