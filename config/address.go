package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gamemem/process"
)

// Address is an absolute address or a module relative offset. In YAML it can be
// written as an integer, a 0x prefixed hex string, a bare hex string, or in the
// Cheat Engine pointer notation "P->010B249C".
type Address uint64

var cheatEnginePointer = regexp.MustCompile(`P->([0-9A-Fa-f]+)`)

// ParseAddress converts the textual notations accepted in configuration files.
// Quoted digits are read as hex, matching what memory scanners print.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty address")
	}

	if m := cheatEnginePointer.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		s = s[2:]
	}

	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address format %q", s)
	}
	return Address(v), nil
}

func (a Address) Process() process.ProcessMemoryAddress {
	return process.ProcessMemoryAddress(a)
}

func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// UnmarshalYAML implements yaml.Unmarshaler
func (a *Address) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n uint64
	if err := unmarshal(&n); err == nil {
		*a = Address(n)
		return nil
	}

	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (a Address) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

// Offset is a signed displacement applied after dereferencing a pointer
type Offset int64

// UnmarshalYAML implements yaml.Unmarshaler
func (o *Offset) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n int64
	if err := unmarshal(&n); err == nil {
		*o = Offset(n)
		return nil
	}

	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid offset %q: %w", s, err)
	}
	*o = Offset(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (o Offset) MarshalYAML() (interface{}, error) {
	return o.String(), nil
}

func (o Offset) String() string {
	if o < 0 {
		return fmt.Sprintf("-0x%X", uint64(-o))
	}
	return fmt.Sprintf("0x%X", uint64(o))
}
