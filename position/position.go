// Package position reads the character coordinates through the configured pointer chains.
package position

import (
	"context"
	"fmt"

	"gamemem/config"
	"gamemem/memory"
	"gamemem/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Position is a map coordinate. Z is only meaningful when HasZ is set.
type Position struct {
	X, Y, Z int32
	HasZ    bool
}

func (p Position) String() string {
	if p.HasZ {
		return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
	}
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Equal compares coordinates, Z only when both sides carry it
func (p Position) Equal(o Position) bool {
	if p.X != o.X || p.Y != o.Y {
		return false
	}
	if p.HasZ && o.HasZ {
		return p.Z == o.Z
	}
	return p.HasZ == o.HasZ
}

// AxisError names the axis whose chain or value could not be read
type AxisError struct {
	Axis string
	Err  error
}

func (e *AxisError) Error() string {
	return fmt.Sprintf("axis %s: %v", e.Axis, e.Err)
}

func (e *AxisError) Unwrap() error {
	return e.Err
}

// Addresses maps an axis to its resolved address
type Addresses map[string]process.ProcessMemoryAddress

// Reader resolves every axis chain and reads an int32 at the final address
type Reader struct {
	mem *memory.Reader
	cfg *config.Config
	log *logger.Logger
}

func NewReader(mem *memory.Reader, cfg *config.Config) *Reader {
	return &Reader{
		mem: mem,
		cfg: cfg,
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "position")),
	}
}

// Resolve returns the address of every axis the configuration asks for
func (r *Reader) Resolve(ctx context.Context) (Addresses, error) {
	out := Addresses{}
	for _, axis := range r.cfg.Axes() {
		chain, ok := r.cfg.Chain(axis)
		if !ok {
			return nil, &AxisError{Axis: axis, Err: fmt.Errorf("no pointer chain configured")}
		}
		addr, err := r.mem.ResolveChain(ctx, chain)
		if err != nil {
			return nil, &AxisError{Axis: axis, Err: err}
		}
		out[axis] = addr
	}
	return out, nil
}

// Read returns the current position
func (r *Reader) Read(ctx context.Context) (Position, error) {
	addrs, err := r.Resolve(ctx)
	if err != nil {
		return Position{}, err
	}

	var pos Position
	for _, axis := range r.cfg.Axes() {
		v, err := r.mem.ReadINT32(addrs[axis])
		if err != nil {
			return Position{}, &AxisError{Axis: axis, Err: err}
		}
		switch axis {
		case config.AxisX:
			pos.X = v
		case config.AxisY:
			pos.Y = v
		case config.AxisZ:
			pos.Z = v
			pos.HasZ = true
		}
	}

	r.log.Debugln("Position", pos.String())
	return pos, nil
}
