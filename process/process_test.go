package process

import (
	"errors"
	"testing"
)

func TestMatchName(t *testing.T) {
	tests := []struct {
		candidate string
		name      string
		want      bool
	}{
		{"PokeAlliance_dx.exe", "pokealliance_dx.exe", true},
		{"PokeAllianc", "PokeAlliance_dx.exe", false},
		{"PokeAlliance_dx.exe", "Other.exe", false},
		// comm is truncated to 15 bytes on Linux
		{"pokealliance_dx", "PokeAlliance_dx.exe", true},
		{"", "game", false},
		{"game", "", false},
	}

	for _, tt := range tests {
		if got := MatchName(tt.candidate, tt.name); got != tt.want {
			t.Errorf("MatchName(%q, %q) = %v, want %v", tt.candidate, tt.name, got, tt.want)
		}
	}
}

func TestPointerWidthBounds(t *testing.T) {
	if PointerWidth32.MaxAddress() != 0xFFFFFFFF {
		t.Errorf("32-bit max address: %s", PointerWidth32.MaxAddress().ToString())
	}
	if PointerWidth64.MaxPlausibleAddress() != 0xFFFFFFFFFFFF {
		t.Errorf("64-bit plausible bound: %s", PointerWidth64.MaxPlausibleAddress().ToString())
	}
	if PointerWidth64.MaxAddress() != ^ProcessMemoryAddress(0) {
		t.Errorf("64-bit max address: %s", PointerWidth64.MaxAddress().ToString())
	}
}

func TestErrorTaxonomy(t *testing.T) {
	if !errors.Is(ErrHandleInvalid, ErrMemoryAccess) {
		t.Errorf("ErrHandleInvalid should be a memory access error")
	}
	if !errors.Is(ErrShortRead, ErrMemoryAccess) {
		t.Errorf("ErrShortRead should be a memory access error")
	}
	if errors.Is(ErrShortRead, ErrHandleInvalid) {
		t.Errorf("a short read must not look like a dead handle")
	}
	if errors.Is(ErrNotConnected, ErrMemoryAccess) {
		t.Errorf("ErrNotConnected is its own class")
	}
}

func TestProcessStateIsAlive(t *testing.T) {
	for _, s := range []ProcessState{ProcessRunning, ProcessSleeping, ProcessStopped, ""} {
		if !s.IsAlive() {
			t.Errorf("%q should be alive", s)
		}
	}
	for _, s := range []ProcessState{ProcessZombie, ProcessDead} {
		if s.IsAlive() {
			t.Errorf("%q should not be alive", s)
		}
	}
}

func TestModuleContains(t *testing.T) {
	m := Module{Name: "game.exe", Base: 0x400000, Size: 0x1000}
	if !m.Contains(0x400000) || !m.Contains(0x400FFF) {
		t.Errorf("expected addresses inside module")
	}
	if m.Contains(0x401000) || m.Contains(0x3FFFFF) {
		t.Errorf("expected addresses outside module")
	}
}
