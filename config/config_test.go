package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v2"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    Address
		wantErr bool
	}{
		{"0x010B249C", 0x010B249C, false},
		{"0X10", 0x10, false},
		{"010B249C", 0x010B249C, false},
		{"1000", 0x1000, false},
		{"P->010B249C", 0x010B249C, false},
		{"  P->ff  ", 0xFF, false},
		{"", 0, true},
		{"xyz", 0, true},
		{"0x", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAddress(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAddress(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestChainYAMLNotations(t *testing.T) {
	src := `
base_offset: "P->010B24A0"
offsets: [0x10, 32, "-0x8", "0x20"]
`
	var chain PointerChain
	if err := yaml.Unmarshal([]byte(src), &chain); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := PointerChain{BaseOffset: 0x010B24A0, Offsets: []Offset{0x10, 32, -8, 0x20}}
	if diff := cmp.Diff(want, chain); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{0x10, 32, -8, 0x20}, chain.OffsetValues()); diff != "" {
		t.Errorf("OffsetValues mismatch (-want +got):\n%s", diff)
	}

	out, err := yaml.Marshal(chain)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), "-0x8") || !strings.Contains(string(out), "0x10B24A0") {
		t.Errorf("unexpected encoding:\n%s", out)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamemem.yaml")
	src := `
process_name: Game.exe
include_z: false
pointer_chains:
  x: {base_offset: 0x1000, offsets: [0x10, 0x20]}
  y: {base_offset: 0x2000}
blocked_regions:
  - {start: 0x0, end: 0xFFFF}
read:
  retries: 5
`
	if err := ioutil.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ProcessName != "Game.exe" || cfg.IncludeZ {
		t.Errorf("top level fields not applied: %+v", cfg)
	}
	if cfg.Read.Retries != 5 {
		t.Errorf("retries = %d, want 5", cfg.Read.Retries)
	}
	if cfg.Read.RetryDelay != 10*time.Millisecond {
		t.Errorf("retry_delay default lost: %v", cfg.Read.RetryDelay)
	}
	if !cfg.AutoReconnect || cfg.Cache.Size != 4096 || cfg.Reconnect.Interval != 5*time.Second {
		t.Errorf("defaults not kept: %+v", cfg)
	}

	x, _ := cfg.Chain(AxisX)
	if diff := cmp.Diff(PointerChain{BaseOffset: 0x1000, Offsets: []Offset{0x10, 0x20}}, x); diff != "" {
		t.Errorf("x chain mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{AxisX, AxisY}, cfg.Axes()); diff != "" {
		t.Errorf("axes mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Blocked(0x10, 4) || cfg.Blocked(0x10000, 4) || !cfg.Blocked(0xFFFE, 4) {
		t.Errorf("blocked region not applied: %+v", cfg.BlockedRegions)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "process_name: [",
		"no name":         `process_name: ""`,
		"inverted region": "blocked_regions: [{start: 0x20, end: 0x10}]",
		"zero retries":    "read: {retries: 0}",
		"negative delay":  "read: {retry_delay: -1s}",
		"bad address":     `pointer_chains: {x: {base_offset: "nothex"}}`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "gamemem.yaml")
			if err := ioutil.WriteFile(path, []byte(src), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %q", src)
			}
		})
	}
}

func TestValidateRequiresZOnlyWhenIncluded(t *testing.T) {
	cfg := Default()
	delete(cfg.PointerChains, AxisZ)
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing z chain to fail")
	}
	cfg.IncludeZ = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSaveKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "gamemem.yaml")

	first := Default()
	if err := first.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := Default()
	second.ProcessName = "Other.exe"
	second.BlockedRegions = []BlockedRegion{{Start: 0x10, End: 0x20}}
	if err := second.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	backup, err := Load(path + ".bak")
	if err != nil {
		t.Fatalf("Load backup: %v", err)
	}
	if diff := cmp.Diff(first, backup); diff != "" {
		t.Errorf("backup mismatch (-want +got):\n%s", diff)
	}

	current, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(second, current); diff != "" {
		t.Errorf("saved config mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("backup missing: %v", err)
	}
}
