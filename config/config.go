package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"gamemem/process"

	"gopkg.in/yaml.v2"
)

// Axis names used as keys of Config.PointerChains
const (
	AxisX = "x"
	AxisY = "y"
	AxisZ = "z"
)

// PointerChain locates a value: base_offset is added to the module base, then
// every offset is applied after dereferencing the current address.
type PointerChain struct {
	BaseOffset Address  `yaml:"base_offset"`
	Offsets    []Offset `yaml:"offsets,omitempty"`
}

// OffsetValues returns the offsets as plain integers
func (c PointerChain) OffsetValues() []int64 {
	out := make([]int64, len(c.Offsets))
	for i, o := range c.Offsets {
		out[i] = int64(o)
	}
	return out
}

// BlockedRegion is an inclusive address range that must never be read
type BlockedRegion struct {
	Start Address `yaml:"start"`
	End   Address `yaml:"end"`
}

// Overlaps reports whether [addr, addr+size) touches the region
func (b BlockedRegion) Overlaps(addr process.ProcessMemoryAddress, size int) bool {
	if size <= 0 {
		size = 1
	}
	first := uint64(addr)
	last := first + uint64(size) - 1
	if last < first {
		last = ^uint64(0)
	}
	return first <= uint64(b.End) && last >= uint64(b.Start)
}

type ReadConfig struct {
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Freshness time.Duration `yaml:"freshness"`
	MaxAge    time.Duration `yaml:"max_age"`
	Size      int           `yaml:"size"`
}

type ReconnectConfig struct {
	Interval time.Duration `yaml:"interval"`
	Poll     time.Duration `yaml:"poll"`
	Check    time.Duration `yaml:"check"`
}

// Config is passed explicitly to every component that needs tuning
type Config struct {
	ProcessName    string                  `yaml:"process_name"`
	AutoReconnect  bool                    `yaml:"auto_reconnect"`
	IncludeZ       bool                    `yaml:"include_z"`
	PointerChains  map[string]PointerChain `yaml:"pointer_chains"`
	BlockedRegions []BlockedRegion         `yaml:"blocked_regions,omitempty"`
	Read           ReadConfig              `yaml:"read"`
	Cache          CacheConfig             `yaml:"cache"`
	Reconnect      ReconnectConfig         `yaml:"reconnect"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		ProcessName:   "PokeAlliance_dx.exe",
		AutoReconnect: true,
		IncludeZ:      true,
		PointerChains: map[string]PointerChain{
			AxisX: {BaseOffset: 0x010B249C},
			AxisY: {BaseOffset: 0x010B24A0},
			AxisZ: {BaseOffset: 0x010B24A4},
		},
		Read: ReadConfig{
			Retries:    3,
			RetryDelay: 10 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Freshness: 100 * time.Millisecond,
			MaxAge:    10 * time.Second,
			Size:      4096,
		},
		Reconnect: ReconnectConfig{
			Interval: 5 * time.Second,
			Poll:     100 * time.Millisecond,
			Check:    time.Second,
		},
	}
}

// Chain returns the pointer chain configured for axis
func (c *Config) Chain(axis string) (PointerChain, bool) {
	chain, ok := c.PointerChains[axis]
	return chain, ok
}

// Axes lists the axes that must be resolved for a position
func (c *Config) Axes() []string {
	if c.IncludeZ {
		return []string{AxisX, AxisY, AxisZ}
	}
	return []string{AxisX, AxisY}
}

// Blocked reports whether a read of size bytes at addr touches a blocked region
func (c *Config) Blocked(addr process.ProcessMemoryAddress, size int) bool {
	for _, r := range c.BlockedRegions {
		if r.Overlaps(addr, size) {
			return true
		}
	}
	return false
}

// Validate checks the invariants every component relies on
func (c *Config) Validate() error {
	if c.ProcessName == "" {
		return errors.New("process_name is required")
	}

	for _, axis := range c.Axes() {
		if _, ok := c.PointerChains[axis]; !ok {
			return fmt.Errorf("pointer chain for axis %s is required", axis)
		}
	}

	for i, r := range c.BlockedRegions {
		if r.Start > r.End {
			return fmt.Errorf("blocked region %d: start %s is after end %s", i, r.Start, r.End)
		}
	}

	if c.Read.Retries < 1 {
		return fmt.Errorf("read.retries must be at least 1, got %d", c.Read.Retries)
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be at least 1, got %d", c.Cache.Size)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"read.retry_delay", c.Read.RetryDelay},
		{"cache.freshness", c.Cache.Freshness},
		{"cache.max_age", c.Cache.MaxAge},
		{"reconnect.interval", c.Reconnect.Interval},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("%s must not be negative", d.name)
		}
	}
	if c.Reconnect.Poll <= 0 || c.Reconnect.Check <= 0 {
		return errors.New("reconnect.poll and reconnect.check must be positive")
	}

	return nil
}

// Load reads path and merges it over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("unable to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to path, keeping any previous file as path.bak
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("unable to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("unable to create config directory: %w", err)
		}
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".bak"); err != nil {
			return fmt.Errorf("unable to back up config: %w", err)
		}
	}

	if err := ioutil.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write config %s: %w", path, err)
	}
	return nil
}
