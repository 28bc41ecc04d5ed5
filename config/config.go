// Package config handles quarkc.toml analysis configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "quarkc.toml"

// Config is the recognized configuration surface of the semantic core.
type Config struct {
	Analysis Analysis `toml:"analysis"`
	Limits   Limits   `toml:"limits"`
	Arch     Arch     `toml:"arch"`

	// Dir is the directory containing the quarkc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Analysis toggles name-resolution and cast behavior.
type Analysis struct {
	// CastDerefAsDynamicType casts a dereferenced reference using the class
	// of the object it points at rather than its static type.
	CastDerefAsDynamicType bool `toml:"cast-deref-as-dynamic-type"`

	// LazyClassID defers class-identity numbers until first use.
	LazyClassID bool `toml:"lazy-class-id"`

	// AllowAccessBeforeDef lets constants and typedefs reference names
	// declared later in the same scope. Defaults to true.
	AllowAccessBeforeDef bool `toml:"allow-access-before-def"`

	// PreferParamsInParamResolution makes template parameters win over
	// class members of the same name.
	PreferParamsInParamResolution bool `toml:"prefer-params-in-param-resolution"`
}

// Limits bound compile-time evaluation.
type Limits struct {
	MaxLoopIterations int `toml:"max-loop-iterations"` // -1 disables
	MaxCallDepth      int `toml:"max-call-depth"`
}

// Arch describes the target machine's atom.
type Arch struct {
	AtomBits          int `toml:"atom-bits"`
	ElementHeaderBits int `toml:"element-header-bits"`
	MaxQuarkBits      int `toml:"max-quark-bits"`
	MaxTransientBits  int `toml:"max-transient-bits"`
}

// Default values.
const (
	DefaultMaxLoopIterations = 150
	DefaultMaxCallDepth      = 64
	DefaultAtomBits          = 96
	DefaultElementHeaderBits = 25
	DefaultMaxQuarkBits      = 32
	DefaultMaxTransientBits  = 4096
)

// MaxElementHeaderBits bounds the element header, which holds a 32-bit
// class ID.
const MaxElementHeaderBits = 32

// Default returns the configuration used when no quarkc.toml exists.
func Default() Config {
	return Config{
		Analysis: Analysis{AllowAccessBeforeDef: true},
		Limits: Limits{
			MaxLoopIterations: DefaultMaxLoopIterations,
			MaxCallDepth:      DefaultMaxCallDepth,
		},
		Arch: Arch{
			AtomBits:          DefaultAtomBits,
			ElementHeaderBits: DefaultElementHeaderBits,
			MaxQuarkBits:      DefaultMaxQuarkBits,
			MaxTransientBits:  DefaultMaxTransientBits,
		},
	}
}

// ElementStateBits is the number of atom bits available to element data.
func (a Arch) ElementStateBits() int {
	return a.AtomBits - a.ElementHeaderBits
}

// Load parses a quarkc.toml file from the given directory. Keys missing from
// the file keep their Default values.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a quarkc.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the limits and architecture for consistency.
func (c *Config) Validate() error {
	if c.Limits.MaxLoopIterations < -1 {
		return fmt.Errorf("max-loop-iterations must be -1 or >= 0, got %d", c.Limits.MaxLoopIterations)
	}
	if c.Limits.MaxCallDepth <= 0 {
		return fmt.Errorf("max-call-depth must be positive, got %d", c.Limits.MaxCallDepth)
	}
	if c.Arch.AtomBits <= 0 || c.Arch.AtomBits > 4096 {
		return fmt.Errorf("atom-bits must be in 1..4096, got %d", c.Arch.AtomBits)
	}
	if c.Arch.ElementHeaderBits < 1 || c.Arch.ElementHeaderBits > MaxElementHeaderBits || c.Arch.ElementHeaderBits >= c.Arch.AtomBits {
		return fmt.Errorf("element-header-bits must be in 1..%d and less than atom-bits, got %d", MaxElementHeaderBits, c.Arch.ElementHeaderBits)
	}
	if c.Arch.MaxQuarkBits <= 0 || c.Arch.MaxQuarkBits > c.Arch.ElementStateBits() {
		return fmt.Errorf("max-quark-bits must be in 1..%d, got %d", c.Arch.ElementStateBits(), c.Arch.MaxQuarkBits)
	}
	if c.Arch.MaxTransientBits <= 0 {
		return fmt.Errorf("max-transient-bits must be positive, got %d", c.Arch.MaxTransientBits)
	}
	return nil
}
