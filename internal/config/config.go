// Package config loads wavefront.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"wavefront/internal/gpu"
)

// FileName is the configuration file searched for.
const FileName = "wavefront.toml"

// Config is the decoded configuration. Zero fields keep defaults.
type Config struct {
	Target    TargetConfig    `toml:"target"`
	Translate TranslateConfig `toml:"translate"`

	// Path is the file the configuration came from; empty for defaults.
	Path string `toml:"-"`
}

type TargetConfig struct {
	Gen                string `toml:"gen"`
	WaveSize           int    `toml:"wave_size"`
	FloatMode          string `toml:"float_mode"`
	BackendMajor       int    `toml:"backend_major"`
	RobustBufferAccess bool   `toml:"robust_buffer_access"`
}

type TranslateConfig struct {
	Jobs  int  `toml:"jobs"`
	Cache bool `toml:"cache"`
}

// Find walks up from startDir to locate wavefront.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load finds and decodes the configuration above startDir. Without a
// file it returns the defaults.
func Load(startDir string) (*Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile decodes path. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Translate.Jobs < 0 {
		return nil, fmt.Errorf("%s: [translate].jobs must not be negative", path)
	}
	cfg.Path = path
	if _, err := cfg.GPUTarget(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// GPUTarget merges the [target] table over gpu.DefaultTarget and
// validates the result.
func (c *Config) GPUTarget() (gpu.Target, error) {
	tg := gpu.DefaultTarget()
	if c == nil {
		return tg, nil
	}
	if c.Target.Gen != "" {
		gen, err := gpu.ParseGen(c.Target.Gen)
		if err != nil {
			return gpu.Target{}, fmt.Errorf("[target].gen: %w", err)
		}
		tg.Gen = gen
		if gen >= gpu.GFX10 && c.Target.WaveSize == 0 {
			tg.WaveSize = 32
		}
	}
	if c.Target.WaveSize != 0 {
		tg.WaveSize = c.Target.WaveSize
	}
	if c.Target.FloatMode != "" {
		mode, err := gpu.ParseFloatMode(c.Target.FloatMode)
		if err != nil {
			return gpu.Target{}, fmt.Errorf("[target].float_mode: %w", err)
		}
		tg.FloatMode = mode
	}
	if c.Target.BackendMajor != 0 {
		tg.BackendMajor = c.Target.BackendMajor
	}
	if err := tg.Validate(); err != nil {
		return gpu.Target{}, fmt.Errorf("[target]: %w", err)
	}
	return tg, nil
}
