// Package config holds the settings that shape lowering and the command line,
// read from a YAML or TOML file.
package config

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v2"
)

// FileName is the settings file `microc init` writes.
const FileName = "microc.yaml"

type Config struct {
	// Module names the LLVM module and the default output file.
	Module string `yaml:"module" toml:"module"`
	// WordSize is the byte size of ints, floats and pointers.
	WordSize     int    `yaml:"word-size" toml:"word-size"`
	IntPrefix    string `yaml:"int-prefix" toml:"int-prefix"`
	FloatPrefix  string `yaml:"float-prefix" toml:"float-prefix"`
	ZeroRegister string `yaml:"zero-register" toml:"zero-register"`
	// Halt appends HALT to every lowered program.
	Halt     bool   `yaml:"halt" toml:"halt"`
	LogLevel string `yaml:"log-level" toml:"log-level"`
}

func Default() Config {
	return Config{
		Module:       "main",
		WordSize:     4,
		IntPrefix:    "t",
		FloatPrefix:  "f",
		ZeroRegister: "x0",
		Halt:         true,
		LogLevel:     "info",
	}
}

// Load reads path, choosing the decoder by extension. Keys missing from the
// file keep their defaults.
func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Decode(data, filepath.Ext(path))
}

func Decode(data []byte, ext string) (Config, error) {
	cfg := Default()
	halt := cfg.Halt

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	case ".toml":
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return Config{}, err
		}
		if err := tree.Unmarshal(&cfg); err != nil {
			return Config{}, err
		}
		if !tree.Has("halt") {
			cfg.Halt = halt
		}
	default:
		return Config{}, fmt.Errorf("unknown config format %q", ext)
	}

	cfg.fillDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Module == "" {
		c.Module = def.Module
	}
	if c.WordSize == 0 {
		c.WordSize = def.WordSize
	}
	if c.IntPrefix == "" {
		c.IntPrefix = def.IntPrefix
	}
	if c.FloatPrefix == "" {
		c.FloatPrefix = def.FloatPrefix
	}
	if c.ZeroRegister == "" {
		c.ZeroRegister = def.ZeroRegister
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

func (c Config) Validate() error {
	switch c.WordSize {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("word-size must be 1, 2, 4 or 8, got %d", c.WordSize)
	}
	if c.IntPrefix == c.FloatPrefix {
		return fmt.Errorf("int-prefix and float-prefix must differ, both are %q", c.IntPrefix)
	}
	if strings.HasPrefix(c.ZeroRegister, c.IntPrefix) || strings.HasPrefix(c.ZeroRegister, c.FloatPrefix) {
		return fmt.Errorf("zero-register %q collides with a temporary prefix", c.ZeroRegister)
	}
	return nil
}

// Encode renders c in the format chosen by ext.
func Encode(c Config, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Marshal(c)
	case ".toml":
		return toml.Marshal(c)
	}
	return nil, fmt.Errorf("unknown config format %q", ext)
}

func Save(path string, c Config) error {
	data, err := Encode(c, filepath.Ext(path))
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}
