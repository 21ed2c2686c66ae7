// Package config loads the layerstore configuration file, following the
// same toml.Decode-over-defaults pattern as the upstream gocfl config.
package config

import (
	"os"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
)

// LayerConfig describes one physical layer, ordered bottom-to-top in the
// enclosing Config's Layers slice.
type LayerConfig struct {
	Path   string `toml:"path"`
	Sealed bool   `toml:"sealed"`
}

// IndexConfig configures the ListingIndex's persistence.
type IndexConfig struct {
	BadgerDir string `toml:"badgerdir"`
	InMemory  bool   `toml:"inmemory"`
}

// InliningConfig configures which moved-in files get their content cached
// in the index, per spec.md §6.
type InliningConfig struct {
	Enabled  bool  `toml:"enabled"`
	MaxBytes int64 `toml:"maxbytes"`
}

// LogConfig mirrors the upstream Log section, trimmed to what a library-plus-
// CLI needs: a zerolog level name and an optional log file.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Config is the root layerstore configuration document.
type Config struct {
	Layers   []LayerConfig  `toml:"Layer"`
	Index    IndexConfig    `toml:"Index"`
	Inlining InliningConfig `toml:"Inlining"`
	Log      LogConfig      `toml:"Log"`
}

// Load decodes data (TOML) over a set of sane defaults, matching the
// upstream LoadGOCFLConfig pattern.
func Load(data string) (*Config, error) {
	conf := &Config{
		Index: IndexConfig{
			BadgerDir: "",
			InMemory:  true,
		},
		Inlining: InliningConfig{
			Enabled:  false,
			MaxBytes: 4096,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if _, err := toml.Decode(data, conf); err != nil {
		return nil, errors.Wrap(err, "cannot load config")
	}
	if len(conf.Layers) == 0 {
		return nil, errors.New("config must define at least one [[Layer]]")
	}
	return conf, nil
}

// LoadFile reads path and decodes it with Load.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %s", path)
	}
	return Load(string(data))
}
