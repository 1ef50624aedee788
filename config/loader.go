package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/seven-shadow/sentinel-eye/errcode"
)

const (
	// ConfigDir is the directory holding the sentinel-eye config file,
	// relative to the working directory.
	ConfigDir = ".seven-shadow"
	// ConfigFile is the name of the config file.
	ConfigFile = "sentinel-eye.json"
)

// Source identifies where a resolved config came from.
type Source string

// SourceDefault and SourceFile enumerate the config sources.
const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
)

// Resolved is the outcome of config resolution: the parsed config, the path
// it was (or would be) stored at, and whether it came from a file or the
// built-in defaults.
type Resolved struct {
	Config *Config
	Path   string
	Source Source
}

// DefaultPath returns {cwd}/.seven-shadow/sentinel-eye.json.
func DefaultPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return filepath.Join(cwd, ConfigDir, ConfigFile)
}

// Resolve loads the config from explicitPath, or from the default path when
// explicitPath is empty. A missing default file yields the built-in default
// config; a missing explicit file is an error.
func Resolve(explicitPath string) (*Resolved, error) {
	path := explicitPath
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if explicit {
				return nil, errcode.New(errcode.ConfigNotFound, "config file not found: %s", path)
			}
			return &Resolved{Config: Default(), Path: path, Source: SourceDefault}, nil
		}
		return nil, errcode.Wrap(errcode.ConfigRead, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return &Resolved{Config: cfg, Path: path, Source: SourceFile}, nil
}

// Parse decodes and validates a raw config document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errcode.Wrap(errcode.ConfigInvalidJSON, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save re-validates the config and writes it atomically: serialized to a
// temp file in the target directory, then renamed over the destination.
// Output is pretty-printed JSON with a trailing newline.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errcode.Wrap(errcode.ConfigRead, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errcode.Wrap(errcode.ConfigInvalidJSON, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ConfigFile+".tmp-*")
	if err != nil {
		return errcode.Wrap(errcode.ConfigRead, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errcode.Wrap(errcode.ConfigRead, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errcode.Wrap(errcode.ConfigRead, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errcode.Wrap(errcode.ConfigRead, err)
	}
	return nil
}
