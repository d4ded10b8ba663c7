// Package config provides configuration loading for the tagver application.
// Options merge in precedence order: built-in defaults, then a
// [tool.tagver] table in the nearest pyproject.toml, then environment
// variables, then command line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/tagver/tagver/internal/domain"
)

// Environment variable names.
const (
	// EnvStyle selects the render style.
	EnvStyle = "TAGVER_STYLE"

	// EnvTagPrefix sets the tag prefix stripped from matching tags.
	EnvTagPrefix = "TAGVER_TAG_PREFIX"

	// EnvParentdirPrefix restricts the parent-directory fallback.
	EnvParentdirPrefix = "TAGVER_PARENTDIR_PREFIX"
)

// Default values.
const (
	DefaultStyle     = domain.StylePEP440
	DefaultTagPrefix = "v"
)

// ErrInvalidProjectFile indicates the pyproject.toml could not be parsed.
var ErrInvalidProjectFile = errors.New("pyproject.toml is not valid TOML")

// Overrides carries command line values; empty strings mean "not set".
type Overrides struct {
	Style           string
	TagPrefix       string
	ParentdirPrefix string
	Verbose         bool
}

// fileConfig is the subset of pyproject.toml read by the loader.
type fileConfig struct {
	Tool struct {
		Tagver struct {
			Style           string `toml:"style"`
			TagPrefix       string `toml:"tag-prefix"`
			ParentdirPrefix string `toml:"parentdir-prefix"`
		} `toml:"tagver"`
	} `toml:"tool"`
}

// Load builds the resolution config for the given working directory.
func Load(dir string, overrides Overrides) (*domain.Config, error) {
	style := string(DefaultStyle)
	tagPrefix := DefaultTagPrefix
	parentdirPrefix := ""

	if path, ok := findProjectFile(dir); ok {
		fc, err := readProjectFile(path)
		if err != nil {
			return nil, err
		}
		if fc.Tool.Tagver.Style != "" {
			style = fc.Tool.Tagver.Style
		}
		if fc.Tool.Tagver.TagPrefix != "" {
			tagPrefix = fc.Tool.Tagver.TagPrefix
		}
		if fc.Tool.Tagver.ParentdirPrefix != "" {
			parentdirPrefix = fc.Tool.Tagver.ParentdirPrefix
		}
	}

	if v := os.Getenv(EnvStyle); v != "" {
		style = v
	}
	if v := os.Getenv(EnvTagPrefix); v != "" {
		tagPrefix = v
	}
	if v := os.Getenv(EnvParentdirPrefix); v != "" {
		parentdirPrefix = v
	}

	if overrides.Style != "" {
		style = overrides.Style
	}
	if overrides.TagPrefix != "" {
		tagPrefix = overrides.TagPrefix
	}
	if overrides.ParentdirPrefix != "" {
		parentdirPrefix = overrides.ParentdirPrefix
	}

	parsedStyle, err := domain.ParseStyle(style)
	if err != nil {
		return nil, err
	}

	return &domain.Config{
		Style:           parsedStyle,
		TagPrefix:       tagPrefix,
		ParentdirPrefix: parentdirPrefix,
		Verbose:         overrides.Verbose,
	}, nil
}

// findProjectFile walks upward from dir to the nearest pyproject.toml.
func findProjectFile(dir string) (string, bool) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(current, "pyproject.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// readProjectFile parses the [tool.tagver] table.
func readProjectFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProjectFile, path, err)
	}
	return &fc, nil
}
