// Package metadata trusts the version recorded in frozen release metadata.
// Source distributions carry a PKG-INFO file with the version that was
// resolved at packing time; inside such a tree no repository information is
// available, so the recorded value is the most reliable one.
package metadata

import (
	"bufio"
	"context"
	"fmt"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/tagver/tagver/internal/domain"
)

// MetadataFileName is the frozen release-metadata file (an RFC 822 header
// block with a Version field).
const MetadataFileName = "PKG-INFO"

// MarkerFileName must sit next to the metadata and declare a [tool.tagver]
// table; otherwise the metadata belongs to some other tool and is ignored.
const MarkerFileName = "pyproject.toml"

// Logger defines the logging interface for the metadata strategy.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
}

// Strategy resolves versions from frozen package metadata.
type Strategy struct {
	logger Logger
}

// New creates the frozen-metadata strategy.
func New(log Logger) *Strategy {
	return &Strategy{logger: log}
}

// Name identifies the strategy in logs.
func (s *Strategy) Name() string { return "frozen-metadata" }

// Resolve walks upward from dir to the nearest PKG-INFO, requires the
// build marker beside it, and returns the declared version. No distance or
// dirty information exists in this scenario.
func (s *Strategy) Resolve(ctx context.Context, dir string) (*domain.VersionDict, error) {
	root, err := findRootWithFile(dir, MetadataFileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found", domain.ErrNotThisMethod, MetadataFileName)
	}

	markerPath := filepath.Join(root, MarkerFileName)
	if _, err := os.Stat(markerPath); err != nil {
		return nil, fmt.Errorf("%w: %s found but no %s in the project root",
			domain.ErrNotThisMethod, MetadataFileName, MarkerFileName)
	}
	if !hasTagverTable(markerPath) {
		return nil, fmt.Errorf("%w: no [tool.tagver] table in %s", domain.ErrNotThisMethod, MarkerFileName)
	}

	version, err := readMetadataVersion(filepath.Join(root, MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotThisMethod, err)
	}

	s.logger.Debug(ctx, "version taken from frozen metadata", map[string]interface{}{
		"root":    root,
		"version": version,
	})
	return &domain.VersionDict{
		Version: version,
		Dirty:   domain.BoolPtr(false),
	}, nil
}

// hasTagverTable reports whether the marker file declares a [tool.tagver]
// table.
func hasTagverTable(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}
	tool, ok := raw["tool"].(map[string]interface{})
	if !ok {
		return false
	}
	_, ok = tool["tagver"]
	return ok
}

// readMetadataVersion parses the header block and returns the Version
// field.
func readMetadataVersion(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := textproto.NewReader(bufio.NewReader(f))
	header, err := reader.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return "", fmt.Errorf("unreadable metadata header: %w", err)
	}
	version := header.Get("Version")
	if version == "" {
		return "", fmt.Errorf("Version not found in %s", MetadataFileName)
	}
	return version, nil
}

// findRootWithFile walks upward from dir to the first directory containing
// name.
func findRootWithFile(dir, name string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(current, name)); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", os.ErrNotExist
		}
		current = parent
	}
}
