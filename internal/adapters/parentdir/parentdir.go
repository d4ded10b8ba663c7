// Package parentdir resolves a version from the name of a parent directory.
// Source tarballs conventionally unpack into "project-1.2.3/" style
// directories, which is the only version information left once repository
// metadata has been stripped.
package parentdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/tagver/tagver/internal/domain"
)

// markerFiles identify a project root while walking upward.
var markerFiles = []string{"pyproject.toml", "setup.cfg", "setup.py", "go.mod"}

// maxAncestors is how many directory names above the project root
// (inclusive) are tested against the prefix. Mono-repos and multi-language
// trees may nest the marker below the unpacked directory.
const maxAncestors = 3

// Logger defines the logging interface for the parent-directory strategy.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// Strategy resolves versions from parent directory names.
type Strategy struct {
	prefix string // empty means auto-derive from project metadata
	logger Logger
}

// New creates the parent-directory strategy. An empty prefix enables
// auto-derivation from the project metadata's source URL or name.
func New(prefix string, log Logger) *Strategy {
	return &Strategy{prefix: prefix, logger: log}
}

// Name identifies the strategy in logs.
func (s *Strategy) Name() string { return "parent-directory" }

// Resolve finds the nearest project root above dir and tests its name (and
// up to two more ancestors) against the prefix. The remainder must look
// like a version number; organizational folder names never match.
func (s *Strategy) Resolve(ctx context.Context, dir string) (*domain.VersionDict, error) {
	root, err := findProjectRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: no project marker file found in any parent directory", domain.ErrNotThisMethod)
	}

	prefixes := []string{s.prefix}
	if s.prefix == "" {
		prefixes = derivePrefixes(root)
		if len(prefixes) == 0 {
			return nil, fmt.Errorf("%w: no parentdir prefix configured and none derivable from project metadata",
				domain.ErrNotThisMethod)
		}
	}

	var tried []string
	for _, prefix := range prefixes {
		dict, dirs := tryParentdir(root, prefix)
		if dict != nil {
			s.logger.Debug(ctx, "version taken from parent directory name", map[string]interface{}{
				"prefix":  prefix,
				"version": dict.Version,
			})
			return dict, nil
		}
		tried = append(tried, dirs...)
	}

	s.logger.Warn(ctx, "no parent directory matched the prefix", map[string]interface{}{
		"tried":    tried,
		"prefixes": prefixes,
	})
	return nil, fmt.Errorf("%w: rootdir doesn't start with parentdir prefix", domain.ErrNotThisMethod)
}

// tryParentdir tests up to maxAncestors directory names starting at root.
// Returns the resolved record and the directories tried.
func tryParentdir(root, prefix string) (*domain.VersionDict, []string) {
	var tried []string
	current := root
	for i := 0; i < maxAncestors; i++ {
		name := filepath.Base(current)
		if strings.HasPrefix(name, prefix) {
			candidate := name[len(prefix):]
			if matchesVersion(candidate) {
				return &domain.VersionDict{
					Version: candidate,
					Dirty:   domain.BoolPtr(false),
				}, tried
			}
		}
		tried = append(tried, current)

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return nil, tried
}

// matchesVersion reports whether the remainder after the prefix looks like
// a version number.
func matchesVersion(candidate string) bool {
	return candidate != "" && domain.VersionCandidatePattern.MatchString(candidate)
}

// findProjectRoot walks upward from dir to the first directory containing
// any project marker file.
func findProjectRoot(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, marker := range markerFiles {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", os.ErrNotExist
		}
		current = parent
	}
}

// pyprojectMeta is the subset of pyproject.toml used for prefix
// auto-derivation.
type pyprojectMeta struct {
	Project struct {
		Name string            `toml:"name"`
		URLs map[string]string `toml:"urls"`
	} `toml:"project"`
}

// derivePrefixes builds candidate prefixes from project metadata: the
// basename of a forge source URL, then the project name, then the go.mod
// module path basename. Each candidate carries a trailing hyphen.
func derivePrefixes(root string) []string {
	var prefixes []string

	if data, err := os.ReadFile(filepath.Join(root, "pyproject.toml")); err == nil {
		var meta pyprojectMeta
		if err := toml.Unmarshal(data, &meta); err == nil {
			for _, key := range []string{"homepage", "Homepage", "source", "Source"} {
				if p := prefixFromSourceURL(meta.Project.URLs[key]); p != "" {
					prefixes = append(prefixes, p)
				}
			}
			if meta.Project.Name != "" {
				prefixes = append(prefixes, meta.Project.Name+"-")
			}
		}
	}

	if module := readModulePath(filepath.Join(root, "go.mod")); module != "" {
		prefixes = append(prefixes, filepath.Base(module)+"-")
	}

	return prefixes
}

// prefixFromSourceURL turns a forge URL like
// "https://github.com/org/myapp.git" into "myapp-". Only well-known forges
// are trusted; arbitrary homepage URLs rarely end in the repository name.
func prefixFromSourceURL(url string) string {
	if !strings.HasPrefix(url, "https://github.com/") && !strings.HasPrefix(url, "https://gitlab.com/") {
		return ""
	}
	url = strings.TrimSuffix(url, ".git")
	url = strings.TrimSuffix(url, "/")
	segments := strings.Split(url, "/")
	last := segments[len(segments)-1]
	if last == "" {
		return ""
	}
	return last + "-"
}

// readModulePath extracts the module path from a go.mod file.
func readModulePath(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
