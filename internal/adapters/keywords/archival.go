// Package keywords resolves a version from git export-subst keywords that
// were expanded into an archival file when the tree was exported with
// git archive. Inside a live checkout the placeholders are still literal
// and the strategy reports itself not applicable.
package keywords

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/tagver/tagver/internal/domain"
)

// ArchivalFileName is the file carrying the export-subst placeholders:
// ref-names ($Format:%D$), node ($Format:%H$) and node-date ($Format:%cI$).
const ArchivalFileName = ".git_archival.txt"

// tagRefPrefix marks an explicit tag in a decorated ref-names listing.
const tagRefPrefix = "tag: "

var digitPattern = regexp.MustCompile(`\d`)

// Logger defines the logging interface for the keywords strategy.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// Strategy resolves versions from expanded archive keywords.
type Strategy struct {
	tagPrefix string
	logger    Logger
}

// New creates the archive-keyword strategy.
func New(tagPrefix string, log Logger) *Strategy {
	return &Strategy{tagPrefix: tagPrefix, logger: log}
}

// Name identifies the strategy in logs.
func (s *Strategy) Name() string { return "archive-keywords" }

// Resolve reads the archival file found by walking upward from dir. Missing
// file or unexpanded placeholders signal "not applicable". Expanded
// keywords with no acceptable tag are a reportable condition: a record is
// returned with the error field set.
func (s *Strategy) Resolve(ctx context.Context, dir string) (*domain.VersionDict, error) {
	file, err := findArchivalFile(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: no %s found", domain.ErrNotThisMethod, ArchivalFileName)
	}

	kw, err := parseArchivalFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s unreadable", domain.ErrNotThisMethod, ArchivalFileName)
	}
	if kw.refNames == "" || kw.node == "" {
		return nil, fmt.Errorf("%w: no keywords at all", domain.ErrNotThisMethod)
	}
	if strings.HasPrefix(kw.refNames, "$Format") || strings.HasPrefix(kw.node, "$Format") {
		s.logger.Debug(ctx, "keywords unexpanded, not using", map[string]interface{}{
			"file": file,
		})
		return nil, fmt.Errorf("%w: unexpanded keywords, not usable", domain.ErrNotThisMethod)
	}

	refs := splitRefNames(kw.refNames)
	tags := explicitTags(refs)
	if len(tags) == 0 {
		// Old exports lack the "tag: " markers. Fall back to refs that
		// contain a digit, which filters out branch names like "release".
		s.logger.Debug(ctx, "no tag markers in ref names, falling back to digit filter", map[string]interface{}{
			"refs": refs,
		})
		for _, r := range refs {
			if digitPattern.MatchString(r) {
				tags = append(tags, r)
			}
		}
	}

	// Ascending order, so pre-release suffixes lose against plain numeric
	// tags of the same release.
	sort.Strings(tags)
	for _, tag := range tags {
		if !strings.HasPrefix(tag, s.tagPrefix) {
			continue
		}
		version := tag[len(s.tagPrefix):]
		if !digitPattern.MatchString(firstChar(version)) {
			s.logger.Debug(ctx, "discarding ref, no digit after prefix", map[string]interface{}{
				"ref": tag,
			})
			continue
		}
		dict := &domain.VersionDict{
			Version:        version,
			FullRevisionID: domain.StringPtr(kw.node),
			Dirty:          domain.BoolPtr(false),
		}
		if kw.nodeDate != "" {
			dict.Date = domain.StringPtr(normalizeKeywordDate(kw.nodeDate))
		}
		return dict, nil
	}

	s.logger.Warn(ctx, "no suitable tags among expanded ref names", map[string]interface{}{
		"refs": refs,
	})
	return &domain.VersionDict{
		Version:        "0+unknown",
		FullRevisionID: domain.StringPtr(kw.node),
		Dirty:          domain.BoolPtr(false),
		Error:          domain.StringPtr("no suitable tags"),
	}, nil
}

type archivalKeywords struct {
	refNames string
	node     string
	nodeDate string
}

// findArchivalFile walks upward from dir to the nearest archival file.
func findArchivalFile(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(current, ArchivalFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", os.ErrNotExist
		}
		current = parent
	}
}

// parseArchivalFile reads the "key: value" lines of an archival file.
func parseArchivalFile(path string) (archivalKeywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return archivalKeywords{}, err
	}
	var kw archivalKeywords
	for _, line := range strings.Split(string(data), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "ref-names":
			kw.refNames = value
		case "node":
			kw.node = value
		case "node-date":
			kw.nodeDate = value
		}
	}
	return kw, nil
}

// splitRefNames turns a decorated ref listing such as
// "HEAD -> main, tag: v1.2.3, origin/main" into individual refs.
func splitRefNames(refNames string) []string {
	refNames = strings.Trim(strings.TrimSpace(refNames), "()")
	var refs []string
	for _, r := range strings.Split(refNames, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			refs = append(refs, r)
		}
	}
	return refs
}

// explicitTags extracts the refs carrying the "tag: " marker.
func explicitTags(refs []string) []string {
	var tags []string
	for _, r := range refs {
		if strings.HasPrefix(r, tagRefPrefix) {
			tags = append(tags, r[len(tagRefPrefix):])
		}
	}
	return tags
}

// normalizeKeywordDate applies the same compaction as the live-inspection
// date: first space to T, second space deleted. A %cI value passes through
// unchanged.
func normalizeKeywordDate(date string) string {
	lines := strings.Split(strings.TrimSpace(date), "\n")
	date = strings.TrimSpace(lines[len(lines)-1])
	date = strings.Replace(date, " ", "T", 1)
	return strings.Replace(date, " ", "", 1)
}

func firstChar(s string) string {
	if s == "" {
		return ""
	}
	return s[:1]
}
