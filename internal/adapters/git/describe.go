package git

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tagver/tagver/internal/domain"
)

// describePattern parses TAG-NUM-gHEX. The tag may itself contain hyphens,
// so the greedy first group makes the split happen from the right.
var describePattern = regexp.MustCompile(`^(.+)-(\d+)-g([0-9a-f]+)$`)

// Inspector derives VersionPieces from a live checkout using git describe
// and related lookups. Every inspection feeds the next, so the calls are
// strictly sequential.
type Inspector struct {
	runner *Runner
	logger Logger
}

// NewInspector creates an Inspector with its own process runner.
func NewInspector(log Logger) *Inspector {
	return &Inspector{
		runner: NewRunner(log),
		logger: log,
	}
}

// Pieces inspects the repository containing dir and returns the structured
// version record. Returns an error wrapping domain.ErrNotThisMethod when
// dir is not under git control or git is unavailable; a mismatched or
// unparsable tag is a reportable condition instead, recorded in the
// returned record's Error field.
func (in *Inspector) Pieces(ctx context.Context, dir, tagPrefix string) (*domain.VersionPieces, error) {
	_, code, err := in.runner.Run(ctx, dir, "rev-parse", "--git-dir")
	if err != nil || code != 0 {
		in.logger.Debug(ctx, "directory not under git control", map[string]interface{}{
			"dir": dir,
		})
		return nil, fmt.Errorf("%w: 'git rev-parse --git-dir' returned error", domain.ErrNotThisMethod)
	}

	// With a matching tag this yields TAG-NUM-gHEX[-dirty]; without one it
	// yields HEX[-dirty] (no NUM). The match filter requires a digit right
	// after the prefix so branch names or unrelated tags are never misread
	// as versions.
	describeOut, code, err := in.runner.Run(ctx, dir,
		"describe", "--tags", "--dirty", "--always", "--long",
		"--match", tagPrefix+"[[:digit:]]*")
	if err != nil || code != 0 {
		return nil, fmt.Errorf("%w: 'git describe' failed", domain.ErrNotThisMethod)
	}

	// Describe output alone does not guarantee full-length ids on all git
	// versions, so look the full id up independently.
	fullOut, code, err := in.runner.Run(ctx, dir, "rev-parse", "HEAD")
	if err != nil || code != 0 {
		return nil, fmt.Errorf("%w: 'git rev-parse' failed", domain.ErrNotThisMethod)
	}

	pieces := &domain.VersionPieces{
		Long:  fullOut,
		Short: shortID(fullOut),
	}

	branch, err := in.currentBranch(ctx, dir)
	if err != nil {
		return nil, err
	}
	pieces.Branch = branch

	if err := in.parseDescribe(ctx, dir, pieces, describeOut, tagPrefix); err != nil {
		return nil, err
	}
	if pieces.Error != "" {
		return pieces, nil
	}

	date, err := in.commitDate(ctx, dir)
	if err != nil {
		return nil, err
	}
	pieces.Date = date

	in.logger.Debug(ctx, "derived version pieces", map[string]interface{}{
		"long":        pieces.Long,
		"short":       pieces.Short,
		"branch":      pieces.Branch,
		"closest_tag": pieces.ClosestTag,
		"distance":    pieces.Distance,
		"dirty":       pieces.Dirty,
	})
	return pieces, nil
}

// currentBranch resolves the branch name of HEAD. When git reports the
// symbolic "HEAD" placeholder for a detached checkout, a concrete branch is
// picked among the branches containing the current commit.
func (in *Inspector) currentBranch(ctx context.Context, dir string) (string, error) {
	name, code, err := in.runner.Run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || code != 0 {
		return "", fmt.Errorf("%w: 'git rev-parse --abbrev-ref' returned error", domain.ErrNotThisMethod)
	}
	if name != "HEAD" {
		return name, nil
	}

	out, code, err := in.runner.Run(ctx, dir, "branch", "--contains")
	if err != nil || code != 0 {
		return "", fmt.Errorf("%w: 'git branch --contains' returned error", domain.ErrNotThisMethod)
	}
	branches := strings.Split(out, "\n")

	// The first line describes the detached state itself, not a branch.
	if len(branches) > 0 && strings.Contains(branches[0], "(") {
		branches = branches[1:]
	}
	return rankBranches(branches), nil
}

// rankBranches picks one branch name to represent the current commit:
// a trunk branch if any candidate is one, else the first candidate, else
// empty for a branchless commit.
func rankBranches(candidates []string) string {
	cleaned := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimLeft(c, "* ")
		if c == "" {
			continue
		}
		cleaned = append(cleaned, c)
	}
	if len(cleaned) == 0 {
		return ""
	}
	for _, trunk := range domain.TrunkBranches {
		for _, c := range cleaned {
			if c == trunk {
				return trunk
			}
		}
	}
	return cleaned[0]
}

// parseDescribe fills the tag, distance and short id fields from the
// describe output. The grammar is TAG-NUM-gHEX with an optional -dirty
// suffix, or a bare HEX when no tag matched the filter.
func (in *Inspector) parseDescribe(ctx context.Context, dir string, pieces *domain.VersionPieces, describeOut, tagPrefix string) error {
	describe := describeOut

	// The dirty marker is stripped before parsing, independently of
	// whether dirtiness is recorded.
	if strings.HasSuffix(describe, "-dirty") {
		pieces.Dirty = true
		describe = describe[:strings.LastIndex(describe, "-dirty")]
	}

	if strings.Contains(describe, "-") {
		m := describePattern.FindStringSubmatch(describe)
		if m == nil {
			// Unparsable. Maybe git describe is misbehaving?
			pieces.Error = fmt.Sprintf("unable to parse git-describe output: '%s'", describeOut)
			return nil
		}

		fullTag := m[1]
		if !strings.HasPrefix(fullTag, tagPrefix) {
			in.logger.Warn(ctx, "tag does not match configured prefix", map[string]interface{}{
				"tag":        fullTag,
				"tag_prefix": tagPrefix,
			})
			pieces.Error = fmt.Sprintf("tag '%s' doesn't start with prefix '%s'", fullTag, tagPrefix)
			return nil
		}
		pieces.ClosestFullTag = fullTag
		pieces.ClosestTag = fullTag[len(tagPrefix):]

		distance, err := strconv.Atoi(m[2])
		if err != nil {
			pieces.Error = fmt.Sprintf("unable to parse git-describe output: '%s'", describeOut)
			return nil
		}
		pieces.Distance = distance
		pieces.Short = m[3]
		return nil
	}

	// Bare HEX: no matching tags. Distance becomes the total number of
	// reachable commits.
	out, code, err := in.runner.Run(ctx, dir, "rev-list", "HEAD", "--left-right")
	if err != nil || code != 0 {
		return fmt.Errorf("%w: 'git rev-list' failed", domain.ErrNotThisMethod)
	}
	pieces.Distance = len(strings.Fields(out))
	return nil
}

// commitDate returns HEAD's committer timestamp in compact ISO-8601 form.
func (in *Inspector) commitDate(ctx context.Context, dir string) (string, error) {
	out, code, err := in.runner.Run(ctx, dir, "show", "-s", "--format=%ci", "HEAD")
	if err != nil || code != 0 {
		return "", fmt.Errorf("%w: 'git show' failed", domain.ErrNotThisMethod)
	}
	// Only the last line carries the timestamp; earlier lines may contain
	// a GPG signature block.
	lines := strings.Split(out, "\n")
	return normalizeDate(lines[len(lines)-1]), nil
}

// normalizeDate converts "2024-12-17 12:25:42 +0900" into
// "2024-12-17T12:25:42+0900": the first space becomes a T and the second is
// deleted, keeping the offset concatenated for PEP 440 compatibility.
func normalizeDate(date string) string {
	date = strings.TrimSpace(date)
	date = strings.Replace(date, " ", "T", 1)
	return strings.Replace(date, " ", "", 1)
}

// shortID derives the deterministic abbreviation of a full revision id.
func shortID(full string) string {
	if len(full) > 7 {
		return full[:7]
	}
	return full
}
