package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/tagver/tagver/internal/domain"
)

// TrunkCalculator computes how far a tag is from the trunk branch and how
// far the current branch has diverged from it. Only the trunk-aware render
// style uses it.
//
// The fork point cannot be read from decorated ref names because the trunk
// usually has more commits than the current branch, so each commit between
// the tag and HEAD is queried with 'git branch --contains' instead; the
// first commit whose branch set includes a trunk name is the fork point.
type TrunkCalculator struct {
	runner *Runner
	logger Logger
}

// NewTrunkCalculator creates a TrunkCalculator with its own process runner.
func NewTrunkCalculator(log Logger) *TrunkCalculator {
	return &TrunkCalculator{
		runner: NewRunner(log),
		logger: log,
	}
}

// Distance computes the trunk distances for the commit range starting at
// tagOfInterest (or the repository root when empty). Returns
// domain.ErrCurrentBranchIsTrunk when the current branch is the trunk, and
// domain.ErrNotThisMethod when no fork point exists and no tag was given.
func (c *TrunkCalculator) Distance(ctx context.Context, dir, tagOfInterest string) (*domain.TrunkDistance, error) {
	currentBranch, err := c.run(ctx, dir, "branch", "--show-current")
	if err != nil {
		return nil, err
	}
	if domain.IsTrunkBranch(currentBranch) {
		return nil, fmt.Errorf("%w: %q", domain.ErrCurrentBranchIsTrunk, currentBranch)
	}

	var logOut string
	if tagOfInterest == "" {
		logOut, err = c.run(ctx, dir, "log", "--pretty=format:%H")
	} else {
		logOut, err = c.run(ctx, dir, "log", tagOfInterest+"..", "--pretty=format:%H")
	}
	if err != nil {
		return nil, err
	}
	// Empty when the tag points at the current position.
	allCommits := splitLines(logOut)

	// Walk newest-first until a commit shared with the trunk shows up.
	fromTrunk := 0
	trunkCommit := ""
	for _, commit := range allCommits {
		out, err := c.run(ctx, dir, "branch", "--contains", commit)
		if err != nil {
			return nil, err
		}
		if containsTrunk(splitLines(out)) {
			trunkCommit = commit
			break
		}
		fromTrunk++
	}

	if trunkCommit == "" {
		if tagOfInterest == "" {
			c.logger.Debug(ctx, "no tag and no commit in history belongs to a trunk branch", map[string]interface{}{
				"current_branch": currentBranch,
			})
			return nil, fmt.Errorf(
				"%w: no tag found and none of the commit history points to a trunk branch",
				domain.ErrNotThisMethod)
		}
		// No trunk found after the tag: assume the tag itself is the fork
		// point. It may not always be (release branches), but it keeps the
		// distances meaningful.
		out, err := c.run(ctx, dir, "rev-list", "-1", tagOfInterest)
		if err != nil {
			return nil, err
		}
		trunkCommit = out
		if len(trunkCommit) != 40 {
			return nil, fmt.Errorf("%w: unexpected revision id %q", domain.ErrNotThisMethod, trunkCommit)
		}
	}

	return &domain.TrunkDistance{
		CurrentBranch:  currentBranch,
		FromTagToTrunk: len(allCommits) - fromTrunk,
		FromTrunk:      fromTrunk,
		TrunkCommit:    trunkCommit,
	}, nil
}

// run wraps Runner.Run, converting every failure into the recoverable
// "not applicable" tier: the caller's render style falls back rather than
// aborting resolution.
func (c *TrunkCalculator) run(ctx context.Context, dir string, args ...string) (string, error) {
	out, code, err := c.runner.Run(ctx, dir, args...)
	if err != nil || code != 0 {
		return "", fmt.Errorf("%w: 'git %s' returned error", domain.ErrNotThisMethod, strings.Join(args, " "))
	}
	return out, nil
}

// containsTrunk reports whether a 'git branch --contains' listing includes
// a trunk branch.
func containsTrunk(branches []string) bool {
	for _, b := range branches {
		if domain.IsTrunkBranch(strings.TrimLeft(b, "* ")) {
			return true
		}
	}
	return false
}

// splitLines splits command output into non-empty trimmed lines.
func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
