// Package domain defines the core business entities and interfaces for tagver.
// This package contains no external dependencies and represents the innermost
// layer of the application.
package domain

import (
	"context"
	"errors"
)

// Domain errors for version resolution.
var (
	// ErrNotThisMethod indicates a resolution strategy is not applicable
	// for the current scenario (missing tool, not a repository, unexpanded
	// keywords, no matching parent directory). It drives the fallback
	// cascade and never reaches the caller.
	ErrNotThisMethod = errors.New("method not applicable for the current scenario")

	// ErrCurrentBranchIsTrunk indicates the trunk-distance calculation was
	// requested while the current branch already is the trunk.
	ErrCurrentBranchIsTrunk = errors.New("current branch is a trunk branch")

	// ErrUnknownStyle indicates a style name outside the supported set.
	ErrUnknownStyle = errors.New("unknown version style")
)

// Strategy is one independent way of deriving a version for a working
// directory. Strategies are tried in strict priority order; each signals
// ErrNotThisMethod to pass control to the next one.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Resolve derives a VersionDict for the given working directory.
	// Returns an error wrapping ErrNotThisMethod when the strategy does
	// not apply; any other error aborts resolution.
	Resolve(ctx context.Context, dir string) (*VersionDict, error)
}

// TrunkDistance describes where the current branch forked from the trunk
// branch, relative to a tag of interest.
type TrunkDistance struct {
	// CurrentBranch is the branch the distances were computed for.
	CurrentBranch string

	// FromTagToTrunk is the commit count between the tag (or repository
	// root) and the first ancestor shared with the trunk branch.
	FromTagToTrunk int

	// FromTrunk is the commit count from that shared ancestor to the
	// current position.
	FromTrunk int

	// TrunkCommit is the full id of the shared ancestor.
	TrunkCommit string
}

// TrunkCommitShort returns the abbreviated id of the shared ancestor.
func (d TrunkDistance) TrunkCommitShort() string {
	if len(d.TrunkCommit) > 7 {
		return d.TrunkCommit[:7]
	}
	return d.TrunkCommit
}

// TrunkDistancer computes trunk distances for the branch-and-trunk-aware
// render style. Returns ErrCurrentBranchIsTrunk when the current branch is
// the trunk itself, and ErrNotThisMethod when no fork point can be found.
type TrunkDistancer interface {
	Distance(ctx context.Context, dir, tagOfInterest string) (*TrunkDistance, error)
}

// Resolver resolves a version for a working directory by cascading through
// the configured strategies.
type Resolver interface {
	Resolve(ctx context.Context, dir string) (VersionDict, error)
}
