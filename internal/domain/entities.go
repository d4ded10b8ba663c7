// Package domain defines the core business entities and interfaces for tagver.
package domain

import (
	"fmt"
	"regexp"
)

// Style selects one of the version string grammars produced by the renderer.
type Style string

// Supported render styles. The identifiers are part of the external
// configuration surface and must not change.
const (
	StylePEP440           Style = "pep440"
	StylePEP440Master     Style = "pep440-master"
	StylePEP440Branch     Style = "pep440-branch"
	StylePEP440Pre        Style = "pep440-pre"
	StylePEP440Post       Style = "pep440-post"
	StylePEP440PostBranch Style = "pep440-post-branch"
	StyleGitDescribe      Style = "git-describe"
	StyleGitDescribeLong  Style = "git-describe-long"
	StyleDigits           Style = "digits"
)

// Styles returns all supported render styles in a stable order.
func Styles() []Style {
	return []Style{
		StylePEP440,
		StylePEP440Master,
		StylePEP440Branch,
		StylePEP440Pre,
		StylePEP440Post,
		StylePEP440PostBranch,
		StyleGitDescribe,
		StyleGitDescribeLong,
		StyleDigits,
	}
}

// ParseStyle validates a style name supplied by configuration or flags.
func ParseStyle(name string) (Style, error) {
	for _, s := range Styles() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q (valid styles: %v)", ErrUnknownStyle, name, Styles())
}

// TrunkBranches are the branch names treated as the primary integration
// branch, in preference order.
var TrunkBranches = []string{"master", "main"}

// IsTrunkBranch reports whether name is one of the trunk branch names.
func IsTrunkBranch(name string) bool {
	for _, trunk := range TrunkBranches {
		if name == trunk {
			return true
		}
	}
	return false
}

// VersionPieces is the canonical intermediate record. It is constructed
// fresh per resolution call by exactly one strategy, never mutated after
// construction, and consumed once by the renderer. An empty string means
// the field could not be determined.
type VersionPieces struct {
	// Long is the complete revision identifier of the current position.
	Long string

	// Short is the abbreviated revision identifier. Derived from Long
	// (first 7 characters) unless git describe supplied its own
	// abbreviation.
	Short string

	// Branch is the current branch name, after resolving a detached HEAD
	// to a concrete branch when possible. Empty on a branchless commit.
	Branch string

	// ClosestTag is the nearest ancestor tag with the configured prefix
	// stripped. Empty when no matching tag exists.
	ClosestTag string

	// ClosestFullTag is the same tag with the prefix retained, as needed
	// by trunk-distance lookups keyed on real tag names.
	ClosestFullTag string

	// Distance is the commit count from ClosestTag to the current
	// position, or the total reachable commit count when no tag exists.
	Distance int

	// Dirty is true when the working tree has uncommitted modifications.
	Dirty bool

	// Date is the commit timestamp in compact ISO-8601 form (offset
	// concatenated without a space, to stay PEP 440-clean).
	Date string

	// Error is set when parsing failed or policy could not be satisfied.
	// A non-empty Error forces every style to render "unknown".
	Error string
}

// VersionDict is the only value crossing the system boundary. The JSON
// field names are wire format; downstream tooling parses them.
type VersionDict struct {
	Version        string  `json:"version"`
	FullRevisionID *string `json:"full_revisionid"`
	Dirty          *bool   `json:"dirty"`
	Error          *string `json:"error"`
	Date           *string `json:"date"`
}

// Unresolved is the record returned after every strategy has failed.
func Unresolved() VersionDict {
	return VersionDict{
		Version: "0+unknown",
		Error:   StringPtr("unable to compute version"),
	}
}

// Config holds the per-resolution options. It is supplied once per call
// and never mutated.
type Config struct {
	// Style selects the render grammar.
	Style Style

	// TagPrefix is stripped from matching tags before rendering ("v" by
	// default, so tag v1.2.3 renders as 1.2.3).
	TagPrefix string

	// ParentdirPrefix restricts the parent-directory fallback. Empty
	// means auto-derive from project metadata.
	ParentdirPrefix string

	// Verbose enables debug logging of every inspection command.
	Verbose bool
}

// StringPtr returns a pointer to s, for the nullable VersionDict fields.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b, for the nullable VersionDict fields.
func BoolPtr(b bool) *bool { return &b }

// VersionCandidatePattern accepts strings that look like a version number
// (a superset of PEP 440, so non-Python release schemes pass too). It keeps
// the parent-directory fallback from misreading organizational folder names
// such as "myprogram-python" as versions. Anchored at the start only.
var VersionCandidatePattern = regexp.MustCompile(
	`^v?` +
		`(?:(?:[0-9]+!)?` + // epoch
		`[0-9]+(?:\.[0-9]+)*` + // release segment
		`(?:[-_.]?(?:alpha|a|beta|b|preview|pre|c|rc)[-_.]?[0-9]*)?` + // pre-release
		`(?:(?:-[0-9]+)|(?:[-_.]?(?:post|rev|r)[-_.]?[0-9]*))?` + // post release
		`(?:[-_.]?dev[-_.]?[0-9]*)?` + // dev release
		`)` +
		`(?:\+[a-z0-9]+(?:[-_.][a-z0-9]+)*)?`, // local version identifier
)
