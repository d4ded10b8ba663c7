// Package usecases contains the application business logic: the render
// grammars and the strategy cascade.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tagver/tagver/internal/domain"
)

// Renderer turns a VersionPieces record into a version string in one of the
// supported styles. Rendering is pure except for the trunk-aware style,
// which consults the TrunkDistancer.
//
// Consumers parse the rendered strings with their own tooling, so every
// grammar here is reproduced exactly; any drift is a compatibility break.
type Renderer struct {
	trunk  domain.TrunkDistancer
	logger Logger
}

// NewRenderer creates a Renderer. The TrunkDistancer is only exercised by
// the pep440-master style.
func NewRenderer(trunk domain.TrunkDistancer, log Logger) *Renderer {
	return &Renderer{trunk: trunk, logger: log}
}

// Render produces the VersionDict for the given pieces and style. A record
// carrying an error short-circuits every style to the fixed "unknown"
// result. dir is needed only by the trunk-aware style.
func (r *Renderer) Render(ctx context.Context, dir string, p domain.VersionPieces, style domain.Style) (domain.VersionDict, error) {
	if p.Error != "" {
		return domain.VersionDict{
			Version:        "unknown",
			FullRevisionID: domain.StringPtr(p.Long),
			Error:          domain.StringPtr(p.Error),
		}, nil
	}

	var rendered string
	var err error
	switch style {
	case domain.StylePEP440:
		rendered = renderPEP440(p)
	case domain.StylePEP440Master:
		rendered, err = r.renderPEP440Master(ctx, dir, p)
	case domain.StylePEP440Branch:
		rendered = renderPEP440Branch(p)
	case domain.StylePEP440Pre:
		rendered = renderPEP440Pre(p)
	case domain.StylePEP440Post:
		rendered = renderPEP440Post(p)
	case domain.StylePEP440PostBranch:
		rendered = renderPEP440PostBranch(p)
	case domain.StyleGitDescribe:
		rendered = renderGitDescribe(p)
	case domain.StyleGitDescribeLong:
		rendered = renderGitDescribeLong(p)
	case domain.StyleDigits:
		rendered = renderDigits(p)
	default:
		return domain.VersionDict{}, fmt.Errorf("%w: %q", domain.ErrUnknownStyle, style)
	}
	if err != nil {
		return domain.VersionDict{}, err
	}

	dict := domain.VersionDict{
		Version:        rendered,
		FullRevisionID: domain.StringPtr(p.Long),
		Dirty:          domain.BoolPtr(p.Dirty),
	}
	if p.Date != "" {
		dict.Date = domain.StringPtr(p.Date)
	}
	return dict, nil
}

// plusOrDot returns the local-version separator: "+" unless the tag already
// embeds one, in which case "." avoids producing a second separator.
func plusOrDot(p domain.VersionPieces) string {
	if strings.Contains(p.ClosestTag, "+") {
		return "."
	}
	return "+"
}

// renderPEP440 builds TAG[+DISTANCE.gHEX[.dirty]]. A tagged build that is
// then dirtied renders TAG+0.gHEX.dirty.
//
// Exception: no tags. 0+untagged.DISTANCE.gHEX[.dirty]
func renderPEP440(p domain.VersionPieces) string {
	if p.ClosestTag != "" {
		rendered := p.ClosestTag
		if p.Distance > 0 || p.Dirty {
			rendered += plusOrDot(p)
			rendered += fmt.Sprintf("%d.g%s", p.Distance, p.Short)
			if p.Dirty {
				rendered += ".dirty"
			}
		}
		return rendered
	}
	rendered := fmt.Sprintf("0+untagged.%d.g%s", p.Distance, p.Short)
	if p.Dirty {
		rendered += ".dirty"
	}
	return rendered
}

// renderPEP440Master builds TAG[+TRUNKDIST.gTRUNKHEX.BRANCHDIST.gHEX[.dirty]],
// e.g. 1.2.3+4.g1abcdef.5.g2345678: 4 commits from the tag to the trunk and
// 5 commits from the trunk to the current branch.
//
// Exceptions:
//   - no tags: 0+untagged.TRUNKDIST.gTRUNKHEX.BRANCHDIST.gHEX[.dirty]
//   - current branch is the trunk: plain pep440
//   - trunk distances unobtainable: plain pep440 (fail closed, never
//     fabricate zero distances)
//   - both distances zero: bare TAG
func (r *Renderer) renderPEP440Master(ctx context.Context, dir string, p domain.VersionPieces) (string, error) {
	info, err := r.trunk.Distance(ctx, dir, p.ClosestFullTag)
	if err != nil {
		if errors.Is(err, domain.ErrCurrentBranchIsTrunk) {
			return renderPEP440(p), nil
		}
		if errors.Is(err, domain.ErrNotThisMethod) {
			r.logger.Warn(ctx, "trunk distance unavailable, falling back to pep440", map[string]interface{}{
				"reason": err.Error(),
			})
			return renderPEP440(p), nil
		}
		return "", err
	}

	if info.FromTagToTrunk == 0 && info.FromTrunk == 0 {
		if p.ClosestTag != "" {
			return p.ClosestTag, nil
		}
		return "0+untagged", nil
	}

	var rendered string
	if p.ClosestTag != "" {
		rendered = p.ClosestTag + plusOrDot(p)
	} else {
		rendered = "0+untagged."
	}
	rendered += fmt.Sprintf("%d.g%s.%d.g%s",
		info.FromTagToTrunk, info.TrunkCommitShort(), info.FromTrunk, p.Short)
	if p.Dirty {
		rendered += ".dirty"
	}
	return rendered, nil
}

// renderPEP440Branch builds TAG[[.dev0]+DISTANCE.gHEX[.dirty]]. The ".dev0"
// means not on a trunk branch; it sorts backwards, so a feature branch
// appears older than the trunk.
//
// Exception: no tags. 0[.dev0]+untagged.DISTANCE.gHEX[.dirty]
func renderPEP440Branch(p domain.VersionPieces) string {
	if p.ClosestTag != "" {
		rendered := p.ClosestTag
		if p.Distance > 0 || p.Dirty {
			if !domain.IsTrunkBranch(p.Branch) {
				rendered += ".dev0"
			}
			rendered += plusOrDot(p)
			rendered += fmt.Sprintf("%d.g%s", p.Distance, p.Short)
			if p.Dirty {
				rendered += ".dirty"
			}
		}
		return rendered
	}
	rendered := "0"
	if !domain.IsTrunkBranch(p.Branch) {
		rendered += ".dev0"
	}
	rendered += fmt.Sprintf("+untagged.%d.g%s", p.Distance, p.Short)
	if p.Dirty {
		rendered += ".dirty"
	}
	return rendered
}

// pep440SplitPost splits a version string at its post-release segment.
// Returns the release part, the post-release number (0 when the segment
// has no number) and whether a post-release segment was present.
func pep440SplitPost(ver string) (string, int, bool) {
	parts := strings.Split(ver, ".post")
	if len(parts) != 2 {
		return parts[0], 0, false
	}
	n := 0
	if parts[1] != "" {
		parsed, err := strconv.Atoi(parts[1])
		if err == nil {
			n = parsed
		}
	}
	return parts[0], n, true
}

// renderPEP440Pre builds TAG[.postN.devDISTANCE] with no dirty marker. An
// existing .postN suffix on the tag is split off and re-emitted.
//
// Exception: no tags. 0.post0.devDISTANCE
func renderPEP440Pre(p domain.VersionPieces) string {
	if p.ClosestTag != "" {
		if p.Distance > 0 {
			base, post, _ := pep440SplitPost(p.ClosestTag)
			return fmt.Sprintf("%s.post%d.dev%d", base, post, p.Distance)
		}
		return p.ClosestTag
	}
	return fmt.Sprintf("0.post0.dev%d", p.Distance)
}

// renderPEP440Post builds TAG[.postDISTANCE+gHEX[.dirty]].
//
// Exception: no tags. 0.postDISTANCE+gHEX[.dirty]
func renderPEP440Post(p domain.VersionPieces) string {
	if p.ClosestTag != "" {
		rendered := p.ClosestTag
		if p.Distance > 0 || p.Dirty {
			rendered += fmt.Sprintf(".post%d", p.Distance)
			rendered += plusOrDot(p)
			rendered += "g" + p.Short
			if p.Dirty {
				rendered += ".dirty"
			}
		}
		return rendered
	}
	rendered := fmt.Sprintf("0.post%d+g%s", p.Distance, p.Short)
	if p.Dirty {
		rendered += ".dirty"
	}
	return rendered
}

// renderPEP440PostBranch builds TAG[.postDISTANCE[.dev0]+gHEX[.dirty]].
// The ".dev0" means not on a trunk branch.
//
// Exception: no tags. 0.postDISTANCE[.dev0]+gHEX[.dirty]
func renderPEP440PostBranch(p domain.VersionPieces) string {
	if p.ClosestTag != "" {
		rendered := p.ClosestTag
		if p.Distance > 0 || p.Dirty {
			rendered += fmt.Sprintf(".post%d", p.Distance)
			if !domain.IsTrunkBranch(p.Branch) {
				rendered += ".dev0"
			}
			rendered += plusOrDot(p)
			rendered += "g" + p.Short
			if p.Dirty {
				rendered += ".dirty"
			}
		}
		return rendered
	}
	rendered := fmt.Sprintf("0.post%d", p.Distance)
	if !domain.IsTrunkBranch(p.Branch) {
		rendered += ".dev0"
	}
	rendered += "+g" + p.Short
	if p.Dirty {
		rendered += ".dirty"
	}
	return rendered
}

// renderGitDescribe builds TAG[-DISTANCE-gHEX][-dirty], like
// 'git describe --tags --dirty --always'.
//
// Exception: no tags. HEX[-dirty] (no 'g' prefix)
func renderGitDescribe(p domain.VersionPieces) string {
	var rendered string
	if p.ClosestTag != "" {
		rendered = p.ClosestTag
		if p.Distance > 0 {
			rendered += fmt.Sprintf("-%d-g%s", p.Distance, p.Short)
		}
	} else {
		rendered = p.Short
	}
	if p.Dirty {
		rendered += "-dirty"
	}
	return rendered
}

// renderGitDescribeLong builds TAG-DISTANCE-gHEX[-dirty], like
// 'git describe --tags --dirty --always --long'. The distance and hash
// segments are unconditional.
//
// Exception: no tags. HEX[-dirty] (no 'g' prefix)
func renderGitDescribeLong(p domain.VersionPieces) string {
	var rendered string
	if p.ClosestTag != "" {
		rendered = fmt.Sprintf("%s-%d-g%s", p.ClosestTag, p.Distance, p.Short)
	} else {
		rendered = p.Short
	}
	if p.Dirty {
		rendered += "-dirty"
	}
	return rendered
}

// renderDigits builds TAG[.DISTANCE], a digit-only string compatible with
// package managers that reject letters. A dirty tree counts as one extra
// commit of distance instead of appending a suffix; this is deliberate and
// specific to this style.
//
// Exception: no tags. 0[.DISTANCE]
func renderDigits(p domain.VersionPieces) string {
	version := p.ClosestTag
	if version == "" {
		version = "0"
	}
	if p.Distance > 0 || p.Dirty {
		distance := p.Distance
		if p.Dirty {
			distance++
		}
		version += fmt.Sprintf(".%d", distance)
	}
	return version
}
