package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagver/tagver/internal/domain"
)

// nopLogger discards everything; render tests assert on results only.
type nopLogger struct{}

func (nopLogger) Info(context.Context, string, map[string]interface{})         {}
func (nopLogger) Debug(context.Context, string, map[string]interface{})        {}
func (nopLogger) Warn(context.Context, string, map[string]interface{})         {}
func (nopLogger) Error(context.Context, string, error, map[string]interface{}) {}

// fakeTrunkDistancer returns a canned answer or error.
type fakeTrunkDistancer struct {
	distance *domain.TrunkDistance
	err      error
	calls    int
}

func (f *fakeTrunkDistancer) Distance(_ context.Context, _, _ string) (*domain.TrunkDistance, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.distance, nil
}

func newTestRenderer(trunk domain.TrunkDistancer) *Renderer {
	return NewRenderer(trunk, nopLogger{})
}

func TestRenderStyles(t *testing.T) {
	// The three reference scenarios: a dirty build past a tag, a clean
	// build exactly on a tag, and a repository without any matching tag.
	dirtyPastTag := domain.VersionPieces{
		Long:           "1abcdef0000000000000000000000000000000000",
		Short:          "1abcdef",
		Branch:         "feature/x",
		ClosestTag:     "1.2.3",
		ClosestFullTag: "v1.2.3",
		Distance:       4,
		Dirty:          true,
		Date:           "2024-12-17T12:25:42+0900",
	}
	cleanOnTag := domain.VersionPieces{
		Long:           "2345678000000000000000000000000000000000",
		Short:          "2345678",
		Branch:         "master",
		ClosestTag:     "1.2.3",
		ClosestFullTag: "v1.2.3",
		Distance:       0,
		Dirty:          false,
	}
	untagged := domain.VersionPieces{
		Long:     "abc1234000000000000000000000000000000000",
		Short:    "abc1234",
		Branch:   "feature/x",
		Distance: 10,
		Dirty:    false,
	}

	tests := []struct {
		name   string
		pieces domain.VersionPieces
		style  domain.Style
		want   string
	}{
		{"pep440 dirty past tag", dirtyPastTag, domain.StylePEP440, "1.2.3+4.g1abcdef.dirty"},
		{"pep440 clean on tag", cleanOnTag, domain.StylePEP440, "1.2.3"},
		{"pep440 untagged", untagged, domain.StylePEP440, "0+untagged.10.gabc1234"},

		{"pep440-branch dirty on feature branch", dirtyPastTag, domain.StylePEP440Branch, "1.2.3.dev0+4.g1abcdef.dirty"},
		{"pep440-branch clean on tag", cleanOnTag, domain.StylePEP440Branch, "1.2.3"},
		{"pep440-branch untagged", untagged, domain.StylePEP440Branch, "0.dev0+untagged.10.gabc1234"},

		{"pep440-pre past tag", dirtyPastTag, domain.StylePEP440Pre, "1.2.3.post0.dev4"},
		{"pep440-pre clean on tag", cleanOnTag, domain.StylePEP440Pre, "1.2.3"},
		{"pep440-pre untagged", untagged, domain.StylePEP440Pre, "0.post0.dev10"},

		{"pep440-post dirty past tag", dirtyPastTag, domain.StylePEP440Post, "1.2.3.post4+g1abcdef.dirty"},
		{"pep440-post clean on tag", cleanOnTag, domain.StylePEP440Post, "1.2.3"},
		{"pep440-post untagged", untagged, domain.StylePEP440Post, "0.post10+gabc1234"},

		{"pep440-post-branch dirty", dirtyPastTag, domain.StylePEP440PostBranch, "1.2.3.post4.dev0+g1abcdef.dirty"},
		{"pep440-post-branch clean on tag", cleanOnTag, domain.StylePEP440PostBranch, "1.2.3"},
		{"pep440-post-branch untagged", untagged, domain.StylePEP440PostBranch, "0.post10.dev0+gabc1234"},

		{"git-describe dirty past tag", dirtyPastTag, domain.StyleGitDescribe, "1.2.3-4-g1abcdef-dirty"},
		{"git-describe clean on tag", cleanOnTag, domain.StyleGitDescribe, "1.2.3"},
		{"git-describe untagged", untagged, domain.StyleGitDescribe, "abc1234"},

		{"git-describe-long dirty past tag", dirtyPastTag, domain.StyleGitDescribeLong, "1.2.3-4-g1abcdef-dirty"},
		{"git-describe-long clean on tag", cleanOnTag, domain.StyleGitDescribeLong, "1.2.3-0-g2345678"},
		{"git-describe-long untagged", untagged, domain.StyleGitDescribeLong, "abc1234"},

		{"digits dirty adds one", dirtyPastTag, domain.StyleDigits, "1.2.3.5"},
		{"digits clean on tag", cleanOnTag, domain.StyleDigits, "1.2.3"},
		{"digits untagged", untagged, domain.StyleDigits, "0.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(&fakeTrunkDistancer{})
			dict, err := r.Render(context.Background(), ".", tt.pieces, tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dict.Version)
			require.NotNil(t, dict.FullRevisionID)
			assert.Equal(t, tt.pieces.Long, *dict.FullRevisionID)
			require.NotNil(t, dict.Dirty)
			assert.Equal(t, tt.pieces.Dirty, *dict.Dirty)
			assert.Nil(t, dict.Error)
		})
	}
}

func TestRenderUntaggedAlwaysStartsWithZero(t *testing.T) {
	untagged := domain.VersionPieces{
		Long:     "abc1234000000000000000000000000000000000",
		Short:    "abc1234",
		Branch:   "feature/x",
		Distance: 3,
		Dirty:    true,
	}

	for _, style := range []domain.Style{
		domain.StylePEP440,
		domain.StylePEP440Branch,
		domain.StylePEP440Pre,
		domain.StylePEP440Post,
		domain.StylePEP440PostBranch,
		domain.StyleDigits,
	} {
		t.Run(string(style), func(t *testing.T) {
			r := newTestRenderer(&fakeTrunkDistancer{err: domain.ErrNotThisMethod})
			dict, err := r.Render(context.Background(), ".", untagged, style)
			require.NoError(t, err)
			assert.Equal(t, byte('0'), dict.Version[0])
		})
	}
}

func TestRenderDotSeparatorWhenTagContainsPlus(t *testing.T) {
	pieces := domain.VersionPieces{
		Long:       "abc1234000000000000000000000000000000000",
		Short:      "abc1234",
		Branch:     "master",
		ClosestTag: "1.2.3+build",
		Distance:   2,
	}

	r := newTestRenderer(&fakeTrunkDistancer{})
	dict, err := r.Render(context.Background(), ".", pieces, domain.StylePEP440)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3+build.2.gabc1234", dict.Version)
}

func TestRenderPEP440PreSplitsExistingPostSegment(t *testing.T) {
	pieces := domain.VersionPieces{
		Long:       "abc1234000000000000000000000000000000000",
		Short:      "abc1234",
		Branch:     "master",
		ClosestTag: "1.2.3.post1",
		Distance:   2,
	}

	r := newTestRenderer(&fakeTrunkDistancer{})
	dict, err := r.Render(context.Background(), ".", pieces, domain.StylePEP440Pre)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.post1.dev2", dict.Version)
}

func TestRenderErrorShortCircuits(t *testing.T) {
	pieces := domain.VersionPieces{
		Long:  "abc1234000000000000000000000000000000000",
		Error: "tag 'release-2.0' doesn't start with prefix 'v'",
	}

	for _, style := range domain.Styles() {
		t.Run(string(style), func(t *testing.T) {
			trunk := &fakeTrunkDistancer{}
			r := newTestRenderer(trunk)
			dict, err := r.Render(context.Background(), ".", pieces, style)
			require.NoError(t, err)
			assert.Equal(t, "unknown", dict.Version)
			require.NotNil(t, dict.Error)
			assert.Equal(t, pieces.Error, *dict.Error)
			require.NotNil(t, dict.FullRevisionID)
			assert.Equal(t, pieces.Long, *dict.FullRevisionID)
			assert.Nil(t, dict.Dirty)
			assert.Zero(t, trunk.calls)
		})
	}
}

func TestRenderUnknownStyle(t *testing.T) {
	r := newTestRenderer(&fakeTrunkDistancer{})
	_, err := r.Render(context.Background(), ".", domain.VersionPieces{ClosestTag: "1.0"}, domain.Style("semver"))
	assert.ErrorIs(t, err, domain.ErrUnknownStyle)
}

func TestRenderIdempotent(t *testing.T) {
	pieces := domain.VersionPieces{
		Long:       "1abcdef0000000000000000000000000000000000",
		Short:      "1abcdef",
		Branch:     "feature/x",
		ClosestTag: "1.2.3",
		Distance:   4,
		Dirty:      true,
	}

	r := newTestRenderer(&fakeTrunkDistancer{err: domain.ErrNotThisMethod})
	first, err := r.Render(context.Background(), ".", pieces, domain.StylePEP440)
	require.NoError(t, err)
	second, err := r.Render(context.Background(), ".", pieces, domain.StylePEP440)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderPEP440Master(t *testing.T) {
	base := domain.VersionPieces{
		Long:           "2345678000000000000000000000000000000000",
		Short:          "2345678",
		Branch:         "feature/x",
		ClosestTag:     "1.2.3",
		ClosestFullTag: "v1.2.3",
		Distance:       9,
		Dirty:          false,
	}

	t.Run("renders both distances", func(t *testing.T) {
		trunk := &fakeTrunkDistancer{distance: &domain.TrunkDistance{
			CurrentBranch:  "feature/x",
			FromTagToTrunk: 4,
			FromTrunk:      5,
			TrunkCommit:    "1abcdef0000000000000000000000000000000000",
		}}
		r := newTestRenderer(trunk)
		dict, err := r.Render(context.Background(), ".", base, domain.StylePEP440Master)
		require.NoError(t, err)
		assert.Equal(t, "1.2.3+4.g1abcdef.5.g2345678", dict.Version)
	})

	t.Run("dirty marker appended last", func(t *testing.T) {
		pieces := base
		pieces.Dirty = true
		trunk := &fakeTrunkDistancer{distance: &domain.TrunkDistance{
			FromTagToTrunk: 4,
			FromTrunk:      5,
			TrunkCommit:    "1abcdef0000000000000000000000000000000000",
		}}
		r := newTestRenderer(trunk)
		dict, err := r.Render(context.Background(), ".", pieces, domain.StylePEP440Master)
		require.NoError(t, err)
		assert.Equal(t, "1.2.3+4.g1abcdef.5.g2345678.dirty", dict.Version)
	})

	t.Run("both distances zero collapses to bare tag", func(t *testing.T) {
		trunk := &fakeTrunkDistancer{distance: &domain.TrunkDistance{}}
		r := newTestRenderer(trunk)
		dict, err := r.Render(context.Background(), ".", base, domain.StylePEP440Master)
		require.NoError(t, err)
		assert.Equal(t, "1.2.3", dict.Version)
	})

	t.Run("no tags", func(t *testing.T) {
		pieces := base
		pieces.ClosestTag = ""
		pieces.ClosestFullTag = ""
		trunk := &fakeTrunkDistancer{distance: &domain.TrunkDistance{
			FromTagToTrunk: 4,
			FromTrunk:      5,
			TrunkCommit:    "1abcdef0000000000000000000000000000000000",
		}}
		r := newTestRenderer(trunk)
		dict, err := r.Render(context.Background(), ".", pieces, domain.StylePEP440Master)
		require.NoError(t, err)
		assert.Equal(t, "0+untagged.4.g1abcdef.5.g2345678", dict.Version)
	})

	t.Run("on trunk falls back to pep440", func(t *testing.T) {
		pieces := base
		pieces.Branch = "master"
		trunk := &fakeTrunkDistancer{err: domain.ErrCurrentBranchIsTrunk}
		r := newTestRenderer(trunk)
		dict, err := r.Render(context.Background(), ".", pieces, domain.StylePEP440Master)
		require.NoError(t, err)
		assert.Equal(t, "1.2.3+9.g2345678", dict.Version)
	})

	t.Run("unobtainable distances fall back to pep440", func(t *testing.T) {
		trunk := &fakeTrunkDistancer{err: domain.ErrNotThisMethod}
		r := newTestRenderer(trunk)
		dict, err := r.Render(context.Background(), ".", base, domain.StylePEP440Master)
		require.NoError(t, err)
		assert.Equal(t, "1.2.3+9.g2345678", dict.Version)
	})

	t.Run("unexpected error aborts", func(t *testing.T) {
		trunk := &fakeTrunkDistancer{err: errors.New("disk on fire")}
		r := newTestRenderer(trunk)
		_, err := r.Render(context.Background(), ".", base, domain.StylePEP440Master)
		assert.Error(t, err)
	})
}

func TestPlusOrDot(t *testing.T) {
	assert.Equal(t, "+", plusOrDot(domain.VersionPieces{ClosestTag: "1.2.3"}))
	assert.Equal(t, ".", plusOrDot(domain.VersionPieces{ClosestTag: "1.2.3+local"}))
	assert.Equal(t, "+", plusOrDot(domain.VersionPieces{}))
}
