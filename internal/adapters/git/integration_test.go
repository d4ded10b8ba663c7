package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagver/tagver/internal/domain"
)

// The fixtures are written with go-git so tests control history exactly;
// the code under test still shells out to the real git binary.

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}
}

type fixtureRepo struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
	wt   *gogit.Worktree
	seq  int
}

func newFixtureRepo(t *testing.T) *fixtureRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &fixtureRepo{t: t, dir: dir, repo: repo, wt: wt}
}

// commit adds a fresh file and commits it, returning the new hash.
func (f *fixtureRepo) commit(msg string) plumbing.Hash {
	f.t.Helper()
	f.seq++
	name := fmt.Sprintf("file%d.txt", f.seq)
	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir, name), []byte(msg+"\n"), 0o644))
	_, err := f.wt.Add(name)
	require.NoError(f.t, err)
	hash, err := f.wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Fixture",
			Email: "fixture@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(f.t, err)
	return hash
}

func (f *fixtureRepo) tag(name string, hash plumbing.Hash) {
	f.t.Helper()
	_, err := f.repo.CreateTag(name, hash, nil)
	require.NoError(f.t, err)
}

func (f *fixtureRepo) branch(name string) {
	f.t.Helper()
	require.NoError(f.t, f.wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	}))
}

func (f *fixtureRepo) detach(hash plumbing.Hash) {
	f.t.Helper()
	require.NoError(f.t, f.wt.Checkout(&gogit.CheckoutOptions{Hash: hash}))
}

// modify dirties the working tree without committing.
func (f *fixtureRepo) modify() {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir, "file1.txt"), []byte("modified\n"), 0o644))
}

// refresh re-stats the index so a freshly written fixture does not read as
// dirty from stale stat data.
func (f *fixtureRepo) refresh() {
	f.t.Helper()
	cmd := exec.Command("git", "update-index", "--refresh")
	cmd.Dir = f.dir
	_ = cmd.Run()
}

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[+-]\d{4}$`)

func TestInspectorPiecesTaggedClean(t *testing.T) {
	requireGit(t)
	f := newFixtureRepo(t)
	hash := f.commit("initial")
	f.tag("v1.2.3", hash)
	f.refresh()

	pieces, err := NewInspector(nopLog{}).Pieces(context.Background(), f.dir, "v")
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", pieces.ClosestTag)
	assert.Equal(t, "v1.2.3", pieces.ClosestFullTag)
	assert.Equal(t, 0, pieces.Distance)
	assert.False(t, pieces.Dirty)
	assert.Equal(t, hash.String(), pieces.Long)
	assert.Equal(t, hash.String()[:7], pieces.Short)
	assert.Equal(t, "master", pieces.Branch)
	assert.Empty(t, pieces.Error)
	assert.Regexp(t, dateFormat, pieces.Date)
}

func TestInspectorPiecesDistanceAndDirty(t *testing.T) {
	requireGit(t)
	f := newFixtureRepo(t)
	first := f.commit("initial")
	f.tag("v0.1.0", first)
	f.commit("second")
	head := f.commit("third")
	f.modify()

	pieces, err := NewInspector(nopLog{}).Pieces(context.Background(), f.dir, "v")
	require.NoError(t, err)

	assert.Equal(t, "0.1.0", pieces.ClosestTag)
	assert.Equal(t, 2, pieces.Distance)
	assert.True(t, pieces.Dirty)
	assert.Equal(t, head.String(), pieces.Long)
	assert.Empty(t, pieces.Error)
}

func TestInspectorPiecesNoMatchingTags(t *testing.T) {
	requireGit(t)
	f := newFixtureRepo(t)
	f.commit("initial")
	f.commit("second")
	head := f.commit("third")
	f.refresh()

	pieces, err := NewInspector(nopLog{}).Pieces(context.Background(), f.dir, "v")
	require.NoError(t, err)

	assert.Empty(t, pieces.ClosestTag)
	assert.Equal(t, 3, pieces.Distance)
	assert.Equal(t, head.String(), pieces.Long)
	assert.Equal(t, head.String()[:7], pieces.Short)
	assert.Empty(t, pieces.Error)
}

func TestInspectorPiecesDetachedHead(t *testing.T) {
	requireGit(t)
	f := newFixtureRepo(t)
	first := f.commit("initial")
	f.tag("v1.0.0", first)
	f.commit("second")
	f.detach(first)
	f.refresh()

	pieces, err := NewInspector(nopLog{}).Pieces(context.Background(), f.dir, "v")
	require.NoError(t, err)

	// Detached checkouts resolve to a concrete branch containing HEAD.
	assert.Equal(t, "master", pieces.Branch)
	assert.Equal(t, "1.0.0", pieces.ClosestTag)
	assert.Equal(t, 0, pieces.Distance)
}

func TestInspectorNotARepository(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()

	_, err := NewInspector(nopLog{}).Pieces(context.Background(), dir, "v")
	assert.ErrorIs(t, err, domain.ErrNotThisMethod)
}

func TestTrunkCalculatorOnTrunk(t *testing.T) {
	requireGit(t)
	f := newFixtureRepo(t)
	f.commit("initial")

	_, err := NewTrunkCalculator(nopLog{}).Distance(context.Background(), f.dir, "")
	assert.ErrorIs(t, err, domain.ErrCurrentBranchIsTrunk)
}

func TestTrunkCalculatorFeatureBranch(t *testing.T) {
	requireGit(t)
	f := newFixtureRepo(t)
	first := f.commit("initial")
	f.tag("v1.0.0", first)
	fork := f.commit("trunk work")
	f.branch("feature/x")
	f.commit("branch work 1")
	f.commit("branch work 2")

	info, err := NewTrunkCalculator(nopLog{}).Distance(context.Background(), f.dir, "v1.0.0")
	require.NoError(t, err)

	assert.Equal(t, "feature/x", info.CurrentBranch)
	assert.Equal(t, 1, info.FromTagToTrunk)
	assert.Equal(t, 2, info.FromTrunk)
	assert.Equal(t, fork.String(), info.TrunkCommit)
	assert.Equal(t, fork.String()[:7], info.TrunkCommitShort())
}

func TestTrunkCalculatorTagIsForkPoint(t *testing.T) {
	requireGit(t)
	f := newFixtureRepo(t)
	first := f.commit("initial")
	f.tag("v1.0.0", first)
	f.branch("feature/x")
	f.commit("branch work")

	// Every commit past the tag lives only on the feature branch, but the
	// commit at the tag is shared with the trunk.
	info, err := NewTrunkCalculator(nopLog{}).Distance(context.Background(), f.dir, "v1.0.0")
	require.NoError(t, err)

	assert.Equal(t, 0, info.FromTagToTrunk)
	assert.Equal(t, 1, info.FromTrunk)
	assert.Equal(t, first.String(), info.TrunkCommit)
}

func TestRunnerSurfacesNonZeroExit(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()

	_, code, err := NewRunner(nopLog{}).Run(context.Background(), dir, "rev-parse", "--git-dir")
	require.NoError(t, err)
	assert.NotZero(t, code)
}

func TestRunnerTrimsOutput(t *testing.T) {
	requireGit(t)
	f := newFixtureRepo(t)
	head := f.commit("initial")

	out, code, err := NewRunner(nopLog{}).Run(context.Background(), f.dir, "rev-parse", "HEAD")
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Equal(t, head.String(), out)
}
