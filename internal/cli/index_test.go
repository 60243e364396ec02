package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/catalogstore"
	"github.com/nonlocal/indexd/internal/rules"
)

func TestMaterializedPathRootIsSlash(t *testing.T) {
	require.Equal(t, "/", materializedPath("/loc", "/loc"))
}

func TestMaterializedPathNestedDir(t *testing.T) {
	require.Equal(t, "/sub/dir/", materializedPath("/loc", "/loc/sub/dir"))
}

func TestSeedEntriesSkipsLocationRootAndAssignsSequentialIDs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	entries := []catalogmodel.WalkEntry{
		{Path: root, IsDir: true},
		{Path: filepath.Join(root, "a.txt"), IsDir: false},
	}

	store := catalogstore.NewMemStore()
	store.PutLocation(catalogmodel.Location{ID: 1, Path: root})
	seedEntries(root, 1, entries, store)

	ctx := context.Background()
	e, ok, err := store.EntryByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a.txt", e.Name)
	require.Equal(t, "txt", e.Extension)
	require.Equal(t, "/", e.MaterializedPath)

	_, ok, _ = store.EntryByID(ctx, 2)
	require.False(t, ok, "only one non-root entry was seeded")
}

func TestAddGitignoreRuleNoopWithoutFile(t *testing.T) {
	root := t.TempDir()
	ruleSet := rules.ByKind{}

	out, err := addGitignoreRule(ruleSet, root)
	require.NoError(t, err)
	require.Empty(t, out[rules.RejectFilesByGlob])
}

func TestAddGitignoreRuleAppendsRejectRule(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644))
	ruleSet := rules.ByKind{}

	out, err := addGitignoreRule(ruleSet, root)
	require.NoError(t, err)
	require.Len(t, out[rules.RejectFilesByGlob], 1)

	ctx := context.Background()
	keep, err := rules.Apply(ctx, out[rules.RejectFilesByGlob][0], filepath.Join(root, "debug.log"))
	require.NoError(t, err)
	require.False(t, keep, "a .gitignore-matched path should not be kept")
}
