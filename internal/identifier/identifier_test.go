package identifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/catalogstore"
	"github.com/nonlocal/indexd/internal/sync"
)

func seedLocation(t *testing.T) (string, *catalogstore.MemStore) {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("hello world"), 0o644)) // duplicate content
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.png"), []byte("totally different bytes"), 0o644))

	store := catalogstore.NewMemStore()
	store.PutLocation(catalogmodel.Location{ID: 1, Path: root})

	store.PutEntry(catalogmodel.CatalogEntry{ID: 1, LocationID: 1, MaterializedPath: "/", Name: "a.txt", Extension: "txt"})
	store.PutEntry(catalogmodel.CatalogEntry{ID: 2, LocationID: 1, MaterializedPath: "/", Name: "b.txt", Extension: "txt"})
	store.PutEntry(catalogmodel.CatalogEntry{ID: 3, LocationID: 1, MaterializedPath: "/", Name: "c.png", Extension: "png"})

	return root, store
}

func TestJobLinksDuplicateContentToSameObject(t *testing.T) {
	root, store := seedLocation(t)
	ch := &sync.Recording{}

	job := NewJob("file_identifier", 1, root, Scope{}, store, ch)
	report, err := Run(context.Background(), job)
	require.NoError(t, err)

	require.Equal(t, 3, report.TotalOrphanPaths)
	require.Equal(t, 2, report.ObjectsCreated) // a/b share content, c is distinct
	require.Equal(t, 1, report.ObjectsLinked)  // the second of the duplicate pair links rather than creates

	a, ok, err := store.EntryByID(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, a.ObjectID)

	b, ok, err := store.EntryByID(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, b.ObjectID)

	require.Equal(t, *a.ObjectID, *b.ObjectID, "entries with identical content must share an Object")

	c, ok, err := store.EntryByID(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, c.ObjectID)
	require.NotEqual(t, *a.ObjectID, *c.ObjectID)

	require.NotEmpty(t, ch.Ops, "a run with work to do must broadcast CRDT ops")
}

func TestJobIsIdempotent(t *testing.T) {
	root, store := seedLocation(t)
	ch := &sync.Recording{}

	_, err := Run(context.Background(), NewJob("file_identifier", 1, root, Scope{}, store, ch))
	require.NoError(t, err)

	a, _, _ := store.EntryByID(context.Background(), 1)
	casIDBefore := *a.CasID
	objectIDBefore := *a.ObjectID

	// Second run: no orphans remain, so Init must report EarlyFinish.
	second := NewJob("file_identifier", 1, root, Scope{}, store, ch)
	_, err = Run(context.Background(), second)
	require.Error(t, err)
	var coreErr *catalogmodel.CoreError
	require.ErrorAs(t, err, &coreErr)
	require.Equal(t, catalogmodel.KindJobEarlyFinish, coreErr.Kind)

	a, _, _ = store.EntryByID(context.Background(), 1)
	require.Equal(t, casIDBefore, *a.CasID)
	require.Equal(t, objectIDBefore, *a.ObjectID)
}

func TestInitEarlyFinishWhenNoOrphans(t *testing.T) {
	store := catalogstore.NewMemStore()
	store.PutLocation(catalogmodel.Location{ID: 1, Path: t.TempDir()})

	job := NewJob("file_identifier", 1, "", Scope{}, store, sync.NoopChannel{})
	err := job.Init(context.Background())
	require.Error(t, err)
	var coreErr *catalogmodel.CoreError
	require.ErrorAs(t, err, &coreErr)
	require.Equal(t, catalogmodel.KindJobEarlyFinish, coreErr.Kind)
}

func TestResolveSubPathRejectsOutsideLocation(t *testing.T) {
	root := t.TempDir()
	_, err := ResolveSubPath(root, filepath.Join(root, "..", "elsewhere"))
	require.Error(t, err)
	var fpErr *catalogmodel.FilePathError
	require.ErrorAs(t, err, &fpErr)
	require.Equal(t, catalogmodel.FilePathNotUnderLocation, fpErr.SubKind)
}

func TestResolveSubPathRejectsNonDirectory(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))

	_, err := ResolveSubPath(root, filePath)
	require.Error(t, err)
	var fpErr *catalogmodel.FilePathError
	require.ErrorAs(t, err, &fpErr)
	require.Equal(t, catalogmodel.FilePathNotADirectory, fpErr.SubKind)
}

func TestReportTracksObjectsIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	store := catalogstore.NewMemStore()
	store.PutLocation(catalogmodel.Location{ID: 1, Path: root})
	store.PutEntry(catalogmodel.CatalogEntry{ID: 1, LocationID: 1, MaterializedPath: "/", Name: "a.txt", Extension: "txt"})
	// missing.txt has no backing file: Phase A's Assemble fails and the
	// entry is silently dropped (mod.rs's total_objects_ignored).
	store.PutEntry(catalogmodel.CatalogEntry{ID: 2, LocationID: 1, MaterializedPath: "/", Name: "missing.txt", Extension: "txt"})

	job := NewJob("file_identifier", 1, root, Scope{}, store, sync.NoopChannel{})
	report, err := Run(context.Background(), job)
	require.NoError(t, err)

	require.Equal(t, 2, report.TotalOrphanPaths)
	require.Equal(t, 1, report.ObjectsCreated)
	require.Equal(t, 0, report.ObjectsLinked)
	require.Equal(t, 1, report.ObjectsIgnored)
}

// seedShallowLocation builds a root with one top-level file and one
// sub-directory holding its own file, wiring ParentID the way
// cli.seedEntries does, for exercising the shallow (parent_id equals)
// orphan scope.
func seedShallowLocation(t *testing.T) (string, *catalogstore.MemStore, int64) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("nested"), 0o644))

	store := catalogstore.NewMemStore()
	store.PutLocation(catalogmodel.Location{ID: 1, Path: root})

	store.PutEntry(catalogmodel.CatalogEntry{ID: 1, LocationID: 1, MaterializedPath: "/", Name: "top.txt", Extension: "txt"})
	store.PutEntry(catalogmodel.CatalogEntry{ID: 2, LocationID: 1, MaterializedPath: "/", Name: "sub", IsDir: true})
	subID := int64(2)
	store.PutEntry(catalogmodel.CatalogEntry{ID: 3, LocationID: 1, MaterializedPath: "/sub/", Name: "nested.txt", Extension: "txt", ParentID: &subID})

	return root, store, subID
}

func TestShallowScopeAtRootOnlyMatchesRootChildren(t *testing.T) {
	root, store, _ := seedShallowLocation(t)

	job := NewJob("shallow_file_identifier", 1, root, ScopeShallow(0), store, sync.NoopChannel{})
	report, err := Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalOrphanPaths, "shallow scope at the root must see only top.txt")

	top, _, _ := store.EntryByID(context.Background(), 1)
	require.NotNil(t, top.ObjectID)

	nested, _, _ := store.EntryByID(context.Background(), 3)
	require.Nil(t, nested.ObjectID, "nested.txt sits under sub/ and is outside the root's shallow scope")
}

func TestShallowScopeAtSubDirMatchesOnlyItsChildren(t *testing.T) {
	root, store, subID := seedShallowLocation(t)

	job := NewJob("shallow_file_identifier", 1, root, ScopeShallow(subID), store, sync.NoopChannel{})
	report, err := Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalOrphanPaths, "shallow scope at sub/ must see only nested.txt")

	nested, _, _ := store.EntryByID(context.Background(), 3)
	require.NotNil(t, nested.ObjectID)

	top, _, _ := store.EntryByID(context.Background(), 1)
	require.Nil(t, top.ObjectID, "top.txt sits at the root and is outside sub/'s shallow scope")
}

func TestResolveShallowParentForLocationRoot(t *testing.T) {
	root, store, _ := seedShallowLocation(t)
	id, err := ResolveShallowParent(context.Background(), store, 1, root, "")
	require.NoError(t, err)
	require.Equal(t, int64(0), id)
}

func TestResolveShallowParentForSubDirectory(t *testing.T) {
	root, store, subID := seedShallowLocation(t)
	id, err := ResolveShallowParent(context.Background(), store, 1, root, filepath.Join(root, "sub"))
	require.NoError(t, err)
	require.Equal(t, subID, id)
}

func TestRunShallowProcessesOnlyTheGivenDirectory(t *testing.T) {
	root, store, _ := seedShallowLocation(t)
	loc := catalogmodel.Location{ID: 1, Path: root}

	report, err := RunShallow(context.Background(), store, sync.NoopChannel{}, loc, filepath.Join(root, "sub"))
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalOrphanPaths)

	nested, _, _ := store.EntryByID(context.Background(), 3)
	require.NotNil(t, nested.ObjectID)
	top, _, _ := store.EntryByID(context.Background(), 1)
	require.Nil(t, top.ObjectID)
}
