package walker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/rules"
)

// prepareLocation builds the fixture tree used across these tests,
// mirroring original_source/core/src/location/indexer/walk.rs's
// prepare_location(): a rust_project and a nested inner/node_project, each
// a fake git repository with a build/dependency directory, plus a flat
// photos directory.
func prepareLocation(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	rustProject := filepath.Join(root, "rust_project")
	innerProject := filepath.Join(root, "inner")
	nodeProject := filepath.Join(innerProject, "node_project")
	photos := filepath.Join(root, "photos")

	mustMkdir := func(p string) {
		require.NoError(t, os.MkdirAll(p, 0o755))
	}
	mustFile := func(p string) {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}

	mustMkdir(rustProject)
	mustMkdir(innerProject)
	mustMkdir(nodeProject)
	mustMkdir(photos)

	mustMkdir(filepath.Join(rustProject, ".git"))
	mustMkdir(filepath.Join(nodeProject, ".git"))

	mustFile(filepath.Join(rustProject, "Cargo.toml"))
	rustSrc := filepath.Join(rustProject, "src")
	mustMkdir(rustSrc)
	mustFile(filepath.Join(rustSrc, "main.rs"))
	rustTarget := filepath.Join(rustProject, "target")
	mustMkdir(rustTarget)
	rustBuild := filepath.Join(rustTarget, "debug")
	mustMkdir(rustBuild)
	mustFile(filepath.Join(rustBuild, "main"))

	mustFile(filepath.Join(nodeProject, "package.json"))
	nodeSrc := filepath.Join(nodeProject, "src")
	mustMkdir(nodeSrc)
	mustFile(filepath.Join(nodeSrc, "App.tsx"))
	nodeModules := filepath.Join(nodeProject, "node_modules")
	mustMkdir(nodeModules)
	nodeModulesDep := filepath.Join(nodeModules, "react")
	mustMkdir(nodeModulesDep)
	mustFile(filepath.Join(nodeModulesDep, "package.json"))

	for _, photo := range []string{"photo1.png", "photo2.jpg", "photo3.jpeg", "text.txt"} {
		mustFile(filepath.Join(photos, photo))
	}

	return root
}

func paths(t *testing.T, root string, rel ...string) []string {
	t.Helper()
	out := make([]string, len(rel))
	for i, r := range rel {
		if r == "" {
			out[i] = root
			continue
		}
		out[i] = filepath.Join(root, r)
	}
	sort.Strings(out)
	return out
}

func actualPaths(entries []catalogmodel.WalkEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	sort.Strings(out)
	return out
}

func TestWalkWithoutRules(t *testing.T) {
	root := prepareLocation(t)

	actual, err := Walk(context.Background(), root, rules.Group(nil), nil, true)
	require.NoError(t, err)

	expected := paths(t, root,
		"",
		"rust_project",
		"rust_project/.git",
		"rust_project/Cargo.toml",
		"rust_project/src",
		"rust_project/src/main.rs",
		"rust_project/target",
		"rust_project/target/debug",
		"rust_project/target/debug/main",
		"inner",
		"inner/node_project",
		"inner/node_project/.git",
		"inner/node_project/package.json",
		"inner/node_project/src",
		"inner/node_project/src/App.tsx",
		"inner/node_project/node_modules",
		"inner/node_project/node_modules/react",
		"inner/node_project/node_modules/react/package.json",
		"photos",
		"photos/photo1.png",
		"photos/photo2.jpg",
		"photos/photo3.jpeg",
		"photos/text.txt",
	)

	require.Equal(t, expected, actualPaths(actual))
}

func TestWalkOnlyPhotos(t *testing.T) {
	root := prepareLocation(t)

	rs := []rules.Rule{
		rules.NewGlobRule(rules.AcceptFilesByGlob, "only photos", "**/{*.png,*.jpg,*.jpeg}"),
	}

	actual, err := Walk(context.Background(), root, rules.Group(rs), nil, true)
	require.NoError(t, err)

	expected := paths(t, root,
		"",
		"photos",
		"photos/photo1.png",
		"photos/photo2.jpg",
		"photos/photo3.jpeg",
	)

	require.Equal(t, expected, actualPaths(actual))
}

func TestWalkGitRepos(t *testing.T) {
	root := prepareLocation(t)

	rs := []rules.Rule{
		rules.NewChildrenRule(rules.AcceptIfChildrenDirectoriesArePresent, "git repos", []string{".git"}),
	}

	actual, err := Walk(context.Background(), root, rules.Group(rs), nil, true)
	require.NoError(t, err)

	expected := paths(t, root,
		"",
		"rust_project",
		"rust_project/.git",
		"rust_project/Cargo.toml",
		"rust_project/src",
		"rust_project/src/main.rs",
		"rust_project/target",
		"rust_project/target/debug",
		"rust_project/target/debug/main",
		"inner",
		"inner/node_project",
		"inner/node_project/.git",
		"inner/node_project/package.json",
		"inner/node_project/src",
		"inner/node_project/src/App.tsx",
		"inner/node_project/node_modules",
		"inner/node_project/node_modules/react",
		"inner/node_project/node_modules/react/package.json",
	)

	require.Equal(t, expected, actualPaths(actual))
}

func TestWalkGitReposWithoutDepsOrBuildDirs(t *testing.T) {
	root := prepareLocation(t)

	rs := []rules.Rule{
		rules.NewChildrenRule(rules.AcceptIfChildrenDirectoriesArePresent, "git repos", []string{".git"}),
		rules.NewGlobRule(rules.RejectFilesByGlob, "reject node_modules", "**/{node_modules/*,node_modules}"),
		rules.NewGlobRule(rules.RejectFilesByGlob, "reject rust build dir", "**/{target/*,target}"),
	}

	actual, err := Walk(context.Background(), root, rules.Group(rs), nil, true)
	require.NoError(t, err)

	expected := paths(t, root,
		"",
		"rust_project",
		"rust_project/.git",
		"rust_project/Cargo.toml",
		"rust_project/src",
		"rust_project/src/main.rs",
		"inner",
		"inner/node_project",
		"inner/node_project/.git",
		"inner/node_project/package.json",
		"inner/node_project/src",
		"inner/node_project/src/App.tsx",
	)

	require.Equal(t, expected, actualPaths(actual))
}

func TestWalkSingleDirIsNotRecursive(t *testing.T) {
	root := prepareLocation(t)

	actual, err := WalkSingleDir(context.Background(), filepath.Join(root, "photos"), rules.Group(nil), nil)
	require.NoError(t, err)

	expected := paths(t, root,
		"photos/photo1.png",
		"photos/photo2.jpg",
		"photos/photo3.jpeg",
		"photos/text.txt",
	)

	require.Equal(t, expected, actualPaths(actual))
}
