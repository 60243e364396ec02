// Package identifier implements the chunked, resumable orphan-processing
// pipeline (spec §4.3-§4.5): the Orphan Cursor, the Metadata Assembler,
// and the Identifier Step, plus the Job state machine that drives them
// across a whole location.
//
// Grounded throughout on
// original_source/core/src/object/file_identifier/{mod.rs,
// file_identifier_job.rs,shallow_file_identifier_job.rs}.
package identifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/catalogstore"
)

// ChunkSize is the fixed chunk size the orphan cursor advances by
// (spec §4.3), matching original_source's CHUNK_SIZE constant.
const ChunkSize = 100

// Scope selects which orphan entries a Job considers, in one of three
// modes (spec §4.3): the whole location, a deep sub-tree restricted by
// materialized-path prefix (file_identifier_job.rs's optional sub_path),
// or a shallow single directory's direct children restricted by exact
// ParentID (shallow_file_identifier_job.rs's parent_id::equals). The zero
// value is ScopeAll.
type Scope struct {
	SubPathPrefix string // deep scope: materialized-path prefix filter
	shallow       bool
	parentEntryID int64
}

// ScopeAll scopes a Job to every orphan in the location.
func ScopeAll() Scope { return Scope{} }

// ScopeDeep scopes a Job to orphans whose materialized path lies under
// subPathPrefix (file_identifier_job.rs's sub_path filter).
func ScopeDeep(subPathPrefix string) Scope {
	return Scope{SubPathPrefix: subPathPrefix}
}

// ScopeShallow scopes a Job to orphans that are direct children of the
// entry identified by parentEntryID, or of the location root when
// parentEntryID is 0 (shallow_file_identifier_job.rs's parent_id filter).
func ScopeShallow(parentEntryID int64) Scope {
	return Scope{shallow: true, parentEntryID: parentEntryID}
}

// filter translates Scope into the primitive catalogstore.Store query it
// resolves to.
func (s Scope) filter() catalogmodel.OrphanFilter {
	if s.shallow {
		return catalogmodel.OrphanFilter{Shallow: true, ParentEntryID: s.parentEntryID}
	}
	return catalogmodel.OrphanFilter{SubPathPrefix: s.SubPathPrefix}
}

// ResolveSubPath validates that subPath is a directory located under
// locationPath, returning the location-relative materialized-path prefix
// to scope orphan queries by. Grounded on
// ensure_sub_path_is_in_location/ensure_sub_path_is_directory
// (file_identifier_job.rs).
func ResolveSubPath(locationPath, subPath string) (string, error) {
	abs := subPath
	if !filepath.IsAbs(subPath) {
		abs = filepath.Join(locationPath, subPath)
	}

	rel, err := filepath.Rel(locationPath, abs)
	if err != nil || strings.HasPrefix(rel, "..") || rel == ".." {
		return "", &catalogmodel.FilePathError{SubKind: catalogmodel.FilePathNotUnderLocation, Path: subPath}
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", &catalogmodel.FilePathError{SubKind: catalogmodel.FilePathNotADirectory, Path: subPath}
	}
	if rel == "." {
		return "/", nil
	}

	prefix := "/" + filepath.ToSlash(rel)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix, nil
}

// ResolveShallowParent resolves subPath to the ParentID a shallow Scope
// should equality-match against: 0 (the location root) when subPath is
// empty or is the location root itself, otherwise the catalog id of
// subPath's own directory entry. Grounded on
// shallow_file_identifier_job.rs's init(), which calls
// get_existing_file_path_id on the sub_path directory or, if sub_path is
// empty, the location root path -- .expect()-panicking there on a miss;
// here that becomes an explicit error.
func ResolveShallowParent(ctx context.Context, store catalogstore.Store, locationID int64, locationPath, subPath string) (int64, error) {
	abs := subPath
	if abs == "" {
		abs = locationPath
	} else if !filepath.IsAbs(subPath) {
		abs = filepath.Join(locationPath, subPath)
	}

	rel, err := filepath.Rel(locationPath, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return 0, &catalogmodel.FilePathError{SubKind: catalogmodel.FilePathNotUnderLocation, Path: subPath}
	}
	if rel == "." {
		return 0, nil
	}

	parentRel := filepath.Dir(rel)
	parentPrefix := "/"
	if parentRel != "." {
		parentPrefix = "/" + filepath.ToSlash(parentRel) + "/"
	}

	entry, ok, err := store.EntryByPath(ctx, locationID, parentPrefix, filepath.Base(rel))
	if err != nil {
		return 0, fmt.Errorf("identifier: resolving shallow sub-path: %w", err)
	}
	if !ok {
		return 0, &catalogmodel.FilePathError{SubKind: catalogmodel.FilePathNotADirectory, Path: subPath}
	}
	return entry.ID, nil
}

// Cursor tracks the next chunk's starting id (spec §4.3). The zero value
// is not valid; obtain one via SeedFirst.
type Cursor struct {
	next  int64
	ready bool
}

// SeedFirst finds the smallest orphan id for (locationID, scope) and
// returns a ready Cursor plus the total orphan count. A zero count is not
// an error here; callers translate it to Job's EarlyFinish.
func SeedFirst(ctx context.Context, store catalogstore.Store, locationID int64, scope Scope) (Cursor, int, error) {
	filter := scope.filter()
	total, err := store.CountOrphans(ctx, locationID, filter)
	if err != nil {
		return Cursor{}, 0, fmt.Errorf("identifier: counting orphans: %w", err)
	}
	if total == 0 {
		return Cursor{}, 0, nil
	}

	first, ok, err := store.FirstOrphanID(ctx, locationID, filter)
	if err != nil {
		return Cursor{}, 0, fmt.Errorf("identifier: seeding cursor: %w", err)
	}
	if !ok {
		// CountOrphans and FirstOrphanID disagree; treat as no orphans rather
		// than panicking, since the store is a plugin boundary (spec §1).
		return Cursor{}, 0, nil
	}

	return Cursor{next: first, ready: true}, total, nil
}

// NextChunk fetches up to ChunkSize orphan entries at or after the
// cursor's position (the deliberately semi-open `id >= cursor` window,
// spec §4.3/§9) and advances the cursor to the id of the last row
// returned; the next call fetches that row again only if it is still an
// orphan.
func (c *Cursor) NextChunk(ctx context.Context, store catalogstore.Store, locationID int64, scope Scope) ([]catalogmodel.CatalogEntry, error) {
	if !c.ready {
		return nil, fmt.Errorf("identifier: cursor not seeded")
	}

	chunk, err := store.OrphanChunk(ctx, locationID, scope.filter(), c.next, ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("identifier: fetching chunk: %w", err)
	}
	if len(chunk) > 0 {
		c.next = chunk[len(chunk)-1].ID
	}
	return chunk, nil
}

// TaskCount computes the step count for a known orphan total, matching
// file_identifier_job.rs's `ceil(orphan_count / CHUNK_SIZE)`.
func TaskCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + ChunkSize - 1) / ChunkSize
}
