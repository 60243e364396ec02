// Package catalogstore defines the relational catalog boundary this core
// reads and writes against but does not implement (spec §1 Non-goals:
// "the catalog database and its schema/migrations are out of scope").
// Every subsystem that needs to persist or query catalog entries and
// objects does so through Store, never through a concrete driver, so the
// core can be exercised against the in-memory MemStore in tests and the
// demo CLI without a real database.
//
// Grounded on original_source/core/src/object/file_identifier/mod.rs's
// PrismaClient call shape (db.file_path().update(...), db.object().
// find_many(...), db.object().create_many(...), file_path::object::
// connect(...)) and file_identifier_job.rs's orphan_path_filters/
// count_orphan_file_paths/get_orphan_file_paths -- the Store method names
// below mirror those query shapes one for one.
package catalogstore

import (
	"context"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/sync"
)

// Store is the catalog persistence boundary. All mutating methods accept
// the CRDT Ops the caller wants broadcast alongside the local write, per
// the identifier step's sync.write_ops(db, ops) pairing.
type Store interface {
	// WriteCasIDs sets the cas_id field on each named entry, broadcasting
	// one sync.Op per entry.
	WriteCasIDs(ctx context.Context, updates map[int64]string, ops []sync.Op, ch sync.Channel) error

	// ObjectsByCasIDs returns, for each cas_id in casIDs that is already
	// linked to some entry's Object, that cas_id mapped to the Object.
	// cas_ids with no existing Object are simply absent from the result.
	ObjectsByCasIDs(ctx context.Context, casIDs []string) (map[string]catalogmodel.Object, error)

	// CreateObjects inserts new Object rows and reports how many were
	// created.
	CreateObjects(ctx context.Context, objects []catalogmodel.Object, ops []sync.Op, ch sync.Channel) (int, error)

	// Connect links entryID's ObjectID to objectPubID, broadcasting op.
	Connect(ctx context.Context, entryID int64, objectPubID []byte, op sync.Op, ch sync.Channel) error

	// InvalidateExplorerCache signals that locationID's listing view
	// should be refreshed; a real implementation would notify a UI layer
	// (out of scope here, see spec §1).
	InvalidateExplorerCache(ctx context.Context, locationID int64)

	// CountOrphans reports how many non-directory entries under
	// locationID and matching filter have no ObjectID yet.
	CountOrphans(ctx context.Context, locationID int64, filter catalogmodel.OrphanFilter) (int, error)

	// FirstOrphanID returns the smallest id among the same orphan set,
	// used to seed the cursor (spec §4.3).
	FirstOrphanID(ctx context.Context, locationID int64, filter catalogmodel.OrphanFilter) (int64, bool, error)

	// OrphanChunk returns up to limit orphan entries with id >= cursor,
	// ordered ascending by id (spec §4.3's semi-open chunk window).
	OrphanChunk(ctx context.Context, locationID int64, filter catalogmodel.OrphanFilter, cursor int64, limit int) ([]catalogmodel.CatalogEntry, error)

	// EntryByID looks up a single catalog entry, used by the gateway to
	// resolve a /file request's entry id to a location-relative path.
	EntryByID(ctx context.Context, id int64) (catalogmodel.CatalogEntry, bool, error)

	// EntryByPath resolves the directory entry at materializedPath+name
	// within locationID, used to translate a shallow scope's sub-path
	// into the ParentID an orphan filter equality-matches against.
	// Mirrors get_existing_file_path_id (shallow_file_identifier_job.rs).
	EntryByPath(ctx context.Context, locationID int64, materializedPath, name string) (catalogmodel.CatalogEntry, bool, error)

	// LocationByID resolves a location's root path.
	LocationByID(ctx context.Context, id int64) (catalogmodel.Location, bool, error)
}
