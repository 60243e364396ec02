package identifier

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/catalogstore"
	"github.com/nonlocal/indexd/internal/sync"
)

var logger = slog.Default().With("component", "identifier")

// StepResult reports the counts an Identifier Step contract requires
// (spec §4.5): new_objects, linked_objects.
type StepResult struct {
	ObjectsCreated int
	ObjectsLinked  int
}

// RunStep executes the four-phase Identifier Step contract against one
// chunk of orphan CatalogEntries, grounded on identifier_job_step
// (mod.rs). Concurrency for Phase A is bounded the way the teacher's
// internal/discovery.Walker bounds its content-loading fan-out
// (errgroup.WithContext + SetLimit), rather than the unbounded
// futures::join_all the original uses, since a real filesystem has a
// finite descriptor budget.
func RunStep(ctx context.Context, store catalogstore.Store, ch sync.Channel, locationPath string, chunk []catalogmodel.CatalogEntry) (StepResult, error) {
	assembled := assemblePhaseA(ctx, locationPath, chunk)
	if len(assembled) == 0 {
		return StepResult{}, nil
	}

	if err := writeCasIDsPhaseB(ctx, store, ch, assembled); err != nil {
		return StepResult{}, err
	}

	linked, remaining, err := matchExistingPhaseC(ctx, store, ch, assembled)
	if err != nil {
		return StepResult{}, err
	}

	created, linkedNew, err := createNewPhaseD(ctx, store, ch, remaining)
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{ObjectsCreated: created, ObjectsLinked: linked + linkedNew}, nil
}

// assemblePhaseA invokes Assemble for every entry concurrently; failures
// are logged and drop the entry (spec §4.5 Phase A).
func assemblePhaseA(ctx context.Context, locationPath string, chunk []catalogmodel.CatalogEntry) map[int64]AssembledMeta {
	limit := runtime.NumCPU()
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make(chan AssembledMeta, len(chunk))

	for _, entry := range chunk {
		entry := entry
		g.Go(func() error {
			meta, err := Assemble(gctx, locationPath, entry)
			if err != nil {
				logger.Error("error assembling object metadata", "entry_id", entry.ID, "error", err)
				return nil
			}
			select {
			case results <- meta:
			case <-gctx.Done():
			}
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	out := make(map[int64]AssembledMeta, len(chunk))
	for meta := range results {
		out[meta.EntryID] = meta
	}
	return out
}

// writeCasIDsPhaseB assigns cas_id to each assembled entry, pairing every
// write with a shared_update CRDT op (spec §4.5 Phase B).
func writeCasIDsPhaseB(ctx context.Context, store catalogstore.Store, ch sync.Channel, assembled map[int64]AssembledMeta) error {
	updates := make(map[int64]string, len(assembled))
	ops := make([]sync.Op, 0, len(assembled))
	for id, meta := range assembled {
		updates[id] = meta.CasID
		ops = append(ops, ch.SharedUpdate("file_path", entryPubID(id), "cas_id", meta.CasID))
	}

	if err := store.WriteCasIDs(ctx, updates, ops, ch); err != nil {
		return fmt.Errorf("identifier: writing cas_ids: %w", err)
	}
	return nil
}

// matchExistingPhaseC fetches Objects already linked to an entry sharing
// one of the assembled cas_ids, connects every matching assembled entry
// to it, and returns the assembled entries NOT covered by a match (spec
// §4.5 Phase C).
func matchExistingPhaseC(ctx context.Context, store catalogstore.Store, ch sync.Channel, assembled map[int64]AssembledMeta) (int, map[int64]AssembledMeta, error) {
	casIDSet := make(map[string]struct{}, len(assembled))
	for _, meta := range assembled {
		casIDSet[meta.CasID] = struct{}{}
	}
	casIDs := make([]string, 0, len(casIDSet))
	for id := range casIDSet {
		casIDs = append(casIDs, id)
	}

	byCasID, err := store.ObjectsByCasIDs(ctx, casIDs)
	if err != nil {
		return 0, nil, fmt.Errorf("identifier: matching existing objects: %w", err)
	}

	remaining := make(map[int64]AssembledMeta)
	linked := 0

	for id, meta := range assembled {
		obj, ok := byCasID[meta.CasID]
		if !ok {
			remaining[id] = meta
			continue
		}
		op := ch.SharedConnect("file_path", entryPubID(id), "object", obj.PublicID)
		if err := store.Connect(ctx, id, obj.PublicID, op, ch); err != nil {
			return linked, nil, fmt.Errorf("identifier: connecting entry %d: %w", id, err)
		}
		linked++
	}

	return linked, remaining, nil
}

// createNewPhaseD mints a new Object for each cas_id not covered by Phase
// C, then connects every entry sharing that cas_id (spec §4.5 Phase D).
// It returns the number of Objects created and the number of further
// entries linked to one of them (every entry of a cas_id group after the
// first). Bulk-create errors are swallowed and logged per spec §4.5's
// "bulk Object creation swallows errors, returning zero and logging".
func createNewPhaseD(ctx context.Context, store catalogstore.Store, ch sync.Channel, remaining map[int64]AssembledMeta) (int, int, error) {
	if len(remaining) == 0 {
		return 0, 0, nil
	}

	type group struct {
		object catalogmodel.Object
		pubID  []byte
		ids    []int64
	}
	byCasID := make(map[string]*group)

	for id, meta := range remaining {
		g, ok := byCasID[meta.CasID]
		if !ok {
			pubID := uuid.New()
			g = &group{
				pubID: pubID[:],
				object: catalogmodel.Object{
					PublicID:  pubID[:],
					Kind:      meta.Kind,
					Size:      meta.Size,
					CreatedAt: meta.CreatedAt,
				},
			}
			byCasID[meta.CasID] = g
		}
		g.ids = append(g.ids, id)
	}

	objects := make([]catalogmodel.Object, 0, len(byCasID))
	ops := make([]sync.Op, 0, len(byCasID)*4)
	for _, g := range byCasID {
		objects = append(objects, g.object)
		ops = append(ops, ch.SharedCreate("object", g.pubID))
		ops = append(ops, ch.SharedUpdate("object", g.pubID, "date_created", g.object.CreatedAt))
		ops = append(ops, ch.SharedUpdate("object", g.pubID, "kind", int(g.object.Kind)))
		ops = append(ops, ch.SharedUpdate("object", g.pubID, "size_in_bytes", g.object.Size))
	}

	created, err := store.CreateObjects(ctx, objects, ops, ch)
	if err != nil {
		logger.Error("error inserting new objects", "error", err)
		return 0, 0, nil
	}
	if created == 0 {
		return 0, 0, nil
	}

	linked := 0
	for _, g := range byCasID {
		for i, id := range g.ids {
			op := ch.SharedConnect("file_path", entryPubID(id), "object", g.pubID)
			if err := store.Connect(ctx, id, g.pubID, op, ch); err != nil {
				return created, linked, fmt.Errorf("identifier: connecting new entry %d: %w", id, err)
			}
			if i > 0 {
				linked++
			}
		}
	}

	return created, linked, nil
}

// entryPubID derives a deterministic pseudo pub-id for an entry solely
// for use as a sync.Op's PubID payload in this reference core, where the
// real catalog store (out of scope, spec §1) is the true source of an
// entry's public id.
func entryPubID(entryID int64) []byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(entryID >> (8 * i))
	}
	return b[:]
}
