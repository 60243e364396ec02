package catalogstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	syncpkg "github.com/nonlocal/indexd/internal/sync"
)

// MemStore is a concurrency-safe, process-local Store used by tests and
// the demo CLI in place of a real database (spec §1 Non-goals). It has no
// teacher analogue -- the teacher never needed a catalog at all -- and is
// built directly off the Store interface's own method shapes, which are
// themselves grounded on the original Prisma call sites.
type MemStore struct {
	mu sync.RWMutex

	locations map[int64]catalogmodel.Location
	entries   map[int64]catalogmodel.CatalogEntry
	objects   map[string]catalogmodel.Object // keyed by string(PublicID)
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		locations: make(map[int64]catalogmodel.Location),
		entries:   make(map[int64]catalogmodel.CatalogEntry),
		objects:   make(map[string]catalogmodel.Object),
	}
}

func (m *MemStore) PutLocation(loc catalogmodel.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[loc.ID] = loc
}

func (m *MemStore) PutEntry(e catalogmodel.CatalogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
}

func (m *MemStore) LocationByID(ctx context.Context, id int64) (catalogmodel.Location, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[id]
	return loc, ok, nil
}

func (m *MemStore) EntryByID(ctx context.Context, id int64) (catalogmodel.CatalogEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok, nil
}

func (m *MemStore) WriteCasIDs(ctx context.Context, updates map[int64]string, ops []syncpkg.Op, ch syncpkg.Channel) error {
	m.mu.Lock()
	for id, casID := range updates {
		e, ok := m.entries[id]
		if !ok {
			continue
		}
		c := casID
		e.CasID = &c
		m.entries[id] = e
	}
	m.mu.Unlock()
	return ch.Broadcast(ctx, ops)
}

// ObjectsByCasIDs returns, for each cas_id in casIDs that some entry is
// already connected to an Object with, that cas_id mapped to the Object.
func (m *MemStore) ObjectsByCasIDs(ctx context.Context, casIDs []string) (map[string]catalogmodel.Object, error) {
	wanted := make(map[string]struct{}, len(casIDs))
	for _, id := range casIDs {
		wanted[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]catalogmodel.Object)
	for _, e := range m.entries {
		if e.CasID == nil || e.ObjectID == nil {
			continue
		}
		if _, ok := wanted[*e.CasID]; !ok {
			continue
		}
		if _, already := out[*e.CasID]; already {
			continue
		}
		if obj, ok := m.objects[string(*e.ObjectID)]; ok {
			out[*e.CasID] = obj
		}
	}
	return out, nil
}

func (m *MemStore) CreateObjects(ctx context.Context, objects []catalogmodel.Object, ops []syncpkg.Op, ch syncpkg.Channel) (int, error) {
	m.mu.Lock()
	for _, o := range objects {
		m.objects[string(o.PublicID)] = o
	}
	m.mu.Unlock()
	return len(objects), ch.Broadcast(ctx, ops)
}

func (m *MemStore) Connect(ctx context.Context, entryID int64, objectPubID []byte, op syncpkg.Op, ch syncpkg.Channel) error {
	m.mu.Lock()
	if e, ok := m.entries[entryID]; ok {
		id := append([]byte(nil), objectPubID...)
		e.ObjectID = &id
		m.entries[entryID] = e
	}
	m.mu.Unlock()
	return ch.Broadcast(ctx, []syncpkg.Op{op})
}

func (m *MemStore) InvalidateExplorerCache(ctx context.Context, locationID int64) {
	// No UI layer to notify in this core (spec §1 Non-goals); kept as a
	// hook so callers don't need a nil check.
}

// orphans returns every non-directory, unlinked entry under locationID
// matching filter: either the deep (materialized-path prefix) or the
// shallow (ParentID equality) scope, per spec §4.3's two variants.
func (m *MemStore) orphans(locationID int64, filter catalogmodel.OrphanFilter) []catalogmodel.CatalogEntry {
	var out []catalogmodel.CatalogEntry
	for _, e := range m.entries {
		if e.LocationID != locationID || e.IsDir || e.ObjectID != nil {
			continue
		}
		if filter.Shallow {
			if filter.ParentEntryID == 0 {
				if e.ParentID != nil {
					continue
				}
			} else if e.ParentID == nil || *e.ParentID != filter.ParentEntryID {
				continue
			}
		} else if filter.SubPathPrefix != "" && !strings.HasPrefix(e.MaterializedPath, filter.SubPathPrefix) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) CountOrphans(ctx context.Context, locationID int64, filter catalogmodel.OrphanFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orphans(locationID, filter)), nil
}

func (m *MemStore) FirstOrphanID(ctx context.Context, locationID int64, filter catalogmodel.OrphanFilter) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orphans := m.orphans(locationID, filter)
	if len(orphans) == 0 {
		return 0, false, nil
	}
	return orphans[0].ID, true, nil
}

func (m *MemStore) OrphanChunk(ctx context.Context, locationID int64, filter catalogmodel.OrphanFilter, cursor int64, limit int) ([]catalogmodel.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []catalogmodel.CatalogEntry
	for _, e := range m.orphans(locationID, filter) {
		if e.ID < cursor {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// EntryByPath finds the entry named name whose MaterializedPath is
// materializedPath within locationID. Used to resolve a shallow scope's
// sub-path into the ParentID its orphan filter equality-matches.
func (m *MemStore) EntryByPath(ctx context.Context, locationID int64, materializedPath, name string) (catalogmodel.CatalogEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.LocationID == locationID && e.MaterializedPath == materializedPath && e.Name == name {
			return e, true, nil
		}
	}
	return catalogmodel.CatalogEntry{}, false, nil
}
