// Package walker implements the rule-driven breadth-first directory
// traversal described in spec §4.2. The algorithm is a direct
// transcription of original_source/core/src/location/indexer/walk.rs: a
// FIFO queue of (directory, inherited accept-by-children state) pairs,
// per-entry rule evaluation, ancestor back-fill on admission, and a final
// dedup-by-path + lexicographic sort. Directories are processed one at a
// time, sequentially (spec §5), matching walk.rs's own single-threaded
// BFS; there is no bounded-fan-out concurrency here.
package walker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/rules"
)

// Notifier is invoked once per visited child entry, before rule
// evaluation, with the current count of admitted entries (spec §4.2 step
// 3's "invoke the notifier").
type Notifier func(path string, admittedSoFar int)

var logger = slog.Default().With("component", "walker")

// acceptState mirrors Rust's Option<bool>: nil means "not yet decided",
// a pointer to true/false means the AcceptIfChildrenDirectoriesArePresent
// rule set has made a determination that subdirectories inherit.
type acceptState = *bool

func accepted(v bool) acceptState { return &v }

type queueItem struct {
	path   string
	parent acceptState
}

// Walk performs the full recursive traversal described in spec §4.2,
// returning an ordered, de-duplicated list of admitted entries.
func Walk(ctx context.Context, root string, rulesByKind rules.ByKind, notify Notifier, includeRoot bool) ([]catalogmodel.WalkEntry, error) {
	if notify == nil {
		notify = func(string, int) {}
	}

	indexed := make(map[string]catalogmodel.WalkEntry)
	queue := []queueItem{{path: root, parent: nil}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		entries, err := os.ReadDir(item.path)
		if err != nil {
			logger.Debug("error reading directory", "path", item.path, "error", err)
			continue
		}

		more, err := visitChildren(ctx, root, item, entries, rulesByKind, notify, indexed)
		if err != nil {
			return nil, err
		}
		queue = append(queue, more...)
	}

	return finalize(root, indexed, includeRoot)
}

// WalkSingleDir is the non-recursive variant used for shallow re-indexing
// (spec §4.2): it applies the same per-entry rules to root's direct
// children only, never enqueuing subdirectories for further traversal.
func WalkSingleDir(ctx context.Context, root string, rulesByKind rules.ByKind, notify Notifier) ([]catalogmodel.WalkEntry, error) {
	if notify == nil {
		notify = func(string, int) {}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("walker: reading directory %s: %w", root, err)
	}

	indexed := make(map[string]catalogmodel.WalkEntry)
	if _, err := visitChildrenShallow(ctx, root, queueItem{path: root, parent: nil}, entries, rulesByKind, notify, indexed); err != nil {
		return nil, err
	}

	return finalize(root, indexed, false)
}

func visitChildren(ctx context.Context, root string, item queueItem, entries []os.DirEntry, rulesByKind rules.ByKind, notify Notifier, indexed map[string]catalogmodel.WalkEntry) ([]queueItem, error) {
	return visitChildrenImpl(ctx, root, item, entries, rulesByKind, notify, indexed, true)
}

func visitChildrenShallow(ctx context.Context, root string, item queueItem, entries []os.DirEntry, rulesByKind rules.ByKind, notify Notifier, indexed map[string]catalogmodel.WalkEntry) ([]queueItem, error) {
	return visitChildrenImpl(ctx, root, item, entries, rulesByKind, notify, indexed, false)
}

func visitChildrenImpl(ctx context.Context, root string, item queueItem, entries []os.DirEntry, rulesByKind rules.ByKind, notify Notifier, indexed map[string]catalogmodel.WalkEntry, enqueueSubdirs bool) ([]queueItem, error) {
	var next []queueItem

entries:
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		childPath := filepath.Join(item.path, entry.Name())
		notify(childPath, len(indexed))

		// Reject-by-glob rules run first, against every entry regardless of
		// kind, and skip the whole subtree on a match (spec §4.2 step 3).
		for _, r := range rulesByKind[rules.RejectFilesByGlob] {
			ok, err := rules.Apply(ctx, r, childPath)
			if err != nil {
				logger.Debug("error applying reject-glob rule", "rule", r.Name, "path", childPath, "error", err)
				continue entries
			}
			if !ok {
				continue entries
			}
		}

		info, err := entry.Info()
		if err != nil {
			logger.Debug("error reading entry info", "path", childPath, "error", err)
			continue
		}

		// Symlinks are skipped unconditionally (spec §1 Non-goals, §4.2).
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}

		isDir := info.IsDir()

		meta, err := metadataFor(childPath, info)
		if err != nil {
			logger.Debug("error deriving metadata", "path", childPath, "error", err)
			continue
		}

		acceptByChildren := item.parent

		if isDir {
			rejected := false
			for _, r := range rulesByKind[rules.RejectIfChildrenDirectoriesArePresent] {
				ok, err := rules.Apply(ctx, r, childPath)
				if err != nil {
					logger.Debug("error applying reject-by-children rule", "rule", r.Name, "path", childPath, "error", err)
					rejected = true
					break
				}
				if !ok {
					rejected = true
					break
				}
			}
			if rejected {
				continue
			}

			if acceptRules, ok := rulesByKind[rules.AcceptIfChildrenDirectoriesArePresent]; ok {
				matched := false
				for _, r := range acceptRules {
					ok, err := rules.Apply(ctx, r, childPath)
					if err != nil {
						logger.Debug("error applying accept-by-children rule", "rule", r.Name, "path", childPath, "error", err)
						continue entries
					}
					if ok {
						acceptByChildren = accepted(true)
						matched = true
						break
					}
				}
				if !matched && acceptByChildren == nil {
					// No configured child was present and no ancestor has
					// decided yet: reject. An inherited true is kept, so a
					// matched directory's whole subtree stays admitted.
					acceptByChildren = accepted(false)
				}
			}

			if enqueueSubdirs {
				next = append(next, queueItem{path: childPath, parent: acceptByChildren})
			}
		}

		acceptByGlob := true
		if acceptRules, ok := rulesByKind[rules.AcceptFilesByGlob]; ok {
			acceptByGlob = false
			for _, r := range acceptRules {
				ok, err := rules.Apply(ctx, r, childPath)
				if err != nil {
					logger.Debug("error applying accept-glob rule", "rule", r.Name, "path", childPath, "error", err)
					continue
				}
				if ok {
					acceptByGlob = true
					break
				}
			}
		}

		if acceptByGlob && (acceptByChildren == nil || *acceptByChildren) {
			indexed[childPath] = catalogmodel.WalkEntry{Path: childPath, IsDir: isDir, Meta: meta}
			if err := backfillAncestors(root, childPath, indexed); err != nil {
				return nil, err
			}
		}
	}

	return next, nil
}

// backfillAncestors admits every ancestor of path strictly below root that
// is not already admitted, stopping as soon as an already-admitted
// ancestor is found (spec §4.2 step 3, final bullet).
func backfillAncestors(root, path string, indexed map[string]catalogmodel.WalkEntry) error {
	for ancestor := filepath.Dir(path); ancestor != root && len(ancestor) > len(root); ancestor = filepath.Dir(ancestor) {
		if _, ok := indexed[ancestor]; ok {
			break
		}
		info, err := os.Stat(ancestor)
		if err != nil {
			return fmt.Errorf("walker: stat ancestor %s: %w", ancestor, err)
		}
		meta, err := metadataFor(ancestor, info)
		if err != nil {
			return fmt.Errorf("walker: metadata for ancestor %s: %w", ancestor, err)
		}
		indexed[ancestor] = catalogmodel.WalkEntry{Path: ancestor, IsDir: true, Meta: meta}
	}
	return nil
}

func finalize(root string, indexed map[string]catalogmodel.WalkEntry, includeRoot bool) ([]catalogmodel.WalkEntry, error) {
	out := make([]catalogmodel.WalkEntry, 0, len(indexed)+1)

	if includeRoot {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("walker: stat root %s: %w", root, err)
		}
		meta, err := metadataFor(root, info)
		if err != nil {
			return nil, fmt.Errorf("walker: metadata for root %s: %w", root, err)
		}
		out = append(out, catalogmodel.WalkEntry{Path: root, IsDir: true, Meta: meta})
	}

	for _, e := range indexed {
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
