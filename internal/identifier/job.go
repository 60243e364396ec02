package identifier

import (
	"context"
	"fmt"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/catalogstore"
	"github.com/nonlocal/indexd/internal/sync"
)

// Report mirrors FileIdentifierReport (mod.rs): running totals a Job
// accumulates across all of its steps.
type Report struct {
	LocationPath     string
	TotalOrphanPaths int
	ObjectsCreated   int
	ObjectsLinked    int
	ObjectsIgnored   int
}

// Job drives the Init -> Step x N -> Finalize state machine described in
// spec §4.5, grounded on the StatefulJob impl in file_identifier_job.rs
// (deep scope) and shallow_file_identifier_job.rs (shallow scope).
type Job struct {
	Name         string
	LocationID   int64
	LocationPath string
	Scope        Scope

	store catalogstore.Store
	ch    sync.Channel

	cursor    Cursor
	report    Report
	taskCount int
	stepsDone int
}

// NewJob constructs a Job bound to a store and sync channel. name should
// be "file_identifier" for the deep/whole-location job or
// "shallow_file_identifier" for the single-directory variant (spec §3
// supplemented features).
func NewJob(name string, locationID int64, locationPath string, scope Scope, store catalogstore.Store, ch sync.Channel) *Job {
	return &Job{
		Name:         name,
		LocationID:   locationID,
		LocationPath: locationPath,
		Scope:        scope,
		store:        store,
		ch:           ch,
	}
}

// Init computes the orphan count and seeds the cursor, per spec §4.5's
// state-machine description. Returns a JobEarlyFinish CoreError when
// there is nothing to do (mirrors file_identifier_job.rs Init's
// `orphan_count == 0` branch).
func (j *Job) Init(ctx context.Context) error {
	cursor, total, err := SeedFirst(ctx, j.store, j.LocationID, j.Scope)
	if err != nil {
		return err
	}
	if total == 0 {
		j.report = Report{LocationPath: j.LocationPath}
		return catalogmodel.JobEarlyFinish(j.Name, "no orphan file paths to process")
	}

	j.cursor = cursor
	j.report = Report{LocationPath: j.LocationPath, TotalOrphanPaths: total}
	j.taskCount = TaskCount(total)
	return nil
}

// TaskCount reports the number of steps Init computed.
func (j *Job) TaskCount() int { return j.taskCount }

// Step runs one chunk through RunStep and advances the cursor (spec
// §4.5). An empty chunk mid-run is a broken invariant and fails the job
// with EarlyFinish, matching process_identifier_file_paths's
// "Expected orphan Paths not returned from database query for this
// chunk".
func (j *Job) Step(ctx context.Context) error {
	chunk, err := j.cursor.NextChunk(ctx, j.store, j.LocationID, j.Scope)
	if err != nil {
		return err
	}
	if len(chunk) == 0 {
		return catalogmodel.JobEarlyFinish(j.Name, "expected orphan paths not returned from catalog for this chunk")
	}

	result, err := RunStep(ctx, j.store, j.ch, j.LocationPath, chunk)
	if err != nil {
		return err
	}

	j.report.ObjectsCreated += result.ObjectsCreated
	j.report.ObjectsLinked += result.ObjectsLinked
	j.stepsDone++
	return nil
}

// Done reports whether every computed task has run.
func (j *Job) Done() bool { return j.stepsDone >= j.taskCount }

// Finalize emits the final report and invalidates the explorer cache
// when any work was done (spec §4.5, finalize_file_identifier). Every
// orphan ends up created, linked, or silently ignored (mod.rs's
// total_objects_ignored, from FileMetadata::new's flat_map over
// per-path assembly failures); ObjectsIgnored is the remainder.
func (j *Job) Finalize(ctx context.Context) Report {
	if j.report.TotalOrphanPaths > 0 {
		j.store.InvalidateExplorerCache(ctx, j.LocationID)
	}
	j.report.ObjectsIgnored = j.report.TotalOrphanPaths - j.report.ObjectsCreated - j.report.ObjectsLinked
	return j.report
}

// Run drives the full Init -> Step* -> Finalize cycle for callers that
// don't need to interleave with an external job scheduler (spec §1 places
// the real scheduler out of scope; this is the demo CLI's synchronous
// equivalent).
func Run(ctx context.Context, j *Job) (Report, error) {
	if err := j.Init(ctx); err != nil {
		return j.report, err
	}
	for !j.Done() {
		if err := j.Step(ctx); err != nil {
			return j.report, fmt.Errorf("identifier: step %d/%d: %w", j.stepsDone+1, j.taskCount, err)
		}
	}
	return j.Finalize(ctx), nil
}

// RunDeep runs the whole-subtree identifier job (file_identifier_job.rs):
// subPath, or "" for the whole location, scopes orphans by
// materialized-path prefix (spec §3/§4.3).
func RunDeep(ctx context.Context, store catalogstore.Store, ch sync.Channel, loc catalogmodel.Location, subPath string) (Report, error) {
	scope := ScopeAll()
	if subPath != "" {
		prefix, err := ResolveSubPath(loc.Path, subPath)
		if err != nil {
			return Report{}, err
		}
		scope = ScopeDeep(prefix)
	}
	j := NewJob("file_identifier", loc.ID, loc.Path, scope, store, ch)
	return Run(ctx, j)
}

// RunShallow runs the single-directory identifier job
// (shallow_file_identifier_job.rs): orphans are scoped to the direct
// children of subPath (or the location root, for "") by ParentID
// equality rather than by path prefix (spec §3/§4.3).
func RunShallow(ctx context.Context, store catalogstore.Store, ch sync.Channel, loc catalogmodel.Location, subPath string) (Report, error) {
	parentID, err := ResolveShallowParent(ctx, store, loc.ID, loc.Path, subPath)
	if err != nil {
		return Report{}, err
	}
	j := NewJob("shallow_file_identifier", loc.ID, loc.Path, ScopeShallow(parentID), store, ch)
	return Run(ctx, j)
}
