package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/catalogstore"
	"github.com/nonlocal/indexd/internal/config"
	"github.com/nonlocal/indexd/internal/identifier"
	"github.com/nonlocal/indexd/internal/rules"
	"github.com/nonlocal/indexd/internal/sync"
	"github.com/nonlocal/indexd/internal/walker"
)

var indexCmd = &cobra.Command{
	Use:   "index <location-path>",
	Short: "Walk a location, fingerprint its new files, and update the in-process catalog.",
	Long: `index registers a directory as a Location, walks it under the
configured rule set, and runs the identifier pipeline over every newly
discovered file: content fingerprinting, kind classification, and
Object linkage or creation. Progress is shown live for both phases.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

// indexProgressMsg reports the live state of a running index, bridged
// from the worker goroutine to the bubbletea program via Program.Send.
type indexProgressMsg struct {
	phase   string
	current int
	total   int
	done    bool
	err     error
}

type indexModel struct {
	bar     progress.Model
	phase   string
	current int
	total   int
	err     error
}

func newIndexModel() indexModel {
	return indexModel{
		bar:   progress.New(progress.WithDefaultGradient()),
		phase: "starting",
	}
}

func (m indexModel) Init() tea.Cmd { return nil }

func (m indexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 6
		return m, nil

	case indexProgressMsg:
		m.phase = msg.phase
		m.current = msg.current
		m.total = msg.total
		m.err = msg.err
		if msg.done {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

var (
	phaseStyle = lipgloss.NewStyle().Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func (m indexModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("indexd: %v\n", m.err))
	}

	var percent float64
	if m.total > 0 {
		percent = float64(m.current) / float64(m.total)
	}
	return fmt.Sprintf("%s\n%s %d/%d\n",
		phaseStyle.Render(m.phase), m.bar.ViewAs(percent), m.current, m.total)
}

func runIndex(cmd *cobra.Command, args []string) error {
	locationPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving location path: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ruleSet, err := cfg.RuleSet()
	if err != nil {
		return err
	}
	ruleSet, err = addGitignoreRule(ruleSet, locationPath)
	if err != nil {
		return err
	}

	store := catalogstore.NewMemStore()
	loc := catalogmodel.Location{ID: 1, Path: locationPath, PublicID: uuid.New()}
	store.PutLocation(loc)

	program := tea.NewProgram(newIndexModel())

	workDone := make(chan error, 1)
	go func() {
		workDone <- runIndexWork(cmd.Context(), program, locationPath, loc, ruleSet, store)
	}()

	if _, err := program.Run(); err != nil {
		return catalogmodel.IOError("running progress display", err)
	}
	return <-workDone
}

// runIndexWork performs the walk and identifier phases, reporting
// progress to program as it goes. It runs on its own goroutine while
// the bubbletea program owns the terminal.
func runIndexWork(ctx context.Context, program *tea.Program, locationPath string, loc catalogmodel.Location, ruleSet rules.ByKind, store *catalogstore.MemStore) error {
	notify := func(path string, admittedSoFar int) {
		program.Send(indexProgressMsg{phase: "walking " + locationPath, current: admittedSoFar, total: admittedSoFar + 1})
	}

	entries, err := walker.Walk(ctx, locationPath, ruleSet, notify, true)
	if err != nil {
		program.Send(indexProgressMsg{err: fmt.Errorf("walk: %w", err), done: true})
		return err
	}

	seedEntries(locationPath, loc.ID, entries, store)

	job := identifier.NewJob("file_identifier", loc.ID, locationPath, identifier.ScopeAll(), store, sync.NoopChannel{})
	if err := job.Init(ctx); err != nil {
		var coreErr *catalogmodel.CoreError
		if errors.As(err, &coreErr) && coreErr.Kind == catalogmodel.KindJobEarlyFinish {
			program.Send(indexProgressMsg{phase: "no new files to identify", current: 1, total: 1, done: true})
			return nil
		}
		program.Send(indexProgressMsg{err: fmt.Errorf("identifier init: %w", err), done: true})
		return err
	}

	total := job.TaskCount()
	for step := 1; !job.Done(); step++ {
		if err := job.Step(ctx); err != nil {
			program.Send(indexProgressMsg{err: fmt.Errorf("identifier step %d/%d: %w", step, total, err), done: true})
			return err
		}
		program.Send(indexProgressMsg{phase: "identifying", current: step, total: total})
	}

	report := job.Finalize(ctx)
	program.Send(indexProgressMsg{
		phase:   fmt.Sprintf("done: %d objects created, %d linked, %d ignored", report.ObjectsCreated, report.ObjectsLinked, report.ObjectsIgnored),
		current: total,
		total:   total,
		done:    true,
	})
	return nil
}

// seedEntries converts the walker's flat, absolute-path WalkEntry list
// into CatalogEntry rows keyed by a location-relative materialized path,
// standing in for the real catalog's insert-on-discovery behavior (the
// catalog database itself is out of scope, see internal/catalogstore).
func seedEntries(locationPath string, locationID int64, entries []catalogmodel.WalkEntry, store *catalogstore.MemStore) {
	var nextID int64 = 1
	dirIDs := make(map[string]int64) // absolute dir path -> assigned entry id
	for _, e := range entries {
		if e.Path == locationPath {
			continue // the location root itself is not a catalog entry
		}
		dir := filepath.Dir(e.Path)
		ext := strings.TrimPrefix(filepath.Ext(e.Path), ".")

		// entries is sorted lexicographically (walker.finalize), so a
		// directory's own entry is always assigned before its children are
		// visited here; a dir outside dirIDs is the location root itself,
		// which carries no entry and leaves ParentID nil (spec §3).
		var parentID *int64
		if id, ok := dirIDs[dir]; ok {
			parentID = &id
		}

		store.PutEntry(catalogmodel.CatalogEntry{
			ID:               nextID,
			LocationID:       locationID,
			MaterializedPath: materializedPath(locationPath, dir),
			Name:             filepath.Base(e.Path),
			Extension:        strings.ToLower(ext),
			IsDir:            e.IsDir,
			ParentID:         parentID,
			Inode:            e.Meta.Inode,
			Device:           e.Meta.Device,
			Size:             e.Meta.Size,
			CreatedAt:        e.Meta.CreatedAt,
			ModifiedAt:       e.Meta.ModifiedAt,
		})
		if e.IsDir {
			dirIDs[e.Path] = nextID
		}
		nextID++
	}
}

// addGitignoreRule folds a location-root .gitignore file, if present,
// into ruleSet as an extra RejectFilesByGlob rule (spec §3 supplemented
// features). Locations without a .gitignore are unaffected.
func addGitignoreRule(ruleSet rules.ByKind, locationPath string) (rules.ByKind, error) {
	gitignorePath := filepath.Join(locationPath, ".gitignore")
	if _, err := os.Stat(gitignorePath); err != nil {
		return ruleSet, nil
	}

	rule, err := rules.FromGitignoreFile("location .gitignore", gitignorePath)
	if err != nil {
		return nil, fmt.Errorf("loading .gitignore: %w", err)
	}
	ruleSet[rules.RejectFilesByGlob] = append(ruleSet[rules.RejectFilesByGlob], rule)
	return ruleSet, nil
}

// materializedPath renders a location-relative, "/"-wrapped directory
// path the way CatalogEntry.MaterializedPath expects it (spec §3).
func materializedPath(locationPath, absDir string) string {
	rel, err := filepath.Rel(locationPath, absDir)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel) + "/"
}
