// Package rules implements the indexer rule engine (spec §4.1): a small,
// composable matrix of admission rules the walker applies to each visited
// path. Glob-kind rules are grounded on the teacher's
// internal/discovery.PatternFilter (same doublestar.Match call shape);
// children-present rules have no teacher analogue and are built directly
// off original_source/core/src/location/indexer/walk.rs's
// RuleKind::{Accept,Reject}IfChildrenDirectoriesArePresent.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind identifies one of the four rule shapes a location can be configured
// with (spec §3).
type Kind int

const (
	AcceptFilesByGlob Kind = iota
	RejectFilesByGlob
	AcceptIfChildrenDirectoriesArePresent
	RejectIfChildrenDirectoriesArePresent
)

func (k Kind) String() string {
	switch k {
	case AcceptFilesByGlob:
		return "AcceptFilesByGlob"
	case RejectFilesByGlob:
		return "RejectFilesByGlob"
	case AcceptIfChildrenDirectoriesArePresent:
		return "AcceptIfChildrenDirectoriesArePresent"
	case RejectIfChildrenDirectoriesArePresent:
		return "RejectIfChildrenDirectoriesArePresent"
	default:
		return "Unknown"
	}
}

// Rule is a single (kind, name, parameters) triple (spec §3). Exactly one
// of Glob, ChildNames, or matcher is populated, depending on Kind and
// construction path.
type Rule struct {
	Kind       Kind
	Name       string
	Glob       string
	ChildNames map[string]struct{}

	// matcher is an alternate reject-kind predicate sourced from a compiled
	// .gitignore file (see FromGitignoreFile in gitignore.go). When set, it
	// takes precedence over Glob for RejectFilesByGlob's Apply case and
	// reports true when the path matches an ignore pattern (i.e. should be
	// rejected).
	matcher func(path string) bool
}

// NewGlobRule builds an AcceptFilesByGlob or RejectFilesByGlob rule.
func NewGlobRule(kind Kind, name, glob string) Rule {
	return Rule{Kind: kind, Name: name, Glob: glob}
}

// NewChildrenRule builds an Accept/RejectIfChildrenDirectoriesArePresent
// rule from a set of child directory names.
func NewChildrenRule(kind Kind, name string, childNames []string) Rule {
	set := make(map[string]struct{}, len(childNames))
	for _, n := range childNames {
		set[n] = struct{}{}
	}
	return Rule{Kind: kind, Name: name, ChildNames: set}
}

// ByKind groups rules by Kind, the shape the walker consumes (spec §4.2:
// "rules_by_kind"). Within a kind, rules combine disjunctively for
// accept-kinds and conjunctively for reject-kinds (spec §9); that
// combination is the walker's responsibility, not Apply's -- Apply only
// ever evaluates one rule against one path.
type ByKind map[Kind][]Rule

// Group builds a ByKind mapping from a flat rule list.
func Group(rs []Rule) ByKind {
	m := make(ByKind)
	for _, r := range rs {
		m[r.Kind] = append(m[r.Kind], r)
	}
	return m
}

var logger = slog.Default().With("component", "rules")

// Apply evaluates rule against path and reports whether the rule votes to
// ADMIT (true). Reject-kind rules store a predicate that already returns
// true to KEEP (spec §3 data model note): the uniform-apply convention
// means callers never need to invert the result themselves.
//
// Glob evaluation matches against the full path string. Children-present
// rules stat path/childName for each configured name; a missing parent
// directory is returned as an error, per spec §4.1.
func Apply(ctx context.Context, r Rule, path string) (bool, error) {
	switch r.Kind {
	case AcceptFilesByGlob:
		matched, err := doublestar.Match(r.Glob, path)
		if err != nil {
			logger.Debug("invalid glob pattern", "pattern", r.Glob, "error", err)
			return false, nil
		}
		return matched, nil

	case RejectFilesByGlob:
		if r.matcher != nil {
			return !r.matcher(path), nil
		}
		matched, err := doublestar.Match(r.Glob, path)
		if err != nil {
			logger.Debug("invalid glob pattern", "pattern", r.Glob, "error", err)
			return true, nil
		}
		// Reject rules keep (true) when the glob does NOT match.
		return !matched, nil

	case AcceptIfChildrenDirectoriesArePresent:
		return anyChildPresent(ctx, path, r.ChildNames)

	case RejectIfChildrenDirectoriesArePresent:
		present, err := anyChildPresent(ctx, path, r.ChildNames)
		if err != nil {
			return false, err
		}
		// Reject rules keep (true) when none of the listed children are present.
		return !present, nil

	default:
		return false, fmt.Errorf("rules: unknown rule kind %v", r.Kind)
	}
}

func anyChildPresent(ctx context.Context, path string, names map[string]struct{}) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return false, fmt.Errorf("rules: stat parent %s: %w", path, err)
	}
	for name := range names {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}
		if _, err := os.Stat(path + string(os.PathSeparator) + name); err == nil {
			return true, nil
		}
	}
	return false, nil
}
