package rules

import (
	"fmt"
	"os"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FromGitignoreFile compiles the .gitignore file at path into a single
// RejectFilesByGlob-kind Rule. Every catalog rule kind is glob- or
// children-based per spec §3; a .gitignore file is a convenient bulk
// source of RejectFilesByGlob rules, so it is compiled down to exactly
// that kind rather than introducing a fifth rule shape.
//
// Grounded on the teacher's internal/discovery.GitignoreMatcher, trimmed
// to single-file, single-directory use (no hierarchical hand-off across
// nested .gitignore files): a location typically has one root-level
// .gitignore, and subtree inheritance is already handled by the walker's
// ancestor back-fill and subtree rejection.
func FromGitignoreFile(name, path string) (Rule, error) {
	compiled, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return Rule{}, fmt.Errorf("rules: compiling gitignore %s: %w", path, err)
	}

	return Rule{
		Kind: RejectFilesByGlob,
		Name: name,
		matcher: func(candidate string) bool {
			isDir := false
			if fi, statErr := os.Stat(candidate); statErr == nil {
				isDir = fi.IsDir()
			}
			matchPath := candidate
			if isDir && !strings.HasSuffix(matchPath, "/") {
				matchPath += "/"
			}
			return compiled.MatchesPath(matchPath)
		},
	}, nil
}
