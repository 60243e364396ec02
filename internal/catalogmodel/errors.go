// Package catalogmodel defines the data types shared by every subsystem of
// the indexing core: locations, catalog entries, objects, and the error
// kinds the core surfaces to its callers. It has no business logic of its
// own, only types and small helpers, mirroring the zero-dependency shape of
// the teacher's internal/pipeline package.
package catalogmodel

import "fmt"

// Kind distinguishes the error categories the core surfaces, matching the
// taxonomy in spec §7.
type Kind int

const (
	KindBadRequest Kind = iota
	KindNotFound
	KindRangeNotSatisfiable
	KindIO
	KindQuery
	KindHTTP
	KindJobEarlyFinish
	KindFilePath
)

// CoreError is the error type returned by the walker, identifier, and
// gateway for any failure that must be translated into a caller-visible
// status. It carries a Kind so callers (notably the gateway, see
// internal/gateway) can map it to an HTTP status without string matching.
type CoreError struct {
	Kind     Kind
	Resource string // populated for KindNotFound: "library", "object", "file"
	Name     string // populated for KindJobEarlyFinish
	Reason   string // populated for KindJobEarlyFinish
	Msg      string
	Err      error
}

func (e *CoreError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("resource %q not found", e.Resource)
	case KindJobEarlyFinish:
		return fmt.Sprintf("job %q finished early: %s", e.Name, e.Reason)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Msg
	}
}

func (e *CoreError) Unwrap() error { return e.Err }

// BadRequest builds a KindBadRequest error.
func BadRequest(msg string) *CoreError {
	return &CoreError{Kind: KindBadRequest, Msg: msg}
}

// NotFound builds a KindNotFound error for the named resource ("library",
// "object", or "file" per spec §7).
func NotFound(resource string) *CoreError {
	return &CoreError{Kind: KindNotFound, Resource: resource}
}

// RangeNotSatisfiable builds a KindRangeNotSatisfiable error.
func RangeNotSatisfiable(msg string) *CoreError {
	return &CoreError{Kind: KindRangeNotSatisfiable, Msg: msg}
}

// IOError wraps an underlying filesystem error not otherwise classified as
// NotFound.
func IOError(msg string, err error) *CoreError {
	return &CoreError{Kind: KindIO, Msg: msg, Err: err}
}

// QueryError wraps an underlying catalog store failure.
func QueryError(msg string, err error) *CoreError {
	return &CoreError{Kind: KindQuery, Msg: msg, Err: err}
}

// HTTPErr wraps a response-construction failure.
func HTTPErr(msg string, err error) *CoreError {
	return &CoreError{Kind: KindHTTP, Msg: msg, Err: err}
}

// JobEarlyFinish builds the pipeline's graceful-stop error (spec §4.5,
// §7): either nothing to do, or an invariant broken mid-run.
func JobEarlyFinish(name, reason string) *CoreError {
	return &CoreError{Kind: KindJobEarlyFinish, Name: name, Reason: reason}
}

// FilePathErrorKind distinguishes the two ways a sub-path can be invalid
// (spec §7's FilePathError).
type FilePathErrorKind int

const (
	FilePathNotUnderLocation FilePathErrorKind = iota
	FilePathNotADirectory
)

// FilePathError reports that a caller-supplied sub-path is not usable as a
// scope for a walk or identifier run.
type FilePathError struct {
	SubKind FilePathErrorKind
	Path    string
}

func (e *FilePathError) Error() string {
	switch e.SubKind {
	case FilePathNotADirectory:
		return fmt.Sprintf("sub-path %q is not a directory", e.Path)
	default:
		return fmt.Sprintf("sub-path %q is not under the location", e.Path)
	}
}
