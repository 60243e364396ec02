package catalogmodel

import (
	"time"

	"github.com/google/uuid"
)

// Location is a user-registered root directory being indexed (spec §3).
// Treated as immutable while referenced; created at registration and
// destroyed at removal by a collaborator outside this core.
type Location struct {
	ID       int64
	Path     string // absolute
	PublicID uuid.UUID
}

// ObjectKind enumerates the coarse content categories the metadata
// assembler derives from a file's extension (spec §4.4).
type ObjectKind int

const (
	KindUnknown ObjectKind = iota
	KindAudio
	KindVideo
	KindImage
	KindDocument
)

// CatalogEntry is one record per path discovered under a Location
// (spec §3, "file_path"). Children of a directory entry carry that
// directory's ID as ParentID; the Location root has ParentID == nil.
type CatalogEntry struct {
	ID                int64
	LocationID        int64
	MaterializedPath  string // location-relative POSIX path of the containing dir, "/"-wrapped
	Name              string
	Extension         string // lowercase, no leading dot
	IsDir             bool
	ParentID          *int64
	ObjectID          *[]byte // nil until linked to an Object
	CasID             *string
	Inode             uint64
	Device            uint64
	Size              int64
	CreatedAt         time.Time
	ModifiedAt        time.Time
	PublicID          []byte
}

// OrphanFilter narrows the orphan queries the identifier's Cursor issues
// (spec §4.3) to one of two scopes: deep, via a materialized-path prefix,
// or shallow, via an exact ParentID match. Grounded on
// file_identifier_job.rs's orphan_path_filters (materialized_path
// starts_with) versus shallow_file_identifier_job.rs's (parent_id
// equals). The zero value matches every orphan in the location.
type OrphanFilter struct {
	SubPathPrefix string // deep scope: materialized-path prefix, "" means unrestricted
	Shallow       bool   // true selects the parent_id equality scope below
	ParentEntryID int64  // shallow scope: 0 means the location root (ParentID == nil)
}

// Object is a logical file identity shared by every CatalogEntry with the
// same content (spec §3). Distinct entries sharing an identical CasID
// should link to the same Object.
type Object struct {
	PublicID  []byte
	Kind      ObjectKind
	Size      int64
	CreatedAt time.Time
}

// WalkEntry is the in-memory transient produced by the walker (spec §3).
// The walker de-duplicates (a map keyed by Path) and sorts entries by
// Path alone; the type has no equality or hash methods of its own.
type WalkEntry struct {
	Path  string // absolute
	IsDir bool
	Meta  EntryMetadata
}

// EntryMetadata is the filesystem metadata tuple the walker records for
// each admitted entry (spec §3, §4.2).
type EntryMetadata struct {
	Inode      uint64
	Device     uint64
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// extensionKind is the allow-list mapping file extensions to ObjectKind,
// used by the metadata assembler (spec §4.4). It holds the same
// extensions as the gateway's MIME allow-list (spec §6) but is a separate
// table, mapping each to a coarse kind rather than a MIME type.
var extensionKind = map[string]ObjectKind{
	"aac": KindAudio, "mid": KindAudio, "midi": KindAudio, "mp3": KindAudio,
	"m4a": KindAudio, "oga": KindAudio, "opus": KindAudio, "wav": KindAudio,
	"weba": KindAudio,
	"avi": KindVideo, "mp4": KindVideo, "m4v": KindVideo, "mpeg": KindVideo,
	"ogv": KindVideo, "ts": KindVideo, "webm": KindVideo, "3gp": KindVideo,
	"3g2": KindVideo, "mov": KindVideo,
	"avif": KindImage, "bmp": KindImage, "gif": KindImage, "ico": KindImage,
	"jpeg": KindImage, "jpg": KindImage, "png": KindImage, "svg": KindImage,
	"tif": KindImage, "tiff": KindImage, "webp": KindImage,
	"pdf": KindDocument,
}

// KindForExtension derives an ObjectKind from a lowercase, dot-stripped
// file extension, yielding KindUnknown for anything not on the allow-list
// (spec §4.4).
func KindForExtension(ext string) ObjectKind {
	if k, ok := extensionKind[ext]; ok {
		return k
	}
	return KindUnknown
}
