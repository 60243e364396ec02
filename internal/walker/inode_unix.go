//go:build !windows

package walker

import (
	"os"
	"syscall"
	"time"

	"github.com/nonlocal/indexd/internal/catalogmodel"
)

// metadataFor derives EntryMetadata from a os.FileInfo, pulling inode and
// device numbers out of the platform Stat_t the way the teacher's
// internal/discovery package never needed to (it only hashed content, not
// device identity) -- this is grounded directly on
// original_source/core/src/location/indexer/walk.rs's use of
// MetadataExt::ino()/dev() on unix.
func metadataFor(path string, info os.FileInfo) (catalogmodel.EntryMetadata, error) {
	var ino, dev uint64
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		ino = uint64(sys.Ino)
		dev = uint64(sys.Dev)
	}
	return catalogmodel.EntryMetadata{
		Inode:      ino,
		Device:     dev,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
		CreatedAt:  birthTime(info),
	}, nil
}

// birthTime returns ModTime on every non-windows platform: linux's struct
// stat has no creation timestamp, and the birth time that darwin and bsd
// Stat_t expose is not read here.
func birthTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
