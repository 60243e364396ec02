// Package gateway implements the byte-range-capable local HTTP Media
// Gateway (spec §4.7, §6): a stateless-per-request handler serving
// thumbnails and original files out of a data directory, consulting the
// metadata cache (internal/mediacache) to avoid a catalog round-trip on
// every request.
//
// Grounded directly on original_source/core/src/custom_uri.rs -- this
// file *is* the gateway; every status code, header, and the non-linux
// chunk cap come straight from it. No example repo in the pack implements
// byte-range HTTP serving (checked Azure-azure-storage-azcopy, the
// largest/most HTTP-heavy example -- its Content-Range/Accept-Ranges
// hits are generated Azure SDK response-model getters, not a server), and
// net/http.ServeContent cannot express the non-linux capping rule, so
// range parsing here is hand-written against net/http directly, the way
// the original hand-parses Range with the http_range crate instead of a
// framework helper.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/catalogstore"
	"github.com/nonlocal/indexd/internal/mediacache"
)

var logger = slog.Default().With("component", "gateway")

// nonLinuxCapBytes is the 400KiB response cap applied on non-linux
// platforms when a requested range exceeds a third of the file size
// (spec §4.7): "the embedded webview misbehaves with chunk capping" on
// linux, so only darwin/windows/etc. cap.
const nonLinuxCapBytes = 400 * 1024

// Gateway serves thumbnails and library files over HTTP.
type Gateway struct {
	DataDirectory string
	Store         catalogstore.Store
	Cache         *mediacache.Cache
}

// New builds a Gateway with a fresh metadata cache of the default
// capacity (spec §4.6).
func New(dataDirectory string, store catalogstore.Store) *Gateway {
	return &Gateway{
		DataDirectory: dataDirectory,
		Store:         store,
		Cache:         mediacache.New(mediacache.DefaultCapacity),
	}
}

// Handler returns an http.Handler dispatching on the leading path
// segment, mirroring handler()'s match on path.first() in custom_uri.rs.
func (g *Gateway) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		segments := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")

		var err error
		switch segments[0] {
		case "thumbnail":
			err = g.handleThumbnail(w, r, segments)
		case "file":
			err = g.handleFile(w, r, segments)
		default:
			err = catalogmodel.BadRequest("invalid operation")
		}

		if err != nil {
			writeError(w, err)
		}
	})
}

// cors applies the shared preflight handling (spec §4.7). It returns true
// when it has fully written the response (an OPTIONS preflight) and the
// caller should return immediately.
func cors(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodOptions {
		return false
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusOK)
	return true
}

func (g *Gateway) handleThumbnail(w http.ResponseWriter, r *http.Request, segments []string) error {
	if cors(w, r) {
		return nil
	}

	if len(segments) < 2 || segments[1] == "" {
		return catalogmodel.BadRequest("invalid number of parameters")
	}
	casID := segments[1]

	path := filepath.Join(g.DataDirectory, "thumbnails", casID+".webp")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return catalogmodel.NotFound("file")
		}
		return catalogmodel.IOError("opening thumbnail", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return catalogmodel.IOError("stat thumbnail", err)
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}
	_, err = io.Copy(w, f)
	return err
}

// ThumbnailExists reports whether a thumbnail already exists for casID,
// letting callers skip re-generation (supplemented from
// shallow_file_identifier_job.rs's thumbnail_exists check, which the
// distilled spec omits but the original performs before queuing
// thumbnail generation work).
func (g *Gateway) ThumbnailExists(casID string) bool {
	path := filepath.Join(g.DataDirectory, "thumbnails", casID+".webp")
	_, err := os.Stat(path)
	return err == nil
}

func (g *Gateway) handleFile(w http.ResponseWriter, r *http.Request, segments []string) error {
	if cors(w, r) {
		return nil
	}

	if len(segments) < 3 {
		return catalogmodel.BadRequest("invalid number of parameters: missing library_id")
	}
	libraryID, err := uuid.Parse(segments[1])
	if err != nil {
		return catalogmodel.BadRequest("invalid number of parameters: missing library_id")
	}
	entryID, err := strconv.ParseInt(segments[2], 10, 64)
	if err != nil {
		return catalogmodel.BadRequest("invalid number of parameters: missing file_path_id")
	}

	resolved, err := g.resolve(r.Context(), libraryID, entryID)
	if err != nil {
		return err
	}

	f, err := os.Open(resolved.AbsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return catalogmodel.NotFound("file")
		}
		return catalogmodel.IOError("opening file", err)
	}
	defer f.Close()

	mimeType, ok := mimeForExtension(strings.ToLower(resolved.Extension))
	if !ok {
		return catalogmodel.BadRequest("unsupported file type: missing MIME mapping")
	}

	info, err := f.Stat()
	if err != nil {
		return catalogmodel.IOError("stat file", err)
	}
	fileSize := info.Size()

	var rng *byteRange
	if r.Method == http.MethodGet {
		if h := r.Header.Get("Range"); h != "" {
			rng, err = parseRange(h, fileSize)
			if err != nil {
				return catalogmodel.RangeNotSatisfiable(err.Error())
			}
		}
	}

	if rng == nil {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Type", mimeType)
		w.Header().Set("Content-Length", strconv.FormatInt(fileSize, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		_, err = io.Copy(w, f)
		return err
	}

	length := rng.length
	if runtime.GOOS != "linux" && length > fileSize/3 {
		length = min64(fileSize-rng.start, nonLinuxCapBytes)
	}
	lastByte := rng.start + length - 1

	w.Header().Set("Connection", "Keep-Alive")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, lastByte, fileSize))
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
		return catalogmodel.IOError("seeking file", err)
	}
	_, err = io.CopyN(w, f, length)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// resolve looks up (libraryID, entryID) in the cache, falling back to the
// catalog store on a miss and populating the cache (spec §4.7).
func (g *Gateway) resolve(ctx context.Context, libraryID uuid.UUID, entryID int64) (mediacache.Value, error) {
	key := mediacache.Key{Library: libraryID, EntryID: entryID}
	if v, ok := g.Cache.Get(key); ok {
		return v, nil
	}

	entry, ok, err := g.Store.EntryByID(ctx, entryID)
	if err != nil {
		return mediacache.Value{}, catalogmodel.QueryError("looking up entry", err)
	}
	if !ok {
		return mediacache.Value{}, catalogmodel.NotFound("object")
	}

	loc, ok, err := g.Store.LocationByID(ctx, entry.LocationID)
	if err != nil {
		return mediacache.Value{}, catalogmodel.QueryError("looking up location", err)
	}
	if !ok {
		return mediacache.Value{}, catalogmodel.NotFound("library")
	}

	abs := filepath.Join(loc.Path, strings.TrimPrefix(entry.MaterializedPath, "/"), entry.Name)
	value := mediacache.Value{AbsPath: abs, Extension: entry.Extension}
	g.Cache.Put(key, value)
	return value, nil
}

// writeError translates a CoreError (or any other error) into the HTTP
// response shape spec §7 mandates: a status code and a plain-text body,
// with all 5xx bodies fixed to "Internal Server Error".
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/plain")

	var coreErr *catalogmodel.CoreError
	if !errors.As(err, &coreErr) {
		logger.Error("unclassified gateway error", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
		return
	}

	switch coreErr.Kind {
	case catalogmodel.KindBadRequest:
		logger.Error("bad request", "error", coreErr)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(coreErr.Error()))
	case catalogmodel.KindRangeNotSatisfiable:
		logger.Error("invalid range header", "error", coreErr)
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		_, _ = w.Write([]byte(coreErr.Error()))
	case catalogmodel.KindNotFound:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(fmt.Sprintf("Resource '%s' not found", coreErr.Resource)))
	default:
		logger.Error("internal gateway error", "error", coreErr)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
	}
}
