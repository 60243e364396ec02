package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/catalogstore"
	"github.com/nonlocal/indexd/internal/testutil"
)

func newTestGateway(t *testing.T) (*Gateway, string, catalogmodel.Location, catalogmodel.CatalogEntry) {
	t.Helper()
	dataDir := t.TempDir()
	libRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "thumbnails"), 0o755))

	content := make([]byte, 3000)
	for i := range content {
		content[i] = byte(i % 256)
	}
	require.NoError(t, os.WriteFile(filepath.Join(libRoot, "song.mp3"), content, 0o644))

	store := catalogstore.NewMemStore()
	loc := catalogmodel.Location{ID: 1, Path: libRoot, PublicID: uuid.New()}
	store.PutLocation(loc)
	entry := catalogmodel.CatalogEntry{ID: 42, LocationID: 1, MaterializedPath: "/", Name: "song.mp3", Extension: "mp3"}
	store.PutEntry(entry)

	return New(dataDir, store), libRoot, loc, entry
}

func TestHandleFileFullBodyWithoutRange(t *testing.T) {
	gw, _, loc, entry := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/file/" + loc.PublicID.String() + "/42")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	require.Equal(t, "3000", resp.Header.Get("Content-Length"))
	_ = entry
}

func TestHandleFileRangeReturnsPartialContent(t *testing.T) {
	gw, _, loc, _ := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/file/"+loc.PublicID.String()+"/42", nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=100-199")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	require.Equal(t, "bytes 100-199/3000", resp.Header.Get("Content-Range"))
	require.Equal(t, "100", resp.Header.Get("Content-Length"))
	require.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
}

func TestHandleFileUnknownEntryIsNotFound(t *testing.T) {
	gw, _, loc, _ := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/file/" + loc.PublicID.String() + "/999")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	testutil.Golden(t, "file_not_found_body", body)
}

func TestHandleFileBadUUIDIsBadRequest(t *testing.T) {
	gw, _, _, _ := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/file/not-a-uuid/42")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleFileMultiRangeIsRangeNotSatisfiable(t *testing.T) {
	gw, _, loc, _ := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/file/"+loc.PublicID.String()+"/42", nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=0-10,20-30")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
}

func TestHandleThumbnailServesFile(t *testing.T) {
	gw, _, _, _ := newTestGateway(t)
	thumbPath := filepath.Join(gw.DataDirectory, "thumbnails", "abc123.webp")
	require.NoError(t, os.WriteFile(thumbPath, []byte("fake webp bytes"), 0o644))
	require.True(t, gw.ThumbnailExists("abc123"))

	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/thumbnail/abc123")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/webp", resp.Header.Get("Content-Type"))
}

func TestHandleThumbnailMissingIsNotFound(t *testing.T) {
	gw, _, _, _ := newTestGateway(t)
	require.False(t, gw.ThumbnailExists("missing"))

	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/thumbnail/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownOperationIsBadRequest(t *testing.T) {
	gw, _, _, _ := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/bogus/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCorsPreflightRequest(t *testing.T) {
	gw, _, loc, _ := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/file/"+loc.PublicID.String()+"/42", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "GET, HEAD, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}
