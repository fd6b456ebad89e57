package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eunmann/csvload/pkg/importer"
	"github.com/eunmann/csvload/pkg/recordstore"
	"github.com/stretchr/testify/require"
)

const peopleCSV = `Name,Surname,Initials,Age,DateOfBirth
Alice,Smith,A.S,30,01/01/1995
Bob,Jones,B.J,40,15/06/1984
Charlie,Brown,C.B,50,05/05/1974
`

func newTestServer(t *testing.T) (*httptest.Server, Config) {
	t.Helper()
	dir := t.TempDir()

	store := recordstore.DefaultConfig(filepath.Join(dir, "people.db"))
	store.CacheSizeKB = 16 * 1024

	cfg := DefaultConfig(":0", store)
	cfg.UploadDir = filepath.Join(dir, "uploads")
	cfg.PublicDir = filepath.Join(dir, "public")
	cfg.Import = importer.Options{}
	require.NoError(t, os.MkdirAll(cfg.PublicDir, 0o755))

	ts := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(ts.Close)
	return ts, cfg
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, url, contentType string, body io.Reader) (int, string) {
	t.Helper()
	resp, err := http.Post(url, contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestSubmit_ImportsUpload(t *testing.T) {
	ts, cfg := newTestServer(t)

	body, ct := multipartBody(t, UploadField, "people.csv", peopleCSV)
	status, text := post(t, ts.URL+"/submit", ct, body)

	require.Equal(t, http.StatusOK, status, text)
	require.Contains(t, text, `File "people.csv" uploaded successfully`)
	require.Contains(t, text, "Inserted 3 of 3 rows")

	rows, err := recordstore.ReadRows(context.Background(), cfg.Store.DBPath)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	saved, err := os.ReadDir(cfg.UploadDir)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.True(t, strings.HasSuffix(saved[0].Name(), "-people.csv"))
}

func TestSubmit_SameFileTwice(t *testing.T) {
	ts, cfg := newTestServer(t)

	for i := 0; i < 2; i++ {
		body, ct := multipartBody(t, UploadField, "people.csv", peopleCSV)
		status, text := post(t, ts.URL+"/submit", ct, body)
		require.Equal(t, http.StatusOK, status, text)
	}

	rows, err := recordstore.ReadRows(context.Background(), cfg.Store.DBPath)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	saved, err := os.ReadDir(cfg.UploadDir)
	require.NoError(t, err)
	require.Len(t, saved, 2)
}

func TestSubmit_ImportFailure(t *testing.T) {
	ts, _ := newTestServer(t)

	body, ct := multipartBody(t, UploadField, "bad.csv", "Name,Surname\nAlice,Smith\n")
	status, text := post(t, ts.URL+"/submit", ct, body)

	require.Equal(t, http.StatusBadRequest, status)
	require.True(t, strings.HasPrefix(text, "Upload failed: "), text)
	require.Contains(t, text, "parse error")
}

func TestSubmit_NotMultipart(t *testing.T) {
	ts, _ := newTestServer(t)

	status, text := post(t, ts.URL+"/submit", "text/csv", strings.NewReader(peopleCSV))
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, text, "Upload failed: invalid Content-Type")
}

func TestSubmit_MissingField(t *testing.T) {
	ts, _ := newTestServer(t)

	body, ct := multipartBody(t, "some_other_field", "people.csv", peopleCSV)
	status, text := post(t, ts.URL+"/submit", ct, body)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Upload failed: no file found in upload", text)
}

func TestSubmit_TooLarge(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(":0", recordstore.DefaultConfig(filepath.Join(dir, "people.db")))
	cfg.UploadDir = filepath.Join(dir, "uploads")
	cfg.MaxUploadBytes = 64

	ts := httptest.NewServer(New(cfg).Handler())
	defer ts.Close()

	body, ct := multipartBody(t, UploadField, "people.csv", strings.Repeat(peopleCSV, 10))
	status, text := post(t, ts.URL+"/submit", ct, body)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, text, "Upload failed")
}

func TestStaticFiles(t *testing.T) {
	ts, cfg := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PublicDir, "index.html"), []byte("<h1>upload</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PublicDir, "app.js"), []byte("console.log(1)"), 0o644))

	for path, want := range map[string]string{"/": "<h1>upload</h1>", "/app.js": "console.log(1)"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Equal(t, want, string(b))
	}

	resp, err := http.Get(ts.URL + "/missing.js")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCleanFileName(t *testing.T) {
	tests := map[string]string{
		"people.csv":               "people.csv",
		"../../etc/passwd":         "passwd",
		`C:\Users\me\people.csv`:   "people.csv",
		"/":                        "upload.csv",
		"dir/nested/people.csv.gz": "people.csv.gz",
	}
	for in, want := range tests {
		require.Equal(t, want, cleanFileName(in), in)
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig("127.0.0.1:0", recordstore.DefaultConfig(filepath.Join(dir, "people.db")))
	cfg.UploadDir = filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(cfg.UploadDir, 0o755))
	stale := filepath.Join(cfg.UploadDir, "abc-people.csv.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("Name"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg).ListenAndServe(ctx) }()

	cancel()
	require.NoError(t, <-done)
	require.NoFileExists(t, stale)
}
