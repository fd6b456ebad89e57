package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/eunmann/csvload/internal/logctx"
	"github.com/eunmann/csvload/pkg/fileutil"
	"github.com/eunmann/csvload/pkg/humanfmt"
	"github.com/google/uuid"
)

var errNoFile = errors.New("no file found in upload")

// handleSubmit saves the uploaded CSV, imports it, and answers in plain text.
// Any failure is reported as 400 "Upload failed: ..."; re-uploading is the
// remedy, so nothing is retried.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logctx.FromContext(ctx)

	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	name, path, err := s.saveUpload(r)
	if err != nil {
		log.Warn().Err(err).Msg("upload rejected")
		uploadFailed(w, err)
		return
	}
	ctx = logctx.WithStr(ctx, "upload", name)

	if err := s.imports.Acquire(ctx, 1); err != nil {
		uploadFailed(w, fmt.Errorf("waiting for a previous import: %w", err))
		return
	}
	res, err := s.importer.ImportCSVData(ctx, path)
	s.imports.Release(1)
	if err != nil {
		logger := logctx.FromContext(ctx)
		logger.Error().Err(err).Str("path", path).Msg("import failed")
		uploadFailed(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "File %q uploaded successfully. Inserted %d of %d rows in %s.",
		name, res.Inserted, res.RowsRead, humanfmt.Duration(res.Elapsed))
}

func uploadFailed(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, "Upload failed: %v", err)
}

// saveUpload streams the UploadField part to a new file in the upload
// directory and returns the client's file name and the saved path.
func (s *Server) saveUpload(r *http.Request) (name, path string, err error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return "", "", fmt.Errorf("invalid Content-Type: %w", err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", "", errNoFile
		}
		if err != nil {
			return "", "", fmt.Errorf("read multipart body: %w", err)
		}
		if part.FormName() != UploadField || part.FileName() == "" {
			part.Close()
			continue
		}

		name = cleanFileName(part.FileName())
		path, err = s.writeUpload(name, part)
		part.Close()
		if err != nil {
			return "", "", err
		}
		return name, path, nil
	}
}

// writeUpload copies src into the upload directory. The file only appears
// under its final name once fully written.
func (s *Server) writeUpload(name string, src io.Reader) (string, error) {
	// The uuid prefix keeps concurrent uploads of the same name apart.
	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()+"-"+name)

	err := fileutil.WriteTmpThenMove(s.cfg.UploadDir, path, func(tmpPath string) error {
		f, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("create upload file: %w", err)
		}
		defer f.Close()

		if _, err := io.Copy(f, src); err != nil {
			return fmt.Errorf("save upload: %w", err)
		}
		return f.Close()
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// cleanFileName reduces a client-supplied name to its base name.
func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.csv"
	}
	return name
}
