package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schemaproof/internal/solver"
)

// handleSolve accepts a multipart form whose "file" parts are solved as one
// corpus, in upload order. Evidence refers to the uploaded file names.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_BODY", "expected multipart form with file parts: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "NO_FILES", "no file parts")
		return
	}

	dir, err := os.MkdirTemp("", "schemaproof-solve-")
	if err != nil {
		writeEngineError(w, eris.Wrap(err, "api: create temp dir"))
		return
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	paths := make([]string, len(parts))
	names := make(map[string]string, len(parts))
	for i, fh := range parts {
		p := filepath.Join(dir, fmt.Sprintf("%04d-%s", i, filepath.Base(fh.Filename)))
		if err := saveUpload(fh, p); err != nil {
			writeEngineError(w, err)
			return
		}
		paths[i] = p
		names[p] = fh.Filename
	}

	opts := s.opts.Batch
	if sig, err := s.signatureOptions(r); err == nil {
		opts.Signature = sig
	} else {
		writeError(w, http.StatusBadRequest, "BAD_OPTION", err.Error())
		return
	}
	if r.URL.Query().Get("early_stop") == "false" {
		opts.EarlyStop = false
	}

	res, err := solver.NewBatch(s.det, opts).Solve(r.Context(), paths)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rename(res, names)
	writeJSON(w, http.StatusOK, res)
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	in, err := fh.Open()
	if err != nil {
		return eris.Wrap(err, "api: open upload")
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "api: create upload file")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return eris.Wrap(err, "api: write upload")
	}
	return eris.Wrap(out.Close(), "api: close upload")
}

// rename maps temp paths in the result back to upload names.
func rename(res *solver.BatchResult, names map[string]string) {
	for i, p := range res.FilesSkipped {
		res.FilesSkipped[i] = names[p]
	}
	for ci := range res.Columns {
		col := &res.Columns[ci]
		for ei := range col.Evidence {
			if n, ok := names[col.Evidence[ei].FilePath]; ok {
				col.Evidence[ei].FilePath = n
			}
		}
		for ki := range col.Contradictions {
			c := &col.Contradictions[ki]
			if n, ok := names[c.First.FilePath]; ok {
				c.First.FilePath = n
			}
			if n, ok := names[c.Second.FilePath]; ok {
				c.Second.FilePath = n
			}
		}
	}
}
