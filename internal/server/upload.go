package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pavelanni/examparser/internal/model"
	"github.com/pavelanni/examparser/internal/raster"
)

const multipartMemory = 32 << 20

// saveUpload validates the multipart "file" field and spools it into a
// per-request temp file. On failure it writes the error response and
// returns ok=false. The caller owns the returned cleanup.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request) (path string, cleanup func(), ok bool) {
	maxBytes := s.settings.MaxFileSizeMB << 20

	if r.ContentLength > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, model.KindInput, "file exceeds the upload size limit")
		return "", nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, model.KindInput, "file exceeds the upload size limit")
		} else {
			writeError(w, http.StatusBadRequest, model.KindInput, "malformed multipart request")
		}
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, model.KindInput, `multipart field "file" is required`)
		return "", nil, false
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/pdf" {
		writeError(w, http.StatusUnsupportedMediaType, model.KindInput, "only application/pdf uploads are accepted")
		return "", nil, false
	}
	if header.Size > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, model.KindInput, "file exceeds the upload size limit")
		return "", nil, false
	}

	head := make([]byte, 8)
	n, _ := io.ReadFull(file, head)
	if !raster.IsPDF(head[:n]) {
		writeError(w, http.StatusBadRequest, model.KindInput, "uploaded file is not a PDF")
		return "", nil, false
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, model.KindInput, "rewind upload")
		return "", nil, false
	}

	path = filepath.Join(os.TempDir(), "examparser-"+uuid.NewString()+".pdf")
	out, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.KindInput, "store upload")
		return "", nil, false
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, model.KindInput, "store upload")
		return "", nil, false
	}
	out.Close()

	return path, func() { os.Remove(path) }, true
}
