package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const maxUploadBytes = 32 << 20

// @Title: Upload File
// @Route: POST /upload
// @Description: Store an uploaded file on local disk and echo its metadata
// @Response: {"message": "...", "file": {...}}
func (s *Service) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	src, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file was uploaded")
		return
	}
	defer src.Close()

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.logger.Failure("create upload directory", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	// Never trust the client's filename for the on-disk name
	stored := uuid.New().String() + filepath.Ext(header.Filename)
	dst, err := os.Create(filepath.Join(s.uploadDir, stored))
	if err != nil {
		s.logger.Failure("create upload file", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		s.logger.Failure("write upload file", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	s.logger.Info(fmt.Sprintf("Stored upload %s (%d bytes) as %s", header.Filename, size, stored))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "File uploaded successfully",
		"file": map[string]interface{}{
			"originalName": header.Filename,
			"storedName":   stored,
			"size":         size,
		},
	})
}
