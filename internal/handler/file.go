package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/filekeep/filekeep-go/internal/middleware"
	"github.com/filekeep/filekeep-go/internal/model"
	"github.com/filekeep/filekeep-go/internal/service"
)

// uploadField is the multipart form field carrying the file.
const uploadField = "file"

// FileHandler handles HTTP requests for file operations.
type FileHandler struct {
	service   *service.FileService
	maxUpload int64
}

// NewFileHandler creates a new FileHandler. maxUpload caps the whole
// upload request body in bytes.
func NewFileHandler(svc *service.FileService, maxUpload int64) *FileHandler {
	return &FileHandler{service: svc, maxUpload: maxUpload}
}

// HandleUpload handles POST /files/upload requests. The file part is
// streamed into storage without buffering the form.
func (h *FileHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("expected a multipart/form-data body"))
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			writeJSON(w, http.StatusBadRequest, errorResponse("file is required"))
			return
		}
		if err != nil {
			writeUploadError(w, r, err)
			return
		}

		if part.FormName() != uploadField {
			part.Close()
			continue
		}

		resp, err := h.service.Upload(r.Context(), user, part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		if err != nil {
			writeUploadError(w, r, err)
			return
		}

		resp.Message = fmt.Sprintf("'%s' uploaded successfully", resp.Filename)
		writeJSON(w, http.StatusCreated, resp)
		return
	}
}

func writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("file too large"))
	case errors.Is(err, service.ErrFilenameRequired):
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrStorageWrite):
		slog.ErrorContext(r.Context(), "upload write failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse(service.ErrStorageWrite.Error()))
	default:
		internalError(w, r, err)
	}
}

// HandleList handles GET /files/list?filename=... requests.
func (h *FileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized")
		return
	}

	files, err := h.service.List(r.Context(), user, r.URL.Query().Get("filename"))
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// HandleDownload handles GET /files/download/{filename} requests.
func (h *FileHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized")
		return
	}

	f, rc, err := h.service.Download(r.Context(), user, filenameParam(r))
	if err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
			return
		}
		internalError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Filename}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		slog.WarnContext(r.Context(), "download interrupted", "file_id", f.ID, "error", err)
	}
}

// HandleDelete handles DELETE /files/delete/{filename} requests.
func (h *FileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized")
		return
	}

	filename := filenameParam(r)
	if err := h.service.Delete(r.Context(), user, filename); err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: fmt.Sprintf("File '%s' deleted successfully", filename)})
}

// filenameParam returns the decoded {filename} route parameter. chi matches
// against the raw path when the request escaped a reserved character.
func filenameParam(r *http.Request) string {
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath == "" {
		return name
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}
