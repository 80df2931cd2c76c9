package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/passshare/internal/common"
	"github.com/dmitrijs2005/passshare/internal/server/models"
	"github.com/dmitrijs2005/passshare/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

type sessionRequest struct {
	Passkey  string `json:"passkey"`
	Username string `json:"username"`
}

type fileResponse struct {
	ID       int64  `json:"id"`
	FileName string `json:"fileName"`
}

func toFileResponse(f *models.File) fileResponse {
	return fileResponse{ID: f.ID, FileName: f.FileName}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.sessions.Create(r.Context(), req.Passkey, req.Username); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, sessionRequest{Passkey: req.Passkey, Username: req.Username})
}

func (h *Handler) joinSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.sessions.Join(r.Context(), req.Passkey, req.Username); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, req)
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.sessions.ListFiles(r.Context(), chi.URLParam(r, "passkey"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFileResponse(f))
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		if r.ContentLength > h.maxUploadBytes {
			writeText(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxUploadBytes))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeText(w, http.StatusBadRequest, "Expected a multipart upload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(common.UploadFormField)
	if err != nil {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("Missing %q form field", common.UploadFormField))
		return
	}
	defer file.Close()

	f, err := h.sessions.Upload(r.Context(),
		chi.URLParam(r, "passkey"), chi.URLParam(r, "userId"), header.Filename, file, header.Size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toFileResponse(f))
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	f, body, err := h.sessions.Download(r.Context(), chi.URLParam(r, "fileId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.FileName}))
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	if _, err := io.Copy(w, body); err != nil {
		h.log.Warn(r.Context(), "download interrupted", "file_id", f.ID, "error", err)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeText(w, http.StatusBadRequest, "Malformed JSON body")
		return false
	}
	return true
}

// fail maps service errors to status codes and user-facing text.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeText(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, services.ErrSessionNotFound):
		writeText(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, services.ErrFileNotFound):
		writeText(w, http.StatusNotFound, "File not found")
	case errors.Is(err, services.ErrDuplicatePasskey):
		writeText(w, http.StatusConflict, common.DuplicatePasskeyMessage)
	default:
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeText(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn(r.Context(), "write response", "error", err)
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
