package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"echobox/internal/media"
	"echobox/internal/mediaurl"
)

// MediaHandler serves audio kept in the local upload directory.
type MediaHandler struct {
	local *media.LocalStore
}

func NewMediaHandler(local *media.LocalStore) *MediaHandler {
	return &MediaHandler{local: local}
}

// GET /uploads/audio/{name}
func (h *MediaHandler) GetAudio(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if !mediaurl.ValidName(name) {
		notFound(w, "Media not found")
		return
	}

	file, err := h.local.Open(name)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, media.ErrInvalidPath) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		internalError(w)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		internalError(w)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", fmt.Sprintf("\"%s\"", name))
	w.Header().Set("Content-Type", contentType)

	disposition := "inline"
	if shouldForceDownload(r) {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=\"%s\"", disposition, sanitizeDispositionFilename(name)))

	http.ServeContent(w, r, name, info.ModTime(), file)
}

func sanitizeDispositionFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "download"
	}
	name = strings.ReplaceAll(name, "\\", "")
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\n", "")
	if name == "" {
		return "download"
	}
	return name
}

func shouldForceDownload(r *http.Request) bool {
	download := strings.TrimSpace(r.URL.Query().Get("download"))
	if download == "" {
		return false
	}

	force, err := strconv.ParseBool(download)
	if err != nil {
		return false
	}

	return force
}
