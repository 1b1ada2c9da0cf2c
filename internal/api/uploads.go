package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"echobox/internal/apperr"
	"echobox/internal/constants"
	"echobox/internal/media"
)

// multipartOverheadBytes covers form fields and boundaries on top of the
// audio part itself.
const multipartOverheadBytes = 1 << 20

const audioFormField = "audio"

var errMissingAudio = apperr.New(apperr.KindMissingMedia, "Audio file is required.")

// readSingleFileUpload parses a multipart body and returns the named file
// part. On failure it has already written the response.
func readSingleFileUpload(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	maxBytes int64,
) (multipart.File, *multipart.FileHeader, func(), bool) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	}

	err := r.ParseMultipartForm(1 << 20)
	if err != nil {
		if isBodyTooLargeError(err) {
			payloadTooLarge(w, "File exceeds maximum upload size")
		} else {
			badRequest(w, "Invalid multipart upload")
		}
		return nil, nil, func() {}, false
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}

	file, fileHeader, err := r.FormFile(field)
	if err != nil {
		writeAppError(w, r, errMissingAudio)
		cleanup()
		return nil, nil, func() {}, false
	}

	if fileHeader == nil || strings.TrimSpace(fileHeader.Filename) == "" {
		file.Close()
		cleanup()
		badRequest(w, "File name is required")
		return nil, nil, func() {}, false
	}

	return file, fileHeader, cleanup, true
}

func isBodyTooLargeError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}

// handleIngestError writes the response for a failed media ingest and
// reports whether the caller may continue.
func handleIngestError(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, media.ErrFileTooLarge):
		payloadTooLarge(w, "File exceeds maximum upload size")
	case errors.Is(err, media.ErrEmptyFile):
		writeAppError(w, r, errMissingAudio)
	case errors.Is(err, media.ErrDisallowedType), errors.Is(err, media.ErrExecutableFile):
		writeError(w, http.StatusBadRequest, constants.ErrCodeMediaInvalid, "Unsupported audio file type")
	default:
		writeAppError(w, r, apperr.Internal(err))
	}
	return false
}
