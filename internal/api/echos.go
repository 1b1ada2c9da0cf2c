package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"echobox/internal/echo"
	"echobox/internal/media"
	"echobox/internal/models"
)

// Ingester turns an uploaded file into stored media. media.Pipeline is the
// production implementation.
type Ingester interface {
	Ingest(ctx context.Context, originalName string, src io.Reader) (*media.Media, error)
	MaxUploadBytes() int64
}

type EchoHandler struct {
	echos    *echo.Service
	ingester Ingester
}

func NewEchoHandler(echos *echo.Service, ingester Ingester) *EchoHandler {
	return &EchoHandler{echos: echos, ingester: ingester}
}

type FeedResponse struct {
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Results []*models.Echo `json:"results"`
}

type PendingResponse struct {
	Results []*models.Echo `json:"results"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Total   int            `json:"total"`
}

type MyEchosResponse struct {
	Results    []*models.Echo `json:"results"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int            `json:"total"`
	TotalPages int            `json:"totalPages"`
}

type EchoMessageResponse struct {
	Message string       `json:"message"`
	Echo    *models.Echo `json:"echo"`
}

// UpdateCaptionRequest leaves the caption unchanged when the field is absent
// or null. Length is checked by the echo service after sanitizing.
type UpdateCaptionRequest struct {
	Caption *string `json:"caption"`
}

// POST /api/v1/echos
func (h *EchoHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	file, fileHeader, cleanup, ok := readSingleFileUpload(w, r, audioFormField, h.ingester.MaxUploadBytes()+multipartOverheadBytes)
	if !ok {
		return
	}
	defer cleanup()
	defer file.Close()

	ingested, err := h.ingester.Ingest(r.Context(), fileHeader.Filename, file)
	if !handleIngestError(w, r, err) {
		return
	}

	var caption *string
	if raw := r.FormValue("caption"); strings.TrimSpace(raw) != "" {
		caption = &raw
	}

	created, err := h.echos.Create(r.Context(), echo.CreateParams{
		OwnerID:         userID,
		Media:           ingested,
		Caption:         caption,
		IsPublic:        formBool(r.FormValue("isPublic")),
		DeferVisibility: formBool(r.FormValue("goLiveLater")),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// GET /api/v1/echos/feed
func (h *EchoHandler) Feed(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	result, err := h.echos.Feed(r.Context(), page, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, FeedResponse{Page: result.Page, Limit: result.Limit, Results: result.Results})
}

// GET /api/v1/echos/pending
func (h *EchoHandler) Pending(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	result, err := h.echos.Pending(r.Context(), GetUserID(r), page, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PendingResponse{
		Results: result.Results,
		Page:    result.Page,
		Limit:   result.Limit,
		Total:   result.Total,
	})
}

// GET /api/v1/echos/my-echos
func (h *EchoHandler) Mine(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	result, err := h.echos.Mine(r.Context(), GetUserID(r), page, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MyEchosResponse{
		Results:    result.Results,
		Page:       result.Page,
		Limit:      result.Limit,
		Total:      result.Total,
		TotalPages: result.TotalPages,
	})
}

// POST /api/v1/echos/{echoID}/golive
func (h *EchoHandler) GoLive(w http.ResponseWriter, r *http.Request) {
	promoted, err := h.echos.GoLive(r.Context(), GetUserID(r), chi.URLParam(r, "echoID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EchoMessageResponse{Message: "Echo is now live.", Echo: promoted})
}

// PATCH /api/v1/echos/{echoID}/caption
func (h *EchoHandler) UpdateCaption(w http.ResponseWriter, r *http.Request) {
	var req UpdateCaptionRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	updated, err := h.echos.UpdateCaption(r.Context(), GetUserID(r), chi.URLParam(r, "echoID"), req.Caption)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EchoMessageResponse{Message: "Caption updated", Echo: updated})
}

// DELETE /api/v1/echos/{echoID}
func (h *EchoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.echos.Delete(r.Context(), GetUserID(r), chi.URLParam(r, "echoID")); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Echo deleted"})
}

// formBool treats only "true" (any case) as set.
func formBool(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "true")
}

// pageParams reads page and limit; invalid values fall back to the
// service defaults.
func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}
