package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/upload-broker/pkg/uploadbroker"
)

// UploadHandler handles HTTP requests for the upload lifecycle
type UploadHandler struct {
	service uploadbroker.Service
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(service uploadbroker.Service) *UploadHandler {
	return &UploadHandler{service: service}
}

// Routes returns the routes for the upload lifecycle
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateUpload)
	r.Put("/{objectID}", h.ConfirmUpload)
	r.Get("/{objectID}/download", h.RequestDownload)

	return r
}

// UploadGrantResponse is the grant portion of a create-upload response
type UploadGrantResponse struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// CreateUploadResponse is the response body for a reserved upload
type CreateUploadResponse struct {
	Status string              `json:"status"`
	ID     string              `json:"id"`
	Upload UploadGrantResponse `json:"upload"`
}

// ConfirmUploadRequest is the request body for confirming an upload
type ConfirmUploadRequest struct {
	Status string `json:"status"`
}

// StatusResponse is the uniform success/failure acknowledgment body
type StatusResponse struct {
	Status string `json:"status"`
}

// DownloadResponse is the response body for an issued download grant
type DownloadResponse struct {
	Status      string    `json:"status"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CreateUpload reserves a new identifier and returns its upload grant
func (h *UploadHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	upload, err := h.service.CreateUpload(r.Context())
	if err != nil {
		slog.Error("Failed to create upload", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("Upload reserved", "object_id", upload.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, CreateUploadResponse{
		Status: "success",
		ID:     upload.ID,
		Upload: UploadGrantResponse{
			URL:       upload.Grant.URL,
			Fields:    upload.Grant.Fields,
			ExpiresAt: upload.Grant.ExpiresAt,
		},
	})
}

// ConfirmUpload marks an object as uploaded
func (h *UploadHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	objectID := chi.URLParam(r, "objectID")

	var req ConfirmUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderFailed(w, r)
		return
	}

	err := h.service.ConfirmUpload(r.Context(), uploadbroker.ConfirmUploadRequest{
		ObjectID: objectID,
		Status:   req.Status,
	})
	if err != nil {
		if isRequestError(err) {
			slog.Info("Upload confirmation rejected", "object_id", objectID, "error", err)
			renderFailed(w, r)
			return
		}
		slog.Error("Failed to confirm upload", "object_id", objectID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("Upload confirmed", "object_id", objectID)
	render.JSON(w, r, StatusResponse{Status: "success"})
}

// RequestDownload issues a download grant for a completed upload
func (h *UploadHandler) RequestDownload(w http.ResponseWriter, r *http.Request) {
	objectID := chi.URLParam(r, "objectID")

	var ttlSeconds int
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			renderFailed(w, r)
			return
		}
		ttlSeconds = parsed
	}

	grant, err := h.service.RequestDownload(r.Context(), uploadbroker.DownloadRequest{
		ObjectID:   objectID,
		TTLSeconds: ttlSeconds,
	})
	if err != nil {
		if isRequestError(err) {
			slog.Info("Download request rejected", "object_id", objectID, "error", err)
			renderFailed(w, r)
			return
		}
		slog.Error("Failed to issue download grant", "object_id", objectID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("Download grant issued", "object_id", objectID)
	render.JSON(w, r, DownloadResponse{
		Status:      "success",
		DownloadURL: grant.URL,
		ExpiresAt:   grant.ExpiresAt,
	})
}

// isRequestError reports whether the error is an expected, caller-facing
// outcome. Everything else is a backend failure and surfaces as a 500; the
// store's error text is never leaked to clients either way.
func isRequestError(err error) bool {
	return errors.Is(err, uploadbroker.ErrObjectNotFound) ||
		errors.Is(err, uploadbroker.ErrObjectNotReady) ||
		errors.Is(err, uploadbroker.ErrInvalidStatus) ||
		errors.Is(err, uploadbroker.ErrInvalidTTL)
}

func renderFailed(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, StatusResponse{Status: "failed"})
}
