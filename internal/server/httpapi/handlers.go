// Package httpapi exposes the sync service over HTTP. Routing and
// middleware live here; all shift semantics live in reconcile.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/logging"
)

// ShiftService is the surface of the reconcile service the handlers call.
type ShiftService interface {
	OpenShift(ctx context.Context, subjectID string, lat, lng float64) (*domain.OpenShiftResponse, error)
	CloseShift(ctx context.Context, subjectID, shiftID string, sealed []byte) (*domain.CloseShiftResponse, error)
	Status(ctx context.Context, subjectID string) (*domain.ShiftStatusResponse, error)
}

// Handler serves the shift sync endpoints.
type Handler struct {
	service ShiftService
	log     logging.Logger
}

func NewHandler(service ShiftService, log logging.Logger) *Handler {
	return &Handler{service: service, log: log.With("module", "httpapi")}
}

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := SubjectIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing subject")
		return
	}

	var req domain.OpenShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	resp, err := h.service.OpenShift(r.Context(), subjectID, req.Latitude, req.Longitude)
	if err != nil {
		h.fail(w, r, "open shift", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := SubjectIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing subject")
		return
	}

	var req domain.CloseShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.ShiftID == "" {
		writeJSONError(w, http.StatusBadRequest, "shift_id is required")
		return
	}

	sealed, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, &domain.CloseShiftResponse{
			Code:    domain.CodeCorrupted,
			Message: "payload is not valid base64",
			ShiftID: req.ShiftID,
		})
		return
	}

	resp, err := h.service.CloseShift(r.Context(), subjectID, req.ShiftID, sealed)
	if err != nil {
		h.fail(w, r, "close shift", err)
		return
	}

	status := http.StatusOK
	if resp.Code == domain.CodeValidationRejected || resp.Code == domain.CodeCorrupted {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := SubjectIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing subject")
		return
	}

	resp, err := h.service.Status(r.Context(), subjectID)
	if err != nil {
		h.fail(w, r, "shift status", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// fail maps service errors to wire responses. Ownership failures become
// 401; everything else is a retry-eligible 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, domain.ErrUnauthorized) {
		writeJSON(w, http.StatusUnauthorized, &domain.CloseShiftResponse{
			Code:    domain.CodeUnauthorized,
			Message: "not your shift",
		})
		return
	}
	h.log.Error(r.Context(), op+" failed", "error", err.Error())
	writeJSON(w, http.StatusInternalServerError, &domain.CloseShiftResponse{
		Code:    domain.CodeTransientError,
		Message: "temporary failure, retry later",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		return
	}
}
