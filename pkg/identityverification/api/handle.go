package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-verification/pkg/common"
	apperrors "github.com/tendant/simple-verification/pkg/errors"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/identityverification"
)

// Handle serves the admin identity verification endpoints.
// Authentication and the admin role check are applied by the caller.
type Handle struct {
	service *identityverification.IdentityVerificationService
}

func NewHandle(service *identityverification.IdentityVerificationService) *Handle {
	return &Handle{service: service}
}

// Handler returns the routes relative to the mount point
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListVerifications)
	r.Post("/request", h.RequestVerification)
	r.Post("/approve", h.ApproveVerification)
	r.Post("/reject", h.RejectVerification)
	r.Get("/{id}", h.GetVerification)
	r.Post("/{id}/cancel", h.CancelVerification)
	return r
}

// RequestVerification handles POST /request
func (h *Handle) RequestVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := common.DecodeJSON(r, &req, false); err != nil {
		common.RenderError(w, r, err)
		return
	}

	result, err := h.service.Request(r.Context(), req.Email)
	if err != nil {
		common.RenderError(w, r, err)
		return
	}
	h.renderRecord(w, r, http.StatusCreated, "identity verification requested", &result.Record)
}

// ApproveVerification handles POST /approve
func (h *Handle) ApproveVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := common.DecodeJSON(r, &req, false); err != nil {
		common.RenderError(w, r, err)
		return
	}

	rec, err := h.service.Approve(r.Context(), req.Email)
	if err != nil {
		common.RenderError(w, r, err)
		return
	}
	h.renderRecord(w, r, http.StatusOK, "identity verified", rec)
}

// RejectVerification handles POST /reject
func (h *Handle) RejectVerification(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := common.DecodeJSON(r, &req, false); err != nil {
		common.RenderError(w, r, err)
		return
	}

	rec, err := h.service.Reject(r.Context(), req.Email, req.Reason)
	if err != nil {
		common.RenderError(w, r, err)
		return
	}
	h.renderRecord(w, r, http.StatusOK, "identity verification rejected", rec)
}

// CancelVerification handles POST /{id}/cancel
func (h *Handle) CancelVerification(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		common.RenderError(w, r, err)
		return
	}
	h.renderRecord(w, r, http.StatusOK, "identity verification cancelled", rec)
}

// GetVerification handles GET /{id}
func (h *Handle) GetVerification(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.RenderError(w, r, err)
		return
	}
	h.renderRecord(w, r, http.StatusOK, "identity verification", rec)
}

// ListVerifications handles GET /?status=&page=&page_size=
func (h *Handle) ListVerifications(w http.ResponseWriter, r *http.Request) {
	q := ListQuery{Status: r.URL.Query().Get("status")}
	var err error
	if q.Page, err = intParam(r, "page"); err != nil {
		common.RenderError(w, r, err)
		return
	}
	if q.PageSize, err = intParam(r, "page_size"); err != nil {
		common.RenderError(w, r, err)
		return
	}
	if err := common.Validate(&q); err != nil {
		common.RenderError(w, r, err)
		return
	}

	var status *expiringtoken.Status
	if q.Status != "" {
		s := expiringtoken.Status(q.Status)
		status = &s
	}

	result, err := h.service.List(r.Context(), status, q.Page, q.PageSize)
	if err != nil {
		common.RenderError(w, r, err)
		return
	}

	resp := ListResponse{
		Items:    make([]VerificationResponse, 0, len(result.Items)),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}
	if err := copier.Copy(&resp.Items, &result.Items); err != nil {
		common.RenderError(w, r, apperrors.InternalWrap(err, "failed to map verifications"))
		return
	}
	common.RenderOK(w, r, http.StatusOK, "identity verifications", resp)
}

func (h *Handle) renderRecord(w http.ResponseWriter, r *http.Request, status int, message string, rec *identityverification.Record) {
	var resp VerificationResponse
	if err := copier.Copy(&resp, rec); err != nil {
		common.RenderError(w, r, apperrors.InternalWrap(err, "failed to map verification"))
		return
	}
	common.RenderOK(w, r, status, message, resp)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.RenderError(w, r, apperrors.InvalidInput("id", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput(name, "must be an integer")
	}
	return n, nil
}
