package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-verification/pkg/common"
	"github.com/tendant/simple-verification/pkg/emailverification"
	apperrors "github.com/tendant/simple-verification/pkg/errors"
	"github.com/tendant/simple-verification/pkg/utils"
)

// InvalidTokenMessage is the only failure text a public verify call sees
const InvalidTokenMessage = "invalid or expired token"

// Handle serves the email verification endpoints
type Handle struct {
	service *emailverification.EmailVerificationService
}

// NewHandle creates a new email verification API handle
func NewHandle(service *emailverification.EmailVerificationService) *Handle {
	return &Handle{service: service}
}

// Handler returns the public routes relative to the mount point
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/request", h.RequestVerification)
	r.Post("/resend", h.ResendVerification)
	r.Post("/verify", h.VerifyEmail)
	return r
}

// AdminHandler returns the lookup routes. They reveal whether an address is
// registered, so mount them behind admin auth.
func AdminHandler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/status", h.GetVerificationStatus)
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

	common.RenderOK(w, r, http.StatusAccepted, "verification email sent", RequestResponse{
		ID:        result.Record.ID,
		ExpiresAt: result.Record.ExpiresAt,
	})
}

// ResendVerification handles POST /resend
func (h *Handle) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := common.DecodeJSON(r, &req, false); err != nil {
		common.RenderError(w, r, err)
		return
	}

	result, err := h.service.Resend(r.Context(), req.Email)
	if err != nil {
		common.RenderError(w, r, err)
		return
	}

	common.RenderOK(w, r, http.StatusAccepted, "verification email sent", RequestResponse{
		ID:        result.Record.ID,
		ExpiresAt: result.Record.ExpiresAt,
	})
}

// VerifyEmail handles POST /verify. Every token failure is reported with the
// same message so callers cannot tell which tokens exist.
func (h *Handle) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := common.DecodeJSON(r, &req, false); err != nil {
		common.RenderMessage(w, r, http.StatusBadRequest, InvalidTokenMessage)
		return
	}

	rec, err := h.service.Verify(r.Context(), req.Token)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeInternal) || !isStructured(err) {
			slog.Error("Failed to verify email", "error", err)
			common.RenderMessage(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		common.RenderMessage(w, r, http.StatusBadRequest, InvalidTokenMessage)
		return
	}

	var resp VerificationResponse
	if err := copier.Copy(&resp, rec); err != nil {
		common.RenderError(w, r, apperrors.InternalWrap(err, "failed to map verification"))
		return
	}
	common.RenderOK(w, r, http.StatusOK, "email verified", resp)
}

// GetVerificationStatus handles GET /status?email=
func (h *Handle) GetVerificationStatus(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if err := utils.ValidateVar(email, "required,email"); err != nil {
		common.RenderError(w, r, emailverification.ErrInvalidEmail)
		return
	}

	rec, err := h.service.Status(r.Context(), email)
	if err != nil {
		common.RenderError(w, r, err)
		return
	}

	var resp VerificationResponse
	if err := copier.Copy(&resp, rec); err != nil {
		common.RenderError(w, r, apperrors.InternalWrap(err, "failed to map verification"))
		return
	}
	common.RenderOK(w, r, http.StatusOK, "verification status", resp)
}

func isStructured(err error) bool {
	var e *apperrors.Error
	return errors.As(err, &e)
}
