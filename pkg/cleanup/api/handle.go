package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-verification/pkg/cleanup"
	"github.com/tendant/simple-verification/pkg/common"
	apperrors "github.com/tendant/simple-verification/pkg/errors"
	"github.com/tendant/simple-verification/pkg/scheduler"
)

// Handle serves the admin cleanup endpoints
type Handle struct {
	engine    *cleanup.Engine
	scheduler *scheduler.Scheduler
}

// NewHandle creates the handle. sched may be nil when scheduling is disabled;
// manual triggers then run the engine directly.
func NewHandle(engine *cleanup.Engine, sched *scheduler.Scheduler) *Handle {
	return &Handle{engine: engine, scheduler: sched}
}

func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/status", h.GetStatus)
	r.Get("/preview", h.GetPreview)
	r.Post("/trigger", h.PostTrigger)
	r.Post("/unverified-identities", h.PostUnverifiedIdentities)
	r.Post("/expired-records", h.PostExpiredRecords)
	return r
}

// GetStatus handles GET /status
func (h *Handle) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		common.RenderOK(w, r, http.StatusOK, "cleanup scheduler disabled", scheduler.Status{})
		return
	}
	common.RenderOK(w, r, http.StatusOK, "cleanup scheduler status", h.scheduler.Status())
}

// GetPreview handles GET /preview?days_old=
func (h *Handle) GetPreview(w http.ResponseWriter, r *http.Request) {
	daysOld := h.engine.DaysOld()
	if raw := r.URL.Query().Get("days_old"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			common.RenderError(w, r, apperrors.InvalidInput("days_old", "must be an integer"))
			return
		}
		daysOld = n
	}

	preview, err := h.engine.Preview(r.Context(), daysOld)
	if err != nil {
		common.RenderError(w, r, wrapStoreError(err))
		return
	}

	var resp PreviewResponse
	if err := copier.Copy(&resp, &preview); err != nil {
		common.RenderError(w, r, apperrors.InternalWrap(err, "failed to map preview"))
		return
	}
	common.RenderOK(w, r, http.StatusOK, "cleanup preview", resp)
}

// PostTrigger handles POST /trigger. Without days_old the run goes through
// the scheduler so it is recorded as the last run.
func (h *Handle) PostTrigger(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	var res cleanup.Result
	switch {
	case req.DaysOld == nil && h.scheduler != nil:
		res, _ = h.scheduler.TriggerNow(r.Context())
	default:
		daysOld := h.engine.DaysOld()
		if req.DaysOld != nil {
			daysOld = *req.DaysOld
		}
		var err error
		if res, err = h.engine.Trigger(r.Context(), daysOld); err != nil {
			common.RenderError(w, r, err)
			return
		}
	}

	message := "cleanup completed"
	if len(res.Errors) > 0 {
		message = "cleanup completed with errors"
	}
	common.RenderOK(w, r, http.StatusOK, message, toResultResponse(res))
}

// PostUnverifiedIdentities handles POST /unverified-identities
func (h *Handle) PostUnverifiedIdentities(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	daysOld := h.engine.DaysOld()
	if req.DaysOld != nil {
		daysOld = *req.DaysOld
	}

	n, err := h.engine.CleanUnverifiedIdentities(r.Context(), daysOld)
	if err != nil {
		common.RenderError(w, r, wrapStoreError(err))
		return
	}
	common.RenderOK(w, r, http.StatusOK, "unverified identities removed", CategoryResponse{
		Category: cleanup.CategoryUnverifiedIdentities,
		Deleted:  n,
	})
}

// PostExpiredRecords handles POST /expired-records
func (h *Handle) PostExpiredRecords(w http.ResponseWriter, r *http.Request) {
	counts, err := h.engine.CleanExpiredRecords(r.Context())
	if err != nil {
		common.RenderError(w, r, wrapStoreError(err))
		return
	}
	common.RenderOK(w, r, http.StatusOK, "expired records removed", CategoryResponse{
		Category: cleanup.CategoryExpiredRecords,
		Deleted:  counts.Total(),
		Email:    &counts.EmailRecords,
		Identity: &counts.IdentityRecords,
	})
}

func (h *Handle) decode(w http.ResponseWriter, r *http.Request) (DaysOldRequest, bool) {
	var req DaysOldRequest
	if err := common.DecodeJSON(r, &req, true); err != nil {
		common.RenderError(w, r, err)
		return req, false
	}
	return req, true
}

// wrapStoreError keeps typed errors and hides store failures behind INTERNAL_ERROR
func wrapStoreError(err error) error {
	if apperrors.GetCode(err) != apperrors.ErrCodeInternal {
		return err
	}
	return apperrors.InternalWrap(err, "cleanup failed")
}
