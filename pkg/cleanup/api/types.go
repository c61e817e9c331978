package api

import (
	"time"

	"github.com/tendant/simple-verification/pkg/cleanup"
)

// DaysOldRequest is the optional body of trigger endpoints
type DaysOldRequest struct {
	DaysOld *int `json:"days_old,omitempty" validate:"omitempty,gte=0,lte=3650"`
}

type CategoryErrorResponse struct {
	Category  cleanup.Category `json:"category"`
	Attempted int64            `json:"attempted"`
	Error     string           `json:"error"`
}

// ResultResponse is the body of a completed run
type ResultResponse struct {
	UnverifiedIdentitiesDeleted int64                   `json:"unverified_identities_deleted"`
	ExpiredRecordsDeleted       int64                   `json:"expired_records_deleted"`
	Total                       int64                   `json:"total"`
	Errors                      []CategoryErrorResponse `json:"errors,omitempty"`
	StartedAt                   time.Time               `json:"started_at"`
	FinishedAt                  time.Time               `json:"finished_at"`
}

type PreviewResponse struct {
	UnverifiedIdentities   int64     `json:"unverified_identities"`
	ExpiredEmailRecords    int64     `json:"expired_email_records"`
	ExpiredIdentityRecords int64     `json:"expired_identity_records"`
	Total                  int64     `json:"total"`
	DaysOld                int       `json:"days_old"`
	CreatedBefore          time.Time `json:"created_before"`
}

type CategoryResponse struct {
	Category cleanup.Category `json:"category"`
	Deleted  int64            `json:"deleted"`
	Email    *int64           `json:"expired_email_records,omitempty"`
	Identity *int64           `json:"expired_identity_records,omitempty"`
}

func toResultResponse(res cleanup.Result) ResultResponse {
	out := ResultResponse{
		UnverifiedIdentitiesDeleted: res.UnverifiedIdentitiesDeleted,
		ExpiredRecordsDeleted:       res.ExpiredRecordsDeleted,
		Total:                       res.Total,
		StartedAt:                   res.StartedAt,
		FinishedAt:                  res.FinishedAt,
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, CategoryErrorResponse{Category: e.Category, Attempted: e.Attempted, Error: e.Err.Error()})
	}
	return out
}
