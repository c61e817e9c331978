package common

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-verification/pkg/errors"
	"github.com/tendant/simple-verification/pkg/utils"
)

// Response is the JSON envelope returned by every verification endpoint
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// ErrorBody is placed in Response.Errors for typed failures
type ErrorBody struct {
	Code    apperrors.ErrorCode    `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RenderOK writes a success envelope
func RenderOK(w http.ResponseWriter, r *http.Request, status int, message string, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, Response{Success: true, Message: message, Data: data})
}

// RenderError writes err with its typed code and the matching HTTP status.
// Foreign and internal errors are reported without their cause.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.MapErrorCodeToHTTPStatus(code)
	message := apperrors.GetMessage(err)
	details := apperrors.GetDetails(err)

	if code == apperrors.ErrCodeInternal {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
		details = nil
	}

	render.Status(r, status)
	render.JSON(w, r, Response{
		Success: false,
		Message: message,
		Errors:  ErrorBody{Code: code, Details: details},
	})
}

// RenderMessage writes a failure envelope with a fixed message and no code
func RenderMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, Response{Success: false, Message: message})
}

// DecodeJSON reads the request body into v and validates its struct tags.
// An empty body is accepted when allowEmpty is set.
func DecodeJSON(r *http.Request, v interface{}, allowEmpty bool) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return apperrors.InvalidInput("body", "malformed JSON")
		}
	}
	return Validate(v)
}

// Validate runs struct validation and converts failures to VALIDATION_FAILED
func Validate(v interface{}) error {
	err := utils.ValidateStruct(v)
	if err == nil {
		return nil
	}
	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		fields := make(map[string]interface{}, len(verr.Fields))
		for _, f := range verr.Fields {
			fields[f.Field] = f.Rule
		}
		return apperrors.ValidationFailed(map[string]interface{}{"fields": fields})
	}
	return apperrors.InvalidInput("body", err.Error())
}
