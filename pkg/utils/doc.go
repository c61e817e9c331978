// Package utils holds the email helpers shared by the verification packages
// plus struct validation backed by go-playground/validator.
//
//	email := utils.NormalizeEmail("  Alice@Example.COM ") // "alice@example.com"
//	slog.Info("Verification requested", "email", utils.MaskEmail(email))
//
//	type rejectRequest struct {
//		Reason string `validate:"omitempty,min=3,max=500"`
//	}
//	if err := utils.ValidateStruct(req); err != nil {
//		// *utils.ValidationError lists each failed field
//	}
package utils
