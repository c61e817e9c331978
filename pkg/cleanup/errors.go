package cleanup

import (
	"fmt"

	apperrors "github.com/tendant/simple-verification/pkg/errors"
)

// Category names a class of data the engine removes
type Category string

const (
	CategoryUnverifiedIdentities Category = "unverified_identities"
	CategoryExpiredRecords       Category = "expired_records"
)

// ErrInvalidDaysOld is returned for a negative age threshold
var ErrInvalidDaysOld = apperrors.New(apperrors.ErrCodeValidationFailed, "days_old must not be negative")

// CategoryError records a failed category of a sweep. Attempted is the
// number of rows the failed delete targeted, or -1 when it could not be counted.
type CategoryError struct {
	Category  Category
	Attempted int64
	Err       error
}

func (e CategoryError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Category, e.Err)
}

func (e CategoryError) Unwrap() error {
	return e.Err
}
