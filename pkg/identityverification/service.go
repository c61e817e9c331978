package identityverification

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-verification/pkg/errors"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/notification"
	"github.com/tendant/simple-verification/pkg/utils"
)

const (
	// DefaultTokenExpiry is how long an identity verification request stays open
	DefaultTokenExpiry = 24 * time.Hour
	// DefaultMaxAttempts is the number of failed approvals before the request expires
	DefaultMaxAttempts = 3

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Notifier tells the subject about an admin decision.
// *notification.NotificationManager satisfies it.
type Notifier interface {
	Send(noticeType notification.NoticeType, data notification.NotificationData) error
}

// IdentityVerificationService runs the admin-approved verification workflow
type IdentityVerificationService struct {
	repo        Repository
	identities  identity.Repository
	notifier    Notifier
	tokenTTL    time.Duration
	maxAttempts int
	now         func() time.Time
}

// Option configures the service
type Option func(*IdentityVerificationService)

// WithTokenExpiry sets how long a request stays open
func WithTokenExpiry(expiry time.Duration) Option {
	return func(s *IdentityVerificationService) {
		if expiry > 0 {
			s.tokenTTL = expiry
		}
	}
}

// WithMaxAttempts sets the failed-approval limit
func WithMaxAttempts(n int) Option {
	return func(s *IdentityVerificationService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithNotifier sends approval and rejection notices
func WithNotifier(n Notifier) Option {
	return func(s *IdentityVerificationService) {
		s.notifier = n
	}
}

// WithNow overrides the clock
func WithNow(now func() time.Time) Option {
	return func(s *IdentityVerificationService) {
		s.now = now
	}
}

// NewIdentityVerificationService creates a new identity verification service
func NewIdentityVerificationService(repo Repository, identities identity.Repository, opts ...Option) *IdentityVerificationService {
	s := &IdentityVerificationService{
		repo:        repo,
		identities:  identities,
		tokenTTL:    DefaultTokenExpiry,
		maxAttempts: DefaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestResult carries the created record and the plaintext token
type RequestResult struct {
	Record     Record
	Token      string
	Superseded int64
}

// Request opens a PENDING identity verification for the identity registered
// with email. Earlier pending requests for the address are expired.
func (s *IdentityVerificationService) Request(ctx context.Context, email string) (*RequestResult, error) {
	ident, err := s.lookupIdentity(ctx, email)
	if err != nil {
		return nil, err
	}
	if ident.IsVerified {
		return nil, ErrAlreadyVerified
	}

	tok, plaintext, err := expiringtoken.New(expiringtoken.KindIdentity, ident.Email, s.tokenTTL, s.now())
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to create verification token")
	}
	rec := Record{
		Token:       tok,
		IdentityID:  ident.ID,
		Attempts:    0,
		MaxAttempts: s.maxAttempts,
	}

	superseded, err := s.repo.CreateSuperseding(ctx, rec)
	if err != nil {
		slog.Error("Failed to create identity verification", "identity_id", ident.ID, "error", err)
		return nil, apperrors.InternalWrap(err, "failed to create identity verification")
	}

	slog.Info("Identity verification requested", "record_id", rec.ID, "identity_id", ident.ID,
		"expires_at", rec.ExpiresAt, "superseded", superseded)
	return &RequestResult{Record: rec, Token: plaintext, Superseded: superseded}, nil
}

// IncrementAttempts records one failed validation against the record.
// The record is forced to EXPIRED when it runs out of attempts.
func (s *IdentityVerificationService) IncrementAttempts(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.IncrementAttempts(ctx, id)
	if err == nil {
		if rec.Status == expiringtoken.StatusExpired {
			slog.Warn("Identity verification exhausted its attempts", "record_id", rec.ID, "attempts", rec.Attempts)
		}
		return &rec, nil
	}
	if !errors.Is(err, ErrStaleRecord) {
		slog.Error("Failed to increment attempts", "record_id", id, "error", err)
		return nil, apperrors.InternalWrap(err, "failed to record verification attempt")
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Attempts >= current.MaxAttempts {
		return nil, ErrAttemptsExceeded
	}
	return nil, ErrExpired
}

// Approve runs the validation pipeline for the latest request of email and,
// when every check passes, verifies the identity and the request together.
// A failed check leaves identity and status untouched apart from counting
// the attempt.
func (s *IdentityVerificationService) Approve(ctx context.Context, email string) (*Record, error) {
	rec, err := s.latest(ctx, email)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.checkOpen(ctx, rec, now); err != nil {
		return nil, err
	}

	ident, err := s.identities.GetByID(ctx, rec.IdentityID)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, apperrors.InternalWrap(err, "failed to load identity")
	}

	if verr := s.validate(ctx, ident); verr != nil {
		return nil, s.fail(ctx, rec, verr)
	}

	err = s.repo.Approve(ctx, rec.ID, ident.ID, now)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleRecord):
		return nil, ErrExpired
	case errors.Is(err, ErrIdentityVerified):
		return nil, ErrAlreadyVerified
	case errors.Is(err, ErrIdentityGone):
		return nil, ErrIdentityNotFound
	default:
		slog.Error("Failed to approve identity verification", "record_id", rec.ID, "error", err)
		return nil, apperrors.InternalWrap(err, "failed to approve identity verification")
	}

	if err := rec.Verify(now); err != nil {
		return nil, err
	}
	slog.Info("Identity verification approved", "record_id", rec.ID, "identity_id", ident.ID)
	s.notifyDecision(ident.Email, "approved", nil)
	return &rec, nil
}

// Reject cancels the latest request of email. A reason, when given, must be
// 3 to 500 characters. The identity is not modified.
func (s *IdentityVerificationService) Reject(ctx context.Context, email string, reason *string) (*Record, error) {
	reason, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}
	rec, err := s.latest(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.cancel(ctx, &rec, reason); err != nil {
		return nil, err
	}
	s.notifyDecision(rec.SubjectEmail, "rejected", reason)
	return &rec, nil
}

// Cancel cancels a request by id without a reason
func (s *IdentityVerificationService) Cancel(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cancel(ctx, &rec, nil); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get returns one record with its observed status
func (s *IdentityVerificationService) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Status = rec.EffectiveStatus(s.now())
	return &rec, nil
}

// ListResult is one page of records
type ListResult struct {
	Items    []Record
	Total    int64
	Page     int
	PageSize int
}

// List pages through requests, newest first, optionally filtered by observed status
func (s *IdentityVerificationService) List(ctx context.Context, status *expiringtoken.Status, page, pageSize int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}

	now := s.now()
	items, total, err := s.repo.List(ctx, ListFilter{Status: status, Page: page, PageSize: pageSize, Now: now})
	if err != nil {
		slog.Error("Failed to list identity verifications", "error", err)
		return nil, apperrors.InternalWrap(err, "failed to list identity verifications")
	}
	for i := range items {
		items[i].Status = items[i].EffectiveStatus(now)
	}
	return &ListResult{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// MaxAttempts returns the configured attempt limit
func (s *IdentityVerificationService) MaxAttempts() int {
	return s.maxAttempts
}

// checkOpen rejects records that can no longer be approved, in the order
// attempts, prior decision, expiry.
func (s *IdentityVerificationService) checkOpen(ctx context.Context, rec Record, now time.Time) error {
	if rec.Attempts >= rec.MaxAttempts {
		return ErrAttemptsExceeded.WithDetails(map[string]interface{}{
			"attempts":     rec.Attempts,
			"max_attempts": rec.MaxAttempts,
		})
	}
	switch rec.Status {
	case expiringtoken.StatusVerified, expiringtoken.StatusCancelled:
		return ErrAlreadyDecided.WithDetail("status", rec.Status)
	}
	if !rec.IsValid(now) {
		if rec.IsLapsed(now) {
			if err := s.repo.MarkExpired(ctx, rec.ID); err != nil && !errors.Is(err, ErrStaleRecord) {
				slog.Warn("Failed to record lapsed identity verification as expired", "record_id", rec.ID, "error", err)
			}
		}
		return ErrExpired
	}
	return nil
}

// validate runs the approval checks against the identity
func (s *IdentityVerificationService) validate(ctx context.Context, ident identity.Identity) error {
	if missing := ident.MissingFields(); len(missing) > 0 {
		return ErrIncompleteIdentity.WithDetail("missing_fields", missing)
	}
	if ident.IsVerified {
		return ErrAlreadyVerified
	}

	holders, err := s.identities.FindByDNI(ctx, ident.DNI)
	if err != nil {
		return apperrors.InternalWrap(err, "failed to check dni uniqueness")
	}
	for _, h := range holders {
		if h.ID != ident.ID {
			return ErrDNIConflict.WithDetail("dni", ident.DNI)
		}
	}
	return nil
}

// fail counts the attempt for a failed validation and returns cause with the
// attempt bookkeeping attached. Datastore failures are returned unchanged.
func (s *IdentityVerificationService) fail(ctx context.Context, rec Record, cause error) error {
	if apperrors.IsCode(cause, apperrors.ErrCodeInternal) {
		return cause
	}

	updated, err := s.repo.IncrementAttempts(ctx, rec.ID)
	if err != nil {
		if errors.Is(err, ErrStaleRecord) {
			return cause
		}
		slog.Error("Failed to record failed approval attempt", "record_id", rec.ID, "error", err)
		return apperrors.InternalWrap(err, "failed to record verification attempt")
	}

	slog.Warn("Identity verification approval failed", "record_id", rec.ID,
		"attempts", updated.Attempts, "max_attempts", updated.MaxAttempts, "status", updated.Status, "error", cause)

	var structured *apperrors.Error
	if errors.As(cause, &structured) {
		return structured.WithDetails(map[string]interface{}{
			"attempts":           updated.Attempts,
			"attempts_remaining": updated.AttemptsRemaining(),
			"status":             updated.Status,
		})
	}
	return cause
}

func (s *IdentityVerificationService) cancel(ctx context.Context, rec *Record, reason *string) error {
	now := s.now()
	switch rec.Status {
	case expiringtoken.StatusVerified, expiringtoken.StatusCancelled:
		return ErrAlreadyDecided.WithDetail("status", rec.Status)
	}
	if !rec.IsValid(now) {
		return ErrExpired
	}

	if err := rec.Cancel(); err != nil {
		return err
	}
	rec.Reason = reason

	err := s.repo.Cancel(ctx, rec.ID, reason, now)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleRecord):
		return ErrExpired
	default:
		slog.Error("Failed to cancel identity verification", "record_id", rec.ID, "error", err)
		return apperrors.InternalWrap(err, "failed to cancel identity verification")
	}

	slog.Info("Identity verification cancelled", "record_id", rec.ID, "with_reason", reason != nil)
	return nil
}

func (s *IdentityVerificationService) lookupIdentity(ctx context.Context, email string) (identity.Identity, error) {
	normalized := utils.NormalizeEmail(email)
	if normalized == "" {
		return identity.Identity{}, ErrInvalidEmail
	}
	ident, err := s.identities.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return identity.Identity{}, ErrIdentityNotFound
		}
		slog.Error("Failed to get identity", "email", utils.MaskEmail(normalized), "error", err)
		return identity.Identity{}, apperrors.InternalWrap(err, "failed to load identity")
	}
	return ident, nil
}

func (s *IdentityVerificationService) latest(ctx context.Context, email string) (Record, error) {
	normalized := utils.NormalizeEmail(email)
	if normalized == "" {
		return Record{}, ErrInvalidEmail
	}
	rec, err := s.repo.GetLatestByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		slog.Error("Failed to get identity verification", "email", utils.MaskEmail(normalized), "error", err)
		return Record{}, apperrors.InternalWrap(err, "failed to load identity verification")
	}
	return rec, nil
}

func (s *IdentityVerificationService) get(ctx context.Context, id uuid.UUID) (Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		slog.Error("Failed to get identity verification", "record_id", id, "error", err)
		return Record{}, apperrors.InternalWrap(err, "failed to load identity verification")
	}
	return rec, nil
}

func normalizeReason(reason *string) (*string, error) {
	if reason == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil, nil
	}
	if err := utils.ValidateVar(trimmed, "min=3,max=500"); err != nil {
		return nil, ErrInvalidReason.WithDetail("length", len([]rune(trimmed)))
	}
	return &trimmed, nil
}

func (s *IdentityVerificationService) notifyDecision(email, decision string, reason *string) {
	if s.notifier == nil {
		return
	}
	data := map[string]string{"Decision": decision}
	if reason != nil {
		data["Reason"] = *reason
	}
	err := s.notifier.Send(notification.IdentityVerificationDecided, notification.NotificationData{To: email, Data: data})
	if err != nil {
		slog.Error("Failed to send identity decision notice", "email", utils.MaskEmail(email), "decision", decision, "error", err)
	}
}
