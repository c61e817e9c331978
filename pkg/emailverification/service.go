package emailverification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	apperrors "github.com/tendant/simple-verification/pkg/errors"
	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/notification"
	"github.com/tendant/simple-verification/pkg/utils"
)

// DefaultTokenExpiry is how long an email verification link stays valid
const DefaultTokenExpiry = 15 * time.Minute

// Notifier delivers the verification link. *notification.NotificationManager satisfies it.
type Notifier interface {
	Send(noticeType notification.NoticeType, data notification.NotificationData) error
}

// EmailVerificationService handles email verification operations
type EmailVerificationService struct {
	repo       Repository
	identities identity.Repository
	notifier   Notifier
	baseURL    string
	verifyPath string
	tokenTTL   time.Duration
	now        func() time.Time
}

// EmailVerificationServiceOption defines configuration options
type EmailVerificationServiceOption func(*EmailVerificationService)

// WithTokenExpiry sets the token expiration duration
func WithTokenExpiry(expiry time.Duration) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		if expiry > 0 {
			s.tokenTTL = expiry
		}
	}
}

// WithNotifier sets the collaborator that sends verification links
func WithNotifier(n Notifier) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.notifier = n
	}
}

// WithBaseURL sets the frontend base URL used to build verification links
func WithBaseURL(baseURL string) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.baseURL = baseURL
	}
}

// WithVerifyPath sets the path appended to the base URL, "/verify-email" by default
func WithVerifyPath(path string) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.verifyPath = path
	}
}

// WithNow overrides the clock
func WithNow(now func() time.Time) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.now = now
	}
}

// NewEmailVerificationService creates a new email verification service
func NewEmailVerificationService(repo Repository, identities identity.Repository, opts ...EmailVerificationServiceOption) *EmailVerificationService {
	service := &EmailVerificationService{
		repo:       repo,
		identities: identities,
		verifyPath: "/verify-email",
		tokenTTL:   DefaultTokenExpiry,
		now:        func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// RequestResult is returned by Request and Resend.
// Token is the plaintext value; it is never stored.
type RequestResult struct {
	Record     Record
	Token      string
	Superseded int64
}

// Request creates a new PENDING email verification for the identity
// registered with email and sends the link. Earlier pending records for the
// address are expired in the same transaction.
func (s *EmailVerificationService) Request(ctx context.Context, email string) (*RequestResult, error) {
	ident, err := s.lookupIdentity(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, ident)
}

// Resend behaves like Request but refuses an identity that is already verified
func (s *EmailVerificationService) Resend(ctx context.Context, email string) (*RequestResult, error) {
	ident, err := s.lookupIdentity(ctx, email)
	if err != nil {
		return nil, err
	}

	if ident.EmailVerified || ident.IsVerified {
		slog.Info("Email already verified", "email", utils.MaskEmail(ident.Email), "identity_id", ident.ID)
		return nil, ErrEmailAlreadyVerified
	}

	return s.issue(ctx, ident)
}

// Verify consumes a token. On success the record is VERIFIED and the
// identity's email is marked verified in one transaction.
func (s *EmailVerificationService) Verify(ctx context.Context, token string) (*Record, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}

	rec, err := s.repo.GetByTokenHash(ctx, expiringtoken.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			slog.Warn("Verification token not found")
			return nil, ErrTokenNotFound
		}
		slog.Error("Failed to get verification record", "error", err)
		return nil, apperrors.InternalWrap(err, "failed to load verification record")
	}

	now := s.now()
	if !rec.IsValid(now) {
		if rec.IsLapsed(now) {
			s.expireLazily(ctx, rec)
		}
		slog.Warn("Verification token not valid", "record_id", rec.ID, "status", rec.EffectiveStatus(now), "expires_at", rec.ExpiresAt)
		return nil, ErrTokenExpired
	}

	if err := rec.Verify(now); err != nil {
		return nil, err
	}

	err = s.repo.MarkVerified(ctx, rec.ID, rec.IdentityID, now)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleRecord):
		// Another request consumed or superseded the record first
		slog.Warn("Verification record changed concurrently", "record_id", rec.ID)
		return nil, ErrTokenExpired
	case errors.Is(err, ErrIdentityGone):
		slog.Warn("Identity for verification record not found", "record_id", rec.ID, "identity_id", rec.IdentityID)
		return nil, ErrTokenNotFound
	default:
		slog.Error("Failed to mark email verified", "record_id", rec.ID, "error", err)
		return nil, apperrors.InternalWrap(err, "failed to verify email")
	}

	slog.Info("Email verified successfully", "record_id", rec.ID, "identity_id", rec.IdentityID)
	return &rec, nil
}

// Status returns the latest record for email with its observed status applied
func (s *EmailVerificationService) Status(ctx context.Context, email string) (*Record, error) {
	normalized := utils.NormalizeEmail(email)
	if normalized == "" {
		return nil, ErrInvalidEmail
	}

	rec, err := s.repo.GetLatestByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrEmailNotFound
		}
		slog.Error("Failed to get latest verification record", "email", utils.MaskEmail(normalized), "error", err)
		return nil, apperrors.InternalWrap(err, "failed to load verification status")
	}

	rec.Status = rec.EffectiveStatus(s.now())
	return &rec, nil
}

// TokenExpiry returns the configured link lifetime
func (s *EmailVerificationService) TokenExpiry() time.Duration {
	return s.tokenTTL
}

func (s *EmailVerificationService) lookupIdentity(ctx context.Context, email string) (identity.Identity, error) {
	normalized := utils.NormalizeEmail(email)
	if normalized == "" {
		return identity.Identity{}, ErrInvalidEmail
	}

	ident, err := s.identities.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			slog.Warn("No identity for email", "email", utils.MaskEmail(normalized))
			return identity.Identity{}, ErrEmailNotFound
		}
		slog.Error("Failed to get identity", "email", utils.MaskEmail(normalized), "error", err)
		return identity.Identity{}, apperrors.InternalWrap(err, "failed to load identity")
	}
	return ident, nil
}

func (s *EmailVerificationService) issue(ctx context.Context, ident identity.Identity) (*RequestResult, error) {
	tok, plaintext, err := expiringtoken.New(expiringtoken.KindEmail, ident.Email, s.tokenTTL, s.now())
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to create verification token")
	}
	rec := Record{Token: tok, IdentityID: ident.ID}

	superseded, err := s.repo.CreateSuperseding(ctx, rec)
	if err != nil {
		slog.Error("Failed to create email verification", "identity_id", ident.ID, "error", err)
		return nil, apperrors.InternalWrap(err, "failed to create verification record")
	}

	s.sendVerificationEmail(ident.Email, plaintext)

	slog.Info("Email verification created", "record_id", rec.ID, "identity_id", ident.ID,
		"expires_at", rec.ExpiresAt, "superseded", superseded)
	return &RequestResult{Record: rec, Token: plaintext, Superseded: superseded}, nil
}

func (s *EmailVerificationService) expireLazily(ctx context.Context, rec Record) {
	if err := s.repo.MarkExpired(ctx, rec.ID); err != nil && !errors.Is(err, ErrStaleRecord) {
		slog.Warn("Failed to record lapsed verification as expired", "record_id", rec.ID, "error", err)
	}
}

// VerificationLink builds the link sent to the subject
func (s *EmailVerificationService) VerificationLink(token string) string {
	return fmt.Sprintf("%s%s?token=%s", s.baseURL, s.verifyPath, url.QueryEscape(token))
}

// sendVerificationEmail is fire-and-forget: failures are logged, never returned
func (s *EmailVerificationService) sendVerificationEmail(email, token string) {
	if s.notifier == nil {
		slog.Warn("Notification manager not configured, skipping email send")
		return
	}

	data := notification.NotificationData{
		To: email,
		Data: map[string]string{
			"Email":            email,
			"VerificationLink": s.VerificationLink(token),
			"ExpiryMinutes":    fmt.Sprintf("%.0f", s.tokenTTL.Minutes()),
		},
	}

	if err := s.notifier.Send(notification.EmailVerificationNotice, data); err != nil {
		slog.Error("Failed to send verification email", "email", utils.MaskEmail(email), "error", err)
	}
}
