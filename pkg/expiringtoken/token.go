package expiringtoken

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/utils"
	"golang.org/x/crypto/blake2b"
)

// Kind discriminates the two verification workflows sharing this state machine
type Kind string

const (
	KindEmail    Kind = "email"
	KindIdentity Kind = "identity"
)

// Status is the lifecycle state of a verification record
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusVerified  Status = "VERIFIED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether no further transition is legal from s
func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusExpired || s == StatusCancelled
}

// ParseStatus converts a stored or user supplied value into a Status
func ParseStatus(v string) (Status, error) {
	switch s := Status(v); s {
	case StatusPending, StatusVerified, StatusExpired, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown verification status %q", v)
}

// tokenBytes is the amount of entropy in a generated token
const tokenBytes = 32

// Token is the state shared by email and identity verification records.
// Only the hash of the opaque token is kept; the plaintext leaves New once.
type Token struct {
	ID           uuid.UUID
	Kind         Kind
	TokenHash    []byte
	SubjectEmail string
	Status       Status
	CreatedAt    time.Time
	ExpiresAt    time.Time
	VerifiedAt   *time.Time
}

// New creates a PENDING token for email that expires ttl after now.
// It returns the token and the plaintext value to hand to the subject.
func New(kind Kind, email string, ttl time.Duration, now time.Time) (Token, string, error) {
	if ttl <= 0 {
		return Token{}, "", fmt.Errorf("token ttl must be positive, got %v", ttl)
	}
	email = utils.NormalizeEmail(email)
	if email == "" {
		return Token{}, "", fmt.Errorf("subject email is required")
	}

	plaintext, err := Generate()
	if err != nil {
		return Token{}, "", err
	}

	now = now.UTC()
	return Token{
		ID:           uuid.New(),
		Kind:         kind,
		TokenHash:    HashToken(plaintext),
		SubjectEmail: email,
		Status:       StatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}, plaintext, nil
}

// Generate returns a cryptographically secure, URL safe random token
func Generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the BLAKE2b-256 digest used to store and look up a token
func HashToken(plaintext string) []byte {
	sum := blake2b.Sum256([]byte(plaintext))
	return sum[:]
}

// IsValid reports whether the token can still be verified at now
func (t *Token) IsValid(now time.Time) bool {
	return t.Status == StatusPending && now.Before(t.ExpiresAt)
}

// IsLapsed reports a PENDING token whose expiry has passed but whose status
// has not been written as EXPIRED yet.
func (t *Token) IsLapsed(now time.Time) bool {
	return t.Status == StatusPending && !now.Before(t.ExpiresAt)
}

// EffectiveStatus is the status a reader observes at now.
// A lapsed PENDING token reads as EXPIRED.
func (t *Token) EffectiveStatus(now time.Time) Status {
	if t.IsLapsed(now) {
		return StatusExpired
	}
	return t.Status
}

// Verify moves PENDING to VERIFIED. The token must be valid at now.
func (t *Token) Verify(now time.Time) error {
	if t.Status != StatusPending {
		return newTransitionError(t.Kind, t.Status, StatusVerified)
	}
	if !t.IsValid(now) {
		return ErrExpired
	}
	verifiedAt := now.UTC()
	t.Status = StatusVerified
	t.VerifiedAt = &verifiedAt
	return nil
}

// Expire moves PENDING to EXPIRED
func (t *Token) Expire() error {
	if t.Status != StatusPending {
		return newTransitionError(t.Kind, t.Status, StatusExpired)
	}
	t.Status = StatusExpired
	return nil
}

// Cancel moves PENDING to CANCELLED. Email tokens cannot be cancelled.
func (t *Token) Cancel() error {
	if t.Kind != KindIdentity || t.Status != StatusPending {
		return newTransitionError(t.Kind, t.Status, StatusCancelled)
	}
	t.Status = StatusCancelled
	return nil
}

// Expiring is implemented by every record that embeds Token
type Expiring interface {
	IsValid(now time.Time) bool
	EffectiveStatus(now time.Time) Status
	Verify(now time.Time) error
	Expire() error
	Cancel() error
}

var _ Expiring = (*Token)(nil)
