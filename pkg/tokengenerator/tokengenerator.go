package tokengenerator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AdminRole is the role the admin routes require
const AdminRole = "admin"

// DefaultAdminTokenExpiry is used when no expiry is configured
const DefaultAdminTokenExpiry = 24 * time.Hour

// TokenGenerator interface defines methods for token operations
type TokenGenerator interface {
	// GenerateToken generates a token with the given subject, expiry and extra claims
	GenerateToken(subject string, expiry time.Duration, extraClaims map[string]interface{}) (string, time.Time, error)

	// ParseToken parses and validates a token
	ParseToken(tokenStr string) (*jwt.Token, error)
}

// Claims struct for JWT claims
type Claims struct {
	ExtraClaims map[string]interface{} `json:"extra_claims,omitempty"`
	jwt.RegisteredClaims
}

// JwtTokenGenerator signs HS256 tokens with a shared secret
type JwtTokenGenerator struct {
	Secret   string
	Issuer   string
	Audience string
	now      func() time.Time
}

// NewJwtTokenGenerator creates a new JwtTokenGenerator
func NewJwtTokenGenerator(secret, issuer, audience string) *JwtTokenGenerator {
	return &JwtTokenGenerator{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
		now:      time.Now,
	}
}

// WithNow returns a copy of the generator using now as its clock
func (g *JwtTokenGenerator) WithNow(now func() time.Time) *JwtTokenGenerator {
	cp := *g
	cp.now = now
	return &cp
}

// GenerateToken creates a new token with the given subject and claims
func (g *JwtTokenGenerator) GenerateToken(subject string, expiry time.Duration, extraClaims map[string]interface{}) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("token subject is required")
	}
	if expiry <= 0 {
		return "", time.Time{}, fmt.Errorf("token expiry must be positive, got %v", expiry)
	}

	now := g.now().UTC()
	claims := Claims{
		ExtraClaims: extraClaims,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   subject,
			ID:        uuid.New().String(),
		},
	}
	if g.Audience != "" {
		claims.Audience = jwt.ClaimStrings{g.Audience}
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return "", time.Time{}, err
	}
	return ss, claims.ExpiresAt.Time, nil
}

// GenerateAdminToken mints a token carrying the admin role for subject
func (g *JwtTokenGenerator) GenerateAdminToken(subject string, expiry time.Duration) (string, time.Time, error) {
	if expiry <= 0 {
		expiry = DefaultAdminTokenExpiry
	}
	return g.GenerateToken(subject, expiry, map[string]interface{}{
		"roles": []string{AdminRole},
	})
}

// ParseToken parses and validates a token string, including issuer and audience
func (g *JwtTokenGenerator) ParseToken(tokenStr string) (*jwt.Token, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	}
	if g.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.Issuer))
	}
	if g.Audience != "" {
		opts = append(opts, jwt.WithAudience(g.Audience))
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(g.Secret), nil
	}, opts...)
	if err != nil {
		slog.Debug("Failed parse JWT string!", "err", err)
		return token, err
	}
	return token, nil
}
