package cleanup

import (
	"fmt"
	"time"

	"github.com/tendant/simple-verification/pkg/expiringtoken"
	"github.com/tendant/simple-verification/pkg/identity"
)

// DefaultDaysOld is how long an identity may stay unverified before removal
const DefaultDaysOld = 7

// UnverifiedIdentityPredicate selects identities that verified neither their
// email nor their identity and were created before CreatedBefore.
type UnverifiedIdentityPredicate struct {
	CreatedBefore time.Time
}

// NewUnverifiedIdentityPredicate builds the category 1 predicate for a sweep at now
func NewUnverifiedIdentityPredicate(now time.Time, daysOld int) UnverifiedIdentityPredicate {
	return UnverifiedIdentityPredicate{
		CreatedBefore: now.UTC().AddDate(0, 0, -daysOld),
	}
}

// Match is the in-memory form of SQL
func (p UnverifiedIdentityPredicate) Match(i identity.Identity) bool {
	return !i.EmailVerified && !i.IsVerified && i.CreatedAt.Before(p.CreatedBefore)
}

// SQL renders the predicate against the identities table aliased as alias.
// The cutoff is bound to placeholder $arg.
func (p UnverifiedIdentityPredicate) SQL(alias string, arg int) (string, []interface{}) {
	where := fmt.Sprintf("%[1]s.email_verified = FALSE AND %[1]s.is_verified = FALSE AND %[1]s.created_at < $%[2]d", alias, arg)
	return where, []interface{}{p.CreatedBefore}
}

func (p UnverifiedIdentityPredicate) String() string {
	return fmt.Sprintf("unverified identities created before %s", p.CreatedBefore.Format(time.RFC3339))
}

// ExpiredRecordPredicate selects PENDING records of either kind whose expiry
// has passed. When Unverified is set, records owned by identities it matches
// are left out: those go with their identity in category 1.
type ExpiredRecordPredicate struct {
	Now        time.Time
	Unverified *UnverifiedIdentityPredicate
}

// NewExpiredRecordPredicate builds the category 2 predicate for a sweep at now
func NewExpiredRecordPredicate(now time.Time) ExpiredRecordPredicate {
	return ExpiredRecordPredicate{Now: now.UTC()}
}

// Excluding returns a copy that skips records owned by identities u matches
func (p ExpiredRecordPredicate) Excluding(u UnverifiedIdentityPredicate) ExpiredRecordPredicate {
	p.Unverified = &u
	return p
}

// Match is the in-memory form of SQL. owner is nil when the identity is gone.
func (p ExpiredRecordPredicate) Match(t expiringtoken.Token, owner *identity.Identity) bool {
	if t.Status != expiringtoken.StatusPending || !t.ExpiresAt.Before(p.Now) {
		return false
	}
	if p.Unverified != nil && owner != nil && p.Unverified.Match(*owner) {
		return false
	}
	return true
}

// SQL renders the predicate against a record table aliased as alias.
// Placeholders start at $arg.
func (p ExpiredRecordPredicate) SQL(alias string, arg int) (string, []interface{}) {
	where := fmt.Sprintf("%[1]s.status = 'PENDING' AND %[1]s.expires_at < $%[2]d", alias, arg)
	args := []interface{}{p.Now}
	if p.Unverified != nil {
		owner, ownerArgs := p.Unverified.SQL("owner", arg+1)
		where += fmt.Sprintf(" AND NOT EXISTS (SELECT 1 FROM identities owner WHERE owner.id = %s.identity_id AND %s)", alias, owner)
		args = append(args, ownerArgs...)
	}
	return where, args
}

func (p ExpiredRecordPredicate) String() string {
	s := fmt.Sprintf("pending records expired before %s", p.Now.Format(time.RFC3339))
	if p.Unverified != nil {
		s += " excluding " + p.Unverified.String()
	}
	return s
}
