// Package identityverification implements admin-approved identity
// verification.
//
// An admin opens a request for an identity (Request). Approve validates the
// identity before verifying it: every personal field must be filled in, the
// identity must not already be verified and no other identity may hold the
// same DNI. A failed check costs one attempt and changes nothing else.
// When the record reaches its attempt limit it is expired.
//
// Reject and Cancel close a pending request without touching the identity.
//
//	service := identityverification.NewIdentityVerificationService(
//		identityverification.NewPostgresRepository(pool),
//		identity.NewPostgresRepository(pool),
//		identityverification.WithMaxAttempts(3),
//	)
//	rec, err := service.Approve(ctx, "user@example.com")
package identityverification
