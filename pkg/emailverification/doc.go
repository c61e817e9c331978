// Package emailverification confirms that an identity controls its email
// address by sending a time-limited link.
//
// Creating a verification (Request or Resend) expires every other pending
// link for the same address in the same transaction, so at most one link
// is valid per address. Verify consumes a link: the record moves to
// VERIFIED and the identity's email_verified flag is set together, or
// neither changes.
//
// # Basic Usage
//
//	repo := emailverification.NewPostgresRepository(pool)
//	identities := identity.NewPostgresRepository(pool)
//	service := emailverification.NewEmailVerificationService(
//		repo, identities,
//		emailverification.WithNotifier(notificationManager),
//		emailverification.WithBaseURL("https://app.example.com"),
//		emailverification.WithTokenExpiry(15*time.Minute),
//	)
//
//	result, err := service.Request(ctx, "user@example.com")
//	// result.Token is the plaintext; only its hash is stored
//
//	rec, err := service.Verify(ctx, tokenFromLink)
//	if errors.Is(err, emailverification.ErrTokenExpired) {
//		// ask the user to resend
//	}
//
// Sending the link is fire-and-forget: a notifier failure is logged and the
// record stays valid.
//
// The api subpackage exposes request, resend, verify and status over HTTP.
// Public verify failures never say whether a token exists.
package emailverification
