// Package expiringtoken holds the state machine shared by email and identity
// verification records.
//
//	PENDING -> VERIFIED   (Verify, only while IsValid)
//	PENDING -> EXPIRED    (Expire, lazy observation, cleanup, attempt exhaustion)
//	PENDING -> CANCELLED  (Cancel, identity kind only)
//
// Terminal states never change again; an illegal move returns a
// *TransitionError wrapping ErrInvalidTransition.
//
// Expiry is observed lazily: IsValid and EffectiveStatus compare against the
// caller's clock, so a record that nobody has rewritten still reads as
// EXPIRED once its deadline passes.
package expiringtoken
