// Package identity models the person record that email and identity
// verification act on, and the lookups those workflows need.
//
// Registration owns identities. The verification packages only flip
// EmailVerified, IsVerified and IsComplete, and the cleanup engine deletes
// identities that never verified anything.
package identity
