// Package inmem is a complete in-process backend for identities,
// verification records and cleanup, optionally persisted to a JSON file.
//
// All views returned by a DB share one lock, so a verify or approve that
// touches a record and its identity is applied together or not at all.
package inmem
