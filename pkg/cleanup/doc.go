// Package cleanup removes identities that never verified and verification
// records that expired while pending.
//
// Both categories are bulk deletes driven by a predicate built once per run.
// Preview counts with the same predicates Trigger deletes with, so a preview
// followed by a trigger with no writes in between reports the same numbers.
// A failing category is logged and collected into Result.Errors; the other
// category still runs.
package cleanup
