// Package app holds the rating session state machine and the registry that
// hands sessions out per visitor profile and page.
//
// A Session moves Uninitialized -> Loading -> Ready. Loading serves the tally
// from the cache store or, on a miss, from the remote tally service and writes
// it back. Votes are only accepted in Ready; the tally changes only when the
// service confirms the vote, and every change is written through to the cache.
package app
