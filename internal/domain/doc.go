// Package domain defines the core rating types and interfaces.
//
// Concept-oriented files (tally.go, vote.go, cache.go, remote.go, render.go, errors.go) hold
// shared types and the consumer-side contracts. No I/O here.
package domain
