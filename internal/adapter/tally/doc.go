// Package tally is the HTTP client for the remote tally service.
//
// Reads are GET {endpoint}?url=<page> returning {"likes": n, "dislikes": m}.
// Votes are POST {endpoint} with form fields url and like (1 or 0); the
// service answers with one of the flags success, updated or error.
// Every call runs under its own deadline and through a shared circuit breaker.
// Reads are retried on transient failures, votes never are.
package tally
