// Package cache implements the tally cache store: an expiring map from
// normalized page URL to tally, persisted as a single JSON table in a
// profile-scoped storage medium.
//
// Expiry is lazy. An entry whose expiry has passed reads as absent but stays
// in storage until a later write for the same page replaces it. Storage faults
// never leave this package: unreadable or corrupt tables read as empty and
// failed writes are logged and dropped.
package cache
