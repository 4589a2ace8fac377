// Package localstore holds per-profile storage backed by process memory or
// by one JSON document per profile on local disk.
package localstore
