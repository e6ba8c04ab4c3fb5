// Package cache stores provider outputs under content-derived keys so repeated
// runs over the same pages skip the provider call.
//
// Keys hash the capability, an input fingerprint, the serving provider and a
// config version. Entries are immutable once written and expire after their
// TTL. Three backends exist: a file tree under the run directory, a SQLite
// database, and an in-memory front that sits over either of them. Read
// failures are logged and reported as misses; the cache never fails a chapter.
package cache
