// Package cache stores normalized fundamentals tables on disk, one JSON file
// per identifier and data kind, and decides whether a stored table may be
// reused.
//
// Freshness is derived from the file modification time and a MaxAge policy:
//   - Disabled (0): always refetch.
//   - Preserve ("preserve"): reuse any existing file regardless of age.
//   - Days(n): reuse while the file is at most n days old.
//
// A failed fetch is recorded as an empty sentinel so that GetIfFresh can tell
// "confirmed no data" (EmptyConfirmed) apart from "never fetched" (Miss).
// Files are only ever created or overwritten; cleanup is manual.
package cache
