// Package project implements the project record store for projectd.
//
// Project Representation:
//
// Each project is a user submission referencing an external file:
//   - Project ID (decimal string of an allocated integer)
//   - File reference (URL), display name
//   - Owner name and owner ID (owner ID authorizes deletion)
//   - Verified moderation flag
//   - Optional contact email
//   - Download counter
//
// Key Layout:
//
//   - projects/{id}          JSON project record
//   - meta/nextProjectId     next unused project ID (decimal)
//   - bannedUsers/{user_id}  ban marker
//
// Consistency:
//
// IDs come from a persisted counter advanced with compare-and-swap, so
// concurrent allocations never return the same ID. Every read-modify-write
// on a record (rename, verify, download increments, resets, deletes) is a
// compare-and-swap loop against the record's previous image, so concurrent
// updates to the same record are never lost.
//
// Store Operations:
//   - Create, Get, Info, Rename, Verify, IncrementDownload, Delete
//   - List, ListByOwner, Search, Leaderboard
//   - Ban, Unban, IsBanned
//   - ResetAllDownloadCounts, PurgeAll
package project
