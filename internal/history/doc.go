// Package history keeps an optional SQLite ledger of recording sessions.
//
// The worker records a row when ffmpeg spawns and completes it with the exit
// code and classified outcome once ffmpeg exits. The CLI reads the ledger for
// the history command. The database is versioned; a version mismatch is
// reported as ErrSchemaMismatch rather than migrated.
package history
