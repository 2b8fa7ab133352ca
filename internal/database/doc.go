// Package database provides SQLite-based storage for crawl results.
//
// The store holds page records with their child collections, append-only
// page snapshots, and the change log with its typed child rows. Pages are
// unique per canonical URL; re-visits add snapshots and change entries, not
// new page rows. All multi-row writes go through transactions, and the
// connection pool is capped at one connection because SQLite allows a single
// writer.
package database
