// Package model defines the core data structures shared across websentry.
//
// The central type is PageRecord, the immutable capture of a single rendered
// page together with its child collections (headings, links, media,
// structured data, DOM skeleton, file assets). Snapshot and Change describe
// the history side: a Snapshot is a content-addressed summary of a page at
// capture time, and a Change is one typed difference between two snapshots
// of the same URL.
//
// Design decision: models live in their own package rather than next to the
// components that produce them because:
//  1. The database, diff engine, and scheduler all exchange these types
//  2. It avoids import cycles between extraction and persistence
//  3. It keeps serialization concerns (JSON tags) in one place
package model
