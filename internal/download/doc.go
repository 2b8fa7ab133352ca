// Package download fetches file assets linked from crawled pages.
//
// Files land in a downloads/ subdirectory of the page folder. Every link
// produces a FileAsset row whether the transfer succeeded or not, so the
// crawl record is complete. Size caps are enforced both on the declared
// Content-Length and on the actual byte stream.
package download
