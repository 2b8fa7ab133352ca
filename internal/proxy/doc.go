// Package proxy implements the identity rotation layer's proxy side: a
// round-robin pool with failure eviction, a proxy list file loader, and a
// concurrent health tester.
//
// # Rotation
//
// The Pool hands out proxies in list order, skipping any that a worker has
// marked failed. Failure flags are run-scoped. When every proxy has failed,
// Next reports "no proxy" and the crawler falls back to direct connections;
// this fallback is logged exactly once.
//
// # Concurrency
//
// Next and MarkFailed are mutually exclusive under the pool's own mutex,
// deliberately separate from the crawl scheduler's lock so that marking a
// dead proxy never contends with frontier operations.
package proxy
