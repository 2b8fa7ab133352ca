// Package crawler schedules and drives a site crawl.
//
// The scheduler keeps a FIFO frontier of (URL, depth) pairs, a visited set
// of canonical URLs and a page counter under one mutex. Workers claim a URL
// and a page-budget slot atomically, then run the full per-page pipeline:
// navigate through an isolated browser context with proxy and fingerprint
// rotation, smart-scroll, extract, screenshot, download files, persist,
// diff against the previous capture, and discover new internal links.
// Control is cooperative: Stop, Pause and Resume are flags polled at the
// worker loop head.
package crawler
