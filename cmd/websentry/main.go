// Package main provides the entry point for the websentry CLI.
//
// websentry crawls websites with a headless browser, stores structured page
// records in SQLite, and reports what changed between visits.
//
// Usage:
//
//	websentry crawl <seed-url>
//	websentry changes <url>
//
// See --help for all available options.
package main

// main is the entry point for websentry.
func main() {
	Execute()
}
