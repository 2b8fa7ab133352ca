// Package auth establishes an authenticated browser session for a crawl.
//
// The session manager reuses a previously saved session when a test
// navigation shows it is still live, and otherwise runs either the
// credentialed or the manual login flow. An authentication failure never
// aborts the crawl: the scheduler proceeds unauthenticated.
package auth
