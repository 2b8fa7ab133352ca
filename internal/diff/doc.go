// Package diff detects and describes changes between successive captures of
// the same page.
//
// The engine compares a previous capture against the current one and emits
// typed changes: content (title, description, body text), structure (header
// count), and set differences over links, media and files. Content changes
// carry an LCS similarity score and a rendered side-by-side HTML diff.
package diff
