// Package extract turns rendered HTML into structured page data.
//
// One Extractor serves a whole crawl. It parses the rendered document once
// and collects the title, meta description, headings, normalized body text,
// classified links, media, JSON-LD blocks, a truncated DOM skeleton and
// downloadable-file candidates. Per-item failures never abort the page.
package extract
