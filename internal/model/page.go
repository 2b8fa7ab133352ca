package model

import "time"

// ProxyDirect is the value recorded in ProxyUsed when a page was fetched
// without a proxy, either because the proxy feature is disabled or because
// every configured proxy had failed.
const ProxyDirect = "Direct"

// MaxSkeletonNodes caps the number of DOM skeleton nodes stored per page.
// Large pages can produce tens of thousands of elements; the skeleton is a
// structural fingerprint, not a full DOM dump, so we keep only the first 500.
const MaxSkeletonNodes = 500

// PageRecord is the immutable capture of a single rendered page.
// A record and all of its child collections are written in one transaction
// and never mutated afterwards; a later visit to the same URL produces a new
// Snapshot, not a new PageRecord.
type PageRecord struct {
	// ID is the database identifier, zero until the record is stored.
	ID int64 `json:"id"`

	// URL is the canonical URL of the page. Unique per database.
	URL string `json:"url"`

	// Title is the document title. Empty if the page had none.
	Title string `json:"title"`

	// Description is the meta description, or "No description" when the
	// page does not declare one.
	Description string `json:"description"`

	// FullText is the visible text of the document body after rendering.
	FullText string `json:"full_text"`

	// Depth is the link distance from the crawl seed. The seed is depth 0.
	Depth int `json:"depth"`

	// CapturedAt is when the page was rendered and extracted.
	CapturedAt time.Time `json:"captured_at"`

	// FolderPath is the on-disk folder holding the page's screenshot and
	// downloaded files.
	FolderPath string `json:"folder_path"`

	// ProxyUsed is the proxy URI the browser context was configured with,
	// or ProxyDirect for a direct connection.
	ProxyUsed string `json:"proxy_used"`

	// Fingerprint is the serialized browser fingerprint applied to the
	// context. Stored so identity diversity can be measured afterwards.
	Fingerprint string `json:"fingerprint"`

	// Authenticated reports whether the page was fetched with a logged-in
	// session.
	Authenticated bool `json:"authenticated"`

	// Headings are the h1-h3 elements in document order.
	Headings []Heading `json:"headings,omitempty"`

	// Links are all resolved anchor targets, classified against the seed.
	Links []Link `json:"links,omitempty"`

	// Media are the page's images with absolute sources.
	Media []Media `json:"media,omitempty"`

	// StructuredData holds each embedded JSON-LD block as an opaque blob.
	StructuredData []string `json:"structured_data,omitempty"`

	// Skeleton is the truncated DOM skeleton, at most MaxSkeletonNodes.
	Skeleton []SkeletonNode `json:"skeleton,omitempty"`

	// Files are the downloadable assets discovered on the page, including
	// ones whose download failed.
	Files []FileAsset `json:"files,omitempty"`
}

// Heading is a single h1, h2 or h3 element.
type Heading struct {
	// Type is the tag name: "h1", "h2" or "h3".
	Type string `json:"type"`

	// Text is the heading's inner text.
	Text string `json:"text"`
}

// LinkType classifies a link relative to the crawl seed.
type LinkType string

const (
	// LinkInternal marks links whose host matches the seed's host.
	LinkInternal LinkType = "internal"

	// LinkExternal marks links to any other host.
	LinkExternal LinkType = "external"
)

// Link is a resolved, canonicalized anchor target.
type Link struct {
	// Type is internal or external.
	Type LinkType `json:"type"`

	// URL is the canonical absolute URL.
	URL string `json:"url"`
}

// Media is an image reference with a resolved absolute source.
type Media struct {
	// Src is the absolute http(s) source URL.
	Src string `json:"src"`

	// Alt is the image's alt text, possibly empty.
	Alt string `json:"alt"`
}

// SkeletonNode is one element of the truncated DOM skeleton.
// The skeleton records structure, not content: each node carries its tag, a
// best-effort CSS selector, truncated text and selected attributes.
type SkeletonNode struct {
	// Tag is the element's tag name.
	Tag string `json:"tag"`

	// Selector is a best-effort CSS selector for the element. An #id
	// selector when the element has an id, otherwise a class-qualified
	// path with nth-child disambiguation.
	Selector string `json:"selector"`

	// Text is the element's own text, truncated.
	Text string `json:"text,omitempty"`

	// Attributes holds selected attributes (href, src, class, type, ...).
	Attributes map[string]string `json:"attributes,omitempty"`

	// ParentSelector is the selector of the element's parent, empty for
	// top-level nodes.
	ParentSelector string `json:"parent_selector,omitempty"`
}

// DownloadStatus is the outcome of a file download attempt.
type DownloadStatus string

const (
	// DownloadSuccess means the file was fully written to disk.
	DownloadSuccess DownloadStatus = "success"

	// DownloadFailed means every attempt failed; Error holds the reason.
	DownloadFailed DownloadStatus = "failed"
)

// FileAsset is a downloadable file discovered on a page.
// An asset row exists for failed downloads too, so a crawl records what it
// saw even when it could not fetch it.
type FileAsset struct {
	// URL is the absolute URL of the file.
	URL string `json:"url"`

	// Name is the sanitized local filename.
	Name string `json:"name"`

	// Extension is the lowercased file extension including the dot.
	Extension string `json:"extension"`

	// SizeBytes is the downloaded size. Zero for failed downloads.
	SizeBytes int64 `json:"size_bytes"`

	// LocalPath is the path of the stored file, empty when Status is
	// DownloadFailed.
	LocalPath string `json:"local_path,omitempty"`

	// Status is success or failed.
	Status DownloadStatus `json:"status"`

	// MimeType is the Content-Type reported by the server.
	MimeType string `json:"mime_type,omitempty"`

	// Error is the last error message for failed downloads.
	Error string `json:"error,omitempty"`

	// DownloadedAt is when the download attempt finished.
	DownloadedAt time.Time `json:"downloaded_at"`
}
