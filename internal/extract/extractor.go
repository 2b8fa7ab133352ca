package extract

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/websentry/websentry/internal/model"
	"github.com/websentry/websentry/internal/urlkey"
)

// DefaultDescription is recorded when a page declares no meta description.
const DefaultDescription = "No description"

// maxNodeText caps the text stored per skeleton node.
const maxNodeText = 120

// skeletonRegions selects the DOM regions walked for the skeleton: headings,
// text, interactive elements, structural containers, lists, tables, forms
// and images. Decorative and metadata elements are skipped.
const skeletonRegions = "h1, h2, h3, h4, h5, h6, p, a, button, input, select, textarea, " +
	"div, section, article, header, footer, nav, main, aside, " +
	"ul, ol, li, table, tr, th, td, form, label, img"

// Extraction is the typed result of one page extraction.
// Every field is explicit; absent values use the documented defaults rather
// than omitted keys.
type Extraction struct {
	// Title is the document title, empty if the page has none.
	Title string

	// Description is the meta description or DefaultDescription.
	Description string

	// Headings are the h1-h3 elements in document order.
	Headings []model.Heading

	// BodyText is the whitespace-normalized visible body text.
	BodyText string

	// Links are resolved, canonicalized, deduplicated anchor targets.
	Links []model.Link

	// Media are images with absolute http(s) sources.
	Media []model.Media

	// StructuredData holds each well-formed JSON-LD block verbatim.
	StructuredData []string

	// Skeleton is the truncated DOM skeleton.
	Skeleton []model.SkeletonNode

	// FileLinks are absolute URLs of downloadable-file candidates, in
	// discovery order, deduplicated.
	FileLinks []string
}

// Extractor turns rendered HTML into an Extraction.
// One extractor serves a whole crawl: it is bound to the seed host (for
// internal/external classification) and the downloadable-extension allowlist.
type Extractor struct {
	// seedHost is the lowercased host of the crawl seed.
	seedHost string

	// fileExts is the lowercased downloadable-extension allowlist.
	fileExts map[string]bool
}

// NewExtractor creates an extractor for a crawl rooted at seedURL.
func NewExtractor(seedURL string, fileExtensions []string) (*Extractor, error) {
	host, err := urlkey.Host(seedURL)
	if err != nil {
		return nil, err
	}

	exts := make(map[string]bool, len(fileExtensions))
	for _, e := range fileExtensions {
		exts[strings.ToLower(e)] = true
	}

	return &Extractor{seedHost: host, fileExts: exts}, nil
}

// Extract parses rendered HTML and collects every extraction in one pass
// per concern. Per-item failures (an unresolvable href, a malformed JSON-LD
// block) are swallowed; the rest of the page is kept.
func (e *Extractor) Extract(pageURL, htmlContent string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	ex := &Extraction{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: e.description(doc),
		Headings:    e.headings(doc),
		BodyText:    normalizeWhitespace(doc.Find("body").Text()),
		Media:       e.media(doc, base),
	}
	ex.Links, ex.FileLinks = e.links(doc, base)
	ex.StructuredData = e.structuredData(doc)
	ex.Skeleton = e.skeleton(doc)

	return ex, nil
}

// description reads meta[name=description], defaulting when absent or blank.
func (e *Extractor) description(doc *goquery.Document) string {
	desc := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	if desc == "" {
		return DefaultDescription
	}
	return desc
}

// headings collects h1-h3 inner text in document order.
func (e *Extractor) headings(doc *goquery.Document) []model.Heading {
	var headings []model.Heading
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		headings = append(headings, model.Heading{
			Type: goquery.NodeName(s),
			Text: text,
		})
	})
	return headings
}

// links enumerates anchors: resolved, canonicalized, deduplicated and
// classified against the seed host. Downloadable-file candidates fall out of
// the same pass, keyed on the raw absolute URL so querystrings survive for
// the downloader.
func (e *Extractor) links(doc *goquery.Document, base *url.URL) ([]model.Link, []string) {
	var links []model.Link
	var fileLinks []string
	seen := make(map[string]bool)
	seenFiles := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		abs := resolve(base, href)
		if abs == nil || (abs.Scheme != "http" && abs.Scheme != "https") {
			return
		}

		if e.isFileLink(abs) && !seenFiles[abs.String()] {
			seenFiles[abs.String()] = true
			fileLinks = append(fileLinks, abs.String())
		}

		canonical, err := urlkey.Canonicalize(abs.String())
		if err != nil || seen[canonical] {
			return
		}
		seen[canonical] = true

		linkType := model.LinkExternal
		if strings.EqualFold(abs.Hostname(), e.seedHost) {
			linkType = model.LinkInternal
		}
		links = append(links, model.Link{Type: linkType, URL: canonical})
	})

	return links, fileLinks
}

// isFileLink reports whether the URL path ends with an allowlisted extension.
func (e *Extractor) isFileLink(u *url.URL) bool {
	if len(e.fileExts) == 0 {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return ext != "" && e.fileExts[ext]
}

// media enumerates images, preferring src and falling back to data-src for
// lazy loaders. Only absolute http(s) sources are kept.
func (e *Extractor) media(doc *goquery.Document, base *url.URL) []model.Media {
	var media []model.Media
	seen := make(map[string]bool)

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			src, ok = s.Attr("data-src")
			if !ok || strings.TrimSpace(src) == "" {
				return
			}
		}
		abs := resolve(base, src)
		if abs == nil || (abs.Scheme != "http" && abs.Scheme != "https") {
			return
		}
		if seen[abs.String()] {
			return
		}
		seen[abs.String()] = true
		media = append(media, model.Media{
			Src: abs.String(),
			Alt: s.AttrOr("alt", ""),
		})
	})
	return media
}

// structuredData collects well-formed JSON-LD blocks, skipping malformed ones.
func (e *Extractor) structuredData(doc *goquery.Document) []string {
	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		payload := strings.TrimSpace(s.Text())
		if payload == "" || !json.Valid([]byte(payload)) {
			return
		}
		blocks = append(blocks, payload)
	})
	return blocks
}

// skeleton walks the selected regions and emits up to MaxSkeletonNodes
// nodes, each with a best-effort selector and selected attributes.
func (e *Extractor) skeleton(doc *goquery.Document) []model.SkeletonNode {
	var nodes []model.SkeletonNode

	doc.Find(skeletonRegions).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(nodes) >= model.MaxSkeletonNodes {
			return false
		}
		n := s.Get(0)
		if n == nil {
			return true
		}

		node := model.SkeletonNode{
			Tag:      goquery.NodeName(s),
			Selector: BuildSelector(n),
			Text:     truncate(ownText(n), maxNodeText),
		}
		if attrs := selectedAttributes(n); len(attrs) > 0 {
			node.Attributes = attrs
		}
		if parent := n.Parent; parent != nil && parent.Data != "body" && parent.Data != "html" {
			node.ParentSelector = BuildSelector(parent)
		}

		nodes = append(nodes, node)
		return true
	})

	return nodes
}

// resolve resolves a possibly-relative reference against the page URL.
func resolve(base *url.URL, ref string) *url.URL {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil
	}
	return base.ResolveReference(parsed)
}

// normalizeWhitespace collapses whitespace runs into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts a string at n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
