package extract

import (
	"strings"
	"testing"

	"github.com/websentry/websentry/internal/model"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title> Acme Widgets </title>
  <meta name="description" content="Widgets for every occasion.">
  <script type="application/ld+json">{"@type":"Organization","name":"Acme"}</script>
  <script type="application/ld+json">{not json</script>
</head>
<body>
  <header id="top"><h1>Acme   Widgets</h1></header>
  <nav>
    <a href="/products">Products</a>
    <a href="/products/">Duplicate products</a>
    <a href="https://partner.example.org/deals">Partner</a>
    <a href="mailto:sales@acme.example.com">Mail</a>
    <a href="/files/catalog.pdf">Catalog</a>
    <a href="/files/catalog.pdf">Catalog again</a>
  </nav>
  <main>
    <h2>Featured</h2>
    <h3>New arrivals</h3>
    <p>Spring   lineup is here.</p>
    <img src="/img/widget.png" alt="A widget">
    <img data-src="https://cdn.example.net/lazy.jpg" alt="Lazy">
    <img src="data:image/gif;base64,R0lGOD">
  </main>
</body>
</html>`

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor("https://acme.example.com/", []string{".pdf", ".zip"})
	if err != nil {
		t.Fatalf("NewExtractor() error = %v", err)
	}
	return e
}

func TestExtractorExtract(t *testing.T) {
	t.Parallel()

	ex, err := newTestExtractor(t).Extract("https://acme.example.com/home", samplePage)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	t.Run("title and description are trimmed", func(t *testing.T) {
		t.Parallel()
		if ex.Title != "Acme Widgets" {
			t.Errorf("Title = %q, want %q", ex.Title, "Acme Widgets")
		}
		if ex.Description != "Widgets for every occasion." {
			t.Errorf("Description = %q", ex.Description)
		}
	})

	t.Run("headings in document order", func(t *testing.T) {
		t.Parallel()
		want := []model.Heading{
			{Type: "h1", Text: "Acme Widgets"},
			{Type: "h2", Text: "Featured"},
			{Type: "h3", Text: "New arrivals"},
		}
		if len(ex.Headings) != len(want) {
			t.Fatalf("Headings = %v, want %v", ex.Headings, want)
		}
		for i, h := range want {
			if ex.Headings[i] != h {
				t.Errorf("Headings[%d] = %v, want %v", i, ex.Headings[i], h)
			}
		}
	})

	t.Run("body text is whitespace normalized", func(t *testing.T) {
		t.Parallel()
		if !strings.Contains(ex.BodyText, "Spring lineup is here.") {
			t.Errorf("BodyText = %q, want normalized run", ex.BodyText)
		}
	})

	t.Run("links are canonicalized, deduplicated and classified", func(t *testing.T) {
		t.Parallel()
		byURL := make(map[string]model.LinkType, len(ex.Links))
		for _, l := range ex.Links {
			byURL[l.URL] = l.Type
		}
		if got := byURL["https://acme.example.com/products"]; got != model.LinkInternal {
			t.Errorf("products link type = %v, want internal", got)
		}
		if got := byURL["https://partner.example.org/deals"]; got != model.LinkExternal {
			t.Errorf("partner link type = %v, want external", got)
		}
		if _, ok := byURL["mailto:sales@acme.example.com"]; ok {
			t.Error("mailto link should be dropped")
		}
		// /products and /products/ canonicalize to one entry.
		count := 0
		for url := range byURL {
			if strings.HasSuffix(url, "/products") {
				count++
			}
		}
		if count != 1 {
			t.Errorf("products entries = %d, want 1", count)
		}
	})

	t.Run("file links deduplicated by absolute URL", func(t *testing.T) {
		t.Parallel()
		want := []string{"https://acme.example.com/files/catalog.pdf"}
		if len(ex.FileLinks) != 1 || ex.FileLinks[0] != want[0] {
			t.Errorf("FileLinks = %v, want %v", ex.FileLinks, want)
		}
	})

	t.Run("media keeps absolute http sources only", func(t *testing.T) {
		t.Parallel()
		if len(ex.Media) != 2 {
			t.Fatalf("Media = %v, want 2 entries", ex.Media)
		}
		if ex.Media[0].Src != "https://acme.example.com/img/widget.png" || ex.Media[0].Alt != "A widget" {
			t.Errorf("Media[0] = %v", ex.Media[0])
		}
		if ex.Media[1].Src != "https://cdn.example.net/lazy.jpg" {
			t.Errorf("Media[1] = %v, want data-src fallback", ex.Media[1])
		}
	})

	t.Run("malformed JSON-LD is skipped", func(t *testing.T) {
		t.Parallel()
		if len(ex.StructuredData) != 1 {
			t.Fatalf("StructuredData = %v, want 1 block", ex.StructuredData)
		}
		if !strings.Contains(ex.StructuredData[0], `"Organization"`) {
			t.Errorf("StructuredData[0] = %q", ex.StructuredData[0])
		}
	})

	t.Run("skeleton records tags and selectors", func(t *testing.T) {
		t.Parallel()
		if len(ex.Skeleton) == 0 {
			t.Fatal("Skeleton is empty")
		}
		var header *model.SkeletonNode
		for i := range ex.Skeleton {
			if ex.Skeleton[i].Tag == "header" {
				header = &ex.Skeleton[i]
				break
			}
		}
		if header == nil {
			t.Fatal("no header node in skeleton")
		}
		if header.Selector != "#top" {
			t.Errorf("header selector = %q, want #top", header.Selector)
		}
		if header.Attributes["id"] != "top" {
			t.Errorf("header attributes = %v", header.Attributes)
		}
	})
}

func TestExtractorExtractDefaults(t *testing.T) {
	t.Parallel()

	ex, err := newTestExtractor(t).Extract("https://acme.example.com/bare", "<html><body><p>hi</p></body></html>")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if ex.Title != "" {
		t.Errorf("Title = %q, want empty", ex.Title)
	}
	if ex.Description != DefaultDescription {
		t.Errorf("Description = %q, want %q", ex.Description, DefaultDescription)
	}
}

func TestExtractorSkeletonCap(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("<html><body>")
	for range 600 {
		b.WriteString("<p>row</p>")
	}
	b.WriteString("</body></html>")

	ex, err := newTestExtractor(t).Extract("https://acme.example.com/big", b.String())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(ex.Skeleton) != model.MaxSkeletonNodes {
		t.Errorf("len(Skeleton) = %d, want %d", len(ex.Skeleton), model.MaxSkeletonNodes)
	}
}

func TestExtractorSeedHostCaseInsensitive(t *testing.T) {
	t.Parallel()

	e, err := NewExtractor("https://ACME.example.com", nil)
	if err != nil {
		t.Fatalf("NewExtractor() error = %v", err)
	}
	ex, err := e.Extract("https://acme.example.com/", `<html><body><a href="https://Acme.EXAMPLE.com/about">About</a></body></html>`)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(ex.Links) != 1 || ex.Links[0].Type != model.LinkInternal {
		t.Errorf("Links = %v, want one internal link", ex.Links)
	}
}
