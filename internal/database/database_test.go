package database

import (
	"errors"
	"testing"
	"time"

	"github.com/websentry/websentry/internal/model"
)

func openTestDB(t *testing.T) *ScrapeDB {
	t.Helper()
	sdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := sdb.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return sdb
}

func samplePage(url string) *model.PageRecord {
	return &model.PageRecord{
		URL:         url,
		Title:       "Acme Widgets",
		Description: "Widgets for every occasion.",
		FullText:    "Acme Widgets Spring lineup is here.",
		Depth:       1,
		CapturedAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		FolderPath:  "/tmp/acme.example.com/home",
		ProxyUsed:   model.ProxyDirect,
		Headings: []model.Heading{
			{Type: "h1", Text: "Acme Widgets"},
			{Type: "h2", Text: "Featured"},
		},
		Links: []model.Link{
			{Type: model.LinkInternal, URL: "https://acme.example.com/products"},
			{Type: model.LinkExternal, URL: "https://partner.example.org/deals"},
		},
		Media: []model.Media{
			{Src: "https://acme.example.com/img/widget.png", Alt: "A widget"},
		},
		StructuredData: []string{`{"@type":"Organization","name":"Acme"}`},
		Skeleton: []model.SkeletonNode{
			{Tag: "header", Selector: "#top", Attributes: map[string]string{"id": "top"}},
		},
		Files: []model.FileAsset{
			{
				URL:          "https://acme.example.com/files/catalog.pdf",
				Name:         "catalog.pdf",
				Extension:    ".pdf",
				SizeBytes:    1024,
				LocalPath:    "downloads/catalog.pdf",
				Status:       model.DownloadSuccess,
				MimeType:     "application/pdf",
				DownloadedAt: time.Date(2026, 3, 14, 9, 30, 5, 0, time.UTC),
			},
			{
				URL:       "https://acme.example.com/files/old.zip",
				Name:      "old.zip",
				Extension: ".zip",
				Status:    model.DownloadFailed,
				Error:     "status 404",
			},
		},
	}
}

func TestOpenRequiresExistingDatabase(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
	if err == nil {
		t.Fatal("Open() with CreateIfNotExists=false on empty dir should fail")
	}
}

func TestStorePageRoundTrip(t *testing.T) {
	t.Parallel()

	sdb := openTestDB(t)
	page := samplePage("https://acme.example.com/home")

	id, err := sdb.StorePage(t.Context(), page)
	if err != nil {
		t.Fatalf("StorePage() error = %v", err)
	}
	if id == 0 || page.ID != id {
		t.Fatalf("StorePage() id = %d, record.ID = %d", id, page.ID)
	}

	got, err := sdb.GetPageByURL(t.Context(), page.URL)
	if err != nil {
		t.Fatalf("GetPageByURL() error = %v", err)
	}
	if got.Title != page.Title || got.Description != page.Description {
		t.Errorf("title/description = %q/%q", got.Title, got.Description)
	}
	if got.Depth != 1 || got.ProxyUsed != model.ProxyDirect {
		t.Errorf("depth = %d, proxy = %q", got.Depth, got.ProxyUsed)
	}
	if !got.CapturedAt.Equal(page.CapturedAt) {
		t.Errorf("CapturedAt = %v, want %v", got.CapturedAt, page.CapturedAt)
	}
	if len(got.Headings) != 2 || got.Headings[0].Text != "Acme Widgets" {
		t.Errorf("Headings = %v", got.Headings)
	}
	if len(got.Links) != 2 || got.Links[0].Type != model.LinkInternal {
		t.Errorf("Links = %v", got.Links)
	}
	if len(got.Media) != 1 || got.Media[0].Alt != "A widget" {
		t.Errorf("Media = %v", got.Media)
	}
	if len(got.StructuredData) != 1 {
		t.Errorf("StructuredData = %v", got.StructuredData)
	}
	if len(got.Files) != 2 {
		t.Fatalf("Files = %v", got.Files)
	}
	if got.Files[0].Status != model.DownloadSuccess || got.Files[0].SizeBytes != 1024 {
		t.Errorf("Files[0] = %+v", got.Files[0])
	}
	if got.Files[1].Status != model.DownloadFailed || got.Files[1].LocalPath != "" {
		t.Errorf("Files[1] = %+v", got.Files[1])
	}
}

func TestStorePageDuplicateReturnsExistingID(t *testing.T) {
	t.Parallel()

	sdb := openTestDB(t)
	first := samplePage("https://acme.example.com/home")
	firstID, err := sdb.StorePage(t.Context(), first)
	if err != nil {
		t.Fatalf("StorePage() error = %v", err)
	}

	second := samplePage("https://acme.example.com/home")
	second.Title = "Acme Widgets v2"
	id, err := sdb.StorePage(t.Context(), second)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("StorePage() error = %v, want ErrDuplicate", err)
	}
	if id != firstID {
		t.Errorf("duplicate id = %d, want %d", id, firstID)
	}

	// The stored row is untouched by the rejected insert.
	got, err := sdb.GetPageByURL(t.Context(), first.URL)
	if err != nil {
		t.Fatalf("GetPageByURL() error = %v", err)
	}
	if got.Title != "Acme Widgets" {
		t.Errorf("Title = %q after duplicate insert", got.Title)
	}

	count, err := sdb.PageCount(t.Context())
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("PageCount() = %d, want 1", count)
	}
}

func TestRefreshPageReplacesContentAndChildren(t *testing.T) {
	t.Parallel()

	sdb := openTestDB(t)
	page := samplePage("https://acme.example.com/home")
	id, err := sdb.StorePage(t.Context(), page)
	if err != nil {
		t.Fatalf("StorePage() error = %v", err)
	}

	updated := samplePage(page.URL)
	updated.Title = "Acme Widgets v2"
	updated.Links = updated.Links[:1]
	updated.CapturedAt = page.CapturedAt.Add(time.Hour)
	if err := sdb.RefreshPage(t.Context(), id, updated); err != nil {
		t.Fatalf("RefreshPage() error = %v", err)
	}

	got, err := sdb.GetPageByURL(t.Context(), page.URL)
	if err != nil {
		t.Fatalf("GetPageByURL() error = %v", err)
	}
	if got.ID != id {
		t.Errorf("ID = %d, want %d", got.ID, id)
	}
	if got.Title != "Acme Widgets v2" {
		t.Errorf("Title = %q", got.Title)
	}
	if len(got.Links) != 1 {
		t.Errorf("Links = %v, want replaced set", got.Links)
	}
}

func TestGetPageByURLNotFound(t *testing.T) {
	t.Parallel()

	sdb := openTestDB(t)
	_, err := sdb.GetPageByURL(t.Context(), "https://nowhere.example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPageByURL() error = %v, want ErrNotFound", err)
	}
}

func TestSnapshotHistory(t *testing.T) {
	t.Parallel()

	sdb := openTestDB(t)
	page := samplePage("https://acme.example.com/home")
	if _, err := sdb.StorePage(t.Context(), page); err != nil {
		t.Fatalf("StorePage() error = %v", err)
	}

	first := model.NewSnapshot(page)
	firstID, err := sdb.InsertSnapshot(t.Context(), first)
	if err != nil {
		t.Fatalf("InsertSnapshot() error = %v", err)
	}

	page.Title = "Acme Widgets v2"
	page.CapturedAt = page.CapturedAt.Add(time.Hour)
	second := model.NewSnapshot(page)
	secondID, err := sdb.InsertSnapshot(t.Context(), second)
	if err != nil {
		t.Fatalf("InsertSnapshot() error = %v", err)
	}

	t.Run("previous of latest is the first snapshot", func(t *testing.T) {
		prev, err := sdb.PreviousSnapshot(t.Context(), page.URL, secondID)
		if err != nil {
			t.Fatalf("PreviousSnapshot() error = %v", err)
		}
		if prev.ID != firstID {
			t.Errorf("PreviousSnapshot() id = %d, want %d", prev.ID, firstID)
		}
		if prev.Title != "Acme Widgets" {
			t.Errorf("PreviousSnapshot() title = %q", prev.Title)
		}
	})

	t.Run("beforeID zero yields latest", func(t *testing.T) {
		latest, err := sdb.PreviousSnapshot(t.Context(), page.URL, 0)
		if err != nil {
			t.Fatalf("PreviousSnapshot() error = %v", err)
		}
		if latest.ID != secondID {
			t.Errorf("latest id = %d, want %d", latest.ID, secondID)
		}
	})

	t.Run("no earlier snapshot", func(t *testing.T) {
		_, err := sdb.PreviousSnapshot(t.Context(), page.URL, firstID)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("PreviousSnapshot() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list preserves insertion order", func(t *testing.T) {
		snaps, err := sdb.ListSnapshots(t.Context(), page.URL)
		if err != nil {
			t.Fatalf("ListSnapshots() error = %v", err)
		}
		if len(snaps) != 2 {
			t.Fatalf("len(snaps) = %d, want 2", len(snaps))
		}
		if snaps[0].ID != firstID || snaps[1].ID != secondID {
			t.Errorf("order = %d, %d", snaps[0].ID, snaps[1].ID)
		}
		if !snaps[1].TakenAt.After(snaps[0].TakenAt) {
			t.Errorf("timestamps not increasing: %v then %v", snaps[0].TakenAt, snaps[1].TakenAt)
		}
	})

	t.Run("tracked urls", func(t *testing.T) {
		urls, err := sdb.ListTrackedURLs(t.Context())
		if err != nil {
			t.Fatalf("ListTrackedURLs() error = %v", err)
		}
		if len(urls) != 1 || urls[0] != page.URL {
			t.Errorf("urls = %v", urls)
		}
	})
}

func TestChangeLogRoundTrip(t *testing.T) {
	t.Parallel()

	sdb := openTestDB(t)
	change := &model.Change{
		URL:                "https://acme.example.com/home",
		ChangedAt:          time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
		PreviousSnapshotID: 1,
		CurrentSnapshotID:  2,
		Type:               model.ChangeContent,
		Category:           "title",
		Summary:            "Title changed",
		Severity:           model.SeverityMedium,
		ContentDiffs: []model.ContentDiff{
			{Field: "title", OldValue: "Acme Widgets", NewValue: "Acme Widgets v2", Similarity: 0.8},
		},
		LinkChanges: []model.LinkChange{
			{URL: "https://acme.example.com/sale", Type: model.LinkInternal, Action: model.ActionAdded},
		},
		MediaChanges: []model.MediaChange{
			{Src: "https://acme.example.com/img/old.png", Action: model.ActionRemoved},
		},
	}

	if _, err := sdb.InsertChange(t.Context(), change); err != nil {
		t.Fatalf("InsertChange() error = %v", err)
	}

	changes, err := sdb.ListChanges(t.Context(), change.URL, time.Time{})
	if err != nil {
		t.Fatalf("ListChanges() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("len(changes) = %d, want 1", len(changes))
	}
	got := changes[0]
	if got.Type != model.ChangeContent || got.Category != "title" {
		t.Errorf("type/category = %v/%q", got.Type, got.Category)
	}
	if got.Severity != model.SeverityMedium {
		t.Errorf("Severity = %v, want medium", got.Severity)
	}
	if len(got.ContentDiffs) != 1 || got.ContentDiffs[0].NewValue != "Acme Widgets v2" {
		t.Errorf("ContentDiffs = %v", got.ContentDiffs)
	}
	if len(got.LinkChanges) != 1 || got.LinkChanges[0].Action != model.ActionAdded {
		t.Errorf("LinkChanges = %v", got.LinkChanges)
	}
	if len(got.MediaChanges) != 1 || got.MediaChanges[0].Action != model.ActionRemoved {
		t.Errorf("MediaChanges = %v", got.MediaChanges)
	}

	t.Run("since filter excludes earlier entries", func(t *testing.T) {
		later, err := sdb.ListChanges(t.Context(), change.URL, change.ChangedAt.Add(time.Minute))
		if err != nil {
			t.Fatalf("ListChanges() error = %v", err)
		}
		if len(later) != 0 {
			t.Errorf("len(later) = %d, want 0", len(later))
		}
	})
}

func TestParseTimestampFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "rfc3339 nano",
			input: "2026-03-14T09:30:00.123456789Z",
			want:  time.Date(2026, 3, 14, 9, 30, 0, 123456789, time.UTC),
		},
		{
			name:  "sqlite default",
			input: "2026-03-14 09:30:00",
			want:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "garbage yields zero time",
			input: "not a time",
			want:  time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.input); !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
