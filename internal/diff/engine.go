package diff

import (
	"encoding/json"
	"fmt"

	"github.com/websentry/websentry/internal/model"
)

const (
	// fullTextCompareChars caps how much body text the similarity and
	// diff computations consider on each side.
	fullTextCompareChars = 500

	// fullTextChangeThreshold: below this similarity a full-text change
	// is reported at all.
	fullTextChangeThreshold = 0.95

	// fullTextHighThreshold: below this similarity the change is high
	// severity instead of medium.
	fullTextHighThreshold = 0.70

	// maxSamples caps how many items a set-difference change carries in
	// its details and child rows.
	maxSamples = 10
)

// Engine compares two captures of one URL and emits typed changes.
// It is stateless; callers attach snapshot ids before persisting.
type Engine struct{}

// NewEngine creates a diff engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Compare diffs a previous capture against the current one and returns the
// changes, which may be empty when the page is unchanged. Both records must
// belong to the same canonical URL. URL and ChangedAt are filled on every
// change; snapshot ids are the caller's to set.
func (e *Engine) Compare(prev, cur *model.PageRecord) []model.Change {
	var changes []model.Change
	add := func(c model.Change) {
		c.URL = cur.URL
		c.ChangedAt = cur.CapturedAt
		changes = append(changes, c)
	}

	if prev.Title != cur.Title {
		add(contentChange("title", prev.Title, cur.Title, model.SeverityMedium))
	}
	if prev.Description != cur.Description {
		add(contentChange("description", prev.Description, cur.Description, model.SeverityLow))
	}
	if c, changed := e.fullTextChange(prev.FullText, cur.FullText); changed {
		add(c)
	}
	if len(prev.Headings) != len(cur.Headings) {
		add(model.Change{
			Type:     model.ChangeStructure,
			Category: "header_count",
			Summary: fmt.Sprintf("Header count changed from %d to %d",
				len(prev.Headings), len(cur.Headings)),
			Severity: model.SeverityLow,
		})
	}

	added, removed := diffLinkSets(prev.Links, cur.Links)
	if len(added) > 0 {
		add(linkChange("links_added", added, model.ActionAdded, model.SeverityLow))
	}
	if len(removed) > 0 {
		add(linkChange("links_removed", removed, model.ActionRemoved, model.SeverityMedium))
	}

	mediaAdded, mediaRemoved := diffMediaSets(prev.Media, cur.Media)
	if len(mediaAdded) > 0 {
		add(mediaChange("media_added", mediaAdded, model.ActionAdded))
	}
	if len(mediaRemoved) > 0 {
		add(mediaChange("media_removed", mediaRemoved, model.ActionRemoved))
	}

	filesAdded, filesRemoved := diffFileSets(prev.Files, cur.Files)
	if len(filesAdded) > 0 {
		add(fileChange("files_added", filesAdded, model.SeverityMedium))
	}
	if len(filesRemoved) > 0 {
		add(fileChange("files_removed", filesRemoved, model.SeverityHigh))
	}

	return changes
}

// contentChange builds a title or description change with diff + similarity.
func contentChange(field, oldVal, newVal string, severity model.Severity) model.Change {
	return model.Change{
		Type:     model.ChangeContent,
		Category: field,
		Summary:  fmt.Sprintf("%s changed", fieldLabel(field)),
		Severity: severity,
		ContentDiffs: []model.ContentDiff{{
			Field:      field,
			OldValue:   oldVal,
			NewValue:   newVal,
			DiffHTML:   SideBySideHTML(oldVal, newVal),
			Similarity: Similarity(oldVal, newVal),
		}},
	}
}

// fullTextChange reports a body-text change when the hashes differ and the
// truncated similarity falls below the change threshold.
func (e *Engine) fullTextChange(oldText, newText string) (model.Change, bool) {
	if model.HashText(oldText) == model.HashText(newText) {
		return model.Change{}, false
	}
	oldHead := truncateRunes(oldText, fullTextCompareChars)
	newHead := truncateRunes(newText, fullTextCompareChars)
	sim := Similarity(oldHead, newHead)
	if sim >= fullTextChangeThreshold {
		return model.Change{}, false
	}

	severity := model.SeverityMedium
	if sim < fullTextHighThreshold {
		severity = model.SeverityHigh
	}
	return model.Change{
		Type:     model.ChangeContent,
		Category: "full_text",
		Summary:  fmt.Sprintf("Body text changed (similarity %.2f)", sim),
		Severity: severity,
		ContentDiffs: []model.ContentDiff{{
			Field:      "full_text",
			OldValue:   oldHead,
			NewValue:   newHead,
			DiffHTML:   SideBySideHTML(oldHead, newHead),
			Similarity: sim,
		}},
	}, true
}

// setDetails is the JSON payload stored with each set-difference change.
type setDetails struct {
	Count   int   `json:"count"`
	Samples []any `json:"samples"`
}

func marshalDetails(count int, samples []any) string {
	payload, err := json.Marshal(setDetails{Count: count, Samples: samples})
	if err != nil {
		return ""
	}
	return string(payload)
}

func linkChange(category string, links []model.Link, action model.ChangeAction, severity model.Severity) model.Change {
	c := model.Change{
		Type:     model.ChangeLinks,
		Category: category,
		Summary:  fmt.Sprintf("%d links %s", len(links), action),
		Severity: severity,
	}
	var samples []any
	for i, l := range links {
		if i >= maxSamples {
			break
		}
		samples = append(samples, l)
		c.LinkChanges = append(c.LinkChanges, model.LinkChange{
			URL:    l.URL,
			Type:   l.Type,
			Action: action,
		})
	}
	c.Details = marshalDetails(len(links), samples)
	return c
}

func mediaChange(category string, media []model.Media, action model.ChangeAction) model.Change {
	c := model.Change{
		Type:     model.ChangeMedia,
		Category: category,
		Summary:  fmt.Sprintf("%d images %s", len(media), action),
		Severity: model.SeverityLow,
	}
	var samples []any
	for i, m := range media {
		if i >= maxSamples {
			break
		}
		samples = append(samples, m)
		c.MediaChanges = append(c.MediaChanges, model.MediaChange{
			Src:    m.Src,
			Alt:    m.Alt,
			Action: action,
		})
	}
	c.Details = marshalDetails(len(media), samples)
	return c
}

func fileChange(category string, urls []string, severity model.Severity) model.Change {
	action := model.ActionAdded
	if category == "files_removed" {
		action = model.ActionRemoved
	}
	c := model.Change{
		Type:     model.ChangeFiles,
		Category: category,
		Summary:  fmt.Sprintf("%d files %s", len(urls), action),
		Severity: severity,
	}
	var samples []any
	for i, u := range urls {
		if i >= maxSamples {
			break
		}
		samples = append(samples, u)
	}
	c.Details = marshalDetails(len(urls), samples)
	return c
}

// diffLinkSets computes the set difference on (URL, type) pairs.
func diffLinkSets(prev, cur []model.Link) (added, removed []model.Link) {
	prevSet := make(map[model.Link]bool, len(prev))
	for _, l := range prev {
		prevSet[l] = true
	}
	curSet := make(map[model.Link]bool, len(cur))
	for _, l := range cur {
		curSet[l] = true
	}
	for _, l := range cur {
		if !prevSet[l] {
			added = append(added, l)
		}
	}
	for _, l := range prev {
		if !curSet[l] {
			removed = append(removed, l)
		}
	}
	return added, removed
}

// diffMediaSets computes the set difference on image src.
func diffMediaSets(prev, cur []model.Media) (added, removed []model.Media) {
	prevSet := make(map[string]bool, len(prev))
	for _, m := range prev {
		prevSet[m.Src] = true
	}
	curSet := make(map[string]bool, len(cur))
	for _, m := range cur {
		curSet[m.Src] = true
	}
	for _, m := range cur {
		if !prevSet[m.Src] {
			added = append(added, m)
		}
	}
	for _, m := range prev {
		if !curSet[m.Src] {
			removed = append(removed, m)
		}
	}
	return added, removed
}

// diffFileSets computes the set difference on file URL.
func diffFileSets(prev, cur []model.FileAsset) (added, removed []string) {
	prevSet := make(map[string]bool, len(prev))
	for _, f := range prev {
		prevSet[f.URL] = true
	}
	curSet := make(map[string]bool, len(cur))
	for _, f := range cur {
		curSet[f.URL] = true
	}
	for _, f := range cur {
		if !prevSet[f.URL] {
			added = append(added, f.URL)
		}
	}
	for _, f := range prev {
		if !curSet[f.URL] {
			removed = append(removed, f.URL)
		}
	}
	return added, removed
}

// fieldLabel maps a field name to its summary label.
func fieldLabel(field string) string {
	switch field {
	case "title":
		return "Title"
	case "description":
		return "Description"
	default:
		return field
	}
}

// truncateRunes cuts a string at n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
