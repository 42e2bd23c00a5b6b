package domain

import (
	"strings"
	"time"
)

// Article is a single feed entry flowing through one digest run.
type Article struct {
	Title     string
	URL       string
	Published string
	Source    string
	Tags      []Tag
}

// IdentityKey identifies an article for at-most-once presentation:
// the URL when present, otherwise the title, case-insensitive and trimmed.
func (a Article) IdentityKey() string {
	if key := strings.ToLower(strings.TrimSpace(a.URL)); key != "" {
		return key
	}
	return strings.ToLower(strings.TrimSpace(a.Title))
}

// SourceFromTitle returns the outlet name aggregators append after the last " - ".
func SourceFromTitle(title string) string {
	idx := strings.LastIndex(title, " - ")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(title[idx+len(" - "):])
}

// SaveResult is what the persistence collaborator reports for one batch.
type SaveResult struct {
	Inserted int
	Skipped  int
	New      []Article
}

// RunReport summarises one pipeline execution, including silently dropped items.
type RunReport struct {
	RunID           string
	StartedAt       time.Time
	Fetched         int
	Relevant        int
	DroppedNoURL    int
	DuplicateURLs   int
	Inserted        int
	Skipped         int
	DroppedNearDups int
	Grouped         int
	Groups          int
	Delivered       bool
	Overflowed      bool
}
