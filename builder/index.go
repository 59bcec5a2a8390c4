package builder

import (
	"bytes"
	_ "embed"
	"path/filepath"
	"slices"
	"sort"
	"text/template"
	"time"
)

const indexFile = "index.html"

//go:embed index.html.tmpl
var indexShell string

var indexTemplate = template.Must(template.New(indexFile).Parse(indexShell))

// Layouts accepted for a post date, tried in order.
var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// parseDate returns the zero time for dates it cannot read, so they sort last.
func parseDate(value string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SortPosts returns a copy of posts ordered newest first. Posts sharing a
// date keep their relative order.
func SortPosts(posts []*Post) []*Post {
	sorted := slices.Clone(posts)
	dates := make(map[*Post]time.Time, len(sorted))
	for _, p := range sorted {
		dates[p] = parseDate(p.Date)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return dates[sorted[i]].After(dates[sorted[j]])
	})
	return sorted
}

// BuildIndex renders the index page listing posts newest first.
func BuildIndex(posts []*Post) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, SortPosts(posts)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteIndex renders the index page and writes it to outputDir.
func WriteIndex(outputDir string, posts []*Post) (string, error) {
	page, err := BuildIndex(posts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(outputDir, indexFile)
	if err := writeFileAtomic(path, page); err != nil {
		return "", err
	}
	return path, nil
}
