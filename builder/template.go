package builder

import (
	"regexp"
	"strconv"
	"strings"
)

// Matches a tag list block (shortest body) or a single {{key}} placeholder.
var placeholderRe = regexp.MustCompile(`(?s)\{\{#each tagList\}\}.*?\{\{/each\}\}|\{\{(\w+)\}\}`)

const tagSeparator = "\n                    "

// Fields holds the values a page template can reference.
type Fields struct {
	Title       string
	Description string
	Date        string
	ReadTime    string
	Tags        string
	Slug        string
	Content     string
	TagList     []string
}

func (p *Post) fields() Fields {
	return Fields{
		Title:       p.Title,
		Description: p.Description,
		Date:        p.Date,
		ReadTime:    strconv.Itoa(p.ReadTime),
		Tags:        p.Tags,
		Slug:        p.Slug,
		Content:     p.Content,
		TagList:     p.TagList,
	}
}

func (f Fields) lookup(key string) (string, bool) {
	switch key {
	case "title":
		return f.Title, true
	case "description":
		return f.Description, true
	case "date":
		return f.Date, true
	case "readTime":
		return f.ReadTime, true
	case "tags":
		return f.Tags, true
	case "slug":
		return f.Slug, true
	case "content":
		return f.Content, true
	}
	return "", false
}

// Substitute fills tmpl with f in a single pass over the template text.
// Inserted values are never scanned for placeholders, and unknown
// placeholders are kept as written.
func Substitute(tmpl string, f Fields) string {
	var b strings.Builder
	b.Grow(len(tmpl) + len(f.Content))

	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(tmpl, -1) {
		b.WriteString(tmpl[last:m[0]])
		last = m[1]

		if m[2] < 0 {
			b.WriteString(tagChips(f.TagList))
			continue
		}
		if v, ok := f.lookup(tmpl[m[2]:m[3]]); ok {
			b.WriteString(v)
		} else {
			b.WriteString(tmpl[m[0]:m[1]])
		}
	}
	b.WriteString(tmpl[last:])
	return b.String()
}

func tagChips(tags []string) string {
	chips := make([]string, len(tags))
	for i, tag := range tags {
		chips[i] = `<span class="tag">` + tag + `</span>`
	}
	return strings.Join(chips, tagSeparator)
}
