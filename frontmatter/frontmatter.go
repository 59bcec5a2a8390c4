package frontmatter

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrMissingFrontmatter is returned when a document does not open with a
// `---` line followed by a header block and a closing `---` line.
var ErrMissingFrontmatter = errors.New("no frontmatter found")

// The whole text must match: an opening delimiter on the first line, the
// shortest possible header, a closing delimiter line, then the body.
var documentRe = regexp.MustCompile(`(?s)\A---\n(.*?)\n---\n(.*)\z`)

// Document is a parsed post source.
type Document struct {
	Fields map[string]string
	Body   string
}

// Parse splits source text into its header fields and markdown body.
func Parse(source string) (*Document, error) {
	source = strings.ReplaceAll(source, "\r\n", "\n")

	m := documentRe.FindStringSubmatch(source)
	if m == nil {
		return nil, ErrMissingFrontmatter
	}

	return &Document{
		Fields: parseHeader(m[1]),
		Body:   m[2],
	}, nil
}

func parseHeader(header string) map[string]string {
	fields := map[string]string{}
	for _, line := range strings.Split(header, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return fields
}

// unquote strips exactly one pair of surrounding double quotes.
func unquote(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	return value
}

// Get returns the value for key, or fallback when it is absent or empty.
func (d *Document) Get(key, fallback string) string {
	if v := d.Fields[key]; v != "" {
		return v
	}
	return fallback
}

// Format renders fields and body back into source text that Parse accepts.
// Keys are written in sorted order.
func Format(fields map[string]string, body string) (string, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "" || k != strings.TrimSpace(k) || strings.ContainsAny(k, ":\n") {
			return "", fmt.Errorf("invalid frontmatter key %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("---\n")
	if len(keys) == 0 {
		b.WriteString("\n")
	}
	for _, k := range keys {
		v := fields[k]
		if strings.Contains(v, "\n") {
			return "", fmt.Errorf("frontmatter value for %q spans multiple lines", k)
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(quote(v))
		b.WriteString("\n")
	}
	b.WriteString("---\n")
	b.WriteString(body)
	return b.String(), nil
}

func quote(value string) string {
	if value != strings.TrimSpace(value) || strings.HasPrefix(value, `"`) {
		return `"` + value + `"`
	}
	return value
}
