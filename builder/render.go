package builder

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"adventune/skrivblog/frontmatter"
)

const (
	wordsPerMinute = 200
	dateLayout     = "2006-01-02"

	defaultTitle    = "Untitled"
	defaultCodeLang = "text"
)

// ErrInvalidSlug is returned for slugs that would escape the output directory.
var ErrInvalidSlug = errors.New("invalid slug")

// RendererFunc converts a markdown body into HTML.
type RendererFunc func(md []byte) []byte

// Post is the metadata record of a rendered post.
type Post struct {
	Title       string
	Description string
	Date        string
	ReadTime    int
	Tags        string
	TagList     []string
	Slug        string
	Content     string
	OutputFile  string
}

// MarkdownToHTML converts markdown to HTML with GitHub flavoured extensions.
// Soft line breaks become <br> and code blocks are wrapped in a highlight div.
func MarkdownToHTML(md []byte) []byte {
	// create markdown parser with extensions
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock | parser.HardLineBreak
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse(md)

	// create HTML renderer with extensions
	opts := html.RendererOptions{
		Flags:          html.CommonFlags,
		RenderNodeHook: renderCodeBlock,
	}
	renderer := html.NewRenderer(opts)

	return markdown.Render(doc, renderer)
}

func renderCodeBlock(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	block, ok := node.(*ast.CodeBlock)
	if !ok {
		return ast.GoToNext, false
	}
	if !entering {
		return ast.GoToNext, true
	}

	lang := defaultCodeLang
	if info := strings.Fields(string(block.Info)); len(info) > 0 {
		lang = info[0]
	}

	io.WriteString(w, `<div class="highlight"><code class="language-`)
	html.EscapeHTML(w, []byte(lang))
	io.WriteString(w, `">`)
	html.EscapeHTML(w, block.Literal)
	io.WriteString(w, "</code></div>\n")
	return ast.GoToNext, true
}

// RenderPost turns one post source into its finished page using tmpl.
// Nothing is written; the caller decides where the page goes.
func (b *Builder) RenderPost(filename string, source []byte, tmpl string) (*Post, string, error) {
	doc, err := frontmatter.Parse(string(source))
	if err != nil {
		return nil, "", err
	}

	content := b.cfg.Renderer([]byte(doc.Body))

	post := &Post{
		Title:       doc.Get("title", defaultTitle),
		Description: doc.Get("description", ""),
		Date:        doc.Get("date", b.cfg.Now().UTC().Format(dateLayout)),
		ReadTime:    b.readTime(filename, doc),
		Tags:        doc.Get("tags", ""),
		Slug:        doc.Get("slug", strings.TrimSuffix(filepath.Base(filename), ".md")),
		Content:     string(content),
	}
	post.TagList = splitTags(post.Tags)

	if !validSlug(post.Slug) {
		return nil, "", fmt.Errorf("%w %q", ErrInvalidSlug, post.Slug)
	}
	post.OutputFile = post.Slug + ".html"

	return post, Substitute(tmpl, post.fields()), nil
}

// readTime honours an explicit readTime header and computes one otherwise.
func (b *Builder) readTime(filename string, doc *frontmatter.Document) int {
	raw := doc.Get("readTime", "")
	if raw == "" {
		return readingTime(doc.Body)
	}

	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 1 {
		b.log.Warn().Str("file", filename).Str("readTime", raw).Msg("Ignoring invalid readTime, computing it instead")
		return readingTime(doc.Body)
	}
	return minutes
}

// readingTime estimates minutes to read body, rounded up, never below one.
func readingTime(body string) int {
	words := len(strings.Fields(body))
	return max((words+wordsPerMinute-1)/wordsPerMinute, 1)
}

func splitTags(tags string) []string {
	list := []string{}
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			list = append(list, tag)
		}
	}
	return list
}

func validSlug(slug string) bool {
	return slug != "" && slug != "." && slug != ".." && !strings.ContainsAny(slug, `/\`)
}
