package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"adventune/skrivblog/frontmatter"
)

const testTemplate = `<html><head><title>{{title}}</title></head><body>
<h1>{{title}}</h1>
<p class="meta">{{date}} · {{readTime}} min read</p>
<div class="tags">
    {{#each tagList}}
    <span class="tag">{{this}}</span>
    {{/each}}
</div>
{{content}}
</body></html>
`

type testSite struct {
	posts    string
	output   string
	template string
}

func newTestSite(t *testing.T) testSite {
	t.Helper()
	root := t.TempDir()
	site := testSite{
		posts:    filepath.Join(root, "posts"),
		output:   filepath.Join(root, "out", "blog"),
		template: filepath.Join(root, "template.html"),
	}
	require.NoError(t, os.MkdirAll(site.posts, 0o755))
	writeFile(t, site.template, testTemplate)
	return site
}

func (s testSite) config() Config {
	logger := zerolog.Nop()
	return Config{
		PostsDir:     s.posts,
		OutputDir:    s.output,
		TemplateFile: s.template,
		Renderer:     MarkdownToHTML,
		Now:          fixedNow,
		Logger:       &logger,
	}
}

func (s testSite) addPost(t *testing.T, name, content string) {
	t.Helper()
	writeFile(t, filepath.Join(s.posts, name), content)
}

func (s testSite) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.output, name))
	require.NoError(t, err)
	return string(data)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func outputNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNew_RequiresRenderer(t *testing.T) {
	site := newTestSite(t)
	cfg := site.config()
	cfg.Renderer = nil

	result, err := Build(cfg)
	require.Nil(t, result)
	require.ErrorIs(t, err, ErrNoRenderer)

	_, statErr := os.Stat(site.output)
	require.True(t, os.IsNotExist(statErr), "output directory must not be created")
}

func TestBuild_MissingTemplateIsFatal(t *testing.T) {
	site := newTestSite(t)
	site.addPost(t, "a.md", "---\ntitle: A\n---\nbody\n")
	require.NoError(t, os.Remove(site.template))

	_, err := Build(site.config())
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestBuild_NoPosts(t *testing.T) {
	site := newTestSite(t)
	site.addPost(t, "README.txt", "not a post")

	result, err := Build(site.config())
	require.NoError(t, err)
	require.Empty(t, result.Posts)
	require.Empty(t, result.Index)
	require.Empty(t, outputNames(t, site.output))
}

func TestBuild_EndToEnd(t *testing.T) {
	site := newTestSite(t)
	site.addPost(t, "hello.md", "---\ntitle: \"Hello\"\ndate: 2024-05-01\ntags: \"x,y\"\n---\n"+strings.Repeat("word ", 600))

	result, err := Build(site.config())
	require.NoError(t, err)
	require.Len(t, result.Posts, 1)
	require.Empty(t, result.Failures)
	require.Equal(t, filepath.Join(site.output, "index.html"), result.Index)

	post := result.Posts[0]
	require.Equal(t, "Hello", post.Title)
	require.Equal(t, 3, post.ReadTime)
	require.Equal(t, []string{"x", "y"}, post.TagList)
	require.Equal(t, "hello.html", post.OutputFile)

	page := site.read(t, "hello.html")
	require.Contains(t, page, "<title>Hello</title>")
	require.Contains(t, page, "2024-05-01 · 3 min read")
	require.Contains(t, page, `<span class="tag">x</span>`+tagSeparator+`<span class="tag">y</span>`)
	require.NotContains(t, page, "{{")

	index := site.read(t, "index.html")
	require.Equal(t, 1, strings.Count(index, `<article class="post-card">`))
	require.Contains(t, index, `<a href="hello.html">Hello</a>`)

	require.ElementsMatch(t, []string{"hello.html", "index.html"}, outputNames(t, site.output))
}

func TestBuild_IsolatesBadPosts(t *testing.T) {
	site := newTestSite(t)
	site.addPost(t, "a-good.md", "---\ntitle: Good\ndate: 2024-01-01\n---\nfine\n")
	site.addPost(t, "b-bad.md", "---\ntitle: Bad\nno closing delimiter\n")
	site.addPost(t, "c-also-good.md", "---\ntitle: Also good\ndate: 2024-02-01\n---\nfine\n")
	site.addPost(t, "notes.txt", "---\ntitle: ignored\n---\n")
	require.NoError(t, os.Mkdir(filepath.Join(site.posts, "drafts.md"), 0o755))

	result, err := Build(site.config())
	require.NoError(t, err)

	require.Len(t, result.Posts, 2)
	require.Equal(t, "Good", result.Posts[0].Title)
	require.Equal(t, "Also good", result.Posts[1].Title)

	require.Len(t, result.Failures, 1)
	require.Equal(t, filepath.Join(site.posts, "b-bad.md"), result.Failures[0].File)
	require.True(t, errors.Is(result.Failures[0].Err, frontmatter.ErrMissingFrontmatter))

	require.ElementsMatch(t, []string{"a-good.html", "c-also-good.html", "index.html"}, outputNames(t, site.output))

	index := site.read(t, "index.html")
	require.Less(t, strings.Index(index, "c-also-good.html"), strings.Index(index, "a-good.html"))
}

func TestBuild_IsIdempotent(t *testing.T) {
	site := newTestSite(t)
	site.addPost(t, "one.md", "---\ntitle: One\ndate: 2024-01-01\ntags: a\n---\n# One\n\ntext\n")
	site.addPost(t, "two.md", "---\ntitle: Two\n---\n```sh\necho hi\n```\n")

	_, err := Build(site.config())
	require.NoError(t, err)
	first := map[string]string{}
	for _, name := range outputNames(t, site.output) {
		first[name] = site.read(t, name)
	}

	_, err = Build(site.config())
	require.NoError(t, err)
	second := map[string]string{}
	for _, name := range outputNames(t, site.output) {
		second[name] = site.read(t, name)
	}

	require.Equal(t, first, second)
	require.Len(t, first, 3)
}

func TestBuild_OverwritesExistingPages(t *testing.T) {
	site := newTestSite(t)
	require.NoError(t, os.MkdirAll(site.output, 0o755))
	writeFile(t, filepath.Join(site.output, "post.html"), "stale")
	writeFile(t, filepath.Join(site.output, "index.html"), "stale")
	site.addPost(t, "post.md", "---\ntitle: Fresh\n---\n")

	_, err := Build(site.config())
	require.NoError(t, err)

	require.Contains(t, site.read(t, "post.html"), "<title>Fresh</title>")
	require.Contains(t, site.read(t, "index.html"), "Fresh")
}

func TestWatch_RebuildsOnNewPost(t *testing.T) {
	site := newTestSite(t)
	b, err := New(site.config())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Watch(ctx, 10*time.Millisecond)
	}()

	n := 0
	require.Eventually(t, func() bool {
		n++
		_ = os.WriteFile(filepath.Join(site.posts, fmt.Sprintf("post-%d.md", n)), []byte("---\ntitle: Watched\n---\nbody\n"), 0o644)
		_, err := os.Stat(filepath.Join(site.output, "index.html"))
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
