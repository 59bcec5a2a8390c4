package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/radovskyb/watcher"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoRenderer is returned when no markdown renderer is configured.
	ErrNoRenderer = errors.New("markdown renderer not configured")
	// ErrTemplateNotFound is returned when the post template file is missing.
	ErrTemplateNotFound = errors.New("template file not found")
)

// Config holds everything a build needs.
type Config struct {
	PostsDir     string
	OutputDir    string
	TemplateFile string

	// Renderer converts post bodies to HTML. Use MarkdownToHTML.
	Renderer RendererFunc

	// Now supplies the date for posts without one. Defaults to time.Now.
	Now func() time.Time

	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

// Failure records a post that could not be built.
type Failure struct {
	File string
	Err  error
}

// Result is the outcome of one build.
type Result struct {
	Posts    []*Post
	Failures []Failure

	// Index is the path of the written index page, empty when none was written.
	Index string
}

// Builder renders a directory of posts into a static blog.
type Builder struct {
	cfg Config
	log zerolog.Logger
}

// New validates cfg and returns a Builder. It does not touch the filesystem.
func New(cfg Config) (*Builder, error) {
	if cfg.Renderer == nil {
		return nil, ErrNoRenderer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	b := &Builder{cfg: cfg, log: log.Logger}
	if cfg.Logger != nil {
		b.log = *cfg.Logger
	}
	return b, nil
}

// Build is shorthand for New followed by Builder.Build.
func Build(cfg Config) (*Result, error) {
	b, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// Build renders every post and then the index page.
// Posts that fail are logged and skipped; only setup problems return an error.
func (b *Builder) Build() (*Result, error) {
	b.log.Info().Msg("Building blog")

	// Create the output directory
	if err := os.MkdirAll(b.cfg.OutputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	if _, err := os.Stat(b.cfg.TemplateFile); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplateNotFound, b.cfg.TemplateFile, err)
	}

	paths, err := b.getPostFiles()
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	result := &Result{}
	if len(paths) == 0 {
		b.log.Info().Str("dir", b.cfg.PostsDir).Msg("No markdown files found")
		return result, nil
	}

	for _, path := range paths {
		post, err := b.buildPost(path)
		if err != nil {
			b.log.Error().Err(err).Str("file", filepath.Base(path)).Msg("Failed to build post")
			result.Failures = append(result.Failures, Failure{File: path, Err: err})
			continue
		}
		b.log.Info().Str("file", filepath.Base(path)).Str("output", post.OutputFile).Msg("Generated post")
		result.Posts = append(result.Posts, post)
	}

	// The index links to post pages, so it is written after all of them.
	if len(result.Posts) > 0 {
		index, err := WriteIndex(b.cfg.OutputDir, result.Posts)
		if err != nil {
			return result, fmt.Errorf("write index: %w", err)
		}
		result.Index = index
		b.log.Info().Str("output", index).Msg("Generated index")
	}

	outputDir, _ := filepath.Abs(b.cfg.OutputDir)
	b.log.Info().
		Int("posts", len(result.Posts)).
		Int("failed", len(result.Failures)).
		Str("dir", outputDir).
		Msg("Blog build complete")
	return result, nil
}

// Builds a single post file and writes its page.
func (b *Builder) buildPost(path string) (*Post, error) {
	b.log.Debug().Str("path", path).Msg("Building a post")

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read post: %w", err)
	}

	tmpl, err := os.ReadFile(b.cfg.TemplateFile)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	post, page, err := b.RenderPost(filepath.Base(path), source, string(tmpl))
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}

	if err := writeFileAtomic(filepath.Join(b.cfg.OutputDir, post.OutputFile), []byte(page)); err != nil {
		return nil, fmt.Errorf("write %s: %w", post.OutputFile, err)
	}
	return post, nil
}

// Watch rebuilds the blog whenever a post or the template changes.
// It blocks until ctx is cancelled.
func (b *Builder) Watch(ctx context.Context, interval time.Duration) error {
	b.log.Debug().Str("path", b.cfg.PostsDir).Msg("Watching posts directory for changes")

	// Create a new file watcher
	w := watcher.New()
	w.SetMaxEvents(1)
	// Only watch for write, create, remove, rename and move events
	w.FilterOps(watcher.Write, watcher.Create, watcher.Remove, watcher.Rename, watcher.Move)

	// Only watch for markdown files and the template
	r := regexp.MustCompile(`\.md$|^` + regexp.QuoteMeta(filepath.Base(b.cfg.TemplateFile)) + `$`)
	w.AddFilterHook(watcher.RegexFilterHook(r, false))

	if err := w.Add(b.cfg.PostsDir); err != nil {
		return fmt.Errorf("watch posts directory: %w", err)
	}
	if err := w.Add(b.cfg.TemplateFile); err != nil {
		return fmt.Errorf("watch template: %w", err)
	}

	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	// Start the watching process and wait for it before listening for events
	errc := make(chan error, 1)
	go func() {
		errc <- w.Start(interval)
	}()
	w.Wait()

	for {
		select {
		case event := <-w.Event:
			b.log.Info().Str("path", event.Path).Str("op", event.Op.String()).Msg("Change detected, rebuilding")
			if _, err := b.Build(); err != nil {
				b.log.Error().Err(err).Msg("Rebuild failed")
			}
		case err := <-w.Error:
			b.log.Error().Err(err).Msg("Watcher error")
		case err := <-errc:
			return err
		case <-ctx.Done():
			go w.Close()
			return drain(w, errc)
		}
	}
}

// Discards pending watcher output until the watcher has stopped. Close blocks
// while the watcher is delivering an event, so events must keep being read.
func drain(w *watcher.Watcher, errc <-chan error) error {
	for {
		select {
		case <-w.Event:
		case <-w.Error:
		case err := <-errc:
			return err
		}
	}
}
