package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"adventune/skrivblog/builder"
)

var cli struct {
	Posts    string `help:"Directory containing markdown posts." default:"./blog/posts" type:"path"`
	Output   string `short:"o" help:"Directory the HTML pages are written to." default:"./blog" type:"path"`
	Template string `short:"t" help:"HTML template used for every post." default:"./blog/template.html" type:"path"`

	Debug bool   `help:"Sets log level to debug."`
	JSON  bool   `help:"Log as JSON instead of human readable lines."`
	Watch bool   `short:"w" help:"Rebuild when a post or the template changes."`
	Serve string `help:"Serve the output directory on this address, e.g. :8000." placeholder:"ADDR"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("skrivblog"),
		kong.Description("Builds static HTML blog pages and an index from markdown posts."),
		kong.UsageOnError(),
	)

	// Logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if !cli.JSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	// Set the log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cli.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Debug().Msg("Debug logging has been enabled")

	b, err := builder.New(builder.Config{
		PostsDir:     cli.Posts,
		OutputDir:    cli.Output,
		TemplateFile: cli.Template,
		Renderer:     builder.MarkdownToHTML,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize the builder")
	}

	// Initial build
	if _, err := b.Build(); err != nil {
		log.Fatal().Err(err).Msg("Build failed")
	}

	if !cli.Watch && cli.Serve == "" {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cli.Serve != "" {
		go serve(ctx, cli.Serve, cli.Output)
	}

	if cli.Watch {
		if err := b.Watch(ctx, 100*time.Millisecond); err != nil {
			log.Fatal().Err(err).Msg("Failed to watch posts")
		}
		return
	}
	<-ctx.Done()
}

// Serves the output directory until ctx is done.
func serve(ctx context.Context, addr, dir string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.FileServer(http.Dir(dir)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Serving output directory")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
