package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/invoke"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/invoke/anthropic"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/server"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/store"
	"github.com/mindcreativesnet/sample-strands-agent-with-agentcore-sub000/internal/tools"
)

func mainImpl() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	addr := flag.String("http", ":8080", "address to serve the web UI on")
	dataDir := flag.String("data-dir", defaultDataDir(), "directory for sessions and history")
	storeKind := flag.String("store", "file", "session store backend (file or sqlite)")
	model := flag.String("model", "claude-sonnet-4-20250514", "default model id")
	keepAlive := flag.Duration("keep-alive", 0, "SSE keep-alive interval (0=default)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	fake := flag.Bool("fake", false, "use a scripted agent backend (for e2e tests)")
	flag.Parse()
	if args := flag.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}

	initLogging(*logLevel)

	if err := os.MkdirAll(*dataDir, 0o700); err != nil {
		return err
	}

	var st store.SessionStore
	var err error
	switch *storeKind {
	case "file":
		st, err = store.NewFileStore(filepath.Join(*dataDir, "sessions"))
	case "sqlite":
		st, err = store.NewSQLiteStore(filepath.Join(*dataDir, "sessions.db"))
	default:
		return fmt.Errorf("unknown store backend %q", *storeKind)
	}
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	history, err := store.NewHistoryLog(filepath.Join(*dataDir, "history"))
	if err != nil {
		return err
	}

	registry := tools.Default()
	var inv invoke.Invoker
	if *fake {
		inv = &invoke.Scripted{}
		slog.Info("using scripted agent backend")
	} else {
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return errors.New("ANTHROPIC_API_KEY is not set (or pass -fake)")
		}
		inv, err = anthropic.NewFromAPIKey(apiKey, *model, registry)
		if err != nil {
			return err
		}
	}

	// Exit when executable is rebuilt (systemd restarts the service).
	if err := watchExecutable(ctx, cancel); err != nil {
		slog.Warn("failed to watch executable", "err", err)
	}

	srv, err := server.New(ctx, server.Options{
		Invoker:   inv,
		Store:     st,
		History:   history,
		Registry:  registry,
		KeepAlive: *keepAlive,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, *addr)
}

// initLogging configures slog with tint for colored, concise output.
// Timestamps are omitted under systemd (JOURNAL_STREAM), and zero-value
// attributes are dropped.
func initLogging(level string) {
	ll := &slog.LevelVar{}
	switch level {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
		// default
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	}
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	slog.SetDefault(slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case uint64:
				skip = t == 0
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	})))
}

// defaultDataDir returns $XDG_DATA_HOME/agentchat with a fallback to
// ~/.local/share/agentchat.
func defaultDataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "agentchat")
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected. Combined with systemd's
// Restart=always, this enables seamless restarts after a rebuild.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.Info("executable modified, shutting down")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("error watching executable", "err", err)
			}
		}
	}()
	return nil
}

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "agentchat: %v\n", err)
		os.Exit(1)
	}
}
