// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/focusguard/internal/api"
	"github.com/starford/focusguard/internal/daily"
	"github.com/starford/focusguard/internal/index"
	"github.com/starford/focusguard/internal/mcpserver"
	"github.com/starford/focusguard/internal/notesclient"
	"github.com/starford/focusguard/internal/notesvc"
	"github.com/starford/focusguard/internal/saver"
	"github.com/starford/focusguard/internal/sse"
	"github.com/starford/focusguard/internal/storage"
	"github.com/starford/focusguard/internal/tui"
)

var errConfigRequired = errors.New("config is required")

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// openVault prepares storage, the index and the note service, and brings
// the index up to date with the vault.
func openVault(cfg *Config, logger *slog.Logger, opts ...notesvc.Option) (*notesvc.Service, *storage.FS, *index.DB, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create vault dir: %w", err)
	}
	template, err := cfg.Vault.LoadTemplate()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("init index: %w", err)
	}

	base := []notesvc.Option{
		notesvc.WithNotesDir(cfg.Vault.NotesDir),
		notesvc.WithTemplate(template),
		notesvc.WithSaveDebounce(cfg.Editor.SaveDebounce),
		notesvc.WithLogger(logger),
	}
	svc := notesvc.NewService(store, db, append(base, opts...)...)

	if err := index.Sync(db, svc.Notes(), logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return svc, store, db, nil
}

// Run starts the daily-note HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("notes_dir", cfg.Vault.NotesDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker. Its streak source runs only after a note event, by which
	// point svc is set.
	var svc *notesvc.Service
	broker := sse.NewBroker(
		sse.WithStreakThrottle(2*time.Second),
		sse.WithLogger(logger),
		sse.WithStreakSource(func() (int, error) {
			st, err := svc.Streak(ctx)
			if err != nil {
				return 0, err
			}
			return st.Current, nil
		}),
	)
	defer broker.Close()

	svc, store, db, err := openVault(cfg, logger, notesvc.WithOnChange(broker.PublishNoteEvent))
	if err != nil {
		return err
	}
	defer store.Close()
	defer db.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, cfg.App.HTTP.CORSOrigin, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// The extension calls the note routes at the root.
	r.Mount("/", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the vault for edits made outside the service.
	g.Go(func() error {
		return index.Watch(gCtx, db, svc.Notes(), logger, broker.PublishNoteEvent)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher too.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunEditor opens a note in the terminal editor. Today's note is editable
// and saved through the service; any other date opens read-only.
func RunEditor(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// stdout belongs to the terminal UI.
	logOut := io.Discard
	if cfg.Editor.LogFile != "" {
		f, err := os.OpenFile(cfg.Editor.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := newLogger(logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	if app.date != "" {
		if _, err := daily.ParseDate(app.date); err != nil {
			return err
		}
	}

	var clientOpts []notesclient.Option
	if cfg.Auth.AuthEnabled() {
		clientOpts = append(clientOpts, notesclient.WithToken(cfg.Auth.Token))
	}
	client := notesclient.New(cfg.Editor.ServiceURL, append(clientOpts, notesclient.WithLogger(logger))...)

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(loadCtx); err != nil {
		return fmt.Errorf("service not reachable at %s (start it with `focusguard serve`): %w", cfg.Editor.ServiceURL, err)
	}

	debounce := cfg.Editor.SaveDebounce
	if settings, err := client.Config(loadCtx); err == nil && settings.SaveDebounceMs > 0 {
		debounce = time.Duration(settings.SaveDebounceMs) * time.Millisecond
	}

	var note *notesvc.Note
	if app.date == "" {
		note, err = client.Today(loadCtx)
	} else {
		note, err = client.Note(loadCtx, app.date)
	}
	if err != nil {
		return fmt.Errorf("load note: %w", err)
	}
	readOnly := !note.IsToday

	// Saves go to the day that was loaded, even past midnight, and only
	// over the version this session last saw.
	store := client.NoteStore(note)

	var p *tea.Program
	sv := saver.New(store,
		saver.WithDelay(debounce),
		saver.WithLogger(logger),
		saver.WithStatus(func(st saver.Status, err error) {
			if p != nil {
				p.Send(tui.StatusMsg{Status: st, Err: err})
			}
		}),
	)

	model := tui.New(note.Content,
		tui.WithTitle(note.Date),
		tui.WithReadOnly(readOnly),
		tui.WithSaver(sv),
		tui.WithReload(func(ctx context.Context) (tui.ReloadMsg, error) {
			n, err := client.Note(ctx, store.Date())
			if err != nil {
				return tui.ReloadMsg{}, err
			}
			return tui.ReloadMsg{Content: n.Content, Apply: func() { store.Rebase(n.Checksum) }}, nil
		}),
		tui.WithLogger(logger),
	)
	p = tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	go func() {
		st, err := client.Streak(ctx)
		if err != nil {
			logger.Warn("streak unavailable", slog.String("error", err.Error()))
			return
		}
		p.Send(tui.StreakMsg{Current: st.Current})
	}()

	followCtx, stopFollow := context.WithCancel(ctx)
	defer stopFollow()
	go followNote(followCtx, client, store, p, logger)

	logger.Info("editor started",
		slog.String("date", note.Date),
		slog.Bool("read_only", readOnly),
		slog.String("session", model.Editor().Session()))

	_, runErr := p.Run()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := sv.Close(closeCtx); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("editor: %w", runErr)
	}
	return nil
}

// RunMCP serves the MCP tools over stdio against the local vault.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// stdout carries the protocol.
	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	svc, store, db, err := openVault(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	defer db.Close()

	logger.Info("MCP server starting", slog.String("vault_path", cfg.Vault.Path))
	return mcpserver.New(svc, store, app.version).ServeStdio()
}

// followNote keeps the editor in step with the service: a note changed by
// another writer is reloaded, and streak updates reach the header. The
// stream is reopened until ctx ends.
func followNote(ctx context.Context, client *notesclient.Client, store *notesclient.NoteStore, p *tea.Program, logger *slog.Logger) {
	for {
		err := client.Follow(ctx, store.Date(), func(ev notesclient.Event) {
			switch ev.Type {
			case sse.TypeStreakUpdated:
				if ev.Streak != nil {
					p.Send(tui.StreakMsg{Current: *ev.Streak})
				}
			case sse.TypeNoteCreated, sse.TypeNoteUpdated:
				n, err := client.Note(ctx, store.Date())
				if err != nil {
					logger.Warn("reload fetch failed", slog.String("error", err.Error()))
					return
				}
				if n.Checksum == store.Checksum() {
					return
				}
				p.Send(tui.ReloadMsg{Content: n.Content, Apply: func() { store.Rebase(n.Checksum) }})
			}
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("event stream lost", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}
