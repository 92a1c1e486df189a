// Package app wires the ticker core to its collaborators: the button-surface
// host connection, the market-data client, and the local ops/status server.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pawish/deck-ticker/deck"
	"github.com/pawish/deck-ticker/market"
	"github.com/pawish/deck-ticker/ops"
	"github.com/pawish/deck-ticker/ticker"
)

// Config holds the application configuration.
type Config struct {
	// Connection parameters handed to the plugin by the button-surface host.
	DeckPort          string
	DeckPluginUUID    string
	DeckRegisterEvent string

	// Local ops/status server.
	AppHost string
	AppPort string

	// Market-data API base URL; empty means the public endpoint.
	MarketBaseURL string
}

// Defaults for the local ops server.
const (
	DefaultPort = "8383"
	DefaultHost = "localhost"
)

// App represents the main application structure.
type App struct {
	Config    *Config
	Version   string
	startTime time.Time
	logger    *slog.Logger
	logBuffer *ops.Buffer

	statusTemplate *template.Template
	ticker         *ticker.Service
}

// NewApp creates a new application instance with logger.
func NewApp(logger *slog.Logger) *App {
	return &App{
		Config: &Config{
			DeckPort:          os.Getenv("DECK_PORT"),
			DeckPluginUUID:    os.Getenv("DECK_PLUGIN_UUID"),
			DeckRegisterEvent: os.Getenv("DECK_REGISTER_EVENT"),

			AppHost: os.Getenv("APP_HOST"),
			AppPort: os.Getenv("APP_PORT"),

			MarketBaseURL: os.Getenv("MARKET_BASE_URL"),
		},
		Version:   "v0.0.0", // Ideally injected at build time
		startTime: time.Now(),
		logger:    logger,
	}
}

// SetVersion sets the server version.
func (app *App) SetVersion(version string) {
	app.Version = version
}

// SetLogBuffer sets the log buffer for the ops log endpoints.
func (app *App) SetLogBuffer(buf *ops.Buffer) {
	app.logBuffer = buf
}

// LoadConfig applies defaults and validates the configuration.
func (app *App) LoadConfig() error {
	if app.Config.AppHost == "" {
		app.Config.AppHost = DefaultHost
	}
	if app.Config.AppPort == "" {
		app.Config.AppPort = DefaultPort
	}
	if app.Config.DeckRegisterEvent == "" {
		app.Config.DeckRegisterEvent = deck.DefaultRegisterEvent
	}

	if app.Config.DeckPort == "" || app.Config.DeckPluginUUID == "" {
		return fmt.Errorf("DECK_PORT and DECK_PLUGIN_UUID are required (handed to the plugin by the host at launch)")
	}

	return nil
}

// RunServer connects to the host, starts the ops server, and blocks until
// the host connection closes or a shutdown signal arrives.
func (app *App) RunServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	marketOpts := []market.ClientOption{market.WithLogger(app.logger)}
	if app.Config.MarketBaseURL != "" {
		marketOpts = append(marketOpts, market.WithBaseURL(app.Config.MarketBaseURL))
	}
	marketClient := market.NewClient(marketOpts...)

	app.logger.Info("Connecting to button-surface host...", "port", app.Config.DeckPort)
	deckClient, err := deck.Dial(ctx, deck.Config{
		Port:          app.Config.DeckPort,
		PluginUUID:    app.Config.DeckPluginUUID,
		RegisterEvent: app.Config.DeckRegisterEvent,
		Logger:        app.logger,
	})
	if err != nil {
		return fmt.Errorf("connect to button-surface host: %w", err)
	}

	svc := ticker.New(ticker.Config{
		Market:  marketClient,
		Surface: deckClient,
		Logger:  app.logger,
	})
	app.ticker = svc

	mux, err := app.setupMux(svc)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              app.Config.AppHost + ":" + app.Config.AppPort,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error("Ops server error", "error", err)
		}
	}()
	app.logger.Info("Ops server listening", "url", "http://"+srv.Addr)

	// Blocks until the host closes the connection or a signal cancels ctx.
	runErr := deckClient.Run(ctx, svc)

	app.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("Ops server shutdown error", "error", err)
	}
	svc.Shutdown()
	_ = deckClient.Close()
	app.logger.Info("Shutdown complete")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("host connection: %w", runErr)
	}
	return nil
}

// setupMux builds the local HTTP surface: status page, docs, ops endpoints.
func (app *App) setupMux(svc *ticker.Service) (*http.ServeMux, error) {
	mux := http.NewServeMux()

	if app.logBuffer == nil {
		app.logBuffer = ops.NewBuffer(500)
	}
	limiter := ops.NewLimiter()
	opsHandler := ops.NewHandler(svc, app.logBuffer, app.logger, app.Version, app.startTime)
	opsHandler.RegisterRoutes(mux, limiter.Middleware)

	docs, err := NewDocsManager(app.Version)
	if err != nil {
		return nil, fmt.Errorf("initialize docs: %w", err)
	}
	mux.HandleFunc("/docs", docs.ServeDocs)
	mux.HandleFunc("/docs/", docs.ServeDocs)

	if err := app.initStatusPageTemplate(); err != nil {
		return nil, fmt.Errorf("initialize status template: %w", err)
	}
	mux.HandleFunc("/", app.serveStatusPage)

	return mux, nil
}

// statusPageData holds template data for the status page.
type statusPageData struct {
	Title     string
	Version   string
	Uptime    string
	Instances int
}

func (app *App) initStatusPageTemplate() error {
	tmpl, err := template.ParseFS(templatesFS, "templates/status.html")
	if err != nil {
		return err
	}
	app.statusTemplate = tmpl
	return nil
}

func (app *App) serveStatusPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := statusPageData{
		Title:   "Status",
		Version: app.Version,
		Uptime:  time.Since(app.startTime).Round(time.Second).String(),
	}
	if app.ticker != nil {
		data.Instances = app.ticker.Count()
	}

	var buf bytes.Buffer
	if err := app.statusTemplate.ExecuteTemplate(&buf, "status", data); err != nil {
		app.logger.Error("Failed to execute status template", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		app.logger.Error("Failed to write status page", "error", err)
	}
}
