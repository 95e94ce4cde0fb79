// Package argot is a small link and discussion board built with Go, Echo and
// SQLite. Users post links or text, attach tags, comment in threaded trees,
// and filter posts with tag queries such as "go+rust-ts" (see package
// tagquery for the query language).
package argot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// App is the central argot application. It wires together the store,
// cache, handlers, middleware and live notifications.
type App struct {
	Config BoardConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  *PostCache
	Hub    *Hub
	Views  ViewFuncs
	Log    zerolog.Logger

	metrics      *Metrics
	loginLimiter *LoginLimiter
	titles       TitleFetcher
	customRoutes []func(*App)
}

// New creates a new App with the given configuration. Views left nil use
// DefaultViews.
func New(cfg BoardConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
		Log:    NewLogger(cfg.LogLevel, cfg.LogPretty, nil),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	a.Views.fill(DefaultViews(cfg.Name))

	for _, opt := range opts {
		opt(a)
	}
	if a.titles == nil {
		a.titles = NewHTTPTitleFetcher(cfg.ScrapeTimeout)
	}
	return a
}

// Init opens the database and sets up middleware and routes without
// listening. Start calls it.
func (a *App) Init() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("argot: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("argot: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("argot: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewPostCache(a.Store, a.Config.PostCacheTTL)
	a.metrics = NewMetrics()
	a.Hub = NewHub(a.Log, a.metrics)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the app and serves until ctx is cancelled, then shuts
// down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}
	a.Log.Info().Str("addr", a.Config.Addr).Str("database", a.Config.DatabasePath).Msg("argot starting")

	errc := make(chan error, 1)
	go func() {
		errc <- a.Echo.Start(a.Config.Addr)
	}()
	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.Log.Info().Msg("argot shutting down")
	a.Hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Echo.Shutdown(shutdownCtx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.metrics.Registry,
	}))
	e.GET("/ws", a.Hub.ServeWS(newUpgrader(a.Config.AllowOrigins)))
	e.GET("/feed.xml", a.handleFeed)

	// Posts
	e.GET("/posts", a.handleListPosts)
	e.GET("/post/:id", a.handleGetPost)
	e.GET("/post/:id/view", a.handleViewPost)
	e.POST("/post", a.handleCreatePost, requireUser)
	e.POST("/post/:id/tags", a.handleAttachTags, requireUser)
	e.GET("/post/:id/comments", a.handleListComments)
	e.POST("/post/:id/comments", a.handleCreateComment, requireUser)

	// Tags and search
	e.GET("/tags", a.handleListTags)
	searchLimit := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20))
	e.GET("/search", a.handleSearch, searchLimit)
	e.POST("/search", a.handleSearch, searchLimit)

	// Accounts
	e.POST("/signup", a.handleSignup)
	e.POST("/login", a.handleLogin)
	e.POST("/logout", handleLogout)

	// Admin
	e.POST("/admin/login", a.handleAdminLogin)
	admin := e.Group("/admin", requireAdmin)
	admin.POST("/tags", a.handleCreateTag)
	admin.POST("/whitelist", a.handleWhitelist)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
