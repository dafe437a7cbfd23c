package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/sendrec/askvideo/internal/auth"
	"github.com/sendrec/askvideo/internal/backend"
	"github.com/sendrec/askvideo/internal/background"
	"github.com/sendrec/askvideo/internal/bridge"
	"github.com/sendrec/askvideo/internal/database"
	"github.com/sendrec/askvideo/internal/host"
	"github.com/sendrec/askvideo/internal/languages"
	"github.com/sendrec/askvideo/internal/panel"
	"github.com/sendrec/askvideo/internal/prefs"
	"github.com/sendrec/askvideo/internal/server"
	"github.com/sendrec/askvideo/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not read .env: %v", err)
	}
	setupLogging(os.Getenv("LOG_FORMAT"))

	port := getEnv("PORT", "8080")
	baseURL := getEnv("BASE_URL", "http://localhost:"+port)

	hostSecret := os.Getenv("HOST_TOKEN_SECRET")
	if hostSecret == "" {
		log.Fatal("HOST_TOKEN_SECRET is required")
	}

	speechLang := getEnv("SPEECH_LANG", "en-US")
	if !languages.IsValidSpeechLanguage(speechLang) {
		log.Fatalf("SPEECH_LANG %q is not a supported recognition locale", speechLang)
	}

	defaults := prefs.Preferences{BackendURL: getEnv("BACKEND_URL", prefs.DefaultBackendURL)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, pinger, closeStore, err := openPreferences(ctx, getEnv("PREFS_DRIVER", "sqlite"), defaults)
	cancel()
	if err != nil {
		log.Fatalf("preferences store failed: %v", err)
	}
	defer closeStore()

	backendClient := backend.NewClient(defaults.BackendURL)
	bus := bridge.NewBus(getEnvDuration("BRIDGE_TIMEOUT", bridge.DefaultTimeout))
	defer bus.Close()

	gateway := host.NewGateway(hostSecret, bus, getEnvDuration("HOST_TIMEOUT", host.DefaultTimeout))
	defer gateway.Close()

	tracker := session.NewTracker(gateway, backendClient)
	if _, err := background.Register(bus, tracker, gateway); err != nil {
		log.Fatalf("background context failed: %v", err)
	}

	panels := panel.NewManager(panel.Config{
		Bus:        bus,
		Backend:    backendClient,
		Prefs:      store,
		Microphone: gateway,
		Recognizer: gateway,
		SpeechLang: speechLang,
	})
	defer panels.Close()

	srv := server.New(server.Config{
		Panels:                panels,
		Backend:               backendClient,
		Host:                  gateway,
		Pinger:                pinger,
		BaseURL:               baseURL,
		AllowedFrameAncestors: os.Getenv("ALLOWED_FRAME_ANCESTORS"),
		EnableDocs:            getEnv("API_DOCS_ENABLED", "false") == "true",
	})
	defer srv.Close()

	token, err := auth.GenerateHostToken(hostSecret, auth.NewShimID())
	if err != nil {
		log.Fatalf("host token generation failed: %v", err)
	}
	slog.Info("host pairing URL for the browser extension", "url", pairingURL(baseURL, token))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Questions wait on the backend.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		tracker.Watch(gctx, gateway.Navigations())
		return nil
	})
	g.Go(func() error {
		slog.Info("askvideo listening", "port", port, "backend_url", defaults.BackendURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")
		gateway.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
	slog.Info("shutdown complete")
}

func setupLogging(format string) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if strings.EqualFold(format, "json") {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
}

// openPreferences picks the preferences store. The returned pinger is nil for
// stores without a server to check.
func openPreferences(ctx context.Context, driver string, defaults prefs.Preferences) (prefs.Store, server.Pinger, func(), error) {
	switch driver {
	case "memory":
		return prefs.NewMemoryStore(defaults), nil, func() {}, nil

	case "sqlite":
		path := getEnv("PREFS_SQLITE_PATH", "askvideo.db")
		db, err := database.OpenSQLite(path)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.MigrateSQLite(db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		slog.Info("preferences: sqlite ready", "path", path)
		return prefs.NewSQLiteStore(db, defaults), nil, func() { _ = db.Close() }, nil

	case "postgres":
		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			return nil, nil, nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
		db, err := database.Connect(ctx, databaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := db.Migrate(databaseURL); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("database migration failed: %w", err)
		}
		slog.Info("preferences: database migrations applied")
		return prefs.NewPostgresStore(db.Pool, defaults), db, db.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown PREFS_DRIVER %q", driver)
	}
}

// pairingURL is the WebSocket address the extension shim dials.
func pairingURL(baseURL, token string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "http", Host: "localhost:8080"}
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/host"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("5s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs := getEnvInt64(key, 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
