package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sbiochat/dashboard/internal/api"
	"github.com/sbiochat/dashboard/internal/auth"
	"github.com/sbiochat/dashboard/internal/db"
	"github.com/sbiochat/dashboard/internal/logger"
	"github.com/sbiochat/dashboard/internal/ratelimit"
	"github.com/sbiochat/dashboard/internal/stats"
)

var version string

func main() {
	// Start pprof debug server if enabled (for memory/CPU profiling)
	if os.Getenv("ENABLE_PPROF") == "true" {
		go startPprofServer()
	}

	// Initialize OpenTelemetry. Configured via env vars: OTEL_SERVICE_NAME,
	// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_HEADERS.
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		logger.Warn("failed to configure OpenTelemetry", "error", err)
		// Non-fatal: continue without tracing if OTEL env vars not set
	} else {
		defer otelShutdown()
	}

	config := loadConfig()

	database, err := db.Connect(config.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer database.Close()

	// Migrate the tables this service owns. The chat platform's schema is
	// read-only from our side and managed by the platform.
	if err := database.Migrate(); err != nil {
		logger.Fatal("failed to run migrations", "error", err)
	}

	statsStore := stats.NewStore(database.Conn(), config.Timezone)
	limiter := ratelimit.New(config.RateLimitRPS, config.RateLimitBurst)
	defer limiter.Stop()

	server := api.NewServer(database, statsStore, config.Auth, limiter, config.Timezone, config.AllowedOrigins)
	router := server.SetupRoutes()

	// Trace all incoming HTTP requests
	handler := otelhttp.NewHandler(router, "chat-usage-dashboard")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", config.Port, "version", version,
			"auth_mode", config.Auth.Mode, "timezone", config.Timezone.String())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

type Config struct {
	Port           int
	DatabaseURL    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Timezone       *time.Location
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	Auth           *auth.Config
}

func loadConfig() Config {
	port := 8080
	if p := os.Getenv("PORT"); p != "" {
		fmt.Sscanf(p, "%d", &port)
	}

	readTimeout := 30 * time.Second
	if rt := os.Getenv("HTTP_READ_TIMEOUT"); rt != "" {
		if parsed, err := time.ParseDuration(rt); err == nil {
			readTimeout = parsed
		}
	}

	writeTimeout := 30 * time.Second
	if wt := os.Getenv("HTTP_WRITE_TIMEOUT"); wt != "" {
		if parsed, err := time.ParseDuration(wt); err == nil {
			writeTimeout = parsed
		}
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = databaseURLFromParts()
	}
	if databaseURL == "" {
		logger.Fatal("missing required env var", "var", "DATABASE_URL",
			"hint", "set DATABASE_URL or the POSTGRES_HOST/PORT/USER/PASSWORD/DB parts")
	}

	// Civil calendar for daily buckets and date parameters. Deployments
	// serve teams in one office timezone, KST by default.
	tzOffsetHours := 9
	if raw := os.Getenv("STATS_TZ_OFFSET_HOURS"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &tzOffsetHours); err != nil {
			logger.Fatal("invalid env var", "var", "STATS_TZ_OFFSET_HOURS", "value", raw)
		}
	}
	timezone := time.FixedZone(fmt.Sprintf("UTC%+d", tzOffsetHours), tzOffsetHours*3600)

	allowedOrigins := []string{"http://localhost:5173"}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		allowedOrigins = splitAndTrim(raw)
	}

	rateLimitRPS := 10.0
	if raw := os.Getenv("RATE_LIMIT_RPS"); raw != "" {
		fmt.Sscanf(raw, "%f", &rateLimitRPS)
	}
	rateLimitBurst := 20
	if raw := os.Getenv("RATE_LIMIT_BURST"); raw != "" {
		fmt.Sscanf(raw, "%d", &rateLimitBurst)
	}

	authMode := os.Getenv("AUTH_MODE")
	if authMode == "" {
		authMode = auth.ModeMock
	}
	if authMode != auth.ModeMock && authMode != auth.ModeSSO {
		logger.Fatal("invalid env var", "var", "AUTH_MODE", "value", authMode,
			"hint", "must be mock or sso")
	}

	return Config{
		Port:           port,
		DatabaseURL:    databaseURL,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		Timezone:       timezone,
		AllowedOrigins: allowedOrigins,
		RateLimitRPS:   rateLimitRPS,
		RateLimitBurst: rateLimitBurst,
		Auth: &auth.Config{
			Mode:          authMode,
			AllowedDomain: os.Getenv("ALLOWED_EMAIL_DOMAIN"),
			AdminUsers:    splitAndTrim(os.Getenv("ADMIN_USERS")),
		},
	}
}

// databaseURLFromParts assembles a DSN from the POSTGRES_* variables the
// chat platform's deployment already exports.
func databaseURLFromParts() string {
	host := os.Getenv("POSTGRES_HOST")
	user := os.Getenv("POSTGRES_USER")
	dbName := os.Getenv("POSTGRES_DB")
	if host == "" || user == "" || dbName == "" {
		return ""
	}

	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, os.Getenv("POSTGRES_PASSWORD")),
		Host:   host + ":" + port,
		Path:   dbName,
	}
	return u.String()
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// startPprofServer starts a pprof debug server on localhost:6060.
// Only accessible locally; intended for port-forwarded debugging.
func startPprofServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/debug/pprof/allocs", pprof.Handler("allocs"))

	addr := "127.0.0.1:6060"
	logger.Info("pprof debug server starting", "addr", addr)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("pprof server failed", "error", err)
	}
}
