package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/migadu/maillog/config"
	"github.com/migadu/maillog/db"
	"github.com/migadu/maillog/ingest"
	"github.com/migadu/maillog/logger"
	"github.com/migadu/maillog/search"
	"github.com/migadu/maillog/server/httpapi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version information, injected at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// Initialize with application defaults. Flags override the config
	// file, the config file overrides these; flag defaults come from the
	// initial cfg for consistent -help messages.
	cfg := config.NewDefaultConfig()

	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")

	// Logging flags
	fLogOutput := flag.String("logoutput", cfg.Logging.Output, "Log output: 'stderr', 'stdout', 'syslog' or a file path (overrides config)")
	fLogLevel := flag.String("loglevel", cfg.Logging.Level, "Log level: debug, info, warn, error (overrides config)")

	// Database flags
	fDbHost := flag.String("dbhost", cfg.Database.Host, "Database host (overrides config)")
	fDbPort := flag.String("dbport", cfg.Database.Port, "Database port (overrides config)")
	fDbUser := flag.String("dbuser", cfg.Database.User, "Database user (overrides config)")
	fDbPassword := flag.String("dbpassword", cfg.Database.Password, "Database password (overrides config)")
	fDbName := flag.String("dbname", cfg.Database.Name, "Database name (overrides config)")
	fDbTLS := flag.Bool("dbtls", cfg.Database.TLSMode, "Enable TLS for database connection (overrides config)")
	fDbLogQueries := flag.Bool("dblogqueries", cfg.Database.LogQueries, "Log all database queries (overrides config)")

	// Server flags
	fStartHTTP := flag.Bool("httpapi", cfg.Servers.HTTPAPI.Start, "Start the HTTP search server (overrides config)")
	fHTTPAddr := flag.String("httpaddr", cfg.Servers.HTTPAPI.Addr, "HTTP search server address (overrides config)")
	fMetrics := flag.Bool("metrics", cfg.Servers.Metrics.Enabled, "Expose Prometheus metrics (overrides config)")
	fMetricsAddr := flag.String("metricsaddr", cfg.Servers.Metrics.Addr, "Metrics endpoint address (overrides config)")

	// Ingestion flag
	fIngest := flag.String("ingest", cfg.Ingest.Path, "Log file to ingest before serving (overrides config)")

	flag.Parse()

	if err := config.LoadConfigFromFile(*configPath, &cfg); err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file '%s' not found, using defaults and flags", *configPath)
		} else {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}

	// Explicitly set flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "logoutput":
			cfg.Logging.Output = *fLogOutput
		case "loglevel":
			cfg.Logging.Level = *fLogLevel
		case "dbhost":
			cfg.Database.Host = *fDbHost
		case "dbport":
			cfg.Database.Port = *fDbPort
		case "dbuser":
			cfg.Database.User = *fDbUser
		case "dbpassword":
			cfg.Database.Password = *fDbPassword
		case "dbname":
			cfg.Database.Name = *fDbName
		case "dbtls":
			cfg.Database.TLSMode = *fDbTLS
		case "dblogqueries":
			cfg.Database.LogQueries = *fDbLogQueries
		case "httpapi":
			cfg.Servers.HTTPAPI.Start = *fStartHTTP
		case "httpaddr":
			cfg.Servers.HTTPAPI.Addr = *fHTTPAddr
		case "metrics":
			cfg.Servers.Metrics.Enabled = *fMetrics
		case "metricsaddr":
			cfg.Servers.Metrics.Addr = *fMetricsAddr
		case "ingest":
			cfg.Ingest.Path = *fIngest
		}
	})

	logFile, err := logger.Initialize(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	logger.Infof("maillog starting (version %s, commit %s)", version, commit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Infof("Received signal: %s, shutting down...", sig)
		cancel()
	}()

	database, err := db.NewDatabase(ctx, &cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if cfg.Ingest.Path != "" {
		stats, err := ingest.New(database).ProcessFile(ctx, cfg.Ingest.Path)
		if err != nil {
			logger.Fatalf("Ingestion aborted after %d persisted records: %v", stats.Persisted, err)
		}
	}

	errChan := make(chan error, 1)

	if cfg.Servers.HTTPAPI.Start {
		engine := search.New(database)
		go httpapi.Start(ctx, engine, httpapi.ServerOptions{
			Addr:         cfg.Servers.HTTPAPI.Addr,
			APIKey:       cfg.Servers.HTTPAPI.APIKey,
			AllowedHosts: cfg.Servers.HTTPAPI.AllowedHosts,
		}, errChan)
	} else if cfg.Ingest.Path == "" {
		logger.Fatal("Nothing to do: no ingest path and HTTP server disabled")
	} else {
		// Ingest-only run.
		return
	}

	if cfg.Servers.Metrics.Enabled {
		go startMetricsServer(ctx, cfg.Servers.Metrics, errChan)
	}

	select {
	case <-ctx.Done():
		logger.Info("Waiting for servers to stop gracefully...")
		time.Sleep(time.Second)
	case err := <-errChan:
		logger.Fatalf("Server error: %v", err)
	}
}

func startMetricsServer(ctx context.Context, cfg config.MetricsConfig, errChan chan error) {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	handler := http.NewServeMux()
	handler.Handle(path, promhttp.Handler())
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting metrics server", "addr", cfg.Addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		errChan <- fmt.Errorf("metrics server failed: %w", err)
	}
}
