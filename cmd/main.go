package main

//
//  @title           settlepulse API
//  @version         1.0
//  @description     Brokerage settlement ledger: FIFO trades, positions, performance and prices.
//  @termsOfService  https://github.com/guttosm/settlepulse
//  @contact.name    API Support
//  @contact.url     https://github.com/guttosm/settlepulse
//  @contact.email   support@example.com
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @tag.name        ledger
//  @tag.description Trades, positions and performance replayed from the stored ledger
//
//  @tag.name        prices
//  @tag.description Latest prices through the ranked provider chain
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/guttosm/settlepulse/config"
	_ "github.com/guttosm/settlepulse/docs" // swagger docs
	"github.com/guttosm/settlepulse/internal/app"
	"github.com/guttosm/settlepulse/internal/ingestion"
	"github.com/guttosm/settlepulse/internal/logger"
	"github.com/guttosm/settlepulse/internal/pricing"
)

// startServer initializes and starts the HTTP server in a separate goroutine.
//
// Parameters:
//   - router (http.Handler): The HTTP router (Gin Engine) configured with all routes.
//   - port (string): The port where the server will listen for incoming requests.
//
// Returns:
//   - *http.Server: The initialized HTTP server instance.
func startServer(router http.Handler, port string) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed to start")
		}
	}()

	return server
}

// gracefulShutdown gracefully terminates the HTTP server and cleans up resources
// when an OS interrupt signal (SIGINT, SIGTERM) is received.
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Fatal().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// parseDay reads an optional YYYY-MM-DD flag value.
func parseDay(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &d, nil
}

// splitCodes turns "600000, 1" into normalized security codes.
func splitCodes(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if c := ingestion.NormalizeCode(part); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// stdinPrompt asks on out and reads a y/n answer from in. Anything but an
// explicit yes declines, as does a canceled context.
func stdinPrompt(in io.Reader, out io.Writer) pricing.Prompt {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, provider string) bool {
		if ctx.Err() != nil {
			return false
		}
		_, _ = fmt.Fprintf(out, "price provider %q is not connected. Connect now and retry? [y/N]: ", provider)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

// main is the entry point of the settlepulse application.
//
// Modes (selected via --mode flag):
//   - import:  Reads settlement exports (--files or --dir) into the ledger.
//   - analyze: Replays the ledger, logs performance metrics and stores daily snapshots.
//   - prices:  Refreshes and stores latest prices for --codes or every open position.
//   - api:     Starts the REST API.
func main() {
	config.LoadConfig()
	logger.Init()

	mode := flag.String("mode", "import", "Mode: import, analyze, prices or api")
	files := flag.String("files", "", "Comma separated export files to import")
	dir := flag.String("dir", "", "Directory with export files to import")
	parallel := flag.Int("parallel", config.AppConfig.Import.Parallel, "Files imported concurrently (0=auto up to CPU, max 8)")
	force := flag.Bool("force", false, "Re-import files already present in the import log")
	from := flag.String("from", "", "Analysis window start, YYYY-MM-DD")
	to := flag.String("to", "", "Analysis window end, YYYY-MM-DD")
	codes := flag.String("codes", "", "Comma separated security codes to refresh (default: open positions)")
	interactive := flag.Bool("interactive", false, "Ask before connecting session providers (prices) or connect them up front (analyze)")
	port := flag.String("port", config.AppConfig.Server.Port, "Port for API mode")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "import":
		paths := splitList(*files)
		if *dir != "" {
			found, err := ingestion.CollectFiles(*dir)
			if err != nil {
				logger.L().Fatal().Err(err).Str("dir", *dir).Msg("cannot list input directory")
			}
			paths = append(paths, found...)
		}
		logger.L().Info().Int("files", len(paths)).Msg("running import")

		conn := openDB()
		defer func() { _ = conn.Close() }()

		reports, err := ingestion.ProcessFiles(ctx, conn, paths, ingestion.Options{
			Parallel:  *parallel,
			Force:     *force,
			BatchSize: config.AppConfig.Import.BatchSize,
		})
		for _, r := range reports {
			logger.L().Info().
				Str("file", r.File).
				Bool("skipped", r.Skipped).
				Int("imported", r.Imported).
				Int("duplicates", r.Duplicates).
				Int("failed", r.Failed).
				Msg("import report")
		}
		if err != nil {
			logger.L().Fatal().Err(err).Msg("import failed")
		}
		logger.L().Info().Msg("import completed successfully")

	case "analyze":
		fromDay, err := parseDay("from", *from)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("bad flag")
		}
		toDay, err := parseDay("to", *to)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("bad flag")
		}

		conn := openDB()
		defer func() { _ = conn.Close() }()
		svcs, err := app.NewServices(conn, config.AppConfig)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("app init error")
		}
		if *interactive {
			svcs.Source.ConnectAll(ctx)
		}

		if _, err := svcs.Ledger.Analyze(ctx, fromDay, toDay); err != nil {
			logger.L().Fatal().Err(err).Msg("analysis failed")
		}

	case "prices":
		conn := openDB()
		defer func() { _ = conn.Close() }()
		svcs, err := app.NewServices(conn, config.AppConfig)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("app init error")
		}

		var opts []pricing.CallOption
		if *interactive {
			opts = append(opts, pricing.WithPrompt(stdinPrompt(os.Stdin, os.Stderr)))
		}
		res, err := svcs.Ledger.RefreshPrices(ctx, splitCodes(*codes), opts...)
		for code, p := range res.Prices {
			logger.L().Info().Str("security_code", code).Str("price", p.String()).Msg("price refreshed")
		}
		for code, e := range res.Errors {
			logger.L().Warn().Str("security_code", code).Err(e).Msg("price unavailable")
		}
		if err != nil {
			logger.L().Fatal().Err(err).Msg("price refresh failed")
		}

	case "api":
		logger.L().Info().Msg("starting API server")

		router, svcs, cleanup, err := app.InitializeApp()
		if err != nil {
			logger.L().Fatal().Err(err).Msg("app init error")
		}
		// a server cannot prompt, so session providers connect up front
		go svcs.Source.ConnectAll(ctx)

		server := startServer(router, *port)
		gracefulShutdown(context.Background(), server, cleanup)

	default:
		logger.L().Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

func openDB() *sql.DB {
	conn, err := app.InitPostgres(config.AppConfig)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("db connect error")
	}
	if err := app.Migrate(conn); err != nil {
		logger.L().Fatal().Err(err).Msg("migration failed")
	}
	return conn
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
