package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	analysisDomain "github.com/qvkare/metaguard-snap/internal/analysis/domain"
	"github.com/qvkare/metaguard-snap/internal/config"
	"github.com/qvkare/metaguard-snap/internal/etherscan"
	"github.com/qvkare/metaguard-snap/internal/history"
	"github.com/qvkare/metaguard-snap/internal/observability/metrics"
	"github.com/qvkare/metaguard-snap/internal/server"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "metaguard-server",
		Short:   "MetaGuard server - transaction security analysis",
		Version: version,
	}

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newHistoryCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var inputFile string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a single transaction",
		Long: `Analyze a single transaction without starting the server.

Reads a transaction JSON object from a file (or stdin with -) and prints the
security report.

EXAMPLES:
  metaguard-server analyze --input tx.json
  echo '{"to":null,"from":"0x...","value":"0"}' | metaguard-server analyze --input -
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(inputFile)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "input", "i", "-", "transaction JSON file, or - for stdin")

	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analysis reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of reports to list")

	return cmd
}

func runServe() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("starting metaguard-server", "version", version)

	metrics.Init(cfg.Metrics.Enabled, "metaguard")

	var store history.Store
	if cfg.History.Enabled {
		store, err = history.New(cfg.History, logger)
		if err != nil {
			return fmt.Errorf("initializing history storage: %w", err)
		}
		defer store.Close()

		if err := store.Migrate(context.Background()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func runAnalyze(inputFile string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var input []byte
	if inputFile == "-" {
		input, err = io.ReadAll(os.Stdin)
	} else {
		input, err = os.ReadFile(inputFile)
	}
	if err != nil {
		return fmt.Errorf("reading transaction: %w", err)
	}

	var tx analysisDomain.Transaction
	if err := json.Unmarshal(input, &tx); err != nil {
		return fmt.Errorf("parsing transaction JSON: %w", err)
	}

	contracts := etherscan.NewClient(cfg.Etherscan, logger)
	detector, err := server.NewDetector(cfg.Phishing, logger)
	if err != nil {
		return err
	}
	scorer, err := server.NewScorer(cfg.ML, logger)
	if err != nil {
		return err
	}

	analyzer := analysisDomain.NewAnalyzer(contracts, detector, scorer, cfg.Analysis.EvidenceTimeout, logger)
	report := analyzer.AnalyzeTransaction(context.Background(), tx)

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runHistory(limit int) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history storage is disabled (HISTORY_ENABLED=false)")
	}

	store, err := history.New(cfg.History, logger)
	if err != nil {
		return fmt.Errorf("opening history storage: %w", err)
	}
	defer store.Close()

	records, err := store.ListReports(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("listing reports: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTO\tRISK\tSCORE\tWARNINGS\tCREATED")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%s\n",
			rec.ID, rec.To, rec.Risk, rec.RiskScore, rec.WarningCount,
			rec.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, setupLogger(cfg), nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
