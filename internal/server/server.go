// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	analysisDomain "github.com/qvkare/metaguard-snap/internal/analysis/domain"
	analysisTransport "github.com/qvkare/metaguard-snap/internal/analysis/transport"
	"github.com/qvkare/metaguard-snap/internal/config"
	"github.com/qvkare/metaguard-snap/internal/etherscan"
	"github.com/qvkare/metaguard-snap/internal/history"
	"github.com/qvkare/metaguard-snap/internal/middleware/logging"
	"github.com/qvkare/metaguard-snap/internal/middleware/ratelimit"
	"github.com/qvkare/metaguard-snap/internal/middleware/security"
	"github.com/qvkare/metaguard-snap/internal/ml"
	"github.com/qvkare/metaguard-snap/internal/observability/metrics"
	"github.com/qvkare/metaguard-snap/internal/phishing"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  history.Store // nil when history is disabled
	logger *slog.Logger
	router *chi.Mux

	analysisSvc analysisTransport.Service
	contracts   analysisTransport.ContractLookup
}

// New creates a new server with the full analysis pipeline wired up.
func New(cfg *config.Config, store history.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	contracts := etherscan.NewClient(cfg.Etherscan, logger)

	detector, err := NewDetector(cfg.Phishing, logger)
	if err != nil {
		return nil, err
	}

	scorer, err := NewScorer(cfg.ML, logger)
	if err != nil {
		return nil, err
	}

	analyzer := analysisDomain.NewAnalyzer(contracts, detector, scorer, cfg.Analysis.EvidenceTimeout, logger)

	s.contracts = contracts
	s.analysisSvc = analyzer
	if store != nil {
		// History is best-effort: a failed save never fails an analysis.
		s.analysisSvc = &recordingService{next: analyzer, store: store, logger: logger}
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// NewDetector assembles the phishing detector with its fixed source order:
// local blocklist first, then the blocklist feed, then the security scan.
// The order decides which source's reason wins when several flag an address.
func NewDetector(cfg config.PhishingConfig, logger *slog.Logger) (*phishing.Detector, error) {
	var sources []phishing.Source

	if cfg.BlocklistPath != "" {
		local, err := phishing.NewBlocklistSource(cfg.BlocklistPath)
		if err != nil {
			return nil, fmt.Errorf("loading local blocklist: %w", err)
		}
		sources = append(sources, local)
	}
	sources = append(sources, phishing.NewFeedSource(cfg, logger))
	sources = append(sources, phishing.NewGoPlusSource(cfg))

	return phishing.NewDetector(cfg, logger, sources...), nil
}

// NewScorer loads the scoring model, or falls back to the uninitialized
// model that predicts 0 when no weights are configured.
func NewScorer(cfg config.MLConfig, logger *slog.Logger) (*ml.LogisticModel, error) {
	if cfg.WeightsPath == "" {
		logger.Info("no model weights configured, scoring disabled")
		return ml.NewModel(logger), nil
	}

	model, err := ml.LoadModel(cfg.WeightsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("loading scoring model: %w", err)
	}
	logger.Info("scoring model loaded", "path", cfg.WeightsPath)
	return model, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for a separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func (s *Server) setupMiddleware() {
	s.router.Use(security.FilterMiddleware(s.cfg.Security.FilterEnabled))
	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Security.MaxBodySizeMB))

	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// CORS: the confirmation flow may call from an extension origin.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	if s.cfg.Metrics.Enabled {
		s.router.Handle("/metrics", metrics.Handler())
	}

	analysisHandler := analysisTransport.NewHandler(s.analysisSvc, s.contracts)

	s.router.Route("/api/v1", func(r chi.Router) {
		analysisHandler.RegisterRoutes(r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// recordingService decorates the analyzer with best-effort history writes.
type recordingService struct {
	next   analysisTransport.Service
	store  history.Store
	logger *slog.Logger
}

func (r *recordingService) AnalyzeTransaction(ctx context.Context, tx analysisDomain.Transaction) *analysisDomain.SecurityReport {
	report := r.next.AnalyzeTransaction(ctx, tx)

	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		payload, err := json.Marshal(report)
		if err != nil {
			r.logger.Warn("marshaling report for history failed", "error", err)
			return
		}

		rec := &history.Record{
			ID:           report.ID,
			From:         tx.From,
			Risk:         string(report.Risk),
			RiskScore:    report.RiskAssessment.RiskScore,
			WarningCount: len(report.Warnings),
			Report:       payload,
			CreatedAt:    report.Timestamp,
		}
		if tx.To != nil {
			rec.To = *tx.To
		}

		if err := r.store.SaveReport(saveCtx, rec); err != nil {
			r.logger.Warn("saving report to history failed", "report_id", report.ID, "error", err)
		}
	}()

	return report
}
