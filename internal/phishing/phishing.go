// Package phishing provides the phishing reputation lookup. A Detector fans
// out to independent sources and merges their answers under one deterministic
// policy: any positive flag wins, the most certain confidence dominates, and
// the reason comes from the first flagged source in registration order.
package phishing

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/qvkare/metaguard-snap/internal/cache"
	"github.com/qvkare/metaguard-snap/internal/config"
	"github.com/qvkare/metaguard-snap/internal/observability/metrics"
	"github.com/qvkare/metaguard-snap/internal/validation"
)

// Result is the evidence produced for one address.
type Result struct {
	IsPhishing bool    `json:"isPhishing"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Source is a single reputation source. Check returns an error only for
// source-level failures (network, malformed feed); the Detector converts
// those into a failure-safe default rather than letting one outage flip the
// merged verdict.
type Source interface {
	Name() string
	Check(ctx context.Context, address string) (Result, error)
}

// unavailableResult is the per-source default when a source cannot answer:
// not flagged, but with reduced confidence so a safe verdict from a healthy
// source still dominates.
func unavailableResult() Result {
	return Result{IsPhishing: false, Confidence: 0.5, Reason: "source unavailable"}
}

// Detector merges multiple reputation sources and caches the merged result
// per normalized address.
type Detector struct {
	sources []Source
	cache   *cache.Cache[Result]
	group   singleflight.Group
	logger  *slog.Logger
}

// NewDetector creates a detector over the given sources. Source order is
// fixed at construction and determines which flagged reason wins a tie.
func NewDetector(cfg config.PhishingConfig, logger *slog.Logger, sources ...Source) *Detector {
	return &Detector{
		sources: sources,
		cache: cache.New[Result](cache.Options{
			MaxEntries: cfg.MaxCacheSize,
			DefaultTTL: cfg.CacheTTL,
		}),
		logger: logger,
	}
}

// CheckAddress returns the merged phishing verdict for address. An invalid
// address short-circuits to a confident "not phishing" without touching any
// source. Reputation lists change over time, so results are cached with a
// TTL rather than indefinitely.
func (d *Detector) CheckAddress(ctx context.Context, address string) Result {
	if !validation.IsValidAddress(address) {
		return Result{IsPhishing: false, Confidence: 1.0}
	}

	key := validation.NormalizeAddress(address)
	if r, ok := d.cache.Get(key); ok {
		metrics.RecordCacheEvent("phishing", "hit")
		return r
	}
	metrics.RecordCacheEvent("phishing", "miss")

	v, _, _ := d.group.Do(key, func() (any, error) {
		merged := d.check(ctx, key)
		d.cache.Set(key, merged, 0)
		return merged, nil
	})
	return v.(Result)
}

// check queries all sources concurrently and folds their results in
// registration order.
func (d *Detector) check(ctx context.Context, address string) Result {
	results := make([]Result, len(d.sources))

	var wg sync.WaitGroup
	for i, src := range d.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			r, err := src.Check(ctx, address)
			if err != nil {
				d.logger.Warn("phishing source failed", "source", src.Name(), "address", address, "error", err)
				metrics.RecordLookup(src.Name(), "error")
				results[i] = unavailableResult()
				return
			}
			metrics.RecordLookup(src.Name(), "ok")
			results[i] = r
		}(i, src)
	}
	wg.Wait()

	return merge(results)
}

// merge folds per-source results: IsPhishing is the OR across sources,
// Confidence the max across sources whether flagged or not, and Reason the
// first flagged source's reason in source order.
func merge(results []Result) Result {
	merged := Result{}
	for _, r := range results {
		if r.Confidence > merged.Confidence {
			merged.Confidence = r.Confidence
		}
		if r.IsPhishing && !merged.IsPhishing {
			merged.IsPhishing = true
			merged.Reason = r.Reason
		}
	}
	return merged
}
