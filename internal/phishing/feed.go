package phishing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/qvkare/metaguard-snap/internal/config"
	"github.com/qvkare/metaguard-snap/internal/validation"
)

// feedList is the eth-phishing-detect config.json shape.
type feedList struct {
	Blacklist []string `json:"blacklist"`
	Whitelist []string `json:"whitelist"`
	Fuzzylist []string `json:"fuzzylist"`
}

// FeedSource checks addresses against a maintained blocklist feed
// (MetaMask's eth-phishing-detect format). The feed is fetched lazily and
// refreshed on an interval; the last good copy is kept when a refresh fails.
type FeedSource struct {
	feedURL string
	refresh time.Duration
	http    *http.Client
	logger  *slog.Logger

	mu        sync.Mutex
	list      *feedList
	fetchedAt time.Time
}

// NewFeedSource creates a blocklist feed source.
func NewFeedSource(cfg config.PhishingConfig, logger *slog.Logger) *FeedSource {
	return &FeedSource{
		feedURL: cfg.FeedURL,
		refresh: cfg.FeedRefresh,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Name implements Source.
func (s *FeedSource) Name() string { return "blocklist-feed" }

// Check implements Source. Blacklist hits are certain, fuzzy matches less
// so, and whitelist hits are a certain "safe".
func (s *FeedSource) Check(ctx context.Context, address string) (Result, error) {
	list, err := s.currentList(ctx)
	if err != nil {
		return Result{}, err
	}

	addr := validation.NormalizeAddress(address)

	for _, entry := range list.Blacklist {
		if strings.EqualFold(entry, addr) {
			return Result{IsPhishing: true, Confidence: 1.0, Reason: "Address is in phishing blacklist"}, nil
		}
	}

	for _, entry := range list.Whitelist {
		if strings.EqualFold(entry, addr) {
			return Result{IsPhishing: false, Confidence: 1.0}, nil
		}
	}

	for _, entry := range list.Fuzzylist {
		if entry != "" && strings.Contains(addr, strings.ToLower(entry)) {
			return Result{IsPhishing: true, Confidence: 0.8, Reason: "Address matches fuzzy phishing pattern"}, nil
		}
	}

	return Result{IsPhishing: false, Confidence: 0.9}, nil
}

// currentList returns the cached feed, refreshing it when stale. A failed
// refresh falls back to the previous copy; only a cold start with no copy at
// all is an error.
func (s *FeedSource) currentList(ctx context.Context) (*feedList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.list != nil && time.Since(s.fetchedAt) < s.refresh {
		return s.list, nil
	}

	list, err := s.fetch(ctx)
	if err != nil {
		if s.list != nil {
			s.logger.Warn("phishing feed refresh failed, using previous copy", "error", err)
			return s.list, nil
		}
		return nil, err
	}

	s.list = list
	s.fetchedAt = time.Now()
	return s.list, nil
}

func (s *FeedSource) fetch(ctx context.Context) (*feedList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching phishing feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("phishing feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading phishing feed: %w", err)
	}

	var list feedList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decoding phishing feed: %w", err)
	}
	return &list, nil
}
