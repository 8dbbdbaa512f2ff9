// Package sheets reads student worksheets from Google Sheets with a
// per-worksheet TTL cache and retried fetches.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/devilmonastery/studenthistory/internal/config"
	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

const (
	historyRange = "B5:C10000"
	balanceRange = "E3:E4"

	cacheName = "worksheets"
)

var (
	// ErrClosed is returned by a client after Close
	ErrClosed = errors.New("sheets client closed")

	// ErrNotConfigured is returned when no spreadsheet is configured
	ErrNotConfigured = errors.New("sheets client not configured")
)

// fetcher reads value ranges from one spreadsheet
type fetcher interface {
	BatchGet(ctx context.Context, ranges []string) ([][][]string, error)
}

type cacheEntry struct {
	sheet     *entities.StudentSheet
	fetchedAt time.Time
}

// Client reads worksheets. Safe for concurrent use.
type Client struct {
	fetch   fetcher
	ttl     time.Duration
	retry   RetryPolicy
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time

	mu             sync.Mutex
	cache          map[string]cacheEntry
	lastConnection time.Time
	closed         bool
}

// Stats describes the cache at a point in time
type Stats struct {
	TotalEntries   int        `json:"total_entries"`
	ActiveEntries  int        `json:"active_entries"`
	ExpiredEntries int        `json:"expired_entries"`
	CacheKeys      []string   `json:"cache_keys"`
	TTLSeconds     int        `json:"cache_ttl_seconds"`
	LastConnection *time.Time `json:"last_connection,omitempty"`
}

// NewClient connects to the configured spreadsheet with a service account
// credentials file
func NewClient(ctx context.Context, cfg config.SheetsConfig, logger *slog.Logger) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, ErrNotConfigured
	}

	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gsheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newClient(&apiFetcher{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg, logger), nil
}

func newClient(f fetcher, cfg config.SheetsConfig, logger *slog.Logger) *Client {
	return &Client{
		fetch: f,
		ttl:   cfg.CacheTTL,
		retry: RetryPolicy{
			Attempts:  cfg.MaxRetries,
			BaseDelay: cfg.RetryBaseDelay,
		},
		timeout: cfg.RequestTimeout,
		log:     logger.With(slog.String("component", "sheets")),
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
}

// StudentSheet returns the history and balance ranges of a worksheet.
// With useCache a fresh cached copy is returned when present; the fetched
// result always refreshes the cache.
func (c *Client) StudentSheet(ctx context.Context, worksheet string, useCache bool) (*entities.StudentSheet, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if useCache {
		if entry, ok := c.cache[worksheet]; ok && c.fresh(entry) {
			c.mu.Unlock()
			metrics.CacheHits.WithLabelValues("sheets", cacheName).Inc()
			return entry.sheet, nil
		}
		metrics.CacheMisses.WithLabelValues("sheets", cacheName).Inc()
	}
	c.mu.Unlock()

	sheet, err := c.load(ctx, worksheet)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.cache[worksheet] = cacheEntry{sheet: sheet, fetchedAt: c.now()}
		metrics.CacheSize.WithLabelValues("sheets", cacheName).Set(float64(len(c.cache)))
	}
	return sheet, nil
}

func (c *Client) load(ctx context.Context, worksheet string) (*entities.StudentSheet, error) {
	ranges := []string{rangeFor(worksheet, historyRange), rangeFor(worksheet, balanceRange)}

	start := time.Now()
	var values [][][]string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		v, err := c.fetch.BatchGet(callCtx, ranges)
		if err != nil {
			c.log.Warn("Worksheet fetch failed",
				"worksheet", worksheet,
				"error", err)
			return err
		}
		values = v
		return nil
	})
	metrics.SheetsDuration.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.SheetsFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read worksheet %q: %w", worksheet, err)
	}
	metrics.SheetsFetches.WithLabelValues("success").Inc()

	c.mu.Lock()
	c.lastConnection = c.now()
	c.mu.Unlock()

	sheet := &entities.StudentSheet{}
	if len(values) > 0 {
		sheet.History = values[0]
	}
	if len(values) > 1 {
		sheet.Balance = values[1]
	}
	return sheet, nil
}

// fresh must be called with mu held
func (c *Client) fresh(entry cacheEntry) bool {
	return c.ttl > 0 && c.now().Sub(entry.fetchedAt) < c.ttl
}

// Stats reports cache occupancy
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		TotalEntries: len(c.cache),
		CacheKeys:    make([]string, 0, len(c.cache)),
		TTLSeconds:   int(c.ttl / time.Second),
	}
	for key, entry := range c.cache {
		stats.CacheKeys = append(stats.CacheKeys, key)
		if c.fresh(entry) {
			stats.ActiveEntries++
		} else {
			stats.ExpiredEntries++
		}
	}
	sort.Strings(stats.CacheKeys)
	if !c.lastConnection.IsZero() {
		last := c.lastConnection
		stats.LastConnection = &last
	}
	return stats
}

// ClearCache drops one worksheet, or everything when worksheet is empty.
// Returns the number of removed entries.
func (c *Client) ClearCache(worksheet string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	if worksheet == "" {
		removed = len(c.cache)
		c.cache = make(map[string]cacheEntry)
	} else if _, ok := c.cache[worksheet]; ok {
		delete(c.cache, worksheet)
		removed = 1
	}
	if removed > 0 {
		metrics.CacheEvictions.WithLabelValues("sheets", cacheName).Add(float64(removed))
		metrics.CacheSize.WithLabelValues("sheets", cacheName).Set(float64(len(c.cache)))
		c.log.Info("Sheets cache cleared", "worksheet", worksheet, "removed", removed)
	}
	return removed
}

// Close releases the cache. Reads after Close fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cache = make(map[string]cacheEntry)
	metrics.CacheSize.WithLabelValues("sheets", cacheName).Set(0)
	return nil
}

// rangeFor builds an A1 range on a worksheet, quoting the name
func rangeFor(worksheet, cells string) string {
	return "'" + strings.ReplaceAll(worksheet, "'", "''") + "'!" + cells
}

// apiFetcher reads ranges through the Sheets v4 API
type apiFetcher struct {
	svc           *gsheets.Service
	spreadsheetID string
}

func (f *apiFetcher) BatchGet(ctx context.Context, ranges []string) ([][][]string, error) {
	resp, err := f.svc.Spreadsheets.Values.BatchGet(f.spreadsheetID).
		Ranges(ranges...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	out := make([][][]string, len(resp.ValueRanges))
	for i, vr := range resp.ValueRanges {
		out[i] = stringValues(vr.Values)
	}
	return out, nil
}

func stringValues(rows [][]interface{}) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				cells[j] = fmt.Sprint(cell)
			}
		}
		out[i] = cells
	}
	return out
}

// Disabled is the worksheet source used when no spreadsheet is configured
type Disabled struct{}

// StudentSheet always fails with ErrNotConfigured
func (Disabled) StudentSheet(ctx context.Context, worksheet string, useCache bool) (*entities.StudentSheet, error) {
	return nil, ErrNotConfigured
}
