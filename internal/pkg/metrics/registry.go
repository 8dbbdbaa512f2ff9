package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database/Repository Metrics
var (
	// DBOperations tracks total database operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_db_operations_total",
			Help: "Total database operations by repository, operation, and status",
		},
		[]string{"repo", "operation", "status"},
	)

	// DBDuration tracks database operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "studenthistory_db_operation_duration_ms",
			Help:                            "Database operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBRowsAffected tracks rows affected by write operations
	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "studenthistory_db_rows_affected",
			Help:                            "Number of rows affected by database write operations",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBErrors tracks database errors by type
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_db_errors_total",
			Help: "Total database errors by repository, operation, and error type",
		},
		[]string{"repo", "operation", "error_type"},
	)
)

// Service Layer Metrics
var (
	// ServiceOperations tracks service-level operations
	ServiceOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_service_operations_total",
			Help: "Total service operations by service, method, and status",
		},
		[]string{"service", "method", "status"},
	)

	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_cache_hits_total",
			Help: "Total cache hits by service and cache name",
		},
		[]string{"service", "cache_name"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_cache_misses_total",
			Help: "Total cache misses by service and cache name",
		},
		[]string{"service", "cache_name"},
	)

	// CacheSize tracks current cache size
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "studenthistory_cache_entries",
			Help: "Current number of entries in cache",
		},
		[]string{"service", "cache_name"},
	)

	// CacheEvictions tracks cache evictions
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_cache_evictions_total",
			Help: "Total cache evictions by service and cache name",
		},
		[]string{"service", "cache_name"},
	)
)

// HTTP/Web Handler Metrics
var (
	// HTTPRequests tracks HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration tracks HTTP request duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "studenthistory_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "path"},
	)

	// HTTPActiveRequests tracks active HTTP requests
	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studenthistory_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)
)

// Authentication Metrics
var (
	// AuthResolutions tracks credential resolution outcomes
	AuthResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_auth_resolutions_total",
			Help: "Total credential resolutions by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	// RateLimitRejections tracks requests rejected by a rate limiter
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_ratelimit_rejections_total",
			Help: "Total requests rejected by rate limiter name",
		},
		[]string{"limiter"},
	)

	// RateLimitClients tracks clients currently tracked by a rate limiter
	RateLimitClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "studenthistory_ratelimit_clients",
			Help: "Number of clients tracked by rate limiter name",
		},
		[]string{"limiter"},
	)

	// CSRFRejections tracks state-changing requests rejected by the CSRF guard
	CSRFRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studenthistory_csrf_rejections_total",
			Help: "Total state-changing requests rejected by the CSRF guard",
		},
	)
)

// External API Metrics
var (
	// SheetsFetches tracks spreadsheet fetches by outcome
	SheetsFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_sheets_fetches_total",
			Help: "Total spreadsheet fetches by status",
		},
		[]string{"status"},
	)

	// SheetsRetries tracks retried spreadsheet fetch attempts
	SheetsRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studenthistory_sheets_retries_total",
			Help: "Total retried spreadsheet fetch attempts",
		},
	)

	// SheetsDuration tracks spreadsheet fetch latency
	SheetsDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:                            "studenthistory_sheets_fetch_duration_ms",
			Help:                            "Spreadsheet fetch duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
	)

	// TelegramMessages tracks outbound bot messages by status
	TelegramMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_telegram_messages_total",
			Help: "Total outbound Telegram messages by kind and status",
		},
		[]string{"kind", "status"},
	)

	// TelegramCommands tracks bot commands handled
	TelegramCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studenthistory_telegram_commands_total",
			Help: "Total Telegram bot commands handled",
		},
		[]string{"command", "status"},
	)
)
