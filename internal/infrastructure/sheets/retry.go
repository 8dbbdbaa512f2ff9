package sheets

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"

	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

var (
	// ErrRetriesExhausted wraps the last transient failure once every attempt is used
	ErrRetriesExhausted = errors.New("sheets retries exhausted")

	// ErrRemoteRejected wraps a failure the API will not recover from on retry
	ErrRemoteRejected = errors.New("sheets request rejected")
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = time.Second
)

// RetryPolicy retries transient failures with exponential backoff.
// Attempts counts the first call.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// Do runs fn until it succeeds, fails permanently or runs out of attempts
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}

	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))

	calls := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		calls++
		if calls > 1 {
			metrics.SheetsRetries.Inc()
		}
		err := fn(ctx)
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return err
	case transient(err):
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, calls, err)
	default:
		return fmt.Errorf("%w: %w", ErrRemoteRejected, err)
	}
}

// transient reports whether a failure is worth retrying: rate limiting,
// server errors and connection level failures
func transient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
