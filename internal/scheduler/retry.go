package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

const maxRetries = 2

// doWithRetry executes an HTTP request with exponential backoff retry for
// transient errors (network failures, 5xx, 429). Book requests are safe to
// retry because they carry an idempotency requestId.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with jitter.
			base := time.Duration(attempt*attempt) * time.Second
			jitter := time.Duration(rand.Int63n(int64(base/2 + 1)))
			backoff := base + jitter
			logger.Warn("retrying gateway request", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				logger.Warn("gateway request failed, will retry", "error", err)
				continue
			}
			return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			lastErr = fmt.Errorf("gateway HTTP %d: %s", resp.StatusCode, string(body))
			if attempt < maxRetries {
				logger.Warn("gateway transient error, will retry", "status", resp.StatusCode)
				continue
			}
			return nil, lastErr
		}

		return resp, nil
	}

	return nil, lastErr
}
