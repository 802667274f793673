// File: internal/hosting/retry.go
package hosting

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Hosting-API calls share one bounded retry policy: a fixed ~3s interval and
// at most two retries. Unbounded retry against the provider is never used.
const (
	retryInterval = 3 * time.Second
	maxRetries    = 2
)

// withRetry runs op under the shared policy. Wrap an error in
// backoff.Permanent to stop retrying (client errors, policy failures).
func withRetry(ctx context.Context, op func() error) error {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), maxRetries)
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
