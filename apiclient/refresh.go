package apiclient

import (
	"context"
	"fmt"
	"strings"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
)

const refreshKey = "session-token"

// refresh returns a token to replay with after stale was rejected. Concurrent
// callers share one in-flight refresh.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	v, err, shared := c.refreshGroup.Do(refreshKey, func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		ctx := context.WithoutCancel(ctx)

		// A refresh that finished just before this one started already
		// replaced the token.
		if current := c.bearerToken(ctx); current != "" && current != stale {
			return current, nil
		}

		refresher := c.currentRefresher()
		if refresher == nil {
			c.revoke(ctx)
			return "", autherrors.ErrRefreshFailed
		}

		c.log.Info().Msg("session token rejected, refreshing")
		fresh, err := refresher.Refresh(ctx)
		fresh = strings.TrimSpace(fresh)
		if err != nil || fresh == "" {
			c.log.Warn().Err(err).Msg("session token refresh failed")
			c.revoke(ctx)
			if err == nil {
				return "", autherrors.ErrRefreshFailed
			}
			return "", fmt.Errorf("[Client.refresh] %w: %w", autherrors.ErrRefreshFailed, err)
		}

		if c.tokens != nil {
			if err := c.tokens.Set(ctx, fresh); err != nil {
				c.log.Warn().Err(err).Msg("could not persist refreshed session token")
			}
		}
		for _, l := range c.tokenListeners() {
			l.TokenRefreshed(fresh)
		}
		return fresh, nil
	})

	switch {
	case shared:
		metrics.TokenRefreshesTotal.WithLabelValues("shared").Inc()
	case err != nil:
		metrics.TokenRefreshesTotal.WithLabelValues("failure").Inc()
	default:
		metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) revoke(ctx context.Context) {
	if c.tokens != nil {
		if err := c.tokens.Clear(ctx); err != nil {
			c.log.Warn().Err(err).Msg("could not clear rejected session token")
		}
	}
	for _, l := range c.tokenListeners() {
		l.TokenRevoked()
	}
}

func (c *Client) currentRefresher() Refresher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresher
}

func (c *Client) tokenListeners() []TokenListener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]TokenListener, len(c.listeners))
	copy(out, c.listeners)
	return out
}
