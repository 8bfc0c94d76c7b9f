package myq

import (
	"context"
	"fmt"
	"time"
)

const (
	// authCooldown throttles repeated authentication attempts. Calls to
	// ensureSession inside the window return the last known outcome
	// without network traffic.
	authCooldown = 5 * time.Second

	// tokenRefreshMargin is subtracted from the token lifetime so the
	// refresh happens well before expiry.
	tokenRefreshMargin = 10 * time.Minute

	// tokenRefreshFloor is the minimum refresh interval; the token
	// endpoint is never hammered more often than this even when the
	// service hands out short-lived tokens.
	tokenRefreshFloor = 5 * time.Minute

	// refreshCheckInterval is how often the background refresh task
	// re-evaluates the session.
	refreshCheckInterval = time.Minute
)

// Login authenticates with the given myQ account credentials and resolves
// the account set reachable through them. It replaces any existing
// session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return ErrNoCredentials
	}

	c.email = email
	c.password = password
	c.invalidate()
	c.lastAuthAttempt = time.Time{}

	return c.ensureSession(ctx)
}

// hasSession reports whether the client holds a token and a resolved
// account set. A session missing either is unusable and triggers a full
// authentication.
func (c *Client) hasSession() bool {
	return c.tokens != nil && c.tokens.AccessToken != "" && len(c.accounts) > 0
}

// invalidate clears the session so the next operation re-authenticates
// from scratch rather than looping on a broken token.
func (c *Client) invalidate() {
	c.tokens = nil
	c.issuedAt = time.Time{}
	c.refreshInterval = 0
	c.accounts = nil
}

// ensureSession guarantees a valid access token and account set, doing as
// little work as possible: nothing inside the auth cooldown window,
// nothing while the current token is younger than its refresh interval, a
// token refresh when it is not, and a full login when refresh is
// impossible or fails.
func (c *Client) ensureSession(ctx context.Context) error {
	if time.Since(c.lastAuthAttempt) < authCooldown {
		if c.hasSession() {
			return nil
		}
		if c.lastAuthErr != nil {
			return c.lastAuthErr
		}
		return ErrNotAuthenticated
	}

	if c.hasSession() && time.Since(c.issuedAt) < c.refreshInterval {
		return nil
	}

	c.lastAuthAttempt = time.Now()

	if c.tokens == nil && c.tokenStore != nil {
		if stored, err := c.tokenStore.LoadTokens(ctx); err == nil && stored != nil && stored.RefreshToken != "" {
			c.logger.V(1).Info("seeding session from stored tokens")
			c.tokens = stored
		}
	}

	var tokens *TokenResponse
	var err error

	if c.tokens != nil && c.tokens.RefreshToken != "" {
		tokens, err = c.refreshTokens(ctx)
		if err != nil {
			c.logger.Info("token refresh failed; falling back to full authentication", "reason", err.Error())
			tokens = nil
		}
	}

	if tokens == nil {
		tokens, err = c.authenticate(ctx)
	}

	if err != nil {
		c.invalidate()
		c.lastAuthErr = err
		return err
	}

	c.adoptTokens(ctx, tokens)

	accounts, err := c.getAccounts(ctx)
	if err != nil {
		// A session without a resolvable account set is not usable, even
		// though authentication itself succeeded.
		c.invalidate()
		c.lastAuthErr = fmt.Errorf("myq: authenticated but could not resolve accounts: %w", err)
		return c.lastAuthErr
	}

	c.accounts = accounts
	c.lastAuthErr = nil
	c.logger.Info("session established", "accounts", len(accounts),
		"refreshInterval", c.refreshInterval.String())
	return nil
}

// adoptTokens stores a fresh token set, computes its refresh interval, and
// persists it when a token store is configured.
func (c *Client) adoptTokens(ctx context.Context, tokens *TokenResponse) {
	c.tokens = tokens
	c.issuedAt = time.Now()

	interval := time.Duration(tokens.ExpiresIn)*time.Second - tokenRefreshMargin
	if interval < tokenRefreshFloor {
		interval = tokenRefreshFloor
	}
	c.refreshInterval = interval

	if exp, ok := tokenExpiry(tokens.AccessToken); ok {
		c.logger.V(1).Info("adopted access token", "scope", tokens.Scope, "expires", exp.Format(time.RFC3339))
	}

	if c.tokenStore != nil {
		if err := c.tokenStore.SaveTokens(ctx, tokens); err != nil {
			c.logger.Error(err, "failed to persist tokens")
		}
	}
}

// StartTokenRefresh starts a background task that keeps the access token
// fresh ahead of expiry. It is guarded by the same freshness check as
// on-demand refresh, so it never duplicates work a manual call already
// did. Call Close to stop it.
func (c *Client) StartTokenRefresh() {
	if c.refreshStop != nil {
		return
	}
	c.refreshStop = make(chan struct{})
	go c.refreshLoop(c.refreshStop)
}

func (c *Client) refreshLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(refreshCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.ensureSession(context.Background()); err != nil {
				c.logger.Error(err, "background token refresh failed")
			}
		}
	}
}

// Close stops the background token refresh task, if one is running.
func (c *Client) Close() {
	if c.refreshStop != nil {
		close(c.refreshStop)
		c.refreshStop = nil
	}
}
