package myq

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// OAuth client parameters used by the myQ mobile apps.
	oauthClientID     = "IOS_CGI_MYQ"
	oauthClientSecret = "VUQ0RFhuS3lQV3EyNUJTdw=="
	oauthRedirectURI  = "com.myqops://ios"
	oauthScope        = "MyQ_Residential offline_access"

	// minLoginCookies is the minimum number of Set-Cookie headers a
	// successful credential POST produces. Fewer means the login was
	// rejected or the flow is broken.
	minLoginCookies = 2

	// maxAuthRedirects bounds the manual redirect hops while locating the
	// login form.
	maxAuthRedirects = 5
)

// verificationTokenRegex locates the anti-forgery token embedded in the
// identity service's login page markup.
var verificationTokenRegex = regexp.MustCompile(
	`name="__RequestVerificationToken"[^>]*value="([^"]+)"`)

// TokenResponse represents the response from the OAuth token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`

	// ExpiresAt is computed from ExpiresIn when the tokens are adopted.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// pkcePair generates a PKCE verifier and its S256 challenge.
func pkcePair() (verifier, challenge string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("myq: failed to generate PKCE verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}

// trimCookies reconstructs a Cookie header from raw Set-Cookie values,
// stripping all attributes after the first ";" per entry.
func trimCookies(setCookies []string) string {
	pairs := make([]string, 0, len(setCookies))
	for _, raw := range setCookies {
		pair, _, _ := strings.Cut(raw, ";")
		pair = strings.TrimSpace(pair)
		if pair != "" {
			pairs = append(pairs, pair)
		}
	}
	return strings.Join(pairs, "; ")
}

// extractVerificationToken pulls the anti-forgery token out of the login
// page markup. Returns "" if the page does not contain one.
func extractVerificationToken(page []byte) string {
	match := verificationTokenRegex.FindSubmatch(page)
	if match == nil {
		return ""
	}
	return string(match[1])
}

// cookieHeader builds a header carrying the reconstructed session cookies,
// omitting the Cookie header entirely when there are none yet.
func cookieHeader(cookies []string) http.Header {
	header := http.Header{}
	if joined := trimCookies(cookies); joined != "" {
		header.Set("Cookie", joined)
	}
	return header
}

// isRedirect reports whether status is one of the redirect codes the login
// flow follows.
func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// authenticate runs the full PKCE authorization-code login sequence and
// returns the resulting tokens. Any unexpected response shape aborts the
// whole sequence.
func (c *Client) authenticate(ctx context.Context) (*TokenResponse, error) {
	if c.email == "" || c.password == "" {
		return nil, ErrNoCredentials
	}

	verifier, challenge, err := pkcePair()
	if err != nil {
		return nil, err
	}
	state := uuid.NewString()

	// Step 1: fetch the login page through the authorization endpoint,
	// following redirects manually so every session cookie is observed.
	loginURL, page, cookies, err := c.fetchLoginPage(ctx, challenge, state)
	if err != nil {
		return nil, err
	}

	token := extractVerificationToken(page)
	if token == "" {
		c.logger.Error(ErrAuthAnomaly, "login page has no verification token; the identity service may have changed")
		return nil, fmt.Errorf("%w: missing verification token", ErrAuthAnomaly)
	}

	// Step 2: POST the credentials with the anti-forgery token.
	redirectURL, cookies, err := c.submitCredentials(ctx, loginURL, token, cookies)
	if err != nil {
		return nil, err
	}

	// Step 3: follow the post-login redirect to obtain the authorization
	// code, forwarding only the session cookies.
	code, returnedState, err := c.fetchAuthCode(ctx, redirectURL, cookies)
	if err != nil {
		return nil, err
	}
	if returnedState != "" && returnedState != state {
		c.logger.Error(ErrAuthAnomaly, "authorization state mismatch")
		return nil, fmt.Errorf("%w: state mismatch", ErrAuthAnomaly)
	}

	// Step 4: exchange the code for tokens.
	return c.exchangeCode(ctx, code, verifier)
}

// fetchLoginPage drives the authorization endpoint to the login form,
// accumulating session cookies across redirect hops.
func (c *Client) fetchLoginPage(ctx context.Context, challenge, state string) (loginURL string, page []byte, cookies []string, err error) {
	params := url.Values{}
	params.Set("client_id", oauthClientID)
	params.Set("code_challenge", challenge)
	params.Set("code_challenge_method", "S256")
	params.Set("redirect_uri", oauthRedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", oauthScope)
	params.Set("state", state)

	next := c.endpoints.Authorize + "?" + params.Encode()

	for hop := 0; hop <= maxAuthRedirects; hop++ {
		resp, body, err := c.retrieve(ctx, retrieveParams{
			method:     http.MethodGet,
			url:        next,
			noRedirect: true,
			raw:        true,
			header:     cookieHeader(cookies),
		})
		if err != nil {
			return "", nil, nil, err
		}

		cookies = append(cookies, resp.Header.Values("Set-Cookie")...)

		if !isRedirect(resp.StatusCode) {
			if resp.StatusCode != http.StatusOK {
				c.logger.Error(ErrAuthAnomaly, "unexpected status fetching login page", "status", resp.StatusCode)
				return "", nil, nil, fmt.Errorf("%w: login page returned status %d", ErrAuthAnomaly, resp.StatusCode)
			}
			return next, body, cookies, nil
		}

		location, err := resolveLocation(resp, next)
		if err != nil {
			return "", nil, nil, err
		}
		next = location
	}

	c.logger.Error(ErrAuthAnomaly, "too many redirects while locating the login page")
	return "", nil, nil, fmt.Errorf("%w: too many redirects", ErrAuthAnomaly)
}

// submitCredentials POSTs the email, password, and anti-forgery token to
// the login form and returns the resulting redirect target plus the
// session cookies the server set.
func (c *Client) submitCredentials(ctx context.Context, loginURL, token string, cookies []string) (string, []string, error) {
	form := url.Values{}
	form.Set("Email", c.email)
	form.Set("Password", c.password)
	form.Set("__RequestVerificationToken", token)

	resp, _, err := c.retrieve(ctx, retrieveParams{
		method:      http.MethodPost,
		url:         loginURL,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		noRedirect:  true,
		raw:         true,
		header:      cookieHeader(cookies),
	})
	if err != nil {
		return "", nil, err
	}

	setCookies := resp.Header.Values("Set-Cookie")
	if len(setCookies) < minLoginCookies {
		// The identity service answers a bad password with the login form
		// again and no fresh session cookies.
		c.logger.Error(ErrInvalidCredentials, "credential POST set too few cookies; likely a bad email or password",
			"cookies", len(setCookies))
		return "", nil, ErrInvalidCredentials
	}

	if !isRedirect(resp.StatusCode) {
		c.logger.Error(ErrAuthAnomaly, "credential POST did not redirect", "status", resp.StatusCode)
		return "", nil, fmt.Errorf("%w: credential POST returned status %d", ErrAuthAnomaly, resp.StatusCode)
	}

	location, err := resolveLocation(resp, loginURL)
	if err != nil {
		return "", nil, err
	}
	return location, setCookies, nil
}

// fetchAuthCode follows the post-login redirect chain until the identity
// service hands back the app redirect carrying the authorization code.
func (c *Client) fetchAuthCode(ctx context.Context, redirectURL string, cookies []string) (code, state string, err error) {
	next := redirectURL

	for hop := 0; hop <= maxAuthRedirects; hop++ {
		if strings.HasPrefix(next, oauthRedirectURI) {
			return parseAuthRedirect(next)
		}

		resp, _, err := c.retrieve(ctx, retrieveParams{
			method:     http.MethodGet,
			url:        next,
			noRedirect: true,
			raw:        true,
			header:     cookieHeader(cookies),
		})
		if err != nil {
			return "", "", err
		}

		if !isRedirect(resp.StatusCode) {
			c.logger.Error(ErrAuthAnomaly, "post-login redirect chain ended without an authorization code",
				"status", resp.StatusCode)
			return "", "", fmt.Errorf("%w: no authorization code in redirect chain", ErrAuthAnomaly)
		}

		cookies = append(cookies, resp.Header.Values("Set-Cookie")...)

		location, err := resolveLocation(resp, next)
		if err != nil {
			return "", "", err
		}
		next = location
	}

	c.logger.Error(ErrAuthAnomaly, "too many redirects while waiting for the authorization code")
	return "", "", fmt.Errorf("%w: too many redirects", ErrAuthAnomaly)
}

// parseAuthRedirect extracts the authorization code and state from the
// final app redirect's query parameters.
func parseAuthRedirect(redirect string) (code, state string, err error) {
	u, err := url.Parse(redirect)
	if err != nil {
		return "", "", fmt.Errorf("%w: unparseable redirect: %v", ErrAuthAnomaly, err)
	}
	query := u.Query()
	code = query.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("%w: redirect has no authorization code", ErrAuthAnomaly)
	}
	return code, query.Get("state"), nil
}

// resolveLocation resolves a response's Location header against the
// request URL, since the identity service emits relative redirects.
func resolveLocation(resp *http.Response, base string) (string, error) {
	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("%w: redirect without Location header", ErrAuthAnomaly)
	}
	if strings.HasPrefix(location, oauthRedirectURI) {
		return location, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: unparseable base URL: %v", ErrAuthAnomaly, err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: unparseable Location header: %v", ErrAuthAnomaly, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// exchangeCode trades the authorization code and PKCE verifier for tokens.
func (c *Client) exchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", oauthClientID)
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", oauthRedirectURI)
	form.Set("scope", oauthScope)

	return c.requestTokens(ctx, form)
}

// refreshTokens trades the stored refresh token for a fresh token set.
func (c *Client) refreshTokens(ctx context.Context) (*TokenResponse, error) {
	if c.tokens == nil || c.tokens.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	form := url.Values{}
	form.Set("client_id", oauthClientID)
	form.Set("client_secret", oauthClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("redirect_uri", oauthRedirectURI)
	form.Set("refresh_token", c.tokens.RefreshToken)
	form.Set("scope", c.tokens.Scope)

	return c.requestTokens(ctx, form)
}

// requestTokens POSTs a form to the token endpoint and parses the token
// response.
func (c *Client) requestTokens(ctx context.Context, form url.Values) (*TokenResponse, error) {
	_, body, err := c.retrieve(ctx, retrieveParams{
		method:      http.MethodPost,
		url:         c.endpoints.Token,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		header:      http.Header{"Accept": []string{"application/json"}},
	})
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("%w: unparseable token response: %v", ErrAuthAnomaly, err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response has no access token", ErrAuthAnomaly)
	}
	if tokens.TokenType == "" {
		tokens.TokenType = "Bearer"
	}

	if tokens.ExpiresIn > 0 {
		tokens.ExpiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	} else if exp, ok := tokenExpiry(tokens.AccessToken); ok {
		// Some token responses omit expires_in; the access token is a JWT
		// whose exp claim carries the same information.
		tokens.ExpiresAt = exp
		tokens.ExpiresIn = int(time.Until(exp).Seconds())
	}

	return &tokens, nil
}

// tokenExpiry reads the expiry claim from the access token without
// verifying its signature; the client is not the token's audience and has
// no verification key.
func tokenExpiry(accessToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
