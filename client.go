package myq

import (
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// defaultRetryMax is the retry budget for one logical request:
	// 1 original attempt plus 3 retries.
	defaultRetryMax = 3

	// defaultRetryInterval paces retries of one logical request.
	defaultRetryInterval = 250 * time.Millisecond

	// defaultUserAgent mirrors the mobile app the service expects.
	defaultUserAgent = "myQ/26.1.0.1"
)

// Endpoints is the set of myQ service URLs. Every entry may be overridden,
// which is primarily useful for tests; the zero value of any field falls
// back to the production endpoint.
type Endpoints struct {
	// Authorize is the OAuth authorization endpoint on the identity host.
	Authorize string
	// Token is the OAuth token endpoint on the identity host.
	Token string
	// Accounts is the account enumeration endpoint.
	Accounts string
	// Devices is the API base for per-account device lists.
	Devices string
	// GarageDoor is the API base for garage-door opener commands.
	GarageDoor string
	// Lamp is the API base for lamp module commands.
	Lamp string
}

// DefaultEndpoints returns the production myQ service endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Authorize:  "https://partner-identity.myq-cloud.com/connect/authorize",
		Token:      "https://partner-identity.myq-cloud.com/connect/token",
		Accounts:   "https://accounts.myq-cloud.com/api/v6.0/accounts",
		Devices:    "https://devices.myq-cloud.com/api/v5.2",
		GarageDoor: "https://account-devices-gdo.myq-cloud.com/api/v5.2",
		Lamp:       "https://account-devices-lamp.myq-cloud.com/api/v5.2",
	}
}

func (e *Endpoints) applyDefaults() {
	defaults := DefaultEndpoints()
	if e.Authorize == "" {
		e.Authorize = defaults.Authorize
	}
	if e.Token == "" {
		e.Token = defaults.Token
	}
	if e.Accounts == "" {
		e.Accounts = defaults.Accounts
	}
	if e.Devices == "" {
		e.Devices = defaults.Devices
	}
	if e.GarageDoor == "" {
		e.GarageDoor = defaults.GarageDoor
	}
	if e.Lamp == "" {
		e.Lamp = defaults.Lamp
	}
}

// Client is a myQ API client. It owns one logical session: the OAuth
// tokens, the account set reachable through them, the active region, and
// the last device snapshot.
//
// A Client is not safe for concurrent use; see the package documentation.
type Client struct {
	httpClient *http.Client
	authClient *http.Client // manual-redirect variant for the login flow
	logger     logr.Logger
	endpoints  Endpoints
	userAgent  string
	region     *regionState
	tokenStore TokenStore

	retryMax      int
	retryInterval time.Duration

	// lastStatus records the most recent HTTP status observed by retrieve,
	// including failed attempts. Single-writer diagnostic value; overlapping
	// calls on one instance race on it.
	lastStatus int

	// Session state, owned by the session manager (session.go).
	email           string
	password        string
	tokens          *TokenResponse
	issuedAt        time.Time
	refreshInterval time.Duration
	lastAuthAttempt time.Time
	lastAuthErr     error
	accounts        []Account

	// Directory state (devices.go).
	devices            []Device
	devicesRefreshedAt time.Time
	lastRefreshAttempt time.Time
	lastRefreshErr     error

	refreshStop chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for diagnostics. The default logger
// writes to stderr at info level with debug suppressed.
func WithLogger(logger logr.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP request timeout.
// This option can be applied in any order relative to other options.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithEndpoints overrides one or more service endpoints. Zero-value fields
// keep their production defaults.
func WithEndpoints(endpoints Endpoints) Option {
	return func(c *Client) {
		c.endpoints = endpoints
	}
}

// WithRegions overrides the region rotation list. The first entry is the
// initial region; an empty string means the unsuffixed default hostnames.
func WithRegions(regions []string) Option {
	return func(c *Client) {
		c.region = newRegionState(regions)
	}
}

// WithTokenStore configures persistence for OAuth tokens. When set, tokens
// are loaded on the first session check and saved after every successful
// authentication or refresh, so a restart can resume from the stored
// refresh token instead of replaying the full login flow.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.tokenStore = store
	}
}

// WithUserAgent overrides the User-Agent header sent on every request.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a new myQ client. Call Login before any other
// operation.
func NewClient(opts ...Option) *Client {
	c := &Client{
		logger:        defaultLogger(),
		endpoints:     DefaultEndpoints(),
		userAgent:     defaultUserAgent,
		retryMax:      defaultRetryMax,
		retryInterval: defaultRetryInterval,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.endpoints.applyDefaults()
	if c.region == nil {
		c.region = newRegionState(DefaultRegions())
	}

	// The login flow must observe redirects rather than follow them, so it
	// runs on a variant of the configured client with redirects disabled.
	c.authClient = &http.Client{
		Transport:     c.httpClient.Transport,
		Timeout:       c.httpClient.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return c
}

// LastStatus returns the most recent HTTP status code observed by the
// client, including statuses from failed attempts. It is a diagnostic
// value only; concurrent operations on one instance race on it.
func (c *Client) LastStatus() int {
	return c.lastStatus
}
