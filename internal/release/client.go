package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
	"github.com/agent0ai/a0-launcher/internal/logging"
)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultUserAgent = "A0-Launcher"
	DefaultTimeout   = 15 * time.Second

	acceptReleaseJSON = "application/vnd.github.v3+json"
)

// Error variables for specific error conditions.
var (
	ErrNetworkFailure = apperrors.New(apperrors.CodeConnectivity, "release feed request failed", nil)
	ErrRateLimited    = apperrors.New(apperrors.CodeConnectivity, "rate limited by release feed", nil)
	ErrMalformed      = apperrors.New(apperrors.CodeParse, "malformed release response", nil)
)

// Asset is a named downloadable resource attached to a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Descriptor identifies a remote release. PublishedAt is the only freshness
// signal; Tag is opaque.
type Descriptor struct {
	Tag         string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []Asset   `json:"assets"`
}

// FindAsset returns the first asset whose name matches exactly.
func (d Descriptor) FindAsset(name string) (Asset, bool) {
	for _, asset := range d.Assets {
		if asset.Name == name {
			return asset, true
		}
	}
	return Asset{}, false
}

// NewerThan reports whether d was published strictly after t.
func (d Descriptor) NewerThan(t time.Time) bool {
	return d.PublishedAt.After(t)
}

// Client queries the release feed for a fixed repository.
type Client struct {
	owner      string
	repo       string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithBaseURL points the client at a different feed host.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithUserAgent sets the identifying client label sent with each request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a release client for owner/repo.
func NewClient(owner, repo string, opts ...ClientOption) *Client {
	c := &Client{
		owner:     owner,
		repo:      repo,
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Named("release")
	}
	return c
}

// Repository returns "owner/repo".
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// FetchLatest returns the latest release, or false on any network failure,
// non-success status or malformed response. The failure is logged.
func (c *Client) FetchLatest(ctx context.Context) (Descriptor, bool) {
	desc, err := c.Latest(ctx)
	if err != nil {
		c.logger.Warnw("failed to fetch latest release", "repository", c.Repository(), "error", err)
		return Descriptor{}, false
	}
	c.logger.Debugw("fetched latest release", "tag", desc.Tag, "published_at", desc.PublishedAt)
	return *desc, true
}

// Latest fetches the latest release and returns a classified error on failure.
func (c *Client) Latest(ctx context.Context) (*Descriptor, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest",
		c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", acceptReleaseJSON)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrNetworkFailure, resp.StatusCode)
	}

	var desc Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if desc.PublishedAt.IsZero() {
		return nil, fmt.Errorf("%w: missing published_at", ErrMalformed)
	}
	return &desc, nil
}
