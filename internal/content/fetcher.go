package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
	"github.com/agent0ai/a0-launcher/internal/logging"
)

// Default fetcher settings.
const (
	DefaultUserAgent = "A0-Launcher"
	DefaultTimeout   = 2 * time.Minute
	DefaultMaxBytes  = 64 << 20

	acceptOctetStream = "application/octet-stream"
)

// Error variables for fetch failures.
var (
	ErrDownloadFailed = apperrors.New(apperrors.CodeDownload, "download failed", nil)
	ErrTooLarge       = apperrors.New(apperrors.CodeDownload, "bundle exceeds size limit", nil)
)

// ProgressFunc receives the bytes read so far and the expected total
// (-1 when the server did not announce a length).
type ProgressFunc func(read, total int64)

// Fetcher downloads and decodes bundle assets.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	logger     *zap.SugaredLogger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithTimeout bounds the whole download.
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient.Timeout = timeout
	}
}

// WithUserAgent sets the identifying client label.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBytes caps the accepted body size.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *zap.SugaredLogger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  DefaultUserAgent,
		maxBytes:   DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logging.Named("fetcher")
	}
	return f
}

// Download performs a single GET for url and decodes the body as a bundle.
// Transport failures and non-200 responses carry CodeDownload; undecodable
// bodies carry CodeParse. No retry is attempted. progress may be nil.
func (f *Fetcher) Download(ctx context.Context, url string, progress ProgressFunc) (Bundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: create request: %v", ErrDownloadFailed, err)
	}
	req.Header.Set("Accept", acceptOctetStream)
	req.Header.Set("User-Agent", f.userAgent)

	f.logger.Debugw("downloading bundle", "url", url)
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Bundle{}, fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return Bundle{}, fmt.Errorf("%w: length %d is larger than %d", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	var body io.Reader = resp.Body
	if progress != nil {
		body = &progressReader{r: body, total: resp.ContentLength, fn: progress}
	}
	// Read one byte past the limit so an unannounced oversize body is detected.
	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: read body: %v", ErrDownloadFailed, err)
	}
	if int64(len(data)) > f.maxBytes {
		return Bundle{}, fmt.Errorf("%w: body is larger than %d", ErrTooLarge, f.maxBytes)
	}

	bundle, err := Decode(data)
	if err != nil {
		return Bundle{}, err
	}
	f.logger.Infow("downloaded bundle", "url", url, "bytes", len(data), "files", bundle.Len())
	return bundle, nil
}

type progressReader struct {
	r     io.Reader
	read  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.fn(p.read, p.total)
	}
	return n, err
}
