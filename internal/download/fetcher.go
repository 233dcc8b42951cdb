// Package download implements the bounded-concurrency download engine:
// fetching media files over HTTP with adaptive rate limiting, recording
// per-file outcomes in the progress index and the failure log.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/logger"
)

// FetchErrorKind classifies a failed fetch.
type FetchErrorKind int

const (
	FetchTransport FetchErrorKind = iota
	FetchTimeout
	FetchNotFound
	FetchInvalidContent
)

// String returns a short reason tag used in the failure log.
func (k FetchErrorKind) String() string {
	switch k {
	case FetchTimeout:
		return "timeout"
	case FetchNotFound:
		return "not_found"
	case FetchInvalidContent:
		return "invalid_content"
	default:
		return "transport"
	}
}

// FetchError is the typed failure returned by a Fetcher.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves the bytes behind a URL. Implementations return a
// *FetchError on failure; the caller owns closing the body on success.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher fetches over net/http with bounded retries and adaptive rate
// limiting. 429 and 5xx responses back off and retry; everything else fails
// immediately with a typed error.
type HTTPFetcher struct {
	client     *http.Client
	limiter    *AdaptiveLimiter
	userAgent  string
	referer    string
	maxRetries int
	logger     *logger.Logger
}

// NewHTTPFetcher creates an HTTPFetcher. timeout bounds each individual
// request; maxRetries bounds attempts per file.
func NewHTTPFetcher(timeout time.Duration, maxRetries int, userAgent, referer string,
	limiter *AdaptiveLimiter, log *logger.Logger) *HTTPFetcher {

	if maxRetries < 1 {
		maxRetries = 1
	}
	if limiter == nil {
		limiter = NewAdaptiveLimiter(0, 0, 0)
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &HTTPFetcher{
		client:     &http.Client{Timeout: timeout},
		limiter:    limiter,
		userAgent:  userAgent,
		referer:    referer,
		maxRetries: maxRetries,
		logger:     log,
	}
}

// Fetch retrieves url, retrying through rate-limit and server errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr *FetchError

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Kind: FetchTransport, URL: url, Err: err}
		}
		f.limiter.Wait()

		body, retry, ferr := f.attempt(ctx, url)
		if ferr == nil {
			f.limiter.Success()
			return body, nil
		}
		lastErr = ferr
		if !retry {
			return nil, ferr
		}
		f.logger.Debugw("Retrying fetch",
			"url", url,
			"attempt", attempt,
			"error", ferr.Err.Error(),
		)
	}
	return nil, lastErr
}

// attempt performs one request. retry reports whether the failure is worth
// another attempt (rate limiting, server-side errors).
func (f *HTTPFetcher) attempt(ctx context.Context, url string) (io.ReadCloser, bool, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, &FetchError{Kind: FetchTransport, URL: url, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, false, &FetchError{Kind: FetchTimeout, URL: url, Err: err}
		}
		return nil, false, &FetchError{Kind: FetchTransport, URL: url, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Special:FilePath redirects to the raw media; an HTML body here is
		// an error page, not a file.
		if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
			resp.Body.Close()
			return nil, false, &FetchError{
				Kind: FetchInvalidContent,
				URL:  url,
				Err:  errors.New("received HTML instead of media content"),
			}
		}
		return resp.Body, false, nil

	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, false, &FetchError{Kind: FetchNotFound, URL: url, Err: errors.New("404 not found")}

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		f.limiter.Backoff(retryAfter)
		return nil, true, &FetchError{Kind: FetchTransport, URL: url, Err: errors.New("429 rate limited")}

	case resp.StatusCode >= 500:
		resp.Body.Close()
		f.limiter.Backoff(0)
		return nil, true, &FetchError{
			Kind: FetchTransport,
			URL:  url,
			Err:  fmt.Errorf("server error %d", resp.StatusCode),
		}

	default:
		resp.Body.Close()
		return nil, false, &FetchError{
			Kind: FetchTransport,
			URL:  url,
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
