package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxImageBytes caps downloaded image size
const DefaultMaxImageBytes int64 = 20 << 20

var (
	// ErrUnsupportedSource is returned when no fetcher handles a URL
	ErrUnsupportedSource = errors.New("unsupported image source")
	// ErrImageTooLarge is returned when a download exceeds the size cap
	ErrImageTooLarge = errors.New("image exceeds the size limit")
)

// ImageFetcher downloads an encoded image
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

const fetchAttempts = 3

// HTTPImageFetcher implements ImageFetcher over plain HTTP(S)
type HTTPImageFetcher struct {
	client     *http.Client
	maxBytes   int64
	retryDelay time.Duration
}

// HTTPOption customizes an HTTPImageFetcher
type HTTPOption func(*HTTPImageFetcher)

// WithTimeout sets the overall per-request timeout
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(h *HTTPImageFetcher) {
		h.client.Timeout = timeout
	}
}

// WithMaxBytes sets the download size cap
func WithMaxBytes(n int64) HTTPOption {
	return func(h *HTTPImageFetcher) {
		h.maxBytes = n
	}
}

// WithRetryDelay sets the base delay between attempts; attempt n waits n times it
func WithRetryDelay(d time.Duration) HTTPOption {
	return func(h *HTTPImageFetcher) {
		h.retryDelay = d
	}
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(opts ...HTTPOption) *HTTPImageFetcher {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes:   DefaultMaxImageBytes,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FetchImage downloads imageURL. Network errors and 5xx responses are
// retried; 4xx responses fail immediately.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.retryDelay):
			}
		}

		data, retryable, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "Go-Image-Moderation/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return nil, !errors.Is(err, ErrImageTooLarge), err
	}
	return data, false, nil
}

// readLimited reads r fully, failing with ErrImageTooLarge past maxBytes
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrImageTooLarge, maxBytes)
	}
	return data, nil
}
