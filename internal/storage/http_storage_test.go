package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// Valid minimal PNG data for a 1x1 transparent pixel
var pngData = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

func newTestFetcher(opts ...HTTPOption) *HTTPImageFetcher {
	return NewHTTPImageFetcher(append([]HTTPOption{WithRetryDelay(time.Millisecond)}, opts...)...)
}

func TestHTTPImageFetcher_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int
		expectCalls   int
		expectError   bool
		errorContains string
	}{
		{
			name:        "Success on first attempt",
			responses:   []int{200},
			expectCalls: 1,
		},
		{
			name:        "Success on second attempt after 5xx",
			responses:   []int{500, 200},
			expectCalls: 2,
		},
		{
			name:          "4xx client error - no retry",
			responses:     []int{404},
			expectCalls:   1,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "4xx after 5xx - should retry until 4xx then stop",
			responses:     []int{500, 404},
			expectCalls:   2,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "All 5xx errors - retry all attempts",
			responses:     []int{500, 502, 503},
			expectCalls:   3,
			expectError:   true,
			errorContains: "server error: status code 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestCount int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(atomic.AddInt32(&requestCount, 1)) - 1
				if n >= len(tt.responses) {
					w.WriteHeader(500)
					return
				}
				if status := tt.responses[n]; status != 200 {
					w.WriteHeader(status)
					w.Write([]byte(fmt.Sprintf("Error %d", status)))
					return
				}
				w.Header().Set("Content-Type", "image/png")
				w.Write(pngData)
			}))
			defer server.Close()

			data, err := newTestFetcher().FetchImage(context.Background(), server.URL)

			if int(requestCount) != tt.expectCalls {
				t.Errorf("Expected %d requests, got %d", tt.expectCalls, requestCount)
			}
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, but got none")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %s", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %s", err.Error())
			}
			if !bytes.Equal(data, pngData) {
				t.Errorf("Expected body to be returned unchanged, got %d bytes", len(data))
			}
		})
	}
}

func TestHTTPImageFetcher_NetworkError_Retry(t *testing.T) {
	var requestCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requestCount, 1) < 3 {
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.Write(pngData)
	}))
	defer server.Close()

	_, err := newTestFetcher().FetchImage(context.Background(), server.URL)
	if err != nil {
		t.Errorf("Expected success after retries, got error: %s", err.Error())
	}
	if requestCount != 3 {
		t.Errorf("Expected 3 requests, got %d", requestCount)
	}
}

func TestHTTPImageFetcher_TooLarge(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.Write(bytes.Repeat([]byte{0xff}, 1024))
	}))
	defer server.Close()

	_, err := newTestFetcher(WithMaxBytes(512)).FetchImage(context.Background(), server.URL)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("Expected ErrImageTooLarge, got %v", err)
	}
	if requestCount != 1 {
		t.Errorf("Expected oversize body not to be retried, got %d requests", requestCount)
	}
}

func TestHTTPImageFetcher_ExactLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte{0xff}, 512))
	}))
	defer server.Close()

	data, err := newTestFetcher(WithMaxBytes(512)).FetchImage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected body at the limit to pass, got %v", err)
	}
	if len(data) != 512 {
		t.Errorf("Expected 512 bytes, got %d", len(data))
	}
}

func TestHTTPImageFetcher_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewHTTPImageFetcher(WithRetryDelay(time.Hour)).FetchImage(ctx, server.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Expected cancellation to interrupt the backoff")
	}
}

func TestHTTPImageFetcher_InvalidURL(t *testing.T) {
	_, err := newTestFetcher().FetchImage(context.Background(), "://bad")
	if err == nil || !strings.Contains(err.Error(), "invalid URL") {
		t.Errorf("Expected invalid URL error, got %v", err)
	}
}
