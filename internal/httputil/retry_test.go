// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Use a tiny base delay so tests finish quickly.
	RetryBaseDelay = 1 * time.Millisecond
}

func countingServer(t *testing.T, handler func(n int32, w http.ResponseWriter)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handler(atomic.AddInt32(&calls, 1), w)
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestDoWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		handler    func(n int32, w http.ResponseWriter)
		maxRetries int
		wantStatus int
		wantCalls  int32
	}{
		{
			name:       "immediate success",
			handler:    func(_ int32, w http.ResponseWriter) { w.WriteHeader(http.StatusOK) },
			maxRetries: 2,
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name: "429 then 200",
			handler: func(n int32, w http.ResponseWriter) {
				if n == 1 {
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				w.WriteHeader(http.StatusOK)
			},
			maxRetries: 1,
			wantStatus: http.StatusOK,
			wantCalls:  2,
		},
		{
			name:       "exhausts retries",
			handler:    func(_ int32, w http.ResponseWriter) { w.WriteHeader(http.StatusTooManyRequests) },
			maxRetries: 2,
			wantStatus: http.StatusTooManyRequests,
			wantCalls:  3,
		},
		{
			name:       "zero disables retries",
			handler:    func(_ int32, w http.ResponseWriter) { w.WriteHeader(http.StatusTooManyRequests) },
			maxRetries: 0,
			wantStatus: http.StatusTooManyRequests,
			wantCalls:  1,
		},
		{
			name:       "non-429 passes through",
			handler:    func(_ int32, w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) },
			maxRetries: 3,
			wantStatus: http.StatusInternalServerError,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, calls := countingServer(t, tt.handler)

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			require.NoError(t, err)

			resp, err := DoWithRetry(context.Background(), ts.Client(), req, tt.maxRetries, nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
		})
	}
}

func TestDoWithRetry_ContextCancelled(t *testing.T) {
	ts, _ := countingServer(t, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	// Use a longer base delay so the context cancels during the wait.
	old := RetryBaseDelay
	RetryBaseDelay = 500 * time.Millisecond
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(ctx, ts.Client(), req, 3, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoWithRetry_ResendsBody(t *testing.T) {
	var bodies []string
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(`{"q":1}`))
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), ts.Client(), req, 1, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{`{"q":1}`, `{"q":1}`}, bodies)
}

func TestRetryAfter(t *testing.T) {
	old := MaxRetryAfter
	MaxRetryAfter = 10 * time.Second
	defer func() { MaxRetryAfter = old }()

	assert.Equal(t, 3*time.Second, retryAfter("3"))
	assert.Equal(t, 10*time.Second, retryAfter("120"))
	assert.Zero(t, retryAfter(""))
	assert.Zero(t, retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Zero(t, retryAfter("-1"))
}

func TestReadBodyAndSnippet(t *testing.T) {
	resp := &http.Response{Body: io.NopCloser(strings.NewReader("hello"))}
	data, err := ReadBody(resp)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	long := []byte(strings.Repeat("a", 250))
	s := Snippet(long)
	assert.Len(t, s, 203)
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.Equal(t, "short", Snippet([]byte("  short \n")))

	// 199 ASCII bytes then a two-byte rune straddling the cut.
	mixed := []byte(strings.Repeat("a", 199) + strings.Repeat("é", 10))
	s = Snippet(mixed)
	assert.True(t, utf8.ValidString(s))
	assert.Equal(t, strings.Repeat("a", 199)+"...", s)
}
