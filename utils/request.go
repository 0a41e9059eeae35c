package utils

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// NewRestyClient returns a client with a per-request timeout. Retries are left
// to Retry so the attempt budget is visible to callers.
func NewRestyClient(userAgent string, timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	})
	client.SetTimeout(timeout).
		SetRetryCount(0).
		SetLogger(disableLogger{}).
		SetHeader("Accept-Charset", "utf-8").
		SetHeader("Accept-Language", "ja,en;q=0.8").
		SetHeader("User-Agent", userAgent)
	return client
}

// HTTPStatusError is returned for non-2xx responses.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
	// RetryAfter is the server requested wait for 429/503 answers.
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// Temporary reports whether another attempt may succeed.
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// CheckResponse converts a non-2xx response into an *HTTPStatusError.
func CheckResponse(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	err := &HTTPStatusError{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
	}
	if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() == http.StatusServiceUnavailable {
		err.RetryAfter = parseRetryAfter(resp.Header().Get("Retry-After"))
	}
	return err
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

type disableLogger struct{}

func (d disableLogger) Errorf(string, ...interface{}) {}
func (d disableLogger) Warnf(string, ...interface{})  {}
func (d disableLogger) Debugf(string, ...interface{}) {}
