package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/janekbaraniewski/codexbar/internal/core"
	"github.com/janekbaraniewski/codexbar/internal/version"
)

const maxHTTPErrorBodySize = 256

// NewHTTPClient returns the client providers use for vendor requests.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// ClientOrDefault returns c, or a client with the default timeout.
func ClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return NewHTTPClient(0)
}

// NewRequest builds an authenticated request. authorization is the full
// header value, e.g. "Bearer <token>".
func NewRequest(ctx context.Context, method, url, authorization string, body any, headers map[string]string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// DoJSON sends req and decodes a 2xx JSON body into out. Transport failures
// map to core.Transport and non-2xx responses to core.APIStatus. The status
// code is returned whenever a response was received.
func DoJSON(client *http.Client, req *http.Request, out any, includeBody bool) (int, error) {
	resp, err := ClientOrDefault(client).Do(req)
	if err != nil {
		return 0, core.Transport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := ""
		if includeBody {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxHTTPErrorBodySize))
			body = strings.TrimSpace(string(raw))
		}
		return resp.StatusCode, core.APIStatus(resp.StatusCode, body)
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, core.Transport(fmt.Errorf("decoding response: %w", err))
	}
	return resp.StatusCode, nil
}

func ResolveBaseURL(override, defaultURL string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	return defaultURL
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
