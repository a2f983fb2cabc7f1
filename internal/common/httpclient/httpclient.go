// Package httpclient fetches JSON documents from remote services, such as the discovery
// and key set documents of a token authority.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodySize bounds the documents the client reads.
const maxBodySize = 1 << 20

// HTTPError represents an error response from the server with HTTP status code and message.
type HTTPError struct {
	StatusCode int    // HTTP status code of the error
	Message    string // Error message or response body
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// HTTPClient issues GET requests for JSON documents.
type HTTPClient struct {
	httpClient *http.Client
}

// NewClient creates a client whose requests time out after timeout.
func NewClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{httpClient: &http.Client{Timeout: timeout}}
}

// NewClientWith wraps an existing *http.Client, such as one returned by httptest.
func NewClientWith(c *http.Client) *HTTPClient {
	return &HTTPClient{httpClient: c}
}

// GetJSON fetches url and decodes the response body into v.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode >= 400 {
		msg := string(body)
		if e := gjson.GetBytes(body, "error"); e.Exists() && e.String() != "" {
			msg = e.String()
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %v", url, err)
	}
	return nil
}
