package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

func GetExpiresAt(expiresIn int) time.Time {
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// apiCall describes one request against a platform API.
type apiCall struct {
	platform string
	step     string
	method   string
	endpoint string
	header   http.Header
	body     io.Reader
}

func jsonCall(platform, step, method, endpoint string, payload any) (apiCall, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return apiCall{}, fmt.Errorf("%s %s: encode request: %w", platform, step, err)
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return apiCall{platform: platform, step: step, method: method, endpoint: endpoint, header: h, body: bytes.NewReader(data)}, nil
}

func formCall(platform, step, endpoint string, form url.Values) apiCall {
	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return apiCall{platform: platform, step: step, method: http.MethodPost, endpoint: endpoint, header: h, body: strings.NewReader(form.Encode())}
}

// do executes the call and decodes a 2xx JSON body into out when out is not
// nil. Non-2xx answers become *AdapterError carrying the response body.
func (c apiCall) do(ctx context.Context, client *http.Client, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, c.method, c.endpoint, c.body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", c.platform, c.step, err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.platform, c.step, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", c.platform, c.step, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, &AdapterError{
			Platform:   c.platform,
			Step:       c.step,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(c.platform, body),
			Body:       string(body),
		}
	}

	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.Header, fmt.Errorf("%s %s: decode response: %w", c.platform, c.step, err)
		}
	}
	return resp.Header, nil
}

func errorMessage(platform string, body []byte) string {
	switch platform {
	case models.PlatformInstagram, models.PlatformThreads:
		return transfer.ParseGraphError(body)
	default:
		return ""
	}
}

func bearer(token string) string {
	return "Bearer " + token
}
