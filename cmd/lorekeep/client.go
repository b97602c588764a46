// cmd/lorekeep/client.go — shared HTTP helper for subcommands.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type apiClient struct {
	baseURL  string
	tenantID string
	http     *http.Client
}

func newClient(baseURL, tenantID string) *apiClient {
	return &apiClient{
		baseURL:  baseURL,
		tenantID: tenantID,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// do issues a request and decodes the JSON response into out. Non-2xx
// responses are returned as errors carrying the server's reason.
func (c *apiClient) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("X-Tenant-ID", c.tenantID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s (%s)", apiErr.Message, apiErr.Reason)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
