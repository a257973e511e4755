// Package api is the HTTP client for the sync server. It speaks the
// sealed-envelope JSON contract and classifies failures into the error
// taxonomy the sync state machine acts on.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fieldstock/shiftledger/internal/domain"
)

// Client calls the sync server on behalf of one authenticated subject.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// OpenShift opens (or resumes) today's shift. The returned key is nil when
// the shift was already open: the server transports the session key once.
func (c *Client) OpenShift(ctx context.Context, lat, lng float64) (*domain.OpenShiftResponse, []byte, error) {
	var resp domain.OpenShiftResponse
	if err := c.do(ctx, http.MethodPost, "/api/shift/open", domain.OpenShiftRequest{Latitude: lat, Longitude: lng}, &resp); err != nil {
		return nil, nil, err
	}

	var key []byte
	if resp.SessionKey != "" {
		var err error
		key, err = base64.StdEncoding.DecodeString(resp.SessionKey)
		if err != nil {
			return nil, nil, fmt.Errorf("decode session key: %w", err)
		}
	}
	return &resp, key, nil
}

// CloseShift submits the sealed closing report. It returns the server's
// response envelope for every outcome the caller can act on; transport
// failures and 5xx responses come back wrapped in domain.ErrTransient.
func (c *Client) CloseShift(ctx context.Context, shiftID string, sealed []byte) (*domain.CloseShiftResponse, error) {
	req := domain.CloseShiftRequest{
		ShiftID: shiftID,
		Payload: base64.StdEncoding.EncodeToString(sealed),
	}

	var resp domain.CloseShiftResponse
	if err := c.do(ctx, http.MethodPost, "/api/shift/close", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status reports the subject's current-day shift state.
func (c *Client) Status(ctx context.Context) (*domain.ShiftStatusResponse, error) {
	var resp domain.ShiftStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/shift/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case res.StatusCode >= 500:
		return fmt.Errorf("%w: server returned %d", domain.ErrTransient, res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", domain.ErrTransient, err)
	}
	return nil
}
