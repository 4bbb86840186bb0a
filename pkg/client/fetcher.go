package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/farmdesk/notify/pkg/notifications"
)

// ListResult is the payload of the pull listing endpoint.
type ListResult struct {
	Notifications []notifications.Notification `json:"notifications"`
	UnreadCount   int                          `json:"unreadCount"`
	Total         int                          `json:"total"`
}

// Fetcher abstracts the persistence layer's HTTP surface so the engine can
// be exercised without a live server.
type Fetcher interface {
	// List fetches the most recent notification page and the unread count.
	List(ctx context.Context) (ListResult, error)

	// MarkRead issues the mark-as-read mutation. It reports whether the
	// remote record was actually modified.
	MarkRead(ctx context.Context, notifID string) (bool, error)
}

// HTTPFetcher talks to the notification listing and mutation endpoints.
type HTTPFetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(c *http.Client) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// NewHTTPFetcher creates a fetcher for the given API base URL. The token is
// sent as a bearer credential on every request.
func NewHTTPFetcher(baseURL, token string, opts ...HTTPFetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type errorResponse struct {
	Error string `json:"error"`
}

type markReadRequest struct {
	NotificationID string `json:"notificationId"`
	IsRead         *bool  `json:"isRead,omitempty"`
}

type markReadResponse struct {
	Success bool `json:"success"`
}

func (f *HTTPFetcher) List(ctx context.Context) (ListResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/notifications", nil)
	if err != nil {
		return ListResult{}, errors.Join(ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.client.Do(req)
	if err != nil {
		return ListResult{}, errors.Join(ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ListResult{}, statusError(resp)
	}

	var result ListResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ListResult{}, errors.Join(ErrTransport, err)
	}
	return result, nil
}

func (f *HTTPFetcher) MarkRead(ctx context.Context, notifID string) (bool, error) {
	body, err := json.Marshal(markReadRequest{NotificationID: notifID})
	if err != nil {
		return false, errors.Join(ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, f.baseURL+"/notifications", bytes.NewReader(body))
	if err != nil {
		return false, errors.Join(ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return false, errors.Join(ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, statusError(resp)
	}

	var result markReadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, errors.Join(ErrTransport, err)
	}
	return result.Success, nil
}

func statusError(resp *http.Response) error {
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, body.Error)
	}
	return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
}
