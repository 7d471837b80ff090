package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prudhvinik1/homesync/internal/models"
)

// TokenFunc supplies the current session token for a request. Session
// issuance itself is out of scope; the transport only presents tokens.
type TokenFunc func(ctx context.Context) (string, error)

// HTTPRemote talks to the sync endpoints over HTTP. Timeouts are the
// transport's responsibility and surface as ordinary failures.
type HTTPRemote struct {
	baseURL string
	token   TokenFunc
	client  *http.Client
}

func NewHTTPRemote(baseURL string, token TokenFunc, client *http.Client) *HTTPRemote {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRemote{
		baseURL: baseURL,
		token:   token,
		client:  client,
	}
}

func (r *HTTPRemote) Push(ctx context.Context, changes []models.SyncRecord) (int, error) {
	body, err := json.Marshal(models.PushRequest{Changes: changes})
	if err != nil {
		return 0, fmt.Errorf("failed to encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/sync/push", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp models.PushResponse
	if err := r.do(req, &resp); err != nil {
		return 0, err
	}
	return resp.Pushed, nil
}

func (r *HTTPRemote) Pull(ctx context.Context, since time.Time, cursor string, limit int) (*models.PullResponse, error) {
	params := url.Values{}
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	endpoint := r.baseURL + "/sync/pull"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build pull request: %w", err)
	}

	var resp models.PullResponse
	if err := r.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *HTTPRemote) do(req *http.Request, out interface{}) error {
	token, err := r.token(req.Context())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrRemoteRejected, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: bad response body: %v", ErrRemoteRejected, err)
	}
	return nil
}
