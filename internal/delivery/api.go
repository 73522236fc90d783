package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radiusdt/game-ads/internal/models"
	"go.uber.org/zap"
)

// AdAPI is the server surface the delivery client depends on.
type AdAPI interface {
	FetchAds(ctx context.Context, t models.AdType) ([]models.Ad, error)
	Report(ctx context.Context, kind models.EventKind, t models.AdType, id string) error
}

// APIClient talks to the ad server's JSON API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAPIClient creates a client for the server at baseURL. Every request is
// bounded by timeout.
func NewAPIClient(baseURL string, timeout time.Duration, logger *zap.Logger) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func listPath(t models.AdType) string {
	if t == models.AdTypeFullscreen {
		return "/api/fullscreen"
	}
	return "/api/banners"
}

// FetchAds returns the raw ad list of one collection.
func (c *APIClient) FetchAds(ctx context.Context, t models.AdType) ([]models.Ad, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+listPath(t), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s ads: %w", t, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := statusError(resp)
		c.logger.Warn("ad list request rejected",
			zap.String("ad_type", string(t)),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return nil, err
	}

	var list []models.Ad
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode %s ads: %w", t, err)
	}
	c.logger.Debug("fetched ads", zap.String("ad_type", string(t)), zap.Int("count", len(list)))
	return list, nil
}

// Report posts an engagement event.
func (c *APIClient) Report(ctx context.Context, kind models.EventKind, t models.AdType, id string) error {
	body, err := json.Marshal(map[string]string{"adId": id, "type": string(t)})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+string(kind), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to report %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := statusError(resp)
		c.logger.Warn("event rejected",
			zap.String("event", string(kind)),
			zap.String("ad_type", string(t)),
			zap.String("ad_id", id),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	c.logger.Debug("event reported", zap.String("event", string(kind)), zap.String("ad_type", string(t)), zap.String("ad_id", id))
	return nil
}

// statusError builds an error from a non-200 response, preferring the
// server's {"error": "..."} message.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
