package occupancy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"roomwatch-backend/config"
)

// Camera reads occupancy from an AI camera inference endpoint over HTTP.
// Any transport or decode failure is reported as ErrUnavailable so the
// engine can skip the tick instead of crashing the loop.
type Camera struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// inferenceResponse is the payload returned by the camera console.
type inferenceResponse struct {
	PeopleCount int   `json:"people_count"`
	IsOccupied  *bool `json:"is_occupied"`
}

// NewCamera creates a camera-backed provider from configuration.
func NewCamera(cfg config.CameraConfig) *Camera {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Camera{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetIsOccupied fetches the latest inference result. The room counts as
// occupied when the endpoint reports is_occupied, or failing that, a
// positive people count.
func (c *Camera) GetIsOccupied(ctx context.Context, at time.Time) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: inference endpoint returned status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var inference inferenceResponse
	if err := json.Unmarshal(body, &inference); err != nil {
		return false, fmt.Errorf("%w: bad inference payload: %v", ErrUnavailable, err)
	}

	if inference.IsOccupied != nil {
		return *inference.IsOccupied, nil
	}
	return inference.PeopleCount > 0, nil
}
