// Package routing is the OpenRouteService adapter behind the
// logistics.RouteOracle port.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

const (
	defaultBaseURL = "https://api.openrouteservice.org"
	requestTimeout = 10 * time.Second
)

// OpenRouteClient fetches truck routing from OpenRouteService. Failures
// resolve to (nil, nil): callers fall back to the haversine estimate, a
// routing outage must never break order flow.
type OpenRouteClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOpenRouteClient creates a rate-limited client. The free ORS tier allows
// 40 requests/minute.
func NewOpenRouteClient(apiKey, baseURL string) *OpenRouteClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenRouteClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Every(1500*time.Millisecond), 5),
	}
}

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"` // metres
			Duration float64 `json:"duration"` // seconds
		} `json:"summary"`
	} `json:"routes"`
}

// Route fetches driving distance and duration between two points
func (c *OpenRouteClient) Route(ctx context.Context, from, to shared.GeoPoint) (*logistics.RouteSummary, error) {
	if c.apiKey == "" {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(directionsRequest{
		Coordinates: [][]float64{
			{from.Longitude, from.Latitude},
			{to.Longitude, to.Latitude},
		},
	})
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/v2/directions/driving-hgv"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		common.LoggerFromContext(ctx).Warn("route request failed", zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		common.LoggerFromContext(ctx).Warn("route request rejected",
			zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	var parsed directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}
	if len(parsed.Routes) == 0 {
		return nil, nil
	}

	summary := parsed.Routes[0].Summary
	return &logistics.RouteSummary{
		DistanceKm:  summary.Distance / 1000,
		DurationMin: summary.Duration / 60,
	}, nil
}
