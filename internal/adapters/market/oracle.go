// Package market supplies wholesale price hints for listings.
package market

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
)

// referencePrices is the built-in wholesale table, price per kg. Used when no
// market data endpoint is configured or the endpoint is down.
var referencePrices = map[string]float64{
	"tomato":  1.80,
	"onion":   0.95,
	"potato":  0.70,
	"mango":   2.40,
	"banana":  1.10,
	"cabbage": 0.60,
	"chilli":  3.20,
}

// PriceOracle implements order.MarketPriceOracle. Lookups are best effort:
// a nil result means no hint, never an error.
type PriceOracle struct {
	endpoint string
	client   *http.Client
}

// NewPriceOracle creates an oracle. An empty endpoint selects the built-in
// reference table.
func NewPriceOracle(endpoint string) *PriceOracle {
	return &PriceOracle{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type priceResponse struct {
	PricePerKg float64 `json:"price_per_kg"`
}

// FetchMarketPrice returns the current wholesale price hint for a crop
func (o *PriceOracle) FetchMarketPrice(ctx context.Context, cropType, region string) *float64 {
	if o.endpoint != "" {
		if p := o.fetchRemote(ctx, cropType, region); p != nil {
			return p
		}
	}
	if p, ok := referencePrices[strings.ToLower(cropType)]; ok {
		price := p
		return &price
	}
	return nil
}

func (o *PriceOracle) fetchRemote(ctx context.Context, cropType, region string) *float64 {
	url := o.endpoint + "?crop=" + cropType
	if region != "" {
		url += "&region=" + region
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}

	resp, err := o.client.Do(req)
	if err != nil {
		common.LoggerFromContext(ctx).Debug("market price lookup failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var parsed priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || parsed.PricePerKg <= 0 {
		return nil
	}
	return &parsed.PricePerKg
}
