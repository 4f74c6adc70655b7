package config

// RoutingConfig holds OpenRouteService configuration. An empty API key
// disables road routing and every route falls back to the local estimate.
type RoutingConfig struct {
	ORSAPIKey string `mapstructure:"ors_api_key"`
	BaseURL   string `mapstructure:"base_url"`
}

// GradingConfig holds the crop-grading model endpoint. Empty selects the
// deterministic heuristic.
type GradingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// MarketConfig holds the wholesale price feed endpoint. Empty selects the
// built-in reference table.
type MarketConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}
