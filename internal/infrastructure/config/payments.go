package config

// PaymentsConfig holds Stripe escrow configuration. DemoMode fabricates
// intent handles instead of calling the processor; it is forced on when the
// secret key is empty.
type PaymentsConfig struct {
	StripeSecretKey     string `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string `mapstructure:"stripe_webhook_secret"`
	Currency            string `mapstructure:"currency"`
	DemoMode            bool   `mapstructure:"demo_mode"`
}
