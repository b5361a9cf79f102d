package alerter

type Config struct {
	WebhookURL string `envconfig:"WEBHOOK_URL"`
	Channel    string `envconfig:"CHANNEL"`
}
