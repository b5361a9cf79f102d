package synthesizer

type Config struct {
	BaseURL        string `envconfig:"BASE_URL"`
	ApiVersion     string `envconfig:"VERSION"`
	ApiKey         string `envconfig:"API_KEY"`
	TimeoutSeconds int    `envconfig:"TIMEOUT" default:"60"` // генерация текста медленная
}
