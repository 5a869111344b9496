package config

type Config struct {
	Environment  Environment
	Log          Log
	HTTP         HTTPServer
	BaseURL      string `env:"BASE_URL"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"engine.db"`

	Identity Identity `envPrefix:"IDENTITY_"`
	Commerce Commerce `envPrefix:"COMMERCE_"`
	Learning Learning `envPrefix:"LEARNING_"`
}

// Identity backend credentials. ServiceUser/ServiceSecret are the system's
// own privileged account for profile search and user provisioning, never an
// end-user's credentials.
type Identity struct {
	BaseApiURL     string `env:"BASE_API_URL"`
	ServiceUser    string `env:"SERVICE_USER"`
	ServiceSecret  string `env:"SERVICE_SECRET"`
	TimeoutSeconds int    `env:"TIMEOUT_SECONDS" envDefault:"10"`
}

type Commerce struct {
	BaseApiURL     string `env:"BASE_API_URL"`
	ConsumerKey    string `env:"CONSUMER_KEY"`
	ConsumerSecret string `env:"CONSUMER_SECRET"`
	TimeoutSeconds int    `env:"TIMEOUT_SECONDS" envDefault:"10"`
}

type Learning struct {
	BaseApiURL     string `env:"BASE_API_URL"`
	Token          string `env:"TOKEN"`
	TimeoutSeconds int    `env:"TIMEOUT_SECONDS" envDefault:"10"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
