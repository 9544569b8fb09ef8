package parse

import "time"

// Config holds the Parse Server connection settings.
type Config struct {
	ServerURL  string        `env:"PARSE_SERVER_URL,required,notEmpty"`
	AppID      string        `env:"PARSE_APP_ID,required,notEmpty"`
	RESTAPIKey string        `env:"PARSE_REST_API_KEY"`
	MasterKey  string        `env:"PARSE_MASTER_KEY"`
	Timeout    time.Duration `env:"PARSE_TIMEOUT" envDefault:"10s"`
}
