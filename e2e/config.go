package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// HIDDEN_TALK_ADDR is the base URL of a running server, e.g. http://localhost:8080.
	// The suites are skipped when it is empty.
	Addr string `envconfig:"HIDDEN_TALK_ADDR"`
	// HIDDEN_TALK_HEALTH_ADDR is the gRPC health endpoint, e.g. localhost:8081
	HealthAddr string `envconfig:"HIDDEN_TALK_HEALTH_ADDR"`
	// E2E_DEBUG_JSON dumps full request/response bodies
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
