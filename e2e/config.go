package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_HUB_URL targets a running hub (ws://host:port/ws), an in-process hub is started otherwise
	HubURL string `envconfig:"E2E_HUB_URL"`
	// E2E_CRUD_URL targets a running comment service, the in-memory stub is started otherwise
	CrudURL string `envconfig:"E2E_CRUD_URL"`
	PostID  string `envconfig:"E2E_POST_ID" default:"post-e2e"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
