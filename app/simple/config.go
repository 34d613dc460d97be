package simple

import "github.com/silstore/storefront/core/auth"

type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"storefront"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend is the storefront API origin all gateway calls target.
	Backend struct {
		BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8000"`
	}

	// Identity configures the OpenID Connect provider.
	Identity struct {
		ProviderURL string `env:"OIDC_PROVIDER_URL,required"`
		Realm       string `env:"OIDC_REALM" envDefault:"storefront"`
		ClientID    string `env:"OIDC_CLIENT_ID,required"`
		RedirectURL string `env:"OIDC_REDIRECT_URL,required"`
	}

	// State selects where session and commerce snapshots persist between runs.
	// Redis wins when an address is set, otherwise a file store under Dir.
	State struct {
		Dir       string `env:"STATE_DIR" envDefault:".storefront"`
		RedisAddr string `env:"STATE_REDIS_ADDR"`
		RedisPass string `env:"STATE_REDIS_PASSWORD"`
	}
}

func (c Config) authConfig() auth.Config {
	return auth.Config{
		ProviderURL: c.Identity.ProviderURL,
		Realm:       c.Identity.Realm,
		ClientID:    c.Identity.ClientID,
		RedirectURL: c.Identity.RedirectURL,
	}
}
