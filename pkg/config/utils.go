package config

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "SHUFFLE"

var defaults = map[string]interface{}{
	"network":                         "Preprod",
	"provider":                        "kupmios",
	"log.level":                       "info",
	"log.outputs":                     []string{"stdout"},
	"kupo.url":                        "http://localhost:1442",
	"kupo.retries":                    3,
	"kupo.timeout":                    "30s",
	"ogmios.url":                      "ws://localhost:1337",
	"ogmios.params_ttl":               10 * time.Minute,
	"dbsync.dsn":                      "",
	"server.host":                     "0.0.0.0",
	"server.port":                     8000,
	"deployment.file":                 "./data/deployed-preprod.json",
	"blueprint.file":                  "./plutus-preprod.json",
	"wallet.admin_key":                "",
	"wallet.admin_stake_key":          "",
	"wallet.user_key":                 "",
	"wallet.user_stake_key":           "",
	"protocol.funding_floor":          100_000_000,
	"protocol.s2_policy_id":           "",
	"protocol.reftokens_script_hash":  "",
	"protocol.max_to_shuffle":         5,
	"protocol.settings_init_lovelace": 5_000_000,
	"protocol.request_lovelace":       20_000_000,
	"txbuilder.max_iterations":        10,
	"txbuilder.ex_units.memory":       2_000_000,
	"txbuilder.ex_units.steps":        1_000_000_000,
	"txbuilder.evaluate":              true,
}

// ReadConfigFromFile reads the named configuration (without extension) from
// ./configs and any extra search paths. Every key can be overridden from the
// environment, e.g. SHUFFLE_KUPO_URL for kupo.url.
func ReadConfigFromFile(name string, paths ...string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath("./configs")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName(name)
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "Error reading config file")
	}

	config := &Config{}
	err := v.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errors.Wrap(err, "Error parsing config file")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch c.Provider {
	case "kupmios":
		if c.Kupo.URL == "" || c.Ogmios.URL == "" {
			return errors.New("kupmios provider requires kupo.url and ogmios.url")
		}
	case "dbsync":
		if c.DbSync.DSN == "" || c.Ogmios.URL == "" {
			return errors.New("dbsync provider requires dbsync.dsn and ogmios.url")
		}
	default:
		return errors.Errorf("unknown provider %q", c.Provider)
	}
	if c.TxBuilder.MaxIterations <= 0 {
		return errors.New("txbuilder.max_iterations must be positive")
	}
	return nil
}

func Source() string {
	return "dev-config"
}
