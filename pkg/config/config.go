package config

import (
	"strconv"
	"time"
)

type Config struct {
	Network string `mapstructure:"network"`
	// Provider selects the UTXO source: "kupmios" or "dbsync".
	Provider string `mapstructure:"provider"`

	Log struct {
		Level   string   `mapstructure:"level"`
		Outputs []string `mapstructure:"outputs"`
	} `mapstructure:"log"`

	Kupo struct {
		URL     string        `mapstructure:"url"`
		Retries uint64        `mapstructure:"retries"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"kupo"`

	Ogmios struct {
		URL       string        `mapstructure:"url"`
		ParamsTTL time.Duration `mapstructure:"params_ttl"`
	} `mapstructure:"ogmios"`

	DbSync struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"dbsync"`

	Server struct {
		Port int    `mapstructure:"port"`
		Host string `mapstructure:"host"`
	} `mapstructure:"server"`

	Deployment struct {
		File string `mapstructure:"file"`
	} `mapstructure:"deployment"`

	Blueprint struct {
		File string `mapstructure:"file"`
	} `mapstructure:"blueprint"`

	// Wallet keys are hex ed25519 seeds. Prefer SHUFFLE_WALLET_ADMIN_KEY and
	// friends over writing them into the file.
	Wallet struct {
		AdminKey      string `mapstructure:"admin_key"`
		AdminStakeKey string `mapstructure:"admin_stake_key"`
		UserKey       string `mapstructure:"user_key"`
		UserStakeKey  string `mapstructure:"user_stake_key"`
	} `mapstructure:"wallet"`

	Protocol struct {
		FundingFloor         uint64 `mapstructure:"funding_floor"`
		S2PolicyID           string `mapstructure:"s2_policy_id"`
		RefTokensScriptHash  string `mapstructure:"reftokens_script_hash"`
		MaxToShuffle         int64  `mapstructure:"max_to_shuffle"`
		SettingsInitLovelace uint64 `mapstructure:"settings_init_lovelace"`
		RequestLovelace      uint64 `mapstructure:"request_lovelace"`
	} `mapstructure:"protocol"`

	TxBuilder struct {
		MaxIterations int `mapstructure:"max_iterations"`
		ExUnits       struct {
			Memory uint64 `mapstructure:"memory"`
			Steps  uint64 `mapstructure:"steps"`
		} `mapstructure:"ex_units"`
		Evaluate bool `mapstructure:"evaluate"`
	} `mapstructure:"txbuilder"`
}

// Addr is the listen address of the API server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}
