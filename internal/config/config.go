package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Settings holds runtime configuration. Values come from grimoire.toml
// (working directory or ~/.config/grimoire), overridable with GRIMOIRE_*
// environment variables.
type Settings struct {
	LogLevel      string        `mapstructure:"log_level"`
	DefaultRelays []string      `mapstructure:"default_relays"`
	CacheBackend  string        `mapstructure:"cache_backend"` // "memory" or "redis"
	RedisURL      string        `mapstructure:"redis_url"`
	QueryTimeout  time.Duration `mapstructure:"query_timeout"`
	SpellbookPath string        `mapstructure:"spellbook_path"`

	// AccountPubkey and Contacts back the $me and $contacts aliases.
	AccountPubkey string   `mapstructure:"account_pubkey"`
	Contacts      []string `mapstructure:"contacts"`
}

// Load reads settings from the config file and environment.
// A missing config file is not an error; defaults apply.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("grimoire")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "grimoire"))
	}
	v.SetEnvPrefix("GRIMOIRE")
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("default_relays", []string{
		"wss://relay.damus.io/",
		"wss://relay.nostr.band/",
		"wss://nos.lol/",
	})
	v.SetDefault("cache_backend", "memory")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("query_timeout", 30*time.Second)
	v.SetDefault("spellbook_path", defaultSpellbookPath())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &s, nil
}

func defaultSpellbookPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "spellbook.toml"
	}
	return filepath.Join(home, ".config", "grimoire", "spellbook.toml")
}
