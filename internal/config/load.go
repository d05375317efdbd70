package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix namespaces environment variables for this process, e.g.
// NONAGON_FLUSH_VIA_ADAPTER=true.
const envPrefix = "NONAGON_"

func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	defaults := Defaults()
	if err := k.Load(defaultsProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	} else {
		for _, path := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
					return nil, fmt.Errorf("loading config file: %w", err)
				}
				break
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		// The leading segment names a config section; the remainder is the
		// field name, which may itself contain underscores.
		for _, section := range []string{"self_api", "log", "database", "gateway", "announce", "flush", "auth", "wizard", "metrics"} {
			if strings.HasPrefix(key, section+"_") {
				return section + "." + strings.TrimPrefix(key, section+"_")
			}
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

type defaultsProviderStruct struct {
	defaults *Config
}

func defaultsProvider(defaults *Config) *defaultsProviderStruct {
	return &defaultsProviderStruct{defaults: defaults}
}

func (d *defaultsProviderStruct) ReadBytes() ([]byte, error) {
	return nil, nil
}

func (d *defaultsProviderStruct) Read() (map[string]interface{}, error) {
	return map[string]interface{}{
		"log": map[string]interface{}{
			"level":  d.defaults.Log.Level,
			"format": d.defaults.Log.Format,
		},
		"database": map[string]interface{}{
			"dir": d.defaults.Database.Dir,
		},
		"gateway": map[string]interface{}{
			"bot_token": d.defaults.Gateway.BotToken,
		},
		"announce": map[string]interface{}{
			"quest_board_channel_id": d.defaults.Announce.QuestBoardChannelID,
		},
		"self_api": map[string]interface{}{
			"quest_api_base_url": d.defaults.SelfAPI.BaseURL,
			"graphql_api_url":    d.defaults.SelfAPI.GraphQLURL,
			"graphql_api_token":  d.defaults.SelfAPI.GraphQLToken,
			"timeout":            d.defaults.SelfAPI.Timeout.String(),
			"requests_per_sec":   d.defaults.SelfAPI.RequestsPerSec,
			"request_burst":      d.defaults.SelfAPI.RequestBurst,
		},
		"flush": map[string]interface{}{
			"via_adapter":      d.defaults.Flush.ViaAdapter,
			"interval_seconds": d.defaults.Flush.IntervalSeconds.String(),
		},
		"auth": map[string]interface{}{
			"jwt_secret_key":       d.defaults.Auth.JWTSecretKey,
			"jwt_expiration_hours": d.defaults.Auth.JWTExpirationHrs.String(),
		},
		"wizard": map[string]interface{}{
			"quest_ask_timeout":     d.defaults.Wizard.QuestAskTimeout.String(),
			"character_ask_timeout": d.defaults.Wizard.CharacterAskTimeout.String(),
		},
		"metrics": map[string]interface{}{
			"enabled": d.defaults.Metrics.Enabled,
			"addr":    d.defaults.Metrics.Addr,
		},
	}, nil
}

func SetupFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("nonagon", pflag.ContinueOnError)
	flags.String("config", "", "Path to config file")
	flags.String("log.level", "", "Log level: debug, info, warn, error")
	flags.String("log.format", "", "Log format: text, json")
	flags.String("database.dir", "", "Directory holding per-tenant SQLite databases")
	flags.String("gateway.bot_token", "", "Chat gateway bot token")
	flags.String("announce.quest_board_channel_id", "", "Fallback announcement channel ID")
	flags.String("self_api.quest_api_base_url", "", "Base URL of the self-call HTTP API (empty disables it)")
	flags.String("self_api.graphql_api_url", "", "Base URL of the GraphQL API")
	flags.Bool("flush.via_adapter", false, "Use the synchronous adapter persistence path instead of direct upsert")
	flags.Duration("flush.interval_seconds", 0, "Dirty-queue drain interval")
	return flags
}
