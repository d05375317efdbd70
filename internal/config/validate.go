package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error"))
	}

	if cfg.Database.Dir == "" {
		errs = append(errs, fmt.Errorf("database.dir is required"))
	}

	if cfg.SelfAPI.BaseURL != "" {
		u, err := url.Parse(cfg.SelfAPI.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("self_api.quest_api_base_url is not a valid absolute URL"))
		}
	}
	if cfg.SelfAPI.GraphQLURL != "" {
		u, err := url.Parse(cfg.SelfAPI.GraphQLURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("self_api.graphql_api_url is not a valid absolute URL"))
		}
	}
	if cfg.SelfAPI.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("self_api.timeout must be positive"))
	}
	if cfg.SelfAPI.RequestsPerSec <= 0 {
		errs = append(errs, fmt.Errorf("self_api.requests_per_sec must be positive"))
	}

	if cfg.Flush.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("flush.interval_seconds must be positive"))
	}

	if cfg.Auth.JWTExpirationHrs <= 0 {
		errs = append(errs, fmt.Errorf("auth.jwt_expiration_hours must be positive"))
	}

	if cfg.Wizard.QuestAskTimeout < time.Second {
		errs = append(errs, fmt.Errorf("wizard.quest_ask_timeout must be at least 1s"))
	}
	if cfg.Wizard.CharacterAskTimeout < time.Second {
		errs = append(errs, fmt.Errorf("wizard.character_ask_timeout must be at least 1s"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
