package config

import "time"

type Config struct {
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Announce AnnounceConfig `koanf:"announce"`
	SelfAPI  SelfAPIConfig  `koanf:"self_api"`
	Flush    FlushConfig    `koanf:"flush"`
	Auth     AuthConfig     `koanf:"auth"`
	Wizard   WizardConfig   `koanf:"wizard"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// DatabaseConfig points at the directory holding one SQLite file per
// tenant (guild), named by the stringified guild_id, per spec.md §6.4.
type DatabaseConfig struct {
	Dir string `koanf:"dir"`
}

// GatewayConfig carries the chat-gateway credential. The gateway transport
// itself is an external collaborator (spec.md §1); the core only needs the
// credential to hand to it and to detect "fatal: invalid credentials".
type GatewayConfig struct {
	BotToken string `koanf:"bot_token"`
}

// AnnounceConfig carries the process-wide announcement-channel fallback
// used when a tenant has not configured one via the settings store.
type AnnounceConfig struct {
	QuestBoardChannelID string `koanf:"quest_board_channel_id"`
}

// SelfAPIConfig configures the optional HTTP/GraphQL "remote persistence"
// path (spec.md §6.3). An empty BaseURL disables the remote path entirely
// and the core always falls back to direct repository access.
type SelfAPIConfig struct {
	BaseURL        string        `koanf:"quest_api_base_url"`
	GraphQLURL     string        `koanf:"graphql_api_url"`
	GraphQLToken   string        `koanf:"graphql_api_token"`
	Timeout        time.Duration `koanf:"timeout"`
	RequestsPerSec float64       `koanf:"requests_per_sec"`
	RequestBurst   int           `koanf:"request_burst"`
}

type FlushConfig struct {
	ViaAdapter      bool          `koanf:"via_adapter"`
	IntervalSeconds time.Duration `koanf:"interval_seconds"`
}

type AuthConfig struct {
	JWTSecretKey     string        `koanf:"jwt_secret_key"`
	JWTExpirationHrs time.Duration `koanf:"jwt_expiration_hours"`
}

// WizardConfig carries per-entity-kind DM session timeouts (spec.md §5).
type WizardConfig struct {
	QuestAskTimeout     time.Duration `koanf:"quest_ask_timeout"`
	CharacterAskTimeout time.Duration `koanf:"character_ask_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Dir: "./data/guilds",
		},
		SelfAPI: SelfAPIConfig{
			Timeout:        10 * time.Second,
			RequestsPerSec: 5,
			RequestBurst:   10,
		},
		Flush: FlushConfig{
			ViaAdapter:      false,
			IntervalSeconds: 15 * time.Second,
		},
		Auth: AuthConfig{
			JWTExpirationHrs: 24 * time.Hour,
		},
		Wizard: WizardConfig{
			QuestAskTimeout:     300 * time.Second,
			CharacterAskTimeout: 180 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}
