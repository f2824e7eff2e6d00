package model

import "time"

// Config is the top level structure of config.yaml. It is loaded once at
// startup and passed by value afterwards.
type Config struct {
	Token     string    `mapstructure:"token"`
	GuildID   string    `mapstructure:"guild_id"`
	Source    Source    `mapstructure:"source"`
	Channels  Channels  `mapstructure:"channels"`
	Poll      Poll      `mapstructure:"poll"`
	Reconcile Reconcile `mapstructure:"reconcile"`
	Chat      Chat      `mapstructure:"chat"`
	Cache     Cache     `mapstructure:"cache"`
	Health    Health    `mapstructure:"health"`
	Auth      Auth      `mapstructure:"auth"`
}

// Source corresponds to the "source" section.
type Source struct {
	BaseURL    string        `mapstructure:"base_url"`
	Credential string        `mapstructure:"credential"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Channels holds the three review space ids.
type Channels struct {
	Pending  string `mapstructure:"pending"`
	Approved string `mapstructure:"approved"`
	Rejected string `mapstructure:"rejected"`
}

// Poll corresponds to the "poll" section.
type Poll struct {
	Interval      time.Duration `mapstructure:"interval"`
	MaxBackoff    time.Duration `mapstructure:"max_backoff"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
}

// Reconcile corresponds to the "reconcile" section.
type Reconcile struct {
	Interval time.Duration `mapstructure:"interval"`
	Lookback int           `mapstructure:"lookback"`
}

// Chat corresponds to the "chat" section.
type Chat struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	Footer      string        `mapstructure:"footer"`
}

// Cache corresponds to the "cache" section. An empty RedisURL keeps the cache in memory.
type Cache struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Health corresponds to the "health" section. An empty Addr disables the server.
type Health struct {
	Addr string `mapstructure:"addr"`
}

// Auth corresponds to the "auth" section.
type Auth struct {
	Developers []string `mapstructure:"developers"`
	AdminRoles []string `mapstructure:"admin_roles"`
}
