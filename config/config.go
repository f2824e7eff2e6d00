// Package config loads the bot configuration from config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cancetinn/ldm-discord/model"
)

// EnvPrefix is prepended to every environment override, e.g. LDM_SOURCE_BASE_URL.
const EnvPrefix = "LDM"

// Load reads the configuration. An empty path looks for config.yaml in the
// working directory; a missing default file is not an error so the bot can
// run from environment variables alone.
func Load(path string) (model.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Variable names used by earlier deployments.
	_ = v.BindEnv("token", "CLIENT_BOT_TOKEN", EnvPrefix+"_TOKEN")
	_ = v.BindEnv("guild_id", "GUILD_ID", EnvPrefix+"_GUILD_ID")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return model.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg model.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return model.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "")
	v.SetDefault("source.credential", "")
	v.SetDefault("source.timeout", 10*time.Second)
	v.SetDefault("channels.pending", "")
	v.SetDefault("channels.approved", "")
	v.SetDefault("channels.rejected", "")
	v.SetDefault("poll.interval", 10*time.Second)
	v.SetDefault("poll.max_backoff", 5*time.Minute)
	v.SetDefault("poll.backoff_factor", 2.0)
	v.SetDefault("reconcile.interval", time.Minute)
	v.SetDefault("reconcile.lookback", 100)
	v.SetDefault("chat.call_timeout", 10*time.Second)
	v.SetDefault("chat.footer", "LIDOMA BOT")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("health.addr", "")
	v.SetDefault("auth.developers", []string{})
	v.SetDefault("auth.admin_roles", []string{})
}

// Validate checks that every required key is present and every duration is usable.
func Validate(cfg model.Config) error {
	var missing []string
	for key, value := range map[string]string{
		"token":             cfg.Token,
		"guild_id":          cfg.GuildID,
		"source.base_url":   cfg.Source.BaseURL,
		"channels.pending":  cfg.Channels.Pending,
		"channels.approved": cfg.Channels.Approved,
		"channels.rejected": cfg.Channels.Rejected,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if cfg.Poll.Interval <= 0 || cfg.Reconcile.Interval <= 0 {
		return errors.New("poll.interval and reconcile.interval must be positive")
	}
	if cfg.Poll.MaxBackoff < cfg.Poll.Interval {
		return fmt.Errorf("poll.max_backoff (%s) is shorter than poll.interval (%s)", cfg.Poll.MaxBackoff, cfg.Poll.Interval)
	}
	if cfg.Poll.BackoffFactor < 1 {
		return fmt.Errorf("poll.backoff_factor must be at least 1, got %v", cfg.Poll.BackoffFactor)
	}
	if cfg.Reconcile.Lookback <= 0 {
		return errors.New("reconcile.lookback must be positive")
	}
	return nil
}
