package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "STUDYDESK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "STUDYDESK_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "tutor.base_url", typ: kString, env: "STUDYDESK_TUTOR_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Tutor.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Tutor.BaseURL },
	},
	{
		key: "tutor.api_key", typ: kString, env: "STUDYDESK_TUTOR_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Tutor.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Tutor.APIKey },
	},
	{
		key: "tutor.poll_attempts", typ: kInt, env: "STUDYDESK_TUTOR_POLL_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Tutor.PollAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Tutor.PollAttempts },
	},
	{
		key: "tutor.poll_interval", typ: kString, env: "STUDYDESK_TUTOR_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Tutor.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Tutor.PollInterval },
	},
	{
		key: "tutor.count", typ: kInt, env: "STUDYDESK_TUTOR_COUNT",
		apply:   func(cfg *Config, v any) { cfg.Tutor.Count = v.(int) },
		extract: func(cfg Config) any { return cfg.Tutor.Count },
	},
	{
		key: "storage.data_dir", typ: kString, env: "STUDYDESK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "STUDYDESK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
