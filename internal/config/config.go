// Package config loads daemon and CLI configuration from a JSON file at an
// XDG-compatible path, with STUDYDESK_* environment variables taking
// precedence.
package config

type Config struct {
	Server  ServerConfig
	Tutor   TutorConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
	// Token authenticates the CLI against the local daemon. Generated on
	// first serve when absent; see EnsureToken.
	Token string
}

type TutorConfig struct {
	BaseURL string
	APIKey  string
	// PollAttempts and PollInterval bound the generation wait loop.
	// PollInterval is a time.ParseDuration string.
	PollAttempts int
	PollInterval string
	// Count is the default number of cards or questions per generation.
	Count int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		Tutor: TutorConfig{
			BaseURL:      "https://api.studydesk.app",
			PollAttempts: 30,
			PollInterval: "2s",
			Count:        20,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the config file at
// $XDG_CONFIG_HOME/studydesk/config.json, then applies STUDYDESK_*
// environment overrides. A missing file yields pure defaults. The tutor API
// key is not validated here; the serve command checks it before starting.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
