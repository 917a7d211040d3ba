// Package config loads and validates the service configuration from the
// environment.
package config

import (
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/skyhook-labs/botkeeper/api"
)

// Defaults mirroring the original deployment.
const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 5000
	DefaultLogLevel    = "info"
	DefaultStopGrace   = 10 * time.Second
	DefaultStartWait   = 5 * time.Second
	DefaultPollTimeout = 30 * time.Second
)

type Config struct {
	// BotToken authenticates against the Bot API; absence is fatal at boot.
	BotToken string

	Host string
	Port int

	// GroqAPIKey is optional; without it the bot answers with plain echo.
	GroqAPIKey string
	GroqModel  string

	StopGracePeriod time.Duration
	StartTimeout    time.Duration
	PollTimeout     time.Duration

	LogLevel string
}

// FromEnv reads the configuration from environment variables, applying
// defaults for everything but the token.
func FromEnv() (Config, error) {
	cfg := Config{
		BotToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		Host:            envOr("HOST", DefaultHost),
		Port:            DefaultPort,
		GroqAPIKey:      os.Getenv("GROQ_API_KEY"),
		GroqModel:       os.Getenv("GROQ_MODEL"),
		StopGracePeriod: DefaultStopGrace,
		StartTimeout:    DefaultStartWait,
		PollTimeout:     DefaultPollTimeout,
		LogLevel:        envOr("LOG_LEVEL", DefaultLogLevel),
	}

	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, errors.Wrap(err, "invalid PORT")
		}
		cfg.Port = port
	}

	var err error
	if cfg.StopGracePeriod, err = envDuration("STOP_GRACE_PERIOD", cfg.StopGracePeriod); err != nil {
		return cfg, err
	}
	if cfg.StartTimeout, err = envDuration("START_TIMEOUT", cfg.StartTimeout); err != nil {
		return cfg, err
	}
	if cfg.PollTimeout, err = envDuration("POLL_TIMEOUT", cfg.PollTimeout); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the required fields and value ranges.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BotToken, validation.Required.Error("TELEGRAM_BOT_TOKEN is required")),
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.LogLevel, validation.By(logLevelRule)),
		validation.Field(&c.StopGracePeriod, validation.Min(time.Second)),
		validation.Field(&c.PollTimeout, validation.Min(time.Second)),
	)
}

// APIConfig projects the control-server part of the configuration.
func (c Config) APIConfig() api.Config {
	return api.Config{Host: c.Host, Port: c.Port}
}

// Logger builds the root logger entry from the configured level.
func (c Config) Logger() (*logrus.Entry, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "invalid LOG_LEVEL")
	}
	log := logrus.New()
	log.SetLevel(level)
	return logrus.NewEntry(log).WithField("app", "botkeeper"), nil
}

func logLevelRule(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return errors.New("log level must be a string")
	}
	if _, err := logrus.ParseLevel(raw); err != nil {
		return errors.New("unknown log level " + raw)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}
