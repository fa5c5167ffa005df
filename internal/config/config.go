package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		Listen          string        `env:"LISTEN,default=:8080"`
		DBPath          string        `env:"DB_PATH,default=trustdesk.db"`
		SecretKey       string        `env:"SECRET_KEY,required"`
		DefaultLanguage string        `env:"LANG,default=en"`
		LogLevel        int           `env:"LOG_LEVEL,default=4"`
		Lookback        time.Duration `env:"LOOKBACK,default=168h"`
		Webhook         Webhook
	}

	// Webhook configures the outbound status-changed dispatch. An empty URL
	// disables dispatch entirely.
	Webhook struct {
		URL     string        `env:"WEBHOOK_URL"`
		Timeout time.Duration `env:"WEBHOOK_TIMEOUT,default=10s"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("TD_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
