// Package config loads the service settings from the environment.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "shop"

type Config struct {
	ServeAddress   string        `envconfig:"SERVE_ADDRESS" default:":8080"`
	DBDSN          string        `envconfig:"DB_DSN"`
	DBMaxOpenConns int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL         time.Duration `envconfig:"JWT_TTL" default:"72h"`
	SessionSecret  string        `envconfig:"SESSION_SECRET" required:"true"`
	UploadDir      string        `envconfig:"UPLOAD_DIR" default:"./uploads"`
	BaseURL        string        `envconfig:"BASE_URL" default:"http://localhost:8080"`
	CORSOrigin     string        `envconfig:"CORS_ORIGIN" default:"http://localhost:5173"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"LOG_FORMAT" default:"text"`
}

// Load reads .env when present and then the SHOP_* variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not load .env file, relying on the environment")
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "read configuration")
	}
	return &cfg, nil
}

// ConfigureLogging applies the level and format to the global logrus logger.
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.Wrapf(err, "log level %q", c.LogLevel)
	}
	log.SetLevel(level)

	switch c.LogFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// RequireDSN fails when no database is configured.
func (c *Config) RequireDSN() error {
	if c.DBDSN == "" {
		return errors.New("SHOP_DB_DSN is required")
	}
	return nil
}
