package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	BackendPostgres   = "postgres"
	BackendMemory     = "memory"
	BackendLocal      = "local"
	BackendGoTrue     = "gotrue"
	BackendCloudinary = "cloudinary"
	BackendDisk       = "disk"
)

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port int    `env:"PORT" envDefault:"8080"`
	Dsn  string `env:"DSN"`

	StoreBackend    string `env:"STORE_BACKEND" envDefault:"postgres"`
	IdentityBackend string `env:"IDENTITY_BACKEND" envDefault:"local"`
	BlobBackend     string `env:"BLOB_BACKEND" envDefault:"disk"`

	JwtSecret  string        `env:"JWT_SECRET"`
	JwtExpires time.Duration `env:"JWT_EXPIRES" envDefault:"24h"`

	GoTrueURL    string `env:"GOTRUE_URL"`
	GoTrueAPIKey string `env:"GOTRUE_API_KEY"`

	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`

	DiskDir       string `env:"DISK_DIR" envDefault:"./uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"campus_voice.events"`

	// RecountSchedule is a cron spec; empty leaves the recount job off.
	RecountSchedule string `env:"RECOUNT_SCHEDULE"`

	CORSOrigins  []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitRPM int      `env:"RATE_LIMIT_RPM" envDefault:"300"`
}

// New loads envFile when it exists, then reads the environment. Variables
// already set in the environment win over the file.
func New(envFile string, log zerolog.Logger) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Debug().Err(err).Str("file", envFile).Msg("[Env]: env file not loaded")
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.Dsn == "" {
			return errors.New("DSN is required for the postgres store")
		}
	case BackendMemory:
	default:
		return errors.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.IdentityBackend {
	case BackendLocal:
		if c.Dsn == "" || c.JwtSecret == "" {
			return errors.New("DSN and JWT_SECRET are required for local identity")
		}
	case BackendGoTrue:
		if c.GoTrueURL == "" || c.GoTrueAPIKey == "" {
			return errors.New("GOTRUE_URL and GOTRUE_API_KEY are required for gotrue identity")
		}
	case BackendMemory:
	default:
		return errors.Errorf("unknown IDENTITY_BACKEND %q", c.IdentityBackend)
	}

	switch c.BlobBackend {
	case BackendCloudinary:
		if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			return errors.New("cloudinary credentials are required for the cloudinary blob backend")
		}
	case BackendDisk:
	default:
		return errors.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}
	return nil
}

// NeedsDatabase reports whether any selected backend uses Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.StoreBackend == BackendPostgres || c.IdentityBackend == BackendLocal
}
