package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/outreachly/drip-engine/pkg/validator"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	QuietHours QuietHoursConfig `mapstructure:"quiet_hours"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Carrier    CarrierConfig    `mapstructure:"carrier"`
	AI         AIConfig         `mapstructure:"ai"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	// ServiceTokenSecret signs the service tokens the API accepts.
	ServiceTokenSecret string `mapstructure:"service_token_secret"`
}

type QuietHoursConfig struct {
	Zone  string `mapstructure:"zone" validate:"omitempty,timezone_name"`
	Start int    `mapstructure:"start" validate:"gte=0,lte=23"`
	End   int    `mapstructure:"end" validate:"gte=0,lte=23"`
}

type SchedulerConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	Concurrency     int           `mapstructure:"concurrency"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxSendAttempts int           `mapstructure:"max_send_attempts"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	ReplyLookback   int           `mapstructure:"reply_lookback"`
	SequenceCache   time.Duration `mapstructure:"sequence_cache_ttl"`
}

type DispatchConfig struct {
	FromNumber     string        `mapstructure:"from_number" validate:"omitempty,phone"`
	CostPerMessage int64         `mapstructure:"cost_per_message"`
	DripDelay      time.Duration `mapstructure:"drip_delay"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
}

type CarrierConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	AccountID     string        `mapstructure:"account_id"`
	AuthToken     string        `mapstructure:"auth_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

type AIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	BlockedPhrases []string      `mapstructure:"blocked_phrases"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// secrets are never committed to the config file; they come from the
// environment and override whatever the file holds.
type secrets struct {
	DatabasePassword   string `envconfig:"DB_PASSWORD"`
	RedisURL           string `envconfig:"REDIS_URL"`
	ServiceTokenSecret string `envconfig:"SERVICE_TOKEN_SECRET"`
	CarrierAuthToken   string `envconfig:"CARRIER_AUTH_TOKEN"`
	AIAPIKey           string `envconfig:"AI_API_KEY"`
	SMTPPassword       string `envconfig:"SMTP_PASSWORD"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app/config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var sec secrets
	if err := envconfig.Process("", &sec); err != nil {
		return nil, fmt.Errorf("failed to read environment secrets: %w", err)
	}
	if sec.DatabasePassword != "" {
		config.Database.Password = sec.DatabasePassword
	}
	if sec.RedisURL != "" {
		config.Redis.URL = sec.RedisURL
	}
	if sec.ServiceTokenSecret != "" {
		config.Auth.ServiceTokenSecret = sec.ServiceTokenSecret
	}
	if sec.CarrierAuthToken != "" {
		config.Carrier.AuthToken = sec.CarrierAuthToken
	}
	if sec.AIAPIKey != "" {
		config.AI.APIKey = sec.AIAPIKey
	}
	if sec.SMTPPassword != "" {
		config.SMTP.Password = sec.SMTPPassword
	}

	applyDefaults(&config)

	v, err := validator.New()
	if err != nil {
		return nil, err
	}
	if err := v.Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func applyDefaults(c *Config) {
	if c.QuietHours.Zone == "" {
		c.QuietHours.Zone = "America/New_York"
	}
	if c.QuietHours.Start == 0 && c.QuietHours.End == 0 {
		c.QuietHours.Start = 21
		c.QuietHours.End = 9
	}
	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = 100
	}
	if c.Scheduler.PollInterval == 0 {
		c.Scheduler.PollInterval = time.Minute
	}
	if c.Scheduler.ReplyLookback == 0 {
		c.Scheduler.ReplyLookback = 10
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
}
