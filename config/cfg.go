package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Hanishchow/Biocore-agent/internal/envHelper"
)

type AppConfig struct {
	Server     ServerConfig     `mapstructure:"server"`
	Completion CompletionConfig `mapstructure:"completion"`
	PubChem    LookupConfig     `mapstructure:"pubchem"`
	RCSB       LookupConfig     `mapstructure:"rcsb"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	AWS        AWSConfig        `mapstructure:"aws"`
	Queue      QueueConfig      `mapstructure:"queue"`
}

type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	GinMode string `mapstructure:"gin_mode"`
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", s.Port)
}

type CompletionConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	URL         string        `mapstructure:"url"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (c CompletionConfig) APIKeySet() bool {
	return c.APIKey != ""
}

type LookupConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns the go-sql-driver/mysql connection string.
func (d DatabaseConfig) DSN() string {
	return d.User + ":" + d.Password + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?parseTime=false"
}

type AWSConfig struct {
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
}

// ArchiveEnabled reports whether reports should be uploaded to S3.
func (a AWSConfig) ArchiveEnabled() bool {
	return a.Bucket != ""
}

type QueueConfig struct {
	Prefix            string `mapstructure:"prefix"`
	Name              string `mapstructure:"name"`
	WorkerCount       int    `mapstructure:"worker_count"`
	PollingWaitTime   int64  `mapstructure:"polling_wait_time"`
	VisibilityTimeout int64  `mapstructure:"visibility_timeout"`
	MaxMessages       int64  `mapstructure:"max_messages"`
}

func (q QueueConfig) Enabled() bool {
	return q.Name != ""
}

// URL joins the SQS prefix and queue name the same way the queue console displays them.
func (q QueueConfig) URL() string {
	return fmt.Sprintf("%s/%s", q.Prefix, q.Name)
}

// env maps config keys to the environment variables the service has always read.
var env = map[string]string{
	"server.port":              "PORT",
	"server.gin_mode":          "GIN_MODE",
	"completion.api_key":       "NVIDIA_API_KEY",
	"completion.model":         "NVIDIA_MODEL",
	"completion.url":           "NVIDIA_URL",
	"completion.temperature":   "NVIDIA_TEMPERATURE",
	"completion.max_tokens":    "NVIDIA_MAX_TOKENS",
	"completion.timeout":       "NVIDIA_TIMEOUT",
	"pubchem.base_url":         "PUBCHEM_URL",
	"pubchem.timeout":          "PUBCHEM_TIMEOUT",
	"rcsb.base_url":            "RCSB_URL",
	"rcsb.timeout":             "RCSB_TIMEOUT",
	"logging.level":            "LOG_LEVEL",
	"logging.format":           "LOG_FORMAT",
	"database.host":            "DB_HOST",
	"database.port":            "DB_PORT",
	"database.user":            "DB_USERNAME",
	"database.password":        "DB_PASSWORD",
	"database.name":            "DB_DATABASE",
	"aws.region":               "AWS_REGION",
	"aws.access_key":           "AWS_ACCESS_KEY_ID",
	"aws.secret_key":           "AWS_SECRET_ACCESS_KEY",
	"aws.bucket":               "AWS_BUCKET",
	"queue.prefix":             "SQS_PREFIX",
	"queue.name":               "REQUESTS_QUEUE",
	"queue.worker_count":       "WORKER_COUNT",
	"queue.polling_wait_time":  "QUEUE_POLLING_WAIT_TIME",
	"queue.visibility_timeout": "QUEUE_VISIBILITY_TIMEOUT",
	"queue.max_messages":       "QUEUE_MAX_MESSAGES",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.model", "NVIDIABuild-Autogen-12")
	v.SetDefault("completion.url", "https://integrate.api.nvidia.com/v1/chat/completions")
	v.SetDefault("completion.temperature", 0.1)
	v.SetDefault("completion.max_tokens", 4096)
	v.SetDefault("completion.timeout", 120*time.Second)
	v.SetDefault("pubchem.base_url", "https://pubchem.ncbi.nlm.nih.gov/rest/pug")
	v.SetDefault("pubchem.timeout", 15*time.Second)
	v.SetDefault("rcsb.base_url", "https://data.rcsb.org/rest/v1")
	v.SetDefault("rcsb.timeout", 15*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "biocore")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.access_key", "")
	v.SetDefault("aws.secret_key", "")
	v.SetDefault("aws.bucket", "")
	v.SetDefault("queue.prefix", "")
	v.SetDefault("queue.name", "")
	v.SetDefault("queue.worker_count", 2)
	v.SetDefault("queue.polling_wait_time", 20)
	v.SetDefault("queue.visibility_timeout", 300)
	v.SetDefault("queue.max_messages", 10)
}

// Load reads .env (if present) and the process environment into an AppConfig.
// The result is read once at startup and passed by value afterwards.
func Load() (AppConfig, error) {
	envHelper.LoadEnv()
	return load(viper.New())
}

func load(v *viper.Viper) (AppConfig, error) {
	setDefaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return AppConfig{}, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Server.Port <= 0 {
		return AppConfig{}, fmt.Errorf("invalid PORT %d", cfg.Server.Port)
	}
	if cfg.Queue.WorkerCount <= 0 {
		cfg.Queue.WorkerCount = 1
	}
	return cfg, nil
}
