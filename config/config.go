package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Fleet provisioning file (locations and cabs).
	FleetFile string `mapstructure:"FLEET_FILE"`

	// Booking engine tuning.
	RetryBudget      int           `mapstructure:"RETRY_BUDGET"`
	RecheckInterval  time.Duration `mapstructure:"RECHECK_INTERVAL"`
	SamplingTimeout  time.Duration `mapstructure:"SAMPLING_TIMEOUT"`
	LocationCacheTTL time.Duration `mapstructure:"LOCATION_CACHE_TTL"`
	MaxCallsPerMin   int           `mapstructure:"MAX_CALLS_PER_MIN"`
	ReminderLead     time.Duration `mapstructure:"REMINDER_LEAD"`

	// Optional HTTP listener for health checks. Empty disables it.
	HealthPort string `mapstructure:"HEALTH_PORT"`

	// Redis configuration. Empty address disables Redis.
	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	RedisPassword        string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB         int    `mapstructure:"REDIS_CACHE_DB"`
	RedisReminderQueueDB int    `mapstructure:"REDIS_REMINDER_QUEUE_DB"`

	// MongoDB configuration. Empty URL disables the history archive in Mongo.
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`
}

var AppConfig = Defaults()

// Defaults returns the configuration used when nothing is loaded. Tests
// build on it directly.
func Defaults() Config {
	return Config{
		Env:              "development",
		LogLevel:         "info",
		RetryBudget:      3,
		RecheckInterval:  200 * time.Millisecond,
		SamplingTimeout:  30 * time.Second,
		LocationCacheTTL: 30 * time.Minute,
		MaxCallsPerMin:   120,
		ReminderLead:     30 * time.Minute,
		DatabaseName:     "cabbooking",
	}
}

// LoadConfig reads config.yaml (from path, the current directory or
// ./config) and environment variables into AppConfig.
func LoadConfig(path string) error {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	// Automatically use environment variables where available.
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("ENV", d.Env)
	v.SetDefault("LOG_LEVEL", d.LogLevel)
	v.SetDefault("FLEET_FILE", "")
	v.SetDefault("RETRY_BUDGET", d.RetryBudget)
	v.SetDefault("RECHECK_INTERVAL", d.RecheckInterval)
	v.SetDefault("SAMPLING_TIMEOUT", d.SamplingTimeout)
	v.SetDefault("LOCATION_CACHE_TTL", d.LocationCacheTTL)
	v.SetDefault("MAX_CALLS_PER_MIN", d.MaxCallsPerMin)
	v.SetDefault("REMINDER_LEAD", d.ReminderLead)
	v.SetDefault("HEALTH_PORT", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("REDIS_REMINDER_QUEUE_DB", 3)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_NAME", d.DatabaseName)

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return err
		}
		log.Println("No config file found, using environment variables only")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
