package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Payment gateway credentials.
	GatewayBaseURL string `mapstructure:"GATEWAY_BASE_URL"`
	GatewayKeyID   string `mapstructure:"GATEWAY_KEY_ID"`
	GatewaySecret  string `mapstructure:"GATEWAY_SECRET"`

	// Booking engine tuning.
	ReservationTTLMin       int `mapstructure:"RESERVATION_TTL_MIN"`
	ScheduleUTCOffsetMin    int `mapstructure:"SCHEDULE_UTC_OFFSET_MIN"`
	AvailabilityCacheTTLSec int `mapstructure:"AVAILABILITY_CACHE_TTL_SEC"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("GATEWAY_BASE_URL", "https://api.paygate.example")
	viper.SetDefault("GATEWAY_KEY_ID", "")
	viper.SetDefault("GATEWAY_SECRET", "")
	viper.SetDefault("RESERVATION_TTL_MIN", 12)
	viper.SetDefault("SCHEDULE_UTC_OFFSET_MIN", 0)
	viper.SetDefault("AVAILABILITY_CACHE_TTL_SEC", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// ReservationTTL returns the configured hold duration for slot reservations.
func ReservationTTL() time.Duration {
	min := AppConfig.ReservationTTLMin
	if min <= 0 {
		min = 12
	}
	return time.Duration(min) * time.Minute
}

// AvailabilityCacheTTL returns how long resolved availability snapshots may
// be served from cache.
func AvailabilityCacheTTL() time.Duration {
	sec := AppConfig.AvailabilityCacheTTLSec
	if sec <= 0 {
		sec = 30
	}
	return time.Duration(sec) * time.Second
}
