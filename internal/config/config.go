/**
 * @description
 * This package handles configuration management for the billing service. It
 * uses the Viper library to read configuration from environment variables,
 * providing a centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the billing service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort              string `mapstructure:"SERVER_PORT"`
	DatabaseURL             string `mapstructure:"DATABASE_URL"`
	RedisURL                string `mapstructure:"REDIS_URL"`
	RabbitMQURL             string `mapstructure:"RABBITMQ_URL"`
	GatewayAPIBaseURL       string `mapstructure:"GATEWAY_API_BASE_URL"`
	GatewayAPIKey           string `mapstructure:"GATEWAY_API_KEY"`
	GatewayChargeExpiryMins int    `mapstructure:"GATEWAY_CHARGE_EXPIRY_MINUTES"`
	WAAPIBaseURL            string `mapstructure:"WA_API_BASE_URL"`
	WAAPIKey                string `mapstructure:"WA_API_KEY"`
	WAWebhookURL            string `mapstructure:"WA_WEBHOOK_URL"`
	InternalAPIKey          string `mapstructure:"INTERNAL_API_KEY"`
	ReconcileSweepSchedule  string `mapstructure:"RECONCILE_SWEEP_SCHEDULE"`
	NotifySweepSchedule     string `mapstructure:"NOTIFY_SWEEP_SCHEDULE"`
	SendDelayMillis         int    `mapstructure:"SEND_DELAY_MILLIS"`
	SweepLockTTLSeconds     int    `mapstructure:"SWEEP_LOCK_TTL_SECONDS"`
	SweepLockPrefix         string `mapstructure:"SWEEP_LOCK_PREFIX"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("GATEWAY_CHARGE_EXPIRY_MINUTES", 60*24)
	viper.SetDefault("RECONCILE_SWEEP_SCHEDULE", "*/10 * * * *")
	viper.SetDefault("NOTIFY_SWEEP_SCHEDULE", "0 9 * * *")
	viper.SetDefault("SEND_DELAY_MILLIS", 2000)
	viper.SetDefault("SWEEP_LOCK_TTL_SECONDS", 300)
	viper.SetDefault("SWEEP_LOCK_PREFIX", "zapfatura:sweep_lock")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("GATEWAY_API_BASE_URL")
	_ = viper.BindEnv("GATEWAY_API_KEY")
	_ = viper.BindEnv("GATEWAY_CHARGE_EXPIRY_MINUTES")
	_ = viper.BindEnv("WA_API_BASE_URL")
	_ = viper.BindEnv("WA_API_KEY")
	_ = viper.BindEnv("WA_WEBHOOK_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("RECONCILE_SWEEP_SCHEDULE")
	_ = viper.BindEnv("NOTIFY_SWEEP_SCHEDULE")
	_ = viper.BindEnv("SEND_DELAY_MILLIS")
	_ = viper.BindEnv("SWEEP_LOCK_TTL_SECONDS")
	_ = viper.BindEnv("SWEEP_LOCK_PREFIX")

	// Attempt to read the optional .env file. A missing file is fine; real
	// environments configure through actual env vars.
	if readErr := viper.ReadInConfig(); readErr != nil {
		if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
			// .env exists but is malformed.
			return Config{}, readErr
		}
	}

	err = viper.Unmarshal(&config)
	return config, err
}
