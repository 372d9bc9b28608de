package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Weather WeatherConfig `mapstructure:"weather"`
	Window  WindowConfig  `mapstructure:"window"`
	Alert   AlertConfig   `mapstructure:"alert"`
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	Checker CheckerConfig `mapstructure:"checker"`
	API     APIConfig     `mapstructure:"api"`
}

type WeatherConfig struct {
	Provider  string        `mapstructure:"provider"`
	APIKey    string        `mapstructure:"api_key"`
	Latitude  float64       `mapstructure:"latitude"`
	Longitude float64       `mapstructure:"longitude"`
	Units     string        `mapstructure:"units"`
	Count     int           `mapstructure:"count"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// WindowConfig describes the overnight accumulation window. The window is
// always anchored to the day the check runs on, never to a previous run.
type WindowConfig struct {
	StartHour int           `mapstructure:"start_hour"`
	Span      time.Duration `mapstructure:"span"`
}

type AlertConfig struct {
	ThresholdMM       float64  `mapstructure:"threshold_mm"`
	Recipients        []string `mapstructure:"recipients"`
	FallbackRecipient string   `mapstructure:"fallback_recipient"`
}

type SMTPConfig struct {
	Server   string        `mapstructure:"server"`
	Port     int           `mapstructure:"port"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type CheckerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Enabled  bool          `mapstructure:"enabled"`
}

type APIConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/snow-alert")
	}

	// Set defaults
	v.SetDefault("weather.provider", "openweather")
	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.latitude", 0)
	v.SetDefault("weather.longitude", 0)
	v.SetDefault("weather.units", "metric")
	v.SetDefault("weather.count", 5)
	v.SetDefault("weather.timeout", "10s")
	v.SetDefault("window.start_hour", 18)
	v.SetDefault("window.span", "15h")
	v.SetDefault("alert.threshold_mm", 5.0)
	v.SetDefault("alert.recipients", []string{})
	v.SetDefault("alert.fallback_recipient", "")
	v.SetDefault("smtp.server", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.address", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.timeout", "10s")
	v.SetDefault("checker.interval", "6h")
	v.SetDefault("checker.enabled", true)
	v.SetDefault("api.port", 8046)
	v.SetDefault("api.enabled", true)

	// Secrets and coordinates may come from the environment (or a .env file
	// loaded by the caller) instead of the config file.
	bindings := map[string]string{
		"smtp.server":        "SMTP_SERVER",
		"smtp.port":          "SMTP_PORT",
		"smtp.address":       "EMAIL_ADDRESS",
		"smtp.password":      "EMAIL_PASSWORD",
		"weather.api_key":    "WEATHER_API_KEY",
		"weather.latitude":   "LATITUDE",
		"weather.longitude":  "LONGITUDE",
		"alert.threshold_mm": "SNOW_THRESHOLD",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that everything a check run needs is present. It is called
// before any network activity so that a broken config aborts the run early.
func (c *Config) Validate() error {
	if c.Weather.APIKey == "" {
		return fmt.Errorf("weather.api_key is required")
	}
	if c.Weather.Latitude == 0 && c.Weather.Longitude == 0 {
		return fmt.Errorf("weather.latitude and weather.longitude are required")
	}
	if c.Weather.Count <= 0 {
		return fmt.Errorf("weather.count must be positive")
	}
	if c.Window.StartHour < 0 || c.Window.StartHour > 23 {
		return fmt.Errorf("window.start_hour must be between 0 and 23")
	}
	if c.Alert.ThresholdMM < 0 {
		return fmt.Errorf("alert.threshold_mm must not be negative")
	}
	if c.Window.Span <= 0 {
		return fmt.Errorf("window.span must be positive")
	}
	if len(c.Alert.Recipients) == 0 {
		return fmt.Errorf("alert.recipients must contain at least one address")
	}
	if c.SMTP.Server == "" {
		return fmt.Errorf("smtp.server is required")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port must be a valid port number")
	}
	if c.SMTP.Address == "" {
		return fmt.Errorf("smtp.address is required")
	}
	if c.SMTP.Password == "" {
		return fmt.Errorf("smtp.password is required")
	}
	return nil
}
