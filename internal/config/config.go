package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mail-shield/")
	v.AddConfigPath("$HOME/.mail-shield")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_SHIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile loads a specific config file on top of the defaults
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_SHIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Watch defaults
	v.SetDefault("watch.quiet_period", "200ms")
	v.SetDefault("watch.snapshot_timeout", "2s")
	v.SetDefault("watch.selectors.body", "div[role='main'] .a3s")
	v.SetDefault("watch.selectors.subject", "h2.hP")
	v.SetDefault("watch.selectors.sender", ".gD")

	// Classifier defaults
	v.SetDefault("classifier.provider", "scoring")
	v.SetDefault("classifier.endpoint", "http://127.0.0.1:5000/scan-email")
	v.SetDefault("classifier.link_endpoint", "http://127.0.0.1:5000/scan-link")
	v.SetDefault("classifier.timeout", "15s")
	v.SetDefault("classifier.max_body_chars", 3000)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 256)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 256)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 256)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.cleanup_frequency", "10m")
	v.SetDefault("cache.sqlite.path", "/data/mail_shield_cache.db")
	v.SetDefault("cache.mysql.dsn", "user:password@tcp(localhost:3306)/mail_shield")

	// Trusted senders
	v.SetDefault("trust.domains", []string{})

	// Alert defaults
	v.SetDefault("alerts.sinks", []string{"relay"})
	v.SetDefault("alerts.topic", "shieldbox/email_scan")
	v.SetDefault("alerts.timeout", "5s")
	v.SetDefault("alerts.relay.endpoint", "http://127.0.0.1:5001/mqtt-publish")

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.labels", []string{"phishing", "scam", "fraudulent", "malicious", "suspicious", "suspicious_url", "spam"})

	v.SetDefault("smtp.address", "localhost:25")
	v.SetDefault("smtp.from", "mail-shield@localhost")
	v.SetDefault("smtp.to", []string{})
	v.SetDefault("smtp.labels", []string{"phishing", "scam", "fraudulent", "malicious"})

	// Browser defaults
	v.SetDefault("browser.debugger_url", "")
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.url", "https://mail.google.com/")

	// Preferences
	v.SetDefault("prefs.path", "$HOME/.mail-shield/prefs.yaml")

	// Display defaults
	v.SetDefault("display.enabled", true)
	v.SetDefault("display.address", "127.0.0.1:8787")
	v.SetDefault("console.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// Set overrides a value, used by command line flags
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
