package config

import (
	"os"
	"time"
)

// WatchConfig controls how the host page is observed
type WatchConfig struct {
	QuietPeriod     time.Duration
	SnapshotTimeout time.Duration
	BodySelector    string
	SubjectSelector string
	SenderSelector  string
}

// ClassifierConfig selects and tunes the classification backend
type ClassifierConfig struct {
	Provider     string
	Endpoint     string
	LinkEndpoint string
	Timeout      time.Duration
	MaxBodyChars int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// CacheConfig represents the verdict cache configuration
type CacheConfig struct {
	Enabled          bool
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// AlertsConfig lists the IoT sinks and their shared settings
type AlertsConfig struct {
	Sinks         []string
	Topic         string
	Timeout       time.Duration
	RelayEndpoint string
}

// MQTTConfig represents the direct broker sink
type MQTTConfig struct {
	Broker   string
	ClientID string
	QoS      byte
}

// TelegramConfig represents the Telegram sink
type TelegramConfig struct {
	Token  string
	ChatID int64
	Labels []string
}

// SMTPConfig represents the mail sink
type SMTPConfig struct {
	Address string
	From    string
	To      []string
	Labels  []string
}

// BrowserConfig controls how the browser host is reached
type BrowserConfig struct {
	DebuggerURL string
	Bin         string
	Headless    bool
	URL         string
}

// DisplayConfig controls the result surfaces
type DisplayConfig struct {
	Enabled        bool
	Address        string
	ConsoleEnabled bool
}

// GetWatch returns the watch configuration
func (c *Config) GetWatch() WatchConfig {
	return WatchConfig{
		QuietPeriod:     c.v.GetDuration("watch.quiet_period"),
		SnapshotTimeout: c.v.GetDuration("watch.snapshot_timeout"),
		BodySelector:    c.GetString("watch.selectors.body"),
		SubjectSelector: c.GetString("watch.selectors.subject"),
		SenderSelector:  c.GetString("watch.selectors.sender"),
	}
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		Provider:     c.GetString("classifier.provider"),
		Endpoint:     c.GetString("classifier.endpoint"),
		LinkEndpoint: c.GetString("classifier.link_endpoint"),
		Timeout:      c.v.GetDuration("classifier.timeout"),
		MaxBodyChars: c.GetInt("classifier.max_body_chars"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Enabled:          c.GetBool("cache.enabled"),
		Type:             c.GetString("cache.type"),
		TTL:              c.v.GetDuration("cache.ttl"),
		CleanupFrequency: c.v.GetDuration("cache.cleanup_frequency"),
		SQLitePath:       c.GetString("cache.sqlite.path"),
		MySQLDSN:         c.GetString("cache.mysql.dsn"),
	}
}

// GetTrustedDomains returns the sender domains that skip classification
func (c *Config) GetTrustedDomains() []string {
	return c.GetStringSlice("trust.domains")
}

// GetAlerts returns the alert fan-out configuration
func (c *Config) GetAlerts() AlertsConfig {
	return AlertsConfig{
		Sinks:         c.GetStringSlice("alerts.sinks"),
		Topic:         c.GetString("alerts.topic"),
		Timeout:       c.v.GetDuration("alerts.timeout"),
		RelayEndpoint: c.GetString("alerts.relay.endpoint"),
	}
}

// GetMQTT returns the MQTT configuration
func (c *Config) GetMQTT() MQTTConfig {
	qos := c.GetInt("mqtt.qos")
	if qos < 0 || qos > 2 {
		qos = 1
	}
	return MQTTConfig{
		Broker:   c.GetString("mqtt.broker"),
		ClientID: c.GetString("mqtt.client_id"),
		QoS:      byte(qos),
	}
}

// GetTelegram returns the Telegram configuration
func (c *Config) GetTelegram() TelegramConfig {
	return TelegramConfig{
		Token:  c.GetString("telegram.token"),
		ChatID: c.GetInt64("telegram.chat_id"),
		Labels: c.GetStringSlice("telegram.labels"),
	}
}

// GetSMTP returns the SMTP alert configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Address: c.GetString("smtp.address"),
		From:    c.GetString("smtp.from"),
		To:      c.GetStringSlice("smtp.to"),
		Labels:  c.GetStringSlice("smtp.labels"),
	}
}

// GetBrowser returns the browser host configuration
func (c *Config) GetBrowser() BrowserConfig {
	return BrowserConfig{
		DebuggerURL: c.GetString("browser.debugger_url"),
		Bin:         c.GetString("browser.bin"),
		Headless:    c.GetBool("browser.headless"),
		URL:         c.GetString("browser.url"),
	}
}

// GetDisplay returns the display configuration
func (c *Config) GetDisplay() DisplayConfig {
	return DisplayConfig{
		Enabled:        c.GetBool("display.enabled"),
		Address:        c.GetString("display.address"),
		ConsoleEnabled: c.GetBool("console.enabled"),
	}
}

// GetPrefsPath returns the preferences file path with environment variables expanded
func (c *Config) GetPrefsPath() string {
	return os.ExpandEnv(c.GetString("prefs.path"))
}
