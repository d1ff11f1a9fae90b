package config

// Config is the root configuration structure for slacknotify.
// Serialised to ~/.slacknotify/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Gateway  GatewayConfig  `mapstructure:"gateway"  json:"gateway"`
	Slack    SlackConfig    `mapstructure:"slack"    json:"slack"`
}

// DatabaseConfig controls the storage backend for projects, events and options.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// GatewayConfig controls the HTTP daemon that receives events and rule triggers.
type GatewayConfig struct {
	// Port is the localhost HTTP port the gateway listens on (default: 6090).
	Port int `mapstructure:"port" json:"port"`
	// BaseURL prefixes the group links rendered into notifications.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// Workers is the number of goroutines executing deferred notifications.
	Workers int `mapstructure:"workers" json:"workers"`
	// QueueSize bounds the number of deferred notifications waiting to run.
	QueueSize int `mapstructure:"queue_size" json:"queue_size"`
}

// SlackConfig controls outbound webhook delivery.
type SlackConfig struct {
	// TimeoutSeconds is the HTTP client timeout for a single webhook POST.
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	// DefaultWebhook seeds the webhook option of newly created projects.
	DefaultWebhook string `mapstructure:"default_webhook" json:"default_webhook"`
	// UserAgent is sent with every webhook request.
	UserAgent string `mapstructure:"user_agent" json:"user_agent"`
}
