// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig                 `mapstructure:"app"`
	Server        ServerConfig              `mapstructure:"server"`
	Database      DatabaseConfig            `mapstructure:"database"`
	CRM           CRMConfig                 `mapstructure:"crm"`
	Auth          AuthConfig                `mapstructure:"auth"`
	Storage       StorageConfig             `mapstructure:"storage"`
	Notifications NotificationConfig        `mapstructure:"notifications"`
	Chat          ChatConfig                `mapstructure:"chat"`
	Workflow      WorkflowConfig            `mapstructure:"workflow"`
	Functions     map[string]FunctionConfig `mapstructure:"functions"`
	Logging       LoggingConfig             `mapstructure:"logging"`
	Observability ObservabilityConfig       `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	MessageIndex string   `mapstructure:"message_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- CRM ---

// CRMConfig holds the connected-app settings for the JWT-bearer flow.
// When ClientID or the private key is missing only caller-supplied bearer
// sessions can reach the CRM.
type CRMConfig struct {
	LoginURL         string   `mapstructure:"login_url"`
	APIVersion       string   `mapstructure:"api_version"`
	ClientID         string   `mapstructure:"client_id"`
	Username         string   `mapstructure:"username"` // integration user
	PrivateKey       string   `mapstructure:"private_key"`
	PrivateKeyPath   string   `mapstructure:"private_key_path"`
	SessionTTL       int      `mapstructure:"session_ttl"` // seconds
	Timeout          int      `mapstructure:"timeout"`     // milliseconds
	TokenCachePrefix string   `mapstructure:"token_cache_prefix"`
	InstanceHosts    []string `mapstructure:"instance_hosts"` // host suffixes allowed in caller instance URLs
}

// JWTBearerEnabled reports whether tokens can be minted server side.
func (c CRMConfig) JWTBearerEnabled() bool {
	return c.ClientID != "" && (c.PrivateKey != "" || c.PrivateKeyPath != "")
}

// --- Caller authentication ---

// AuthConfig describes how caller ID tokens are verified. HMACSecret is for
// local development; production uses the RS256 certificates at CertsURL.
type AuthConfig struct {
	Issuer     string   `mapstructure:"issuer"`
	Audience   string   `mapstructure:"audience"`
	CertsURL   string   `mapstructure:"certs_url"`
	HMACSecret string   `mapstructure:"hmac_secret"`
	AdminUIDs  []string `mapstructure:"admin_uids"`
}

// --- Blob storage ---
type StorageConfig struct {
	Endpoint          string `mapstructure:"endpoint"`
	Region            string `mapstructure:"region"`
	Bucket            string `mapstructure:"bucket"`
	AccessKeyID       string `mapstructure:"access_key_id"`
	SecretAccessKey   string `mapstructure:"secret_access_key"`
	UsePathStyle      bool   `mapstructure:"use_path_style"`
	PresignExpiration int    `mapstructure:"presign_expiration"` // seconds
}

// NotificationConfig holds push (SNS) and e-mail (SES) settings.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Push struct {
		Enabled bool `mapstructure:"enabled"`
		// platform ("android", "ios") -> SNS platform application ARN
		PlatformApplications map[string]string `mapstructure:"platform_applications"`
		Concurrency          int               `mapstructure:"concurrency"`
	} `mapstructure:"push"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
}

type ChatConfig struct {
	RetentionDays   int `mapstructure:"retention_days"`
	MaxMessageChars int `mapstructure:"max_message_chars"`
	PageSize        int `mapstructure:"page_size"`
}

// WorkflowConfig tunes crm.proposal-meters.create.
type WorkflowConfig struct {
	MaxFileBytes    int64 `mapstructure:"max_file_bytes"`
	DownloadTimeout int   `mapstructure:"download_timeout"` // milliseconds
	IdempotencyTTL  int   `mapstructure:"idempotency_ttl"`  // seconds
}

// FunctionConfig holds the core settings applicable to every function.
type FunctionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Timeout int  `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName    string  `mapstructure:"service_name"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
