// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml
// on top and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := loadPrivateKey(&cfg.CRM); err != nil {
		return nil, err
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found walking from the working directory
// up to the module root.
func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// Direct override if secrets are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.CRM.ClientID, "CRM_CLIENT_ID"},
		{&cfg.CRM.Username, "CRM_USERNAME"},
		{&cfg.CRM.PrivateKey, "CRM_PRIVATE_KEY"},
		{&cfg.Auth.HMACSecret, "AUTH_HMAC_SECRET"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
		{&cfg.Database.Redis.Password, "REDIS_PASSWORD"},
		{&cfg.Storage.AccessKeyID, "STORAGE_ACCESS_KEY_ID"},
		{&cfg.Storage.SecretAccessKey, "STORAGE_SECRET_ACCESS_KEY"},
	}
	for _, o := range overrides {
		if *o.target == "" {
			if val := os.Getenv(o.env); val != "" {
				*o.target = val
			}
		}
	}
}

func loadPrivateKey(crm *CRMConfig) error {
	if crm.PrivateKey != "" || crm.PrivateKeyPath == "" {
		return nil
	}
	pem, err := os.ReadFile(crm.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read crm.private_key_path: %w", err)
	}
	crm.PrivateKey = string(pem)
	return nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "crm-functions"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 10 << 20
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.MessageIndex == "" {
		cfg.Database.Elasticsearch.MessageIndex = "chat-messages"
	}

	if cfg.CRM.LoginURL == "" {
		cfg.CRM.LoginURL = "https://login.salesforce.com"
	}
	if cfg.CRM.APIVersion == "" {
		cfg.CRM.APIVersion = "v59.0"
	}
	if cfg.CRM.SessionTTL == 0 {
		cfg.CRM.SessionTTL = 1800
	}
	if cfg.CRM.Timeout == 0 {
		cfg.CRM.Timeout = 30000
	}
	if cfg.CRM.TokenCachePrefix == "" {
		cfg.CRM.TokenCachePrefix = "crm:token:"
	}
	if len(cfg.CRM.InstanceHosts) == 0 {
		cfg.CRM.InstanceHosts = []string{"my.salesforce.com"}
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 900
	}

	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = cfg.Storage.Region
	}
	if cfg.Notifications.Push.Concurrency == 0 {
		cfg.Notifications.Push.Concurrency = 8
	}

	if cfg.Chat.RetentionDays == 0 {
		cfg.Chat.RetentionDays = 365
	}
	if cfg.Chat.MaxMessageChars == 0 {
		cfg.Chat.MaxMessageChars = 4000
	}
	if cfg.Chat.PageSize == 0 {
		cfg.Chat.PageSize = 50
	}

	if cfg.Workflow.MaxFileBytes == 0 {
		cfg.Workflow.MaxFileBytes = 25 << 20
	}
	if cfg.Workflow.DownloadTimeout == 0 {
		cfg.Workflow.DownloadTimeout = 30000
	}
	if cfg.Workflow.IdempotencyTTL == 0 {
		cfg.Workflow.IdempotencyTTL = 86400
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 1
	}

	for key, fn := range cfg.Functions {
		if fn.Timeout == 0 {
			fn.Timeout = 60000
		}
		cfg.Functions[key] = fn
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if cfg.Auth.CertsURL == "" && cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("auth.certs_url or auth.hmac_secret is required")
	}
	if cfg.CRM.ClientID != "" && cfg.CRM.PrivateKey == "" {
		return fmt.Errorf("crm.private_key or crm.private_key_path is required when crm.client_id is set")
	}
	if cfg.Notifications.Email.Enabled && cfg.Notifications.Email.FromEmail == "" {
		return fmt.Errorf("notifications.email.from_email is required when e-mail is enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// FunctionKey maps a function name such as "crm.proposal.get" to its
// configuration key ("crm_proposal_get"); viper splits keys on dots.
func FunctionKey(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// GetFunctionConfig retrieves function-specific configuration with fallback to defaults
func GetFunctionConfig(cfg *Config, name string) FunctionConfig {
	if fn, exists := cfg.Functions[FunctionKey(name)]; exists {
		return fn
	}
	return FunctionConfig{Enabled: true, Timeout: 60000}
}

// IsFunctionEnabled checks if a specific function is enabled
func IsFunctionEnabled(cfg *Config, name string) bool {
	return GetFunctionConfig(cfg, name).Enabled
}
