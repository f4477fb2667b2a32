package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Issuer       IssuerConfig
	Signing      SigningConfig
	Authority    AuthorityConfig
	Notification NotificationConfig
	Telemetry    TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
}

// IssuerConfig holds the fiscal identity of the invoice issuer
type IssuerConfig struct {
	BusinessName  string
	TradeName     string
	TaxID         string // 13-digit RUC
	Address       string
	Establishment string // 3 digits, e.g. "001"
	EmissionPoint string // 3 digits, e.g. "001"
	Environment   string // "1" test, "2" production
	EmissionType  string // "1" normal
}

// SigningConfig holds certificate settings for document signing.
// The passphrase comes only from configuration or environment, never source.
type SigningConfig struct {
	CertificatePath string
	Passphrase      string
	QueueSize       int // pending jobs the signing worker accepts
}

// AuthorityConfig holds tax authority service endpoints and polling policy
type AuthorityConfig struct {
	ReceptionURL     string
	AuthorizationURL string
	RequestTimeout   time.Duration
	PollInterval     time.Duration
	PollMaxAttempts  int
}

// NotificationConfig holds the post-authorization notification settings
type NotificationConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// TelemetryConfig holds OpenTelemetry tracing configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with FACT_ prefix (e.g., FACT_SIGNING_PASSPHRASE)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("FACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
		},
		Issuer: IssuerConfig{
			BusinessName:  v.GetString("issuer.business_name"),
			TradeName:     v.GetString("issuer.trade_name"),
			TaxID:         v.GetString("issuer.tax_id"),
			Address:       v.GetString("issuer.address"),
			Establishment: v.GetString("issuer.establishment"),
			EmissionPoint: v.GetString("issuer.emission_point"),
			Environment:   v.GetString("issuer.environment"),
			EmissionType:  v.GetString("issuer.emission_type"),
		},
		Signing: SigningConfig{
			CertificatePath: v.GetString("signing.certificate_path"),
			Passphrase:      v.GetString("signing.passphrase"),
			QueueSize:       v.GetInt("signing.queue_size"),
		},
		Authority: AuthorityConfig{
			ReceptionURL:     v.GetString("authority.reception_url"),
			AuthorizationURL: v.GetString("authority.authorization_url"),
			RequestTimeout:   v.GetDuration("authority.request_timeout"),
			PollInterval:     v.GetDuration("authority.poll_interval"),
			PollMaxAttempts:  v.GetInt("authority.poll_max_attempts"),
		},
		Notification: NotificationConfig{
			Enabled: v.GetBool("notification.enabled"),
			Brokers: v.GetStringSlice("notification.brokers"),
			Topic:   v.GetString("notification.topic"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "facturacion-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "facturacion"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Issuer.Establishment == "" {
		cfg.Issuer.Establishment = "001"
	}
	if cfg.Issuer.EmissionPoint == "" {
		cfg.Issuer.EmissionPoint = "001"
	}
	if cfg.Issuer.Environment == "" {
		cfg.Issuer.Environment = "1" // test environment unless configured
	}
	if cfg.Issuer.EmissionType == "" {
		cfg.Issuer.EmissionType = "1"
	}
	if cfg.Signing.QueueSize == 0 {
		cfg.Signing.QueueSize = 64
	}
	if cfg.Authority.RequestTimeout == 0 {
		cfg.Authority.RequestTimeout = 30 * time.Second
	}
	if cfg.Authority.PollInterval == 0 {
		cfg.Authority.PollInterval = 3 * time.Second
	}
	if cfg.Authority.PollMaxAttempts == 0 {
		cfg.Authority.PollMaxAttempts = 5
	}
	if cfg.Notification.Topic == "" {
		cfg.Notification.Topic = "invoice.authorized"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "facturacion-backend"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Issuer.Environment != "1" && c.Issuer.Environment != "2" {
		return fmt.Errorf("issuer.environment must be \"1\" (test) or \"2\" (production), got %q", c.Issuer.Environment)
	}
	if len(c.Issuer.Establishment) != 3 {
		return fmt.Errorf("issuer.establishment must be 3 digits, got %q", c.Issuer.Establishment)
	}
	if len(c.Issuer.EmissionPoint) != 3 {
		return fmt.Errorf("issuer.emission_point must be 3 digits, got %q", c.Issuer.EmissionPoint)
	}

	if c.Authority.PollMaxAttempts < 1 {
		return fmt.Errorf("authority.poll_max_attempts must be at least 1")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Issuer.TaxID == "" {
			return fmt.Errorf("issuer.tax_id is required in production")
		}
		if len(c.Issuer.TaxID) != 13 {
			return fmt.Errorf("issuer.tax_id must be 13 digits, got %q", c.Issuer.TaxID)
		}
		if c.Signing.CertificatePath == "" {
			return fmt.Errorf("signing.certificate_path is required in production")
		}
		if c.Authority.ReceptionURL == "" || c.Authority.AuthorizationURL == "" {
			return fmt.Errorf("authority endpoints are required in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
