package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"HomelabMonitorAPI/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	MQTT       MQTTConfig
	NATS       NATSConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Alerting   AlertingConfig
	WebSocket  WebSocketConfig
	Hosts      HostsConfig
	Kubernetes KubernetesConfig
	Retention  RetentionConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderBytes  int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

type MQTTConfig struct {
	Enabled        bool
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	MetricsTopic   string
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
}

type NATSConfig struct {
	URL             string
	RuleChangeTopic string
	ConnectTimeout  time.Duration
}

func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

type SecurityConfig struct {
	APIKeyHeader       string
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	RateLimitPerMinute int
	EnableRateLimit    bool
}

type LoggingConfig struct {
	Level     logger.Level
	Mode      logger.Mode
	FilePath  string
	UseColors bool
}

type AlertingConfig struct {
	RuleCacheTTL          time.Duration
	DefaultCooldown       time.Duration
	Workers               int
	QueueSize             int
	EvalTimeout           time.Duration
	CooldownPruneInterval time.Duration
	SeedFile              string
}

type WebSocketConfig struct {
	IdleTimeout    time.Duration
	PongTimeout    time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	MaxMessageSize int64
}

type HostsConfig struct {
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

type KubernetesConfig struct {
	Enabled      bool
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type RetentionConfig struct {
	MetricsDays int
	Interval    time.Duration
}

var requiredEnvVars = []string{
	"DB_HOST",
	"DB_PORT",
	"DB_USER",
	"DB_PASSWORD",
	"DB_NAME",
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	if err := validateRequired(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:     loadServerConfig(),
		Database:   loadDatabaseConfig(),
		MQTT:       loadMQTTConfig(),
		NATS:       loadNATSConfig(),
		Security:   loadSecurityConfig(),
		Logging:    loadLoggingConfig(),
		Alerting:   loadAlertingConfig(),
		WebSocket:  loadWebSocketConfig(),
		Hosts:      loadHostsConfig(),
		Kubernetes: loadKubernetesConfig(),
		Retention:  loadRetentionConfig(),
	}

	return cfg, nil
}

func validateRequired() error {
	var missing []string

	for _, key := range requiredEnvVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Port:            getEnvAsInt("SERVER_PORT", 8000),
		Environment:     getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "15s"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", "10s"),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", "10s"),
		MaxHeaderBytes:  getEnvAsInt("MAX_HEADER_BYTES", 1048576),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "homelab"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "homelab_monitor"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", "5m"),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
	}
}

func loadMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Enabled:        getEnvAsBool("MQTT_ENABLED", false),
		Broker:         getEnv("MQTT_BROKER", "localhost"),
		Port:           getEnvAsInt("MQTT_PORT", 1883),
		ClientID:       getEnv("MQTT_CLIENT_ID", "homelab-monitor"),
		Username:       getEnv("MQTT_USERNAME", ""),
		Password:       getEnv("MQTT_PASSWORD", ""),
		MetricsTopic:   getEnv("MQTT_METRICS_TOPIC", "homelab/hosts/+/metrics"),
		QoS:            byte(getEnvAsInt("MQTT_QOS", 1)),
		KeepAlive:      getEnvAsDuration("MQTT_KEEP_ALIVE", "60s"),
		ConnectTimeout: getEnvAsDuration("MQTT_CONNECT_TIMEOUT", "10s"),
		AutoReconnect:  getEnvAsBool("MQTT_AUTO_RECONNECT", true),
	}
}

func loadNATSConfig() NATSConfig {
	return NATSConfig{
		URL:             getEnv("NATS_URL", ""),
		RuleChangeTopic: getEnv("NATS_RULE_CHANGE_TOPIC", "homelab.alert_rules.changed"),
		ConnectTimeout:  getEnvAsDuration("NATS_CONNECT_TIMEOUT", "5s"),
	}
}

func loadSecurityConfig() SecurityConfig {
	origins := getEnv("CORS_ALLOWED_ORIGINS", "*")
	methods := getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")

	return SecurityConfig{
		APIKeyHeader:       getEnv("API_KEY_HEADER", "X-API-Key"),
		CORSAllowedOrigins: strings.Split(origins, ","),
		CORSAllowedMethods: strings.Split(methods, ","),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 600),
		EnableRateLimit:    getEnvAsBool("ENABLE_RATE_LIMIT", true),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:     logger.ParseLevel(getEnv("LOG_LEVEL", "info")),
		Mode:      logger.ParseMode(getEnv("LOG_MODE", "normal")),
		FilePath:  getEnv("LOG_FILE_PATH", ""),
		UseColors: getEnvAsBool("LOG_USE_COLORS", true),
	}
}

func loadAlertingConfig() AlertingConfig {
	return AlertingConfig{
		RuleCacheTTL:          getEnvAsDuration("RULE_CACHE_TTL", "5m"),
		DefaultCooldown:       getEnvAsDuration("DEFAULT_COOLDOWN", "5m"),
		Workers:               getEnvAsInt("ALERT_WORKERS", 4),
		QueueSize:             getEnvAsInt("ALERT_QUEUE_SIZE", 256),
		EvalTimeout:           getEnvAsDuration("ALERT_EVAL_TIMEOUT", "10s"),
		CooldownPruneInterval: getEnvAsDuration("COOLDOWN_PRUNE_INTERVAL", "1m"),
		SeedFile:              getEnv("ALERT_RULES_SEED_FILE", ""),
	}
}

func loadWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		IdleTimeout:    getEnvAsDuration("WS_IDLE_TIMEOUT", "60s"),
		PongTimeout:    getEnvAsDuration("WS_PONG_TIMEOUT", "30s"),
		WriteWait:      getEnvAsDuration("WS_WRITE_WAIT", "10s"),
		SendBuffer:     getEnvAsInt("WS_SEND_BUFFER", 256),
		MaxMessageSize: int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 4096)),
	}
}

func loadHostsConfig() HostsConfig {
	return HostsConfig{
		StaleAfter:    getEnvAsDuration("HOST_STALE_AFTER", "3m"),
		SweepInterval: getEnvAsDuration("HOST_SWEEP_INTERVAL", "1m"),
	}
}

func loadKubernetesConfig() KubernetesConfig {
	return KubernetesConfig{
		Enabled:      getEnvAsBool("K8S_ENABLED", false),
		PollInterval: getEnvAsDuration("K8S_POLL_INTERVAL", "30s"),
		PollTimeout:  getEnvAsDuration("K8S_POLL_TIMEOUT", "20s"),
	}
}

func loadRetentionConfig() RetentionConfig {
	return RetentionConfig{
		MetricsDays: getEnvAsInt("METRICS_RETENTION_DAYS", 30),
		Interval:    getEnvAsDuration("RETENTION_INTERVAL", "24h"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

func (c *Config) GetMQTTBroker() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTT.Broker, c.MQTT.Port)
}

func (c *Config) Validate() error {
	var errors []string

	if c.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD cannot be empty")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}

	if c.MQTT.Enabled && (c.MQTT.Port < 1 || c.MQTT.Port > 65535) {
		errors = append(errors, "MQTT_PORT must be between 1 and 65535")
	}

	if c.Alerting.Workers < 1 {
		errors = append(errors, "ALERT_WORKERS must be at least 1")
	}

	if c.Alerting.QueueSize < 1 {
		errors = append(errors, "ALERT_QUEUE_SIZE must be at least 1")
	}

	if c.Alerting.RuleCacheTTL <= 0 {
		errors = append(errors, "RULE_CACHE_TTL must be positive")
	}

	if c.Alerting.DefaultCooldown < 0 {
		errors = append(errors, "DEFAULT_COOLDOWN cannot be negative")
	}

	if c.WebSocket.IdleTimeout <= 0 || c.WebSocket.PongTimeout <= 0 {
		errors = append(errors, "WS_IDLE_TIMEOUT and WS_PONG_TIMEOUT must be positive")
	}

	if c.WebSocket.SendBuffer < 1 {
		errors = append(errors, "WS_SEND_BUFFER must be at least 1")
	}

	if c.Retention.MetricsDays < 1 {
		errors = append(errors, "METRICS_RETENTION_DAYS must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) Print() {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║           Homelab Monitor - Configuration                ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Printf("Environment:     %s\n", c.Server.Environment)
	fmt.Printf("Server:          %s:%d\n", c.Server.Host, c.Server.Port)
	fmt.Printf("Database:        %s:%d/%s\n", c.Database.Host, c.Database.Port, c.Database.Database)
	if c.MQTT.Enabled {
		fmt.Printf("MQTT Broker:     %s:%d\n", c.MQTT.Broker, c.MQTT.Port)
	} else {
		fmt.Println("MQTT Broker:     disabled")
	}
	if c.NATS.Enabled() {
		fmt.Printf("NATS:            %s\n", c.NATS.URL)
	}
	fmt.Printf("Alert Workers:   %d (queue %d)\n", c.Alerting.Workers, c.Alerting.QueueSize)
	fmt.Printf("Rule Cache TTL:  %s\n", c.Alerting.RuleCacheTTL)
	fmt.Printf("Kubernetes:      %t\n", c.Kubernetes.Enabled)
	fmt.Println("──────────────────────────────────────────────────────────")
}
