package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type SettlementConfig struct {
	Env          string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer   `yaml:"http_server"`
	GRPCServer   `yaml:"grpc_server"`
	SettlementDB `yaml:"settlement_db"`
	Redis        `yaml:"redis"`
	LogConfig    `yaml:"log_config"`
	KafkaService `yaml:"kafka-service"`
	Webpay       `yaml:"webpay"`
	Security     `yaml:"security"`
	Queue        `yaml:"queue"`
	Mail         `yaml:"mail"`
	Tracing      `yaml:"tracing"`
	Admin        `yaml:"admin"`
}

type HTTPServer struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
	// PublicURL is where the gateway sends the purchaser back to.
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:8080"`
}

type GRPCServer struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"9090"`
}

type SettlementDB struct {
	Dsn            string `yaml:"dsn" env:"SETTLEMENT_DB_DSN" env-required:"true"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	AutoMigrate    bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"false"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
	LogOutput string `yaml:"log_output" env:"LOG_OUTPUT" env-default:"stdout"`
}

type KafkaService struct {
	Host  string `yaml:"host" env:"KAFKA_HOST"`
	Port  string `yaml:"port" env:"KAFKA_PORT" env-default:"9092"`
	Topic string `yaml:"topic" env:"KAFKA_TOPIC" env-default:"settlement-events"`
}

func (k KafkaService) Enabled() bool {
	return k.Host != ""
}

func (k KafkaService) Broker() string {
	return fmt.Sprintf("%s:%s", k.Host, k.Port)
}

type Webpay struct {
	BaseURL          string        `yaml:"base_url" env:"WEBPAY_BASE_URL" env-default:"https://webpay3gint.transbank.cl"`
	CommerceCode     string        `yaml:"commerce_code" env:"WEBPAY_COMMERCE_CODE" env-required:"true"`
	APIKey           string        `yaml:"api_key" env:"WEBPAY_API_KEY" env-required:"true"`
	Timeout          time.Duration `yaml:"timeout" env:"WEBPAY_TIMEOUT" env-default:"10s"`
	FailureThreshold int           `yaml:"failure_threshold" env-default:"5"`
	SuccessThreshold int           `yaml:"success_threshold" env-default:"2"`
	OpenTimeout      time.Duration `yaml:"open_timeout" env-default:"30s"`
}

type Security struct {
	SigningSecret    string        `yaml:"signing_secret" env:"SIGNING_SECRET" env-required:"true"`
	EncryptionSecret string        `yaml:"encryption_secret" env:"ENCRYPTION_SECRET" env-required:"true"`
	MaxAmount        int64         `yaml:"max_amount" env:"MAX_TRANSACTION_AMOUNT" env-default:"10000000"`
	AllowedDomains   []string      `yaml:"allowed_domains" env:"ALLOWED_DOMAINS" env-separator:","`
	MaxSkew          time.Duration `yaml:"max_skew" env-default:"30m"`
	ReplayTTL        time.Duration `yaml:"replay_ttl" env-default:"24h"`
	ReplayBackend    string        `yaml:"replay_backend" env:"REPLAY_BACKEND" env-default:"redis"`
	SweepInterval    time.Duration `yaml:"sweep_interval" env-default:"1h"`
}

type Queue struct {
	Name            string        `yaml:"name" env:"QUEUE_NAME" env-default:"settlement:queue"`
	PollInterval    time.Duration `yaml:"poll_interval" env:"QUEUE_POLL_INTERVAL" env-default:"1m"`
	BatchSize       int           `yaml:"batch_size" env:"QUEUE_BATCH_SIZE" env-default:"10"`
	MaxAttempts     int           `yaml:"max_attempts" env-default:"3"`
	Retention       time.Duration `yaml:"retention" env-default:"168h"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env-default:"168h"`
}

type Mail struct {
	Host           string        `yaml:"host" env:"SMTP_HOST"`
	Port           int           `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username       string        `yaml:"username" env:"SMTP_USERNAME"`
	Password       string        `yaml:"password" env:"SMTP_PASSWORD"`
	From           string        `yaml:"from" env:"MAIL_FROM" env-default:"no-reply@localhost"`
	AdminAddress   string        `yaml:"admin_address" env:"MAIL_ADMIN_ADDRESS"`
	AttachmentsDir string        `yaml:"attachments_dir" env:"ATTACHMENTS_DIR" env-default:"storage/courses"`
	SendTimeout    time.Duration `yaml:"send_timeout" env:"SMTP_SEND_TIMEOUT" env-default:"30s"`
}

type Tracing struct {
	Enabled        bool   `yaml:"enabled" env:"TRACING_ENABLED" env-default:"false"`
	JaegerEndpoint string `yaml:"jaeger_endpoint" env:"JAEGER_ENDPOINT" env-default:"http://localhost:14268/api/traces"`
	ServiceName    string `yaml:"service_name" env-default:"settlement-service"`
}

type Admin struct {
	Token string `yaml:"token" env:"ADMIN_TOKEN"`
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*SettlementConfig, error) {
	var cfg SettlementConfig
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if cfg.Queue.MaxAttempts <= 0 {
		return nil, fmt.Errorf("queue.max_attempts must be positive")
	}
	switch cfg.Security.ReplayBackend {
	case "redis", "memory":
	default:
		return nil, fmt.Errorf("security.replay_backend must be redis or memory, got %q", cfg.Security.ReplayBackend)
	}
	return &cfg, nil
}

func MustLoad() *SettlementConfig {

	// Processing env config variable and file
	configPath := os.Getenv("SETTLEMENT_CONFIG_PATH")

	if configPath == "" {
		log.Fatalf("SETTLEMENT_CONFIG_PATH was not found\n")
	}

	if _, err := os.Stat(configPath); err != nil {
		log.Fatalf("failed to find config file: %v\n", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	return cfg
}
