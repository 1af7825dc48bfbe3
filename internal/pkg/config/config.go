// internal/pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath 指定配置文件路径的环境变量
const EnvConfigPath = "ORDER_SERVICE_CONFIG"

const (
	StorageMySQL  = "mysql"
	StorageRedis  = "redis"
	StockHTTP     = "http"
	StockRedis    = "redis"
	defaultConfig = "configs/order-service.yaml"
)

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Storage  StorageConfig  `yaml:"storage"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Redis    RedisConfig    `yaml:"redis"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Stock    StockConfig    `yaml:"stock"`
	Rules    RulesConfig    `yaml:"rules"`
}

type ServiceConfig struct {
	Name              string        `yaml:"name"`
	HTTPAddr          string        `yaml:"httpAddr"`
	ProcessingTimeout time.Duration `yaml:"processingTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	JaegerEndpoint string `yaml:"jaegerEndpoint"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	GroupID           string   `yaml:"groupId"`
	OrderCreatedTopic string   `yaml:"orderCreatedTopic"`
	NotificationTopic string   `yaml:"notificationTopic"`
	DeadLetterTopic   string   `yaml:"deadLetterTopic"`
	// WatchDeadLetters 为 true 时同时启动死信 topic 的日志消费者
	WatchDeadLetters bool `yaml:"watchDeadLetters"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
}

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// UpstreamConfig 是商品目录服务和支付网关的地址
type UpstreamConfig struct {
	ProductURL     string        `yaml:"productUrl"`
	PaymentURL     string        `yaml:"paymentUrl"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

type StockConfig struct {
	Backend string `yaml:"backend"`
}

// RulesConfig.Admission 是一个 CEL 表达式，为空时不做额外准入校验
type RulesConfig struct {
	Admission string `yaml:"admission"`
}

func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:              "order-service",
			HTTPAddr:          ":8081",
			ProcessingTimeout: 30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log:     LogConfig{Level: "info"},
		Tracing: TracingConfig{Enabled: true, JaegerEndpoint: "http://localhost:14268/api/traces"},
		Kafka: KafkaConfig{
			Brokers:           []string{"localhost:9092"},
			GroupID:           "order-service",
			OrderCreatedTopic: "order-created",
			NotificationTopic: "notifications",
			DeadLetterTopic:   "order-created-dlt",
		},
		Storage: StorageConfig{Driver: StorageMySQL},
		MySQL: MySQLConfig{
			Host:            "localhost",
			Port:            3306,
			User:            "root",
			Database:        "orders",
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Upstream: UpstreamConfig{
			ProductURL:     "http://localhost:8082",
			PaymentURL:     "http://localhost:8083",
			RequestTimeout: 5 * time.Second,
		},
		Stock: StockConfig{Backend: StockHTTP},
	}
}

// Load 读取 ORDER_SERVICE_CONFIG 指向的文件，文件不存在时使用默认值，最后应用环境变量覆盖。
func Load() (*Config, error) {
	return LoadFile(getEnv(EnvConfigPath, defaultConfig))
}

func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Service.HTTPAddr = getEnv("HTTP_ADDR", c.Service.HTTPAddr)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Tracing.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", c.Tracing.JaegerEndpoint)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.MySQL.Host = getEnv("MYSQL_HOST", c.MySQL.Host)
	c.MySQL.Port = getEnvInt("MYSQL_PORT", c.MySQL.Port)
	c.MySQL.User = getEnv("MYSQL_USER", c.MySQL.User)
	c.MySQL.Password = getEnv("MYSQL_PASSWORD", c.MySQL.Password)
	c.MySQL.Database = getEnv("MYSQL_DATABASE", c.MySQL.Database)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Upstream.ProductURL = getEnv("PRODUCT_SERVICE_URL", c.Upstream.ProductURL)
	c.Upstream.PaymentURL = getEnv("PAYMENT_SERVICE_URL", c.Upstream.PaymentURL)
	c.Stock.Backend = getEnv("STOCK_BACKEND", c.Stock.Backend)
	c.Rules.Admission = getEnv("ADMISSION_RULE", c.Rules.Admission)
}

func (c *Config) Validate() error {
	var problems []string
	if c.Service.ProcessingTimeout <= 0 {
		problems = append(problems, "service.processingTimeout must be positive")
	}
	if len(c.Kafka.Brokers) == 0 {
		problems = append(problems, "kafka.brokers is empty")
	}
	if c.Kafka.OrderCreatedTopic == "" {
		problems = append(problems, "kafka.orderCreatedTopic is empty")
	}
	switch c.Storage.Driver {
	case StorageMySQL:
		if c.MySQL.Host == "" || c.MySQL.Database == "" {
			problems = append(problems, "mysql.host and mysql.database are required")
		}
	case StorageRedis:
	default:
		problems = append(problems, "storage.driver must be mysql or redis, got "+strconv.Quote(c.Storage.Driver))
	}
	switch c.Stock.Backend {
	case StockHTTP, StockRedis:
	default:
		problems = append(problems, "stock.backend must be http or redis, got "+strconv.Quote(c.Stock.Backend))
	}
	if c.Upstream.ProductURL == "" || c.Upstream.PaymentURL == "" {
		problems = append(problems, "upstream.productUrl and upstream.paymentUrl are required")
	}
	if len(problems) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// NeedsRedis 表示当前配置是否需要 Redis 连接
func (c *Config) NeedsRedis() bool {
	return c.Storage.Driver == StorageRedis || c.Stock.Backend == StockRedis
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
