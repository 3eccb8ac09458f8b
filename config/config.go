package config

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SysConfig system config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location" env:"SHOPSYNC_LOCATION"`
	Workdir  string `yaml:"workdir" env:"SHOPSYNC_WORKDIR"`
	Mode     string `yaml:"mode" env:"SHOPSYNC_MODE"` // production or development
	Debug    bool   `yaml:"debug" env:"SHOPSYNC_DEBUG"`
	NodeID   int64  `yaml:"node_id" env:"SHOPSYNC_NODE_ID"` // snowflake node, 0 keeps the default
}

// WebConfig web server config
type WebConfig struct {
	Host      string `yaml:"host" env:"SHOPSYNC_WEB_HOST"`
	Port      int    `yaml:"port" env:"PORT"`
	BodyLimit string `yaml:"body_limit"`
	PublicURL string `yaml:"public_url" env:"SHOPSYNC_PUBLIC_URL"`
}

// DBConfig database config, type is one of postgres, sqlite or mongo
type DBConfig struct {
	Type     string `yaml:"type" env:"SHOPSYNC_DB_TYPE"`
	Dsn      string `yaml:"dsn" env:"SHOPSYNC_DB_DSN"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
	Seed     bool   `yaml:"seed" env:"SHOPSYNC_DB_SEED"`
}

// MongoConfig mongo document store config
type MongoConfig struct {
	URI            string        `yaml:"uri" env:"MONGO_URI"`
	Database       string        `yaml:"database" env:"SHOPSYNC_MONGO_DB"`
	MaxPoolSize    uint64        `yaml:"max_pool_size"`
	MinPoolSize    uint64        `yaml:"min_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LogConfig logger config
type LogConfig struct {
	Mode       string `yaml:"mode" env:"SHOPSYNC_LOG_MODE"`
	FileEnable bool   `yaml:"file_enable" env:"SHOPSYNC_LOG_FILE_ENABLE"`
	Filename   string `yaml:"filename" env:"SHOPSYNC_LOG_FILENAME"`
}

// CacheConfig product list cache config
type CacheConfig struct {
	ProductTTL time.Duration `yaml:"product_ttl" env:"SHOPSYNC_CACHE_TTL"`
	ListLimit  int           `yaml:"list_limit"`
	// FetchTimeout bounds the store read behind a cache miss
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// RealtimeConfig websocket channel config
type RealtimeConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	QueueSize    int           `yaml:"queue_size"`
}

// KeepAliveConfig self ping config, only active in production mode
type KeepAliveConfig struct {
	Enabled      bool          `yaml:"enabled" env:"SHOPSYNC_KEEPALIVE"`
	URL          string        `yaml:"url" env:"SHOPSYNC_KEEPALIVE_URL"`
	Interval     time.Duration `yaml:"interval"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Timeout      time.Duration `yaml:"timeout"`
}

// NotifyConfig owner notification config
type NotifyConfig struct {
	OwnerPhone string `yaml:"owner_phone" env:"SHOPSYNC_OWNER_PHONE"`
	OwnerEmail string `yaml:"owner_email" env:"SHOPSYNC_OWNER_EMAIL"`
	OnNewOrder bool   `yaml:"on_new_order" env:"SHOPSYNC_NOTIFY_ON_ORDER"`
	SMTPHost   string `yaml:"smtp_host" env:"SHOPSYNC_SMTP_HOST"`
	SMTPPort   int    `yaml:"smtp_port" env:"SHOPSYNC_SMTP_PORT"`
	SMTPUser   string `yaml:"smtp_user" env:"SHOPSYNC_SMTP_USER"`
	SMTPPass   string `yaml:"smtp_pass" env:"SHOPSYNC_SMTP_PASS"`
	SMTPFrom   string `yaml:"smtp_from" env:"SHOPSYNC_SMTP_FROM"`
}

// ClientConfig settings used by the watch command and the coordinator
type ClientConfig struct {
	ServerURL     string        `yaml:"server_url" env:"SHOPSYNC_SERVER_URL"`
	Timeout       time.Duration `yaml:"timeout"`
	Workers       int           `yaml:"workers"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	BackupFile    string        `yaml:"backup_file" env:"SHOPSYNC_BACKUP_FILE"`
}

type AppConfig struct {
	System    SysConfig       `yaml:"system"`
	Web       WebConfig       `yaml:"web"`
	Database  DBConfig        `yaml:"database"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Logger    LogConfig       `yaml:"logger"`
	Cache     CacheConfig     `yaml:"cache"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	KeepAlive KeepAliveConfig `yaml:"keepalive"`
	Notify    NotifyConfig    `yaml:"notify"`
	Client    ClientConfig    `yaml:"client"`
}

// IsProduction reports whether the system runs in production mode
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.System.Mode, "production")
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) initDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o755)
	_ = os.MkdirAll(c.GetDataDir(), 0o755)
}

// Addr returns the listen address of the web server
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// Default returns the built-in configuration
func Default() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "ShopSync",
			Location: "Asia/Kolkata",
			Workdir:  "/var/shopsync",
			Mode:     "development",
		},
		Web: WebConfig{
			Host:      "0.0.0.0",
			Port:      3001,
			BodyLimit: "50M",
		},
		Database: DBConfig{
			Type:     "sqlite",
			Dsn:      "shopsync.db",
			MaxConn:  20,
			IdleConn: 5,
		},
		Mongo: MongoConfig{
			Database:       "shopsync",
			MaxPoolSize:    20,
			MinPoolSize:    5,
			ConnectTimeout: 2 * time.Second,
		},
		Logger: LogConfig{
			Mode:     "development",
			Filename: "/var/shopsync/logs/shopsync.log",
		},
		Cache: CacheConfig{
			ProductTTL:   60 * time.Second,
			ListLimit:    100,
			FetchTimeout: 10 * time.Second,
		},
		Realtime: RealtimeConfig{
			PingInterval: 25 * time.Second,
			PingTimeout:  60 * time.Second,
			QueueSize:    256,
		},
		KeepAlive: KeepAliveConfig{
			Enabled:      true,
			Interval:     14 * time.Minute,
			InitialDelay: 2 * time.Minute,
			Timeout:      10 * time.Second,
		},
		Notify: NotifyConfig{
			OnNewOrder: true,
			SMTPPort:   587,
		},
		Client: ClientConfig{
			ServerURL:  "http://localhost:3001",
			Timeout:    10 * time.Second,
			Workers:    8,
			MaxRetries: 5,
		},
	}
}

// Load reads the yaml file at cfgfile (optional), then .env and the process
// environment. Later sources win.
func Load(cfgfile string) (*AppConfig, error) {
	cfg := Default()
	if cfgfile != "" {
		data, err := os.ReadFile(cfgfile)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgfile, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgfile, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load for command entry points
func MustLoad(cfgfile string) *AppConfig {
	cfg, err := Load(cfgfile)
	if err != nil {
		panic(err)
	}
	cfg.initDirs()
	return cfg
}

func (c *AppConfig) validate() error {
	c.Database.Type = strings.ToLower(strings.TrimSpace(c.Database.Type))
	switch c.Database.Type {
	case "postgres", "postgresql":
		c.Database.Type = "postgres"
	case "sqlite", "sqlite3":
		c.Database.Type = "sqlite"
	case "mongo", "mongodb":
		c.Database.Type = "mongo"
		if c.Mongo.URI == "" {
			return fmt.Errorf("database type mongo requires mongo.uri or MONGO_URI")
		}
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web port %d", c.Web.Port)
	}
	if c.Cache.ProductTTL <= 0 {
		c.Cache.ProductTTL = 60 * time.Second
	}
	if c.Cache.ListLimit <= 0 {
		c.Cache.ListLimit = 100
	}
	if c.KeepAlive.URL == "" {
		c.KeepAlive.URL = c.Web.PublicURL
	}
	return nil
}
