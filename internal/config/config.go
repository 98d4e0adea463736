package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

var ErrConfigPathIsEmpty = errors.New("config path is empty")

// ClientConfig configures the syncd daemon: the durable queue, connectivity
// probes, the replay engine and the event bus link.
type ClientConfig struct {
	App     `yaml:"app"`
	Logger  `yaml:"log"`
	Store   `yaml:"store"`
	Remote  `yaml:"remote"`
	Probe   `yaml:"probe"`
	Replay  `yaml:"replay"`
	BusLink `yaml:"bus_link"`
	Admin   `yaml:"admin"`
}

// GatewayConfig configures the syncgate server.
type GatewayConfig struct {
	App        `yaml:"app"`
	Logger     `yaml:"log"`
	Database   `yaml:"database"`
	Redis      `yaml:"redis"`
	HTTPServer `yaml:"http_server"`
	Kafka      `yaml:"kafka"`
}

type App struct {
	ServiceName string `yaml:"service_name"`
	Version     string `yaml:"version"`
}

type Logger struct {
	Level      string   `yaml:"level"`
	FormatJSON bool     `yaml:"format_json"`
	Rotation   Rotation `yaml:"rotation"`
}

type Rotation struct {
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

type Store struct {
	Path string `yaml:"path"`
}

type Remote struct {
	BaseURL   string        `yaml:"base_url"`
	AuthToken string        `yaml:"auth_token"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Probe struct {
	URL              string        `yaml:"url"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

type Replay struct {
	DrainInterval  time.Duration `yaml:"drain_interval"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	MaxTries       uint          `yaml:"max_tries"`
	RetryCeiling   int           `yaml:"retry_ceiling"`
}

type BusLink struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// Admin is the local HTTP surface UI collaborators enqueue through.
type Admin struct {
	Host    string  `yaml:"host"`
	Port    uint16  `yaml:"port"`
	Timeout Timeout `yaml:"timeout"`
}

type Database struct {
	Host      string    `yaml:"host"`
	Port      uint16    `yaml:"port"`
	User      string    `yaml:"user"`
	Password  string    `yaml:"password"`
	Name      string    `yaml:"name"`
	SSLMode   string    `yaml:"ssl_mode"`
	MaxConns  int32     `yaml:"max_conns"`
	MinConns  int32     `yaml:"min_conns"`
	Migration Migration `yaml:"migration"`
}

type Migration struct {
	Path      string `yaml:"path"`
	AutoApply bool   `yaml:"auto_apply"`
}

type Redis struct {
	Enable   bool   `yaml:"enable"`
	Host     string `yaml:"host"`
	Port     uint16 `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type HTTPServer struct {
	Host     string  `yaml:"host"`
	Port     uint16  `yaml:"port"`
	BasePath string  `yaml:"base_path"`
	Timeout  Timeout `yaml:"timeout"`
	CORS     CORS    `yaml:"cors"`
	JWT      JWT     `yaml:"jwt"`
}

type Timeout struct {
	Request time.Duration `yaml:"request"`
	Read    time.Duration `yaml:"read"`
	Write   time.Duration `yaml:"write"`
	Idle    time.Duration `yaml:"idle"`
}

type CORS struct {
	Enabled          bool          `yaml:"enabled"`
	AllowAllOrigins  bool          `yaml:"allow_all_origins"`
	AllowOrigins     []string      `yaml:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age"`
	AllowWebSockets  bool          `yaml:"allow_websockets"`
}

type JWT struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type Kafka struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	Producer Producer `yaml:"producer"`
}

type Producer struct {
	Name         string        `yaml:"name"`
	WorkerCount  int           `yaml:"worker_count"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

func MustLoadClient() *ClientConfig {
	var cfg ClientConfig
	if err := load(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

func MustLoadGateway() *GatewayConfig {
	var cfg GatewayConfig
	if err := load(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

func load(cfg any) error {
	path := fetchConfigPath()
	if path == "" {
		return ErrConfigPathIsEmpty
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", path)
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	return nil
}

func MustPrintConfig(cfg any) {
	if err := PrintConfig(cfg); err != nil {
		panic(err)
	}
}

func PrintConfig(cfg any) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	println(string(data))

	return nil
}

func fetchConfigPath() string {
	var result string

	flag.StringVar(&result, "config", "", "Path to config file")
	flag.Parse()

	if result == "" {
		result = os.Getenv("CONFIG_PATH")
	}

	return result
}
