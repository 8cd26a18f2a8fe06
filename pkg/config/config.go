package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       App       `yaml:"app"`
	Database  Database  `yaml:"database"`
	Allows    Allows    `yaml:"allows"`
	Gateway   Gateway   `yaml:"gateway"`
	Lifecycle Lifecycle `yaml:"lifecycle"`
}

type App struct {
	Name string `yaml:"name"`
	Port string `yaml:"port"`
	Host string `yaml:"host"`
	Env  string `yaml:"env"`
}

type Database struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	Name string `yaml:"name"`
}

type Allows struct {
	Methods []string `yaml:"methods"`
	Origins []string `yaml:"origins"`
	Headers []string `yaml:"headers"`
}

// Gateway addresses the remote messaging gateway.
type Gateway struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Integration string        `yaml:"integration"`
	Timeout     time.Duration `yaml:"timeout"`
	// NodeID seeds instance-name suffixes; replicas sharing a gateway need distinct ids.
	NodeID int64 `yaml:"node_id"`
}

// Lifecycle holds the retry and polling budgets of the connection manager.
type Lifecycle struct {
	QrRendererURL   string        `yaml:"qr_renderer_url"`
	QrWarmUp        time.Duration `yaml:"qr_warm_up"`
	QrAttempts      int           `yaml:"qr_attempts"`
	QrInterval      time.Duration `yaml:"qr_interval"`
	RefreshAttempts int           `yaml:"refresh_attempts"`
	LogoutSettle    time.Duration `yaml:"logout_settle"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxDuration time.Duration `yaml:"poll_max_duration"`
	Workers         int           `yaml:"workers"`
	ReconcileEvery  string        `yaml:"reconcile_schedule"`
}

const DefaultQrRendererURL = "https://api.qrserver.com/v1/create-qr-code/?size=300x300&data="

func InitConfig(path string) *Config {
	var configs Config
	if path == "" {
		path = "./config.yaml"
	}
	file_name, _ := filepath.Abs(path)
	yaml_file, _ := os.ReadFile(file_name)
	yaml.Unmarshal(yaml_file, &configs)

	// Override with environment variables if they exist (for Docker)
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		configs.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		configs.Database.Port = dbPort
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		configs.Database.User = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		configs.Database.Pass = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		configs.Database.Name = dbName
	}

	// Override app configuration with environment variables
	if appHost := os.Getenv("APP_HOST"); appHost != "" {
		configs.App.Host = appHost
	}
	if appPort := os.Getenv("APP_PORT"); appPort != "" {
		configs.App.Port = appPort
	}
	if appName := os.Getenv("APP_NAME"); appName != "" {
		configs.App.Name = appName
	}
	if appEnv := os.Getenv("APP_ENV"); appEnv != "" {
		configs.App.Env = appEnv
	}

	// Gateway credentials usually come from secrets, not the yaml file
	if gwURL := os.Getenv("GATEWAY_URL"); gwURL != "" {
		configs.Gateway.BaseURL = gwURL
	}
	if gwKey := os.Getenv("GATEWAY_API_KEY"); gwKey != "" {
		configs.Gateway.APIKey = gwKey
	}
	if nodeID := os.Getenv("GATEWAY_NODE_ID"); nodeID != "" {
		if id, err := cast.ToInt64E(nodeID); err == nil {
			configs.Gateway.NodeID = id
		}
	}
	if renderer := os.Getenv("QR_RENDERER_URL"); renderer != "" {
		configs.Lifecycle.QrRendererURL = renderer
	}

	configs.applyDefaults()
	return &configs
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "waconnect"
	}
	if c.App.Port == "" {
		c.App.Port = "8000"
	}
	if c.Gateway.Integration == "" {
		c.Gateway.Integration = "WHATSAPP-BAILEYS"
	}
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 15 * time.Second
	}
	if c.Gateway.NodeID <= 0 {
		c.Gateway.NodeID = 1
	}

	l := &c.Lifecycle
	if l.QrRendererURL == "" {
		l.QrRendererURL = DefaultQrRendererURL
	}
	if l.QrWarmUp <= 0 {
		l.QrWarmUp = 2500 * time.Millisecond
	}
	if l.QrAttempts <= 0 {
		l.QrAttempts = 24
	}
	if l.QrInterval <= 0 {
		l.QrInterval = 2 * time.Second
	}
	if l.RefreshAttempts <= 0 {
		l.RefreshAttempts = 12
	}
	if l.LogoutSettle <= 0 {
		l.LogoutSettle = time.Second
	}
	if l.PollInterval <= 0 {
		l.PollInterval = 3 * time.Second
	}
	if l.PollMaxDuration <= 0 {
		l.PollMaxDuration = 120 * time.Second
	}
	if l.Workers <= 0 {
		l.Workers = 256
	}
	if l.ReconcileEvery == "" {
		l.ReconcileEvery = "@every 5m"
	}
}
