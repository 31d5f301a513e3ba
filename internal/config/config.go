package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
		// APIKeys maps caller name -> key. Empty map disables auth,
		// which is only sensible behind a private network.
		APIKeys   map[string]string `yaml:"apiKeys"`
		RateLimit float64           `yaml:"rateLimit"` // req/s per client
		RateBurst int               `yaml:"rateBurst"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Fortex struct {
		APIURL         string        `yaml:"apiUrl"`
		AuthToken      string        `yaml:"authToken"`
		SystemName     string        `yaml:"systemName"`
		RequestTimeout time.Duration `yaml:"requestTimeout"`
		UIURL          string        `yaml:"uiUrl"`
		UIUsername     string        `yaml:"uiUsername"`
		UIPassword     string        `yaml:"uiPassword"`
	} `yaml:"fortex"`

	Automation struct {
		Headless       bool          `yaml:"headless"`
		SessionFile    string        `yaml:"sessionFile"`
		ScreenshotDir  string        `yaml:"screenshotDir"`
		ActionTimeout  time.Duration `yaml:"actionTimeout"`
		AttemptTimeout time.Duration `yaml:"attemptTimeout"`
	} `yaml:"automation"`

	Agent struct {
		PollingInterval    time.Duration `yaml:"pollingInterval"`
		MaxConcurrentFixes int           `yaml:"maxConcurrentFixes"`
		RequireApproval    bool          `yaml:"requireApproval"`
		DryRun             bool          `yaml:"dryRun"`
		CompanyIDs         []string      `yaml:"companyIds"`
		SelectedDrivers    []string      `yaml:"selectedDrivers"`
		// ReviewOnlyKinds get the read-only log review walk instead of
		// their real strategy. Meant for validating a new tenant's page
		// structure before enabling repairs.
		ReviewOnlyKinds []string `yaml:"reviewOnlyKinds"`
	} `yaml:"agent"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Fortex.SystemName == "" {
		c.Fortex.SystemName = "zero"
	}
	if c.Fortex.RequestTimeout == 0 {
		c.Fortex.RequestTimeout = 30 * time.Second
	}
	if c.Automation.SessionFile == "" {
		c.Automation.SessionFile = "./automation_data/session_state.json"
	}
	if c.Automation.ScreenshotDir == "" {
		c.Automation.ScreenshotDir = "./screenshots"
	}
	if c.Automation.ActionTimeout == 0 {
		c.Automation.ActionTimeout = 5 * time.Second
	}
	if c.Automation.AttemptTimeout == 0 {
		// outer timeout harus >= jumlah semua timeout di dalamnya
		c.Automation.AttemptTimeout = 3 * time.Minute
	}
	if c.Agent.PollingInterval == 0 {
		c.Agent.PollingInterval = 5 * time.Minute
	}
	if c.Agent.MaxConcurrentFixes == 0 {
		c.Agent.MaxConcurrentFixes = 1
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 10
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 20
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}
