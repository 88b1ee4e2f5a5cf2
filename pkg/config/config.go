package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the archiver
type Config struct {
	// Target site
	Site SiteConfig `yaml:"site" json:"site"`

	// Login credentials (usually supplied through the environment)
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Browser automation settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Pagination crawl settings
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Post download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output tree settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Structure-mismatch retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Image fetch rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig holds site-specific configuration
type SiteConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// CredentialsConfig holds the login pair
type CredentialsConfig struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"password"`
	// Account selects a stored account when Email is empty
	Account string `yaml:"account" json:"account"`
}

// BrowserConfig holds browser controller configuration
type BrowserConfig struct {
	Headless    bool          `yaml:"headless" json:"headless"`
	ExecPath    string        `yaml:"exec_path" json:"exec_path"`
	UserDataDir string        `yaml:"user_data_dir" json:"user_data_dir"`
	WaitTimeout time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
}

// CrawlConfig holds pagination crawler configuration
type CrawlConfig struct {
	IDSetFile string        `yaml:"id_set_file" json:"id_set_file"`
	PageDelay time.Duration `yaml:"page_delay" json:"page_delay"`
	MaxPages  int           `yaml:"max_pages" json:"max_pages"`
}

// DownloadConfig holds content downloader configuration
type DownloadConfig struct {
	CompletionSetFile string        `yaml:"completion_set_file" json:"completion_set_file"`
	Delay             time.Duration `yaml:"delay" json:"delay"`
	ImageTimeout      time.Duration `yaml:"image_timeout" json:"image_timeout"`
	ImageAttempts     int           `yaml:"image_attempts" json:"image_attempts"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	TemplateFile  string `yaml:"template_file" json:"template_file"`
	// Sidecars writes a metadata JSON next to every archived post
	Sidecars bool `yaml:"sidecars" json:"sidecars"`
}

// RetryConfig holds the retry policy applied when a post page does not parse
type RetryConfig struct {
	InitialBackoff   time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	BackoffIncrement time.Duration `yaml:"backoff_increment" json:"backoff_increment"`
	MaxBackoff       time.Duration `yaml:"max_backoff" json:"max_backoff"`
	GraceThreshold   time.Duration `yaml:"grace_threshold" json:"grace_threshold"`
	// MaxAttempts of 0 retries until the page parses or is confirmed deleted
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:   "https://cy.cyworld.com",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Browser: BrowserConfig{
			Headless:    false,
			WaitTimeout: 10 * time.Second,
		},
		Crawl: CrawlConfig{
			IDSetFile: "contents_ids.txt",
			PageDelay: 5 * time.Second,
			MaxPages:  0,
		},
		Download: DownloadConfig{
			CompletionSetFile: "downloaded_ids.txt",
			Delay:             time.Second,
			ImageTimeout:      30 * time.Second,
			ImageAttempts:     3,
		},
		Output: OutputConfig{
			BaseDirectory: "./archive",
			TemplateFile:  "",
			Sidecars:      true,
		},
		Retry: RetryConfig{
			InitialBackoff:   10 * time.Second,
			BackoffIncrement: 10 * time.Second,
			MaxBackoff:       5 * time.Minute,
			GraceThreshold:   20 * time.Second,
			MaxAttempts:      0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         5,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Credentials keep the variable names the archive has always used
	if email := os.Getenv("CYWORLD_EMAIL"); email != "" {
		c.Credentials.Email = email
	}
	if password := os.Getenv("CYWORLD_PASSWORD"); password != "" {
		c.Credentials.Password = password
	}

	if baseURL := os.Getenv("CYARCHIVE_BASE_URL"); baseURL != "" {
		c.Site.BaseURL = baseURL
	}
	if outputDir := os.Getenv("CYARCHIVE_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if tmpl := os.Getenv("CYARCHIVE_TEMPLATE"); tmpl != "" {
		c.Output.TemplateFile = tmpl
	}
	if idFile := os.Getenv("CYARCHIVE_ID_FILE"); idFile != "" {
		c.Crawl.IDSetFile = idFile
	}
	if doneFile := os.Getenv("CYARCHIVE_DONE_FILE"); doneFile != "" {
		c.Download.CompletionSetFile = doneFile
	}
	if execPath := os.Getenv("CYARCHIVE_CHROME_PATH"); execPath != "" {
		c.Browser.ExecPath = execPath
	}
	if headless := os.Getenv("CYARCHIVE_HEADLESS"); headless != "" {
		val, err := strconv.ParseBool(headless)
		if err != nil {
			return fmt.Errorf("invalid CYARCHIVE_HEADLESS: %w", err)
		}
		c.Browser.Headless = val
	}
	if rpm := os.Getenv("CYARCHIVE_REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			return fmt.Errorf("invalid CYARCHIVE_REQUESTS_PER_MINUTE: %w", err)
		}
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if logLevel := os.Getenv("CYARCHIVE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"cyarchive.yaml",
		".cyarchive.yaml",
		".cyarchive.yml",
		filepath.Join(home, ".config", "cyarchive", "config.yaml"),
		filepath.Join(home, ".cyarchive.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Site.BaseURL == "" {
		errs = append(errs, errors.New("site base URL is required"))
	}

	if c.Browser.WaitTimeout <= 0 {
		errs = append(errs, errors.New("browser wait timeout must be positive"))
	}

	if c.Crawl.IDSetFile == "" {
		errs = append(errs, errors.New("identifier set file is required"))
	}
	if c.Crawl.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}
	if c.Crawl.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}

	if c.Download.CompletionSetFile == "" {
		errs = append(errs, errors.New("completion set file is required"))
	}
	if c.Download.CompletionSetFile == c.Crawl.IDSetFile {
		errs = append(errs, errors.New("identifier and completion set files must differ"))
	}
	if c.Download.ImageTimeout <= 0 {
		errs = append(errs, errors.New("image timeout must be positive"))
	}
	if c.Download.ImageAttempts < 1 {
		errs = append(errs, errors.New("image attempts must be at least 1"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.Retry.InitialBackoff <= 0 {
		errs = append(errs, errors.New("initial backoff must be positive"))
	}
	if c.Retry.BackoffIncrement < 0 {
		errs = append(errs, errors.New("backoff increment cannot be negative"))
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		errs = append(errs, errors.New("max backoff must not be below initial backoff"))
	}
	if c.Retry.GraceThreshold < 0 {
		errs = append(errs, errors.New("grace threshold cannot be negative"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max attempts cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// HasCredentials reports whether both halves of the login pair are present
func (c *Config) HasCredentials() bool {
	return c.Credentials.Email != "" && c.Credentials.Password != ""
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if tmpl, ok := flags["template"].(string); ok && tmpl != "" {
		c.Output.TemplateFile = tmpl
	}
	if idFile, ok := flags["id-file"].(string); ok && idFile != "" {
		c.Crawl.IDSetFile = idFile
	}
	if doneFile, ok := flags["done-file"].(string); ok && doneFile != "" {
		c.Download.CompletionSetFile = doneFile
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Credentials.Account = account
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages >= 0 {
		c.Crawl.MaxPages = maxPages
	}
	if pageDelay, ok := flags["page-delay"].(time.Duration); ok && pageDelay >= 0 {
		c.Crawl.PageDelay = pageDelay
	}
	if sidecars, ok := flags["sidecars"].(bool); ok {
		c.Output.Sidecars = sidecars
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".cyarchive.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
