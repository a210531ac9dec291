package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Config represents the top-level YAML configuration file.
type Config struct {
	LogDir   string         `mapstructure:"log_dir"   yaml:"log_dir,omitempty"`
	Database DatabaseConfig `mapstructure:"database"  yaml:"database"`
	Backup   BackupConfig   `mapstructure:"backup"    yaml:"backup"`
	Vault    VaultConfig    `mapstructure:"vault"     yaml:"vault"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"    yaml:"scrape"`
	Clean    CleanConfig    `mapstructure:"clean"     yaml:"clean"`
}

// DBInstance holds connection settings for one PostgreSQL database.
type DBInstance struct {
	Host     string `mapstructure:"host"     yaml:"host"`
	Port     string `mapstructure:"port"     yaml:"port"`
	Name     string `mapstructure:"name"     yaml:"name"`
	User     string `mapstructure:"user"     yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
}

// DatabaseConfig groups the production and working databases plus
// connection-retry settings shared by both.
type DatabaseConfig struct {
	Production     DBInstance    `mapstructure:"production"      yaml:"production"`
	Working        DBInstance    `mapstructure:"working"         yaml:"working"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout,omitempty"`
	RetryAttempts  int           `mapstructure:"retry_attempts"  yaml:"retry_attempts,omitempty"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"     yaml:"retry_delay,omitempty"`
}

// BackupConfig contains backup artifact and retention options.
type BackupConfig struct {
	Directory      string        `mapstructure:"directory"       yaml:"directory"`
	Prefix         string        `mapstructure:"prefix"          yaml:"prefix,omitempty"`
	DumpTimeout    time.Duration `mapstructure:"dump_timeout"    yaml:"dump_timeout,omitempty"`
	RestoreTimeout time.Duration `mapstructure:"restore_timeout" yaml:"restore_timeout,omitempty"`
	Attempts       int           `mapstructure:"attempts"        yaml:"attempts,omitempty"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"     yaml:"retry_delay,omitempty"`

	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
}

// RetentionConfig specifies the backup eviction thresholds.
type RetentionConfig struct {
	MaxCount    int     `mapstructure:"max_count"     yaml:"max_count,omitempty"`
	TargetCount int     `mapstructure:"target_count"  yaml:"target_count,omitempty"`
	MaxSizeGB   float64 `mapstructure:"max_size_gb"   yaml:"max_size_gb,omitempty"`
	FloorSizeGB float64 `mapstructure:"floor_size_gb" yaml:"floor_size_gb,omitempty"`
}

// VaultConfig holds connection settings for HashiCorp Vault. When Address is
// empty, Vault lookup is disabled and the configured password is used as-is.
type VaultConfig struct {
	Address  string `mapstructure:"address"   yaml:"address,omitempty"`
	RoleID   string `mapstructure:"role_id"   yaml:"role_id,omitempty"`
	RoleName string `mapstructure:"role_name" yaml:"role_name,omitempty"`
	KVPath   string `mapstructure:"kv_path"   yaml:"kv_path,omitempty"`
}

// SearchConfig is one configured job search.
type SearchConfig struct {
	Name       string         `mapstructure:"name"       yaml:"name"`
	Enabled    bool           `mapstructure:"enabled"    yaml:"enabled"`
	Parameters map[string]any `mapstructure:"parameters" yaml:"parameters"`
}

// ScrapeConfig describes the acquisition collaborator and its searches.
type ScrapeConfig struct {
	Endpoint string         `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration  `mapstructure:"timeout"  yaml:"timeout,omitempty"`
	Searches []SearchConfig `mapstructure:"searches" yaml:"searches"`
	Global   map[string]any `mapstructure:"global"   yaml:"global,omitempty"`
}

// CleanConfig holds defaults for the data-cleaning commands.
type CleanConfig struct {
	SalaryMin     float64 `mapstructure:"salary_min"     yaml:"salary_min,omitempty"`
	SalaryMax     float64 `mapstructure:"salary_max"     yaml:"salary_max,omitempty"`
	CompaniesFile string  `mapstructure:"companies_file" yaml:"companies_file,omitempty"`
	TitlesFile    string  `mapstructure:"titles_file"    yaml:"titles_file,omitempty"`
	IDsFile       string  `mapstructure:"ids_file"       yaml:"ids_file,omitempty"`
}

// EnabledSearches returns the searches with enabled: true.
func (s ScrapeConfig) EnabledSearches() []SearchConfig {
	out := make([]SearchConfig, 0, len(s.Searches))
	for _, sc := range s.Searches {
		if sc.Enabled {
			out = append(out, sc)
		}
	}
	return out
}

// Load reads the configuration from the given YAML file using Viper and
// unmarshals into the Config struct, then applies defaults and validates.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read config %s: %v", ErrLoadConfig, path, err)
	}

	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	c.applyDefaults()
	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 30 * time.Second
	}
	if c.Database.RetryAttempts == 0 {
		c.Database.RetryAttempts = 3
	}
	if c.Database.RetryDelay == 0 {
		c.Database.RetryDelay = 5 * time.Second
	}
	if c.Backup.Prefix == "" {
		c.Backup.Prefix = "jobscraps"
	}
	if c.Backup.DumpTimeout == 0 {
		c.Backup.DumpTimeout = 300 * time.Second
	}
	if c.Backup.RestoreTimeout == 0 {
		c.Backup.RestoreTimeout = 600 * time.Second
	}
	if c.Backup.Attempts == 0 {
		c.Backup.Attempts = 3
	}
	if c.Backup.RetryDelay == 0 {
		c.Backup.RetryDelay = 5 * time.Second
	}
	if c.Backup.Retention.MaxCount == 0 {
		c.Backup.Retention.MaxCount = 48
	}
	if c.Backup.Retention.TargetCount == 0 {
		c.Backup.Retention.TargetCount = 40
	}
	if c.Backup.Retention.MaxSizeGB == 0 {
		c.Backup.Retention.MaxSizeGB = 4.8
	}
	if c.Backup.Retention.FloorSizeGB == 0 {
		c.Backup.Retention.FloorSizeGB = 4.5
	}
	if c.Scrape.Timeout == 0 {
		c.Scrape.Timeout = 5 * time.Minute
	}
	if c.Clean.SalaryMin == 0 {
		c.Clean.SalaryMin = 70000
	}
	if c.Clean.SalaryMax == 0 {
		c.Clean.SalaryMax = 90000
	}
	if c.Clean.CompaniesFile == "" {
		c.Clean.CompaniesFile = "configs/delete_companies.txt"
	}
	if c.Clean.TitlesFile == "" {
		c.Clean.TitlesFile = "configs/delete_titles.txt"
	}
	if c.Clean.IDsFile == "" {
		c.Clean.IDsFile = "configs/delete_ids.txt"
	}
}

func (c *Config) validate() error {
	if c.Database.Production.Host == "" || c.Database.Production.Name == "" {
		return fmt.Errorf("%w: database.production host and name are required", ErrValidateConfig)
	}
	if c.Backup.Directory == "" {
		return fmt.Errorf("%w: backup.directory is required", ErrValidateConfig)
	}
	r := c.Backup.Retention
	if r.TargetCount > r.MaxCount {
		return fmt.Errorf("%w: retention target_count %d exceeds max_count %d",
			ErrValidateConfig, r.TargetCount, r.MaxCount)
	}
	if r.FloorSizeGB > r.MaxSizeGB {
		return fmt.Errorf("%w: retention floor_size_gb %.2f exceeds max_size_gb %.2f",
			ErrValidateConfig, r.FloorSizeGB, r.MaxSizeGB)
	}
	return nil
}
