package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobscraps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
database:
  production:
    host: localhost
    port: "5432"
    name: jobscraps
    user: postgres
backup:
  directory: /var/backups/jobscraps
`

func TestLoadMinimalConfigAppliesDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Load(writeConfig(t, minimalYAML)))

	assert.Equal(t, "localhost", cfg.Database.Production.Host)
	assert.Equal(t, "jobscraps", cfg.Database.Production.Name)
	assert.Equal(t, 3, cfg.Database.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.Database.RetryDelay)

	assert.Equal(t, "jobscraps", cfg.Backup.Prefix)
	assert.Equal(t, 300*time.Second, cfg.Backup.DumpTimeout)
	assert.Equal(t, 600*time.Second, cfg.Backup.RestoreTimeout)
	assert.Equal(t, 3, cfg.Backup.Attempts)

	assert.Equal(t, 48, cfg.Backup.Retention.MaxCount)
	assert.Equal(t, 40, cfg.Backup.Retention.TargetCount)
	assert.Equal(t, 4.8, cfg.Backup.Retention.MaxSizeGB)
	assert.Equal(t, 4.5, cfg.Backup.Retention.FloorSizeGB)

	assert.Equal(t, 70000.0, cfg.Clean.SalaryMin)
	assert.Equal(t, 90000.0, cfg.Clean.SalaryMax)
	assert.Equal(t, "configs/delete_companies.txt", cfg.Clean.CompaniesFile)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
log_dir: /var/log/jobscraps
database:
  production:
    host: db.internal
    port: "5433"
    name: jobscraps
    user: scraper
    password: hunter2
  working:
    host: db.internal
    port: "5433"
    name: jobscraps_working
    user: scraper
  retry_attempts: 5
backup:
  directory: /srv/backups
  prefix: jsb
  dump_timeout: 120s
  retention:
    max_count: 10
    target_count: 8
    max_size_gb: 2.0
    floor_size_gb: 1.5
scrape:
  endpoint: https://scraper.internal/search
  searches:
    - name: denver
      enabled: true
      parameters:
        search_term: data engineer
        location: Denver, CO
    - name: broad
      enabled: false
      parameters:
        search_term: data engineer
clean:
  salary_min: 60000
  salary_max: 80000
`)

	var cfg Config
	require.NoError(t, cfg.Load(path))

	assert.Equal(t, "/var/log/jobscraps", cfg.LogDir)
	assert.Equal(t, "hunter2", cfg.Database.Production.Password)
	assert.Equal(t, "jobscraps_working", cfg.Database.Working.Name)
	assert.Equal(t, 5, cfg.Database.RetryAttempts)
	assert.Equal(t, "jsb", cfg.Backup.Prefix)
	assert.Equal(t, 120*time.Second, cfg.Backup.DumpTimeout)
	assert.Equal(t, 10, cfg.Backup.Retention.MaxCount)
	assert.Equal(t, 60000.0, cfg.Clean.SalaryMin)

	enabled := cfg.Scrape.EnabledSearches()
	require.Len(t, enabled, 1)
	assert.Equal(t, "denver", enabled[0].Name)
	assert.Equal(t, "Denver, CO", enabled[0].Parameters["location"])
}

func TestLoadMissingFile(t *testing.T) {
	var cfg Config
	err := cfg.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadConfig)
}

func TestLoadRejectsMissingProductionDatabase(t *testing.T) {
	var cfg Config
	err := cfg.Load(writeConfig(t, "backup:\n  directory: /srv/backups\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidateConfig)
}

func TestLoadRejectsMissingBackupDirectory(t *testing.T) {
	var cfg Config
	err := cfg.Load(writeConfig(t, `
database:
  production:
    host: localhost
    name: jobscraps
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidateConfig)
}

func TestLoadRejectsInvertedRetentionCounts(t *testing.T) {
	var cfg Config
	err := cfg.Load(writeConfig(t, minimalYAML+`
  retention:
    max_count: 5
    target_count: 10
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidateConfig)
}

func TestLoadRejectsInvertedRetentionSizes(t *testing.T) {
	var cfg Config
	err := cfg.Load(writeConfig(t, minimalYAML+`
  retention:
    max_size_gb: 1.0
    floor_size_gb: 2.0
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidateConfig)
}
