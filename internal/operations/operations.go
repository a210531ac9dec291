// Package operations wires the configuration, store session, backup store,
// guard, and scraper into the commands the CLI exposes.
package operations

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"jobscraps/internal/backup"
	"jobscraps/internal/config"
	"jobscraps/internal/guard"
	"jobscraps/internal/logger"
	"jobscraps/internal/scrape"
	"jobscraps/internal/store"
	"jobscraps/internal/vault"
)

// Operator owns the per-run resources: one store session, one backup store,
// one guard. All operations run sequentially on the calling goroutine.
type Operator struct {
	ctx     context.Context
	cfg     config.Config
	session *store.Session
	backups *backup.Store
	guard   *guard.Guard
	log     logger.Logger
}

// NewOperator loads the config, resolves credentials, and opens the session
// against the database selected by kind. confirm supplies the interactive
// safety prompts; pass nil for non-interactive runs (prompts then abort).
func NewOperator(ctx context.Context, configPath string, kind store.Kind, confirm guard.ConfirmFunc) (*Operator, error) {
	var cfg config.Config
	if err := cfg.Load(configPath); err != nil {
		return nil, err
	}
	log, err := logger.Init(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}

	if err := resolvePasswords(ctx, &cfg, log); err != nil {
		return nil, err
	}
	if cfg.Database.Working.Name == "" {
		working := cfg.Database.Production
		working.Name = cfg.Database.Production.Name + "_working"
		cfg.Database.Working = working
	}

	session, err := store.Open(ctx, cfg.Database, kind, log)
	if err != nil {
		return nil, err
	}

	dumper := backup.NewDumper(session.Instance(), cfg.Backup, log)
	backups := backup.NewStore(cfg.Backup, dumper, log)

	warn := color.New(color.FgYellow)
	g := &guard.Guard{
		Production: session.IsProduction(),
		Backups:    backups,
		Confirm:    confirm,
		Log:        log,
		Notify: func(format string, args ...any) {
			warn.Fprintf(os.Stdout, format+"\n", args...)
		},
	}

	return &Operator{
		ctx:     ctx,
		cfg:     cfg,
		session: session,
		backups: backups,
		guard:   g,
		log:     log,
	}, nil
}

// resolvePasswords fills in database passwords from the environment and,
// when configured, Vault. Config-file passwords are the weakest source.
func resolvePasswords(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	if env := os.Getenv("PGPASSWORD"); env != "" {
		if cfg.Database.Production.Password == "" {
			cfg.Database.Production.Password = env
		}
		if cfg.Database.Working.Password == "" {
			cfg.Database.Working.Password = env
		}
	}
	if cfg.Vault.Address == "" {
		return nil
	}
	client, err := vault.NewClient(ctx, cfg.Vault.Address, cfg.Vault.RoleID, cfg.Vault.RoleName)
	if err != nil {
		return err
	}
	creds, err := client.DatabaseCredentials(ctx, cfg.Vault.KVPath)
	if err != nil {
		return fmt.Errorf("vault credentials: %w", err)
	}
	if creds.Username != "" {
		cfg.Database.Production.User = creds.Username
		cfg.Database.Working.User = creds.Username
	}
	cfg.Database.Production.Password = creds.Password
	cfg.Database.Working.Password = creds.Password
	log.Info("database credentials loaded from vault")
	return nil
}

// Config exposes the loaded configuration.
func (o *Operator) Config() config.Config { return o.cfg }

// Session exposes the store session.
func (o *Operator) Session() *store.Session { return o.session }

// Backups exposes the backup store.
func (o *Operator) Backups() *backup.Store { return o.backups }

// Close releases the store session.
func (o *Operator) Close() {
	if o.session != nil {
		_ = o.session.Close()
	}
}

// newScraper builds the acquisition client on demand; maintenance commands
// never need it.
func (o *Operator) newScraper() (scrape.Scraper, error) {
	return scrape.NewClient(o.cfg.Scrape, o.log)
}
