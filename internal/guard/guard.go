// Package guard wraps every destructive store mutation with the mandatory
// confirm-then-backup policy. All maintenance commands share one Guard; the
// policy never diverges per command.
package guard

import (
	"errors"
	"fmt"

	"jobscraps/internal/backup"
	"jobscraps/internal/logger"
)

// ErrConfirmationDeclined aborts an operation with zero side effects when a
// human declines (or cannot be asked for) a safety prompt.
var ErrConfirmationDeclined = errors.New("confirmation declined")

// ConfirmFunc asks for explicit human approval. Implementations prompt on a
// terminal in the CLI and auto-answer in tests. A nil ConfirmFunc counts as
// declined: non-interactive invocations must not mutate production data.
type ConfirmFunc func(prompt string) bool

// BackupCreator is the slice of the backup store the guard needs.
type BackupCreator interface {
	Create(kind, reason string) (backup.Record, error)
	ApplyRetention() backup.RetentionResult
}

// Operation is one destructive command passing through the guard.
type Operation struct {
	// Reason tags the pre-operation backup (e.g. "clear_all").
	Reason string
	// Warning is shown before the confirmation prompt on production.
	Warning string
	// Execute performs the mutation and returns rows affected.
	Execute func() (int64, error)
}

// Guard enforces the safety interlock between destructive mutation and
// backups. Production targets get confirmation plus a backup attempt;
// disposable working copies skip both.
type Guard struct {
	Production bool
	Backups    BackupCreator
	Confirm    ConfirmFunc
	Log        logger.Logger

	// Notify receives user-facing progress lines; defaults to discard.
	Notify func(format string, args ...any)
}

func (g *Guard) say(format string, args ...any) {
	if g.Notify != nil {
		g.Notify(format, args...)
	}
}

func (g *Guard) confirmed(prompt string) bool {
	return g.Confirm != nil && g.Confirm(prompt)
}

// Run drives one destructive operation through
// start -> confirm -> backup -> execute.
func (g *Guard) Run(op Operation) (int64, error) {
	if g.Production {
		if op.Warning != "" {
			g.say("%s", op.Warning)
		}
		if !g.confirmed("Continue with production database operation? (y/n): ") {
			g.Log.Info("operation cancelled by user", "reason", op.Reason)
			return 0, fmt.Errorf("%s: %w", op.Reason, ErrConfirmationDeclined)
		}
		if err := g.backupBefore(op.Reason); err != nil {
			return 0, err
		}
	}

	rows, err := op.Execute()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op.Reason, err)
	}
	g.Log.Info("destructive operation completed", "reason", op.Reason, "rows", rows)
	g.say("Rows affected: %d", rows)
	return rows, nil
}

// backupBefore attempts the mandatory pre-operation backup. On failure the
// operator may explicitly override and proceed without one; declining aborts
// the whole operation before any mutation.
func (g *Guard) backupBefore(reason string) error {
	g.say("Creating backup before operation on production database...")
	record, err := g.Backups.Create(backup.KindAuto, reason)
	if err != nil {
		g.Log.Warn("pre-operation backup failed", "reason", reason, "error", err.Error())
		g.say("Backup failed: %v", err)
		if !g.confirmed("Continue with operation without backup? (y/n): ") {
			return fmt.Errorf("backup failed and %w", ErrConfirmationDeclined)
		}
		g.say("Proceeding without backup...")
		return nil
	}
	g.say("Backup created: %s (%.1f MB in %.1fs)",
		record.Filename, record.SizeMB, record.DurationSeconds)

	if res := g.Backups.ApplyRetention(); res.Action == backup.ActionCleanupPerformed {
		g.say("Backup retention: %d backups, %.2f GB", res.Remaining, res.TotalSizeGB)
	}
	return nil
}

// AfterScrape creates the automatic post-acquisition backup when new rows
// landed in production. Failures are logged only; the completed acquisition
// is never rolled back or blocked.
func (g *Guard) AfterScrape(newRows int) {
	if !g.Production {
		g.Log.Info("working database scraping completed, no backup needed")
		return
	}
	if newRows == 0 {
		g.Log.Info("no new jobs found, skipping post-scraping backup")
		return
	}
	g.say("Creating backup to capture %d new rows...", newRows)
	record, err := g.Backups.Create(backup.KindAuto, "post_scraping")
	if err != nil {
		g.Log.Warn("post-scraping backup failed", "error", err.Error())
		g.say("Post-scraping backup failed: %v", err)
		return
	}
	g.say("Post-scraping backup created: %s (%.1f MB)", record.Filename, record.SizeMB)
	if res := g.Backups.ApplyRetention(); res.Action == backup.ActionCleanupPerformed {
		g.say("Backup retention: %d backups, %.2f GB", res.Remaining, res.TotalSizeGB)
	}
}
