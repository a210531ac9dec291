package operations

import (
	"fmt"

	"jobscraps/internal/backup"
	"jobscraps/internal/guard"
)

// ManualBackup creates an operator-requested backup and applies retention.
func (o *Operator) ManualBackup() (backup.Record, error) {
	record, err := o.backups.Create(backup.KindManual, "manual")
	if err != nil {
		return backup.Record{}, err
	}
	if res := o.backups.ApplyRetention(); res.Action == backup.ActionCleanupPerformed {
		o.log.Info("backup retention applied",
			"removed", res.RemovedCount,
			"remaining", res.Remaining,
			"total_size_gb", res.TotalSizeGB,
		)
	}
	return record, nil
}

// ListBackups returns the manifest records, newest first.
func (o *Operator) ListBackups() []backup.Record {
	return o.backups.List()
}

// RestoreBackup restores the named artifact after explicit confirmation. The
// session is closed for the duration and reconnected regardless of outcome;
// the manifest is untouched.
func (o *Operator) RestoreBackup(filename string, confirm guard.ConfirmFunc) error {
	if confirm == nil || !confirm("This will overwrite all current data. Are you sure? (y/n): ") {
		return fmt.Errorf("restore: %w", guard.ErrConfirmationDeclined)
	}
	if err := o.session.Close(); err != nil {
		o.log.Warn("close before restore", "error", err.Error())
	}
	restoreErr := o.backups.Restore(filename)
	if err := o.session.Reconnect(o.ctx); err != nil {
		o.log.Error("reconnect after restore failed", "error", err.Error())
		if restoreErr == nil {
			return err
		}
	}
	return restoreErr
}

// TestBackup checks the named artifact for a recognizable dump signature.
func (o *Operator) TestBackup(filename string) bool {
	return o.backups.Verify(filename)
}

// CleanupBackups forces a retention pass.
func (o *Operator) CleanupBackups() backup.RetentionResult {
	return o.backups.ApplyRetention()
}
