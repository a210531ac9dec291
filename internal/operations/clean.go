package operations

import (
	"errors"
	"fmt"
	"time"

	"jobscraps/internal/dedupe"
	"jobscraps/internal/guard"
	"jobscraps/internal/store"
)

// ErrValidation flags bad operator input (dates, files); the sub-operation is
// skipped, not the whole run.
var ErrValidation = errors.New("validation failed")

const productionWarning = "WARNING: running a destructive operation against the PRODUCTION database.\n" +
	"Consider working-copy mode for data cleaning."

// ClearJobs removes every row from the job table.
func (o *Operator) ClearJobs() (int64, error) {
	return o.guard.Run(guard.Operation{
		Reason: "clear_all",
		Warning: "WARNING: about to CLEAR ALL DATA from the PRODUCTION database.\n" +
			"This permanently deletes every job record.",
		Execute: func() (int64, error) {
			if err := o.session.EnsureConnection(o.ctx); err != nil {
				return 0, err
			}
			return o.session.ClearAll(o.ctx)
		},
	})
}

// DeleteBeforeDate deletes jobs scraped before dateStr (YYYY-MM-DD).
func (o *Operator) DeleteBeforeDate(dateStr string) (int64, error) {
	cutoff, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return 0, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrValidation, dateStr)
	}
	return o.guard.Run(guard.Operation{
		Reason:  "delete_by_date",
		Warning: productionWarning,
		Execute: func() (int64, error) {
			if err := o.session.EnsureConnection(o.ctx); err != nil {
				return 0, err
			}
			return o.session.DeleteBefore(o.ctx, cutoff)
		},
	})
}

// DeleteByIDFile deletes the ids listed in the given file.
func (o *Operator) DeleteByIDFile(path string) (int64, error) {
	if path == "" {
		path = o.cfg.Clean.IDsFile
	}
	ids, err := ReadLines(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(ids) == 0 {
		o.log.Warn("no ids found", "path", path)
		return 0, nil
	}
	return o.guard.Run(guard.Operation{
		Reason:  "delete_by_ids",
		Warning: productionWarning,
		Execute: func() (int64, error) {
			if err := o.session.EnsureConnection(o.ctx); err != nil {
				return 0, err
			}
			return o.session.DeleteByIDs(o.ctx, ids)
		},
	})
}

// DeleteByCompanyFile deletes jobs whose company matches any pattern in path.
func (o *Operator) DeleteByCompanyFile(path string) (int64, error) {
	if path == "" {
		path = o.cfg.Clean.CompaniesFile
	}
	return o.deleteByField("company", "delete_by_company", path)
}

// DeleteByTitleFile deletes jobs whose title matches any pattern in path.
func (o *Operator) DeleteByTitleFile(path string) (int64, error) {
	if path == "" {
		path = o.cfg.Clean.TitlesFile
	}
	return o.deleteByField("title", "delete_by_title", path)
}

func (o *Operator) deleteByField(field, reason, path string) (int64, error) {
	patterns, err := ReadLines(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(patterns) == 0 {
		o.log.Warn("no patterns found", "path", path)
		return 0, nil
	}
	return o.guard.Run(guard.Operation{
		Reason:  reason,
		Warning: productionWarning,
		Execute: func() (int64, error) {
			if err := o.session.EnsureConnection(o.ctx); err != nil {
				return 0, err
			}
			return o.session.DeleteByField(o.ctx, field, patterns)
		},
	})
}

// DeleteBySalary deletes jobs below the compensation thresholds; zero values
// fall back to the configured defaults.
func (o *Operator) DeleteBySalary(minThr, maxThr float64) (int64, error) {
	if minThr == 0 {
		minThr = o.cfg.Clean.SalaryMin
	}
	if maxThr == 0 {
		maxThr = o.cfg.Clean.SalaryMax
	}
	return o.guard.Run(guard.Operation{
		Reason:  "delete_by_salary",
		Warning: productionWarning,
		Execute: func() (int64, error) {
			if err := o.session.EnsureConnection(o.ctx); err != nil {
				return 0, err
			}
			return o.session.DeleteBySalary(o.ctx, minThr, maxThr)
		},
	})
}

// ProcessDuplicates resolves duplicate groups. With apply=false it only
// persists the to-delete id set to the configured ids file for later
// execution; with apply=true it deletes the losers in one bulk operation.
// Either way the pass runs under the guard.
func (o *Operator) ProcessDuplicates(apply bool) (int64, error) {
	reason := "duplicates"
	return o.guard.Run(guard.Operation{
		Reason:  reason,
		Warning: productionWarning,
		Execute: func() (int64, error) {
			if err := o.session.EnsureConnection(o.ctx); err != nil {
				return 0, err
			}
			rows, err := o.session.DuplicateRows(o.ctx)
			if err != nil {
				return 0, err
			}
			groups, toDelete, toKeep := dedupe.Identify(rows)
			if len(groups) == 0 {
				o.log.Info("no duplicate groups found")
				return 0, nil
			}
			o.log.Info("duplicates identified",
				"groups", len(groups),
				"to_delete", len(toDelete),
				"to_keep", len(toKeep),
			)
			if !apply {
				if err := WriteIDFile(o.cfg.Clean.IDsFile, toDelete); err != nil {
					return 0, err
				}
				o.log.Info("delete id file written",
					"path", o.cfg.Clean.IDsFile, "ids", len(toDelete))
				return int64(len(toDelete)), nil
			}
			return o.session.DeleteByIDs(o.ctx, toDelete)
		},
	})
}

// dedupeDirect is the in-memory variant used by the working-copy auto-clean:
// no guard, no files.
func (o *Operator) dedupeDirect() (int64, error) {
	rows, err := o.session.DuplicateRows(o.ctx)
	if err != nil {
		return 0, err
	}
	_, toDelete, _ := dedupe.Identify(rows)
	if len(toDelete) == 0 {
		return 0, nil
	}
	return o.session.DeleteByIDs(o.ctx, toDelete)
}

// CreateWorkingCopy template-clones production into the working database and,
// when autoClean is set, runs the cleaning workflows against the copy with
// backups skipped throughout.
func (o *Operator) CreateWorkingCopy(autoClean bool, configPath string, confirm guard.ConfirmFunc) error {
	workingName := o.cfg.Database.Working.Name
	if err := o.session.CloneToWorking(o.ctx, workingName); err != nil {
		return err
	}
	o.log.Info("working copy ready", "database", workingName)
	if !autoClean {
		return nil
	}

	worker, err := NewOperator(o.ctx, configPath, store.KindWorking, confirm)
	if err != nil {
		return fmt.Errorf("open working copy: %w", err)
	}
	defer worker.Close()

	initial, err := worker.session.CountJobs(worker.ctx)
	if err != nil {
		return err
	}
	o.log.Info("auto-clean starting", "initial_jobs", initial)

	if _, err := worker.DeleteBySalary(0, 0); err != nil {
		return fmt.Errorf("auto-clean salary step: %w", err)
	}
	if _, err := worker.DeleteByCompanyFile(""); err != nil {
		o.log.Warn("auto-clean company step skipped", "error", err.Error())
	}
	if _, err := worker.DeleteByTitleFile(""); err != nil {
		o.log.Warn("auto-clean title step skipped", "error", err.Error())
	}
	removedDupes, err := worker.dedupeDirect()
	if err != nil {
		return fmt.Errorf("auto-clean dedupe step: %w", err)
	}

	final, err := worker.session.CountJobs(worker.ctx)
	if err != nil {
		return err
	}
	o.log.Info("auto-clean complete",
		"initial_jobs", initial,
		"final_jobs", final,
		"removed", initial-final,
		"duplicates_removed", removedDupes,
	)
	return nil
}
