package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"jobscraps/internal/config"
	"jobscraps/internal/logger"
)

var (
	// ErrToolFailed indicates the external dump/restore tool exhausted its
	// retry budget.
	ErrToolFailed = errors.New("external tool failed")
	// ErrTimeout marks a single attempt that exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// Dumper invokes pg_dump and psql as subprocesses with bounded timeouts and
// a fixed retry budget. The database password travels via the subprocess
// environment, never argv.
type Dumper struct {
	Instance       config.DBInstance
	DumpTimeout    time.Duration
	RestoreTimeout time.Duration
	Attempts       int
	RetryDelay     time.Duration
	Log            logger.Logger

	// Tool names are overridable so tests can substitute stubs.
	DumpTool    string
	RestoreTool string
}

// NewDumper builds a Dumper for the given database from backup settings.
func NewDumper(inst config.DBInstance, cfg config.BackupConfig, log logger.Logger) *Dumper {
	return &Dumper{
		Instance:       inst,
		DumpTimeout:    cfg.DumpTimeout,
		RestoreTimeout: cfg.RestoreTimeout,
		Attempts:       cfg.Attempts,
		RetryDelay:     cfg.RetryDelay,
		Log:            log,
		DumpTool:       "pg_dump",
		RestoreTool:    "psql",
	}
}

// Dump writes a compressed SQL dump of the database to path. On success it
// returns the artifact size and wall-clock duration; on exhaustion any
// partial artifact is removed and ErrToolFailed is returned.
func (d *Dumper) Dump(path string) (int64, time.Duration, error) {
	args := []string{
		"-h", d.Instance.Host,
		"-p", d.Instance.Port,
		"-U", d.Instance.User,
		"-d", d.Instance.Name,
		"--compress=9",
		"--file", path,
	}

	start := time.Now()
	if err := d.runWithRetry(d.DumpTool, args, d.DumpTimeout); err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			d.Log.Warn("could not remove partial dump", "path", path, "error", rmErr.Error())
		}
		return 0, 0, err
	}
	duration := time.Since(start)

	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: dump reported success but artifact missing: %v", ErrToolFailed, err)
	}
	return info.Size(), duration, nil
}

// Restore replays the named dump file into the database.
func (d *Dumper) Restore(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup file %q not found: %w", path, err)
	}
	args := []string{
		"-h", d.Instance.Host,
		"-p", d.Instance.Port,
		"-U", d.Instance.User,
		"-d", d.Instance.Name,
		"-f", path,
		"--quiet",
	}
	return d.runWithRetry(d.RestoreTool, args, d.RestoreTimeout)
}

// runWithRetry runs one tool up to d.Attempts times, each attempt bounded by
// timeout. Attempt failures are logged; only exhaustion is surfaced.
func (d *Dumper) runWithRetry(tool string, args []string, timeout time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= d.Attempts; attempt++ {
		err := d.runOnce(tool, args, timeout)
		if err == nil {
			return nil
		}
		lastErr = err
		d.Log.Warn("external tool attempt failed",
			"tool", tool,
			"attempt", attempt,
			"error", err.Error(),
		)
		if attempt < d.Attempts {
			time.Sleep(d.RetryDelay)
		}
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", ErrToolFailed, tool, d.Attempts, lastErr)
}

func (d *Dumper) runOnce(tool string, args []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+d.Instance.Password)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	if err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("%v: %s", err, msg)
		}
		return err
	}
	return nil
}
