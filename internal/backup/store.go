package backup

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"jobscraps/internal/config"
	"jobscraps/internal/logger"
)

// Backup kinds.
const (
	KindAuto   = "auto"
	KindManual = "manual"
)

// ArtifactSuffix is the only extension Verify will open.
const ArtifactSuffix = ".sql.gz"

// ErrBackupFailed indicates a backup artifact could not be produced.
var ErrBackupFailed = errors.New("backup creation failed")

// DumpRestorer produces and replays dump artifacts. Implemented by Dumper;
// tests substitute fakes.
type DumpRestorer interface {
	Dump(path string) (size int64, duration time.Duration, err error)
	Restore(path string) error
}

// Store manages backup artifacts on disk and the manifest that indexes them.
type Store struct {
	dir       string
	prefix    string
	retention config.RetentionConfig
	dumper    DumpRestorer
	log       logger.Logger

	now func() time.Time
}

// NewStore builds a Store over the configured backup directory.
func NewStore(cfg config.BackupConfig, dumper DumpRestorer, log logger.Logger) *Store {
	return &Store{
		dir:       cfg.Directory,
		prefix:    cfg.Prefix,
		retention: cfg.Retention,
		dumper:    dumper,
		log:       log,
		now:       time.Now,
	}
}

// Create produces a new backup artifact and records it in the manifest.
// kind is KindAuto or KindManual; reason is a short free-text tag carried in
// the filename and the manifest.
func (st *Store) Create(kind, reason string) (Record, error) {
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return Record{}, fmt.Errorf("%w: ensure directory %q: %v", ErrBackupFailed, st.dir, err)
	}

	timestamp := st.now().Format(TimestampLayout)
	name := st.prefix + "_" + timestamp + "_" + kind
	if reason != "" {
		name += "_" + reason
	}
	name += ArtifactSuffix
	path := filepath.Join(st.dir, name)

	st.log.Info("creating backup", "filename", name, "kind", kind, "reason", reason)
	size, duration, err := st.dumper.Dump(path)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	record := Record{
		Filename:        name,
		Path:            path,
		SizeBytes:       size,
		SizeMB:          float64(int64(float64(size)/(1<<20)*10+0.5)) / 10,
		DurationSeconds: float64(int64(duration.Seconds()*10+0.5)) / 10,
		Timestamp:       timestamp,
		Reason:          reason,
		Kind:            kind,
	}

	manifest, _ := LoadManifest(st.dir, st.log)
	manifest.Backups = append(manifest.Backups, record)
	manifest.Refresh()
	manifest.LastUpdated = st.now().Format(TimestampLayout)
	if err := manifest.Save(st.dir); err != nil {
		// The artifact exists and is usable; a stale manifest is the lesser
		// failure, matching the corruption-is-not-fatal policy.
		st.log.Warn("manifest update failed", "error", err.Error())
	}

	st.log.Info("backup created",
		"filename", name,
		"size_mb", record.SizeMB,
		"duration_s", record.DurationSeconds,
	)
	return record, nil
}

// Retention actions.
const (
	ActionNoManifest       = "no_manifest"
	ActionNoCleanupNeeded  = "no_cleanup_needed"
	ActionCleanupPerformed = "cleanup_performed"
	ActionError            = "error"
)

// RetentionResult reports the outcome of one retention pass.
type RetentionResult struct {
	Action       string
	RemovedCount int
	RemovedFiles []string
	Remaining    int
	TotalSizeGB  float64
	Message      string
}

// ApplyRetention evicts the oldest backups until the manifest is back under
// the configured caps: count above MaxCount or size above MaxSizeGB triggers
// eviction down to TargetCount, and eviction continues oldest-first while the
// total size still exceeds FloorSizeGB, even below TargetCount. The eviction
// set is finalized against the manifest totals before any file is deleted.
func (st *Store) ApplyRetention() RetentionResult {
	manifest, found := LoadManifest(st.dir, st.log)
	if !found {
		return RetentionResult{Action: ActionNoManifest, Message: "no backup manifest found"}
	}

	manifest.Refresh()
	count := len(manifest.Backups)
	sizeGB := manifest.TotalSizeGB

	r := st.retention
	if count <= r.MaxCount && sizeGB <= r.MaxSizeGB {
		return RetentionResult{
			Action:      ActionNoCleanupNeeded,
			Remaining:   count,
			TotalSizeGB: sizeGB,
		}
	}

	manifest.SortOldestFirst()

	toRemove := count - r.TargetCount
	if toRemove < 0 {
		toRemove = 0
	}
	if sizeGB > r.MaxSizeGB {
		running := sizeGB
		for i := 0; i < toRemove && i < count; i++ {
			running -= float64(manifest.Backups[i].SizeBytes) / (1 << 30)
		}
		for toRemove < count && running > r.FloorSizeGB {
			running -= float64(manifest.Backups[toRemove].SizeBytes) / (1 << 30)
			toRemove++
		}
	}

	removed := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		rec := manifest.Backups[i]
		if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
			// Manifest stays pre-attempt; files already deleted stay deleted.
			st.log.Error("retention could not delete artifact",
				"filename", rec.Filename, "error", err.Error())
			return RetentionResult{Action: ActionError, Message: err.Error(), RemovedFiles: removed}
		}
		removed = append(removed, rec.Filename)
		st.log.Info("removed old backup", "filename", rec.Filename)
	}

	manifest.Backups = manifest.Backups[toRemove:]
	manifest.Refresh()
	manifest.LastCleanup = st.now().Format(TimestampLayout)
	if err := manifest.Save(st.dir); err != nil {
		return RetentionResult{Action: ActionError, Message: err.Error(), RemovedFiles: removed}
	}

	return RetentionResult{
		Action:       ActionCleanupPerformed,
		RemovedCount: len(removed),
		RemovedFiles: removed,
		Remaining:    len(manifest.Backups),
		TotalSizeGB:  manifest.TotalSizeGB,
	}
}

// List returns all known backups, newest first.
func (st *Store) List() []Record {
	manifest, found := LoadManifest(st.dir, st.log)
	if !found {
		return nil
	}
	records := append([]Record(nil), manifest.Backups...)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	return records
}

// Restore replays the named artifact into the database. The manifest is not
// modified; callers are responsible for closing and reopening any live store
// session around the call.
func (st *Store) Restore(filename string) error {
	path := filepath.Join(st.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup file %q not found: %w", filename, err)
	}
	st.log.Info("restoring from backup", "filename", filename)
	if err := st.dumper.Restore(path); err != nil {
		return fmt.Errorf("restore from %q: %w", filename, err)
	}
	st.log.Info("restore completed", "filename", filename)
	return nil
}

// Verify reports whether the named artifact looks like a usable dump: it must
// carry the expected compressed suffix, and its first lines must contain a
// dump header or a CREATE TABLE statement.
func (st *Store) Verify(filename string) bool {
	if !strings.HasSuffix(filename, ArtifactSuffix) {
		st.log.Error("not a compressed SQL artifact", "filename", filename)
		return false
	}
	path := filepath.Join(st.dir, filename)
	f, err := os.Open(path)
	if err != nil {
		st.log.Error("backup file not found", "filename", filename, "error", err.Error())
		return false
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		st.log.Error("artifact is not valid gzip", "filename", filename, "error", err.Error())
		return false
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var head strings.Builder
	for i := 0; i < 10 && scanner.Scan(); i++ {
		head.WriteString(scanner.Text())
		head.WriteString("\n")
	}
	content := head.String()
	if strings.Contains(content, "PostgreSQL database dump") ||
		strings.Contains(content, "CREATE TABLE") {
		st.log.Info("backup file appears valid", "filename", filename)
		return true
	}
	st.log.Error("no dump signature in artifact", "filename", filename)
	return false
}

// Dir returns the backup directory.
func (st *Store) Dir() string { return st.dir }
