package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"jobscraps/internal/logger"
)

const (
	// ManifestFilename is the manifest's name inside the backup directory.
	ManifestFilename = "backup_manifest.json"
	// TimestampLayout is the fixed-width, lexically sortable timestamp used
	// in artifact filenames and manifest fields.
	TimestampLayout = "20060102_150405"
)

// Record is the persisted metadata of one backup artifact. Records are
// created atomically with the artifact and never mutated in place.
type Record struct {
	Filename        string  `json:"filename"`
	Path            string  `json:"path"`
	SizeBytes       int64   `json:"size_bytes"`
	SizeMB          float64 `json:"size_mb"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
	Reason          string  `json:"reason"`
	Kind            string  `json:"backup_type"`
}

// Manifest indexes all known backup artifacts. Every field except Backups is
// derived and recomputed by Refresh on each mutation.
type Manifest struct {
	Backups      []Record `json:"backups"`
	TotalBackups int      `json:"total_backups"`
	TotalSizeGB  float64  `json:"total_size_gb"`
	OldestBackup string   `json:"oldest_backup,omitempty"`
	NewestBackup string   `json:"newest_backup,omitempty"`
	LastUpdated  string   `json:"last_updated,omitempty"`
	LastCleanup  string   `json:"last_cleanup,omitempty"`
}

// LoadManifest reads the manifest from dir. A missing or unparsable file is
// reported as found=false with an empty manifest: losing backup history must
// never block creating new backups.
func LoadManifest(dir string, log logger.Logger) (*Manifest, bool) {
	path := filepath.Join(dir, ManifestFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("manifest unreadable, treating as empty", "path", path, "error", err.Error())
		}
		return &Manifest{}, false
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		log.Warn("manifest corrupt, treating as empty", "path", path, "error", err.Error())
		return &Manifest{}, false
	}
	return &m, true
}

// Refresh recomputes every derived field from the record collection.
func (m *Manifest) Refresh() {
	m.TotalBackups = len(m.Backups)
	var total int64
	m.OldestBackup = ""
	m.NewestBackup = ""
	for _, r := range m.Backups {
		total += r.SizeBytes
		if m.OldestBackup == "" || r.Timestamp < m.OldestBackup {
			m.OldestBackup = r.Timestamp
		}
		if r.Timestamp > m.NewestBackup {
			m.NewestBackup = r.Timestamp
		}
	}
	m.TotalSizeGB = roundGB(total)
}

// SortOldestFirst orders the records by timestamp ascending.
func (m *Manifest) SortOldestFirst() {
	sort.Slice(m.Backups, func(i, j int) bool {
		return m.Backups[i].Timestamp < m.Backups[j].Timestamp
	})
}

// Save rewrites the whole manifest. It writes to a temporary file in the same
// directory and renames it into place so a crash mid-write cannot leave a
// truncated manifest behind.
func (m *Manifest) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure backup directory %q: %w", dir, err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFilename)
	tmp, err := os.CreateTemp(dir, ManifestFilename+".tmp-*")
	if err != nil {
		return fmt.Errorf("create manifest temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close manifest temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

func roundGB(bytes int64) float64 {
	gb := float64(bytes) / (1 << 30)
	return float64(int64(gb*100+0.5)) / 100
}
