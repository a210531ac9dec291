package backup

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscraps/internal/config"
	"jobscraps/internal/logger"
)

func writeStubTool(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub shell tools require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func testDumper(attempts int) *Dumper {
	return &Dumper{
		Instance: config.DBInstance{
			Host:     "localhost",
			Port:     "5432",
			Name:     "jobscraps",
			User:     "postgres",
			Password: "secret",
		},
		DumpTimeout:    10 * time.Second,
		RestoreTimeout: 10 * time.Second,
		Attempts:       attempts,
		RetryDelay:     time.Millisecond,
		Log:            logger.Global(),
	}
}

func TestDumpWritesArtifactAndReportsSize(t *testing.T) {
	// The stub finds the --file argument and writes a dump header to it.
	stub := writeStubTool(t, "pg_dump", `#!/bin/sh
while [ "$#" -gt 0 ]; do
  if [ "$1" = "--file" ]; then
    shift
    printf -- "-- PostgreSQL database dump\n" > "$1"
  fi
  shift
done
exit 0
`)
	d := testDumper(3)
	d.DumpTool = stub

	path := filepath.Join(t.TempDir(), "out.sql.gz")
	size, duration, err := d.Dump(path)
	require.NoError(t, err)
	assert.Positive(t, size)
	assert.Positive(t, duration)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PostgreSQL database dump")
}

func TestDumpExhaustsRetriesAndRemovesPartial(t *testing.T) {
	// The stub writes a partial artifact, then fails every attempt.
	stub := writeStubTool(t, "pg_dump", `#!/bin/sh
out=""
while [ "$#" -gt 0 ]; do
  if [ "$1" = "--file" ]; then
    shift
    out="$1"
  fi
  shift
done
printf "partial" > "$out"
exit 1
`)
	d := testDumper(3)
	d.DumpTool = stub

	path := filepath.Join(t.TempDir(), "out.sql.gz")
	_, _, err := d.Dump(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "after 3 attempts")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "partial dump must be removed")
}

func TestDumpSucceedsAfterTransientFailure(t *testing.T) {
	// The stub fails until a marker file exists, creating it on first run.
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran_once")
	stub := writeStubTool(t, "pg_dump", `#!/bin/sh
if [ ! -f "`+marker+`" ]; then
  touch "`+marker+`"
  exit 1
fi
while [ "$#" -gt 0 ]; do
  if [ "$1" = "--file" ]; then
    shift
    printf -- "-- PostgreSQL database dump\n" > "$1"
  fi
  shift
done
exit 0
`)
	d := testDumper(3)
	d.DumpTool = stub

	size, _, err := d.Dump(filepath.Join(dir, "out.sql.gz"))
	require.NoError(t, err)
	assert.Positive(t, size)
}

func TestDumpAttemptTimesOut(t *testing.T) {
	stub := writeStubTool(t, "pg_dump", "#!/bin/sh\nsleep 5\n")
	d := testDumper(1)
	d.DumpTool = stub
	d.DumpTimeout = 50 * time.Millisecond

	_, _, err := d.Dump(filepath.Join(t.TempDir(), "out.sql.gz"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRestorePassesPasswordViaEnvironment(t *testing.T) {
	// The stub records its PGPASSWORD and argv so the test can check that the
	// password never appears on the command line.
	dir := t.TempDir()
	captured := filepath.Join(dir, "captured")
	stub := writeStubTool(t, "psql", `#!/bin/sh
printf "%s\n%s\n" "$PGPASSWORD" "$*" > "`+captured+`"
exit 0
`)
	d := testDumper(1)
	d.RestoreTool = stub

	dump := filepath.Join(dir, "in.sql.gz")
	require.NoError(t, os.WriteFile(dump, []byte("dump"), 0o644))
	require.NoError(t, d.Restore(dump))

	data, err := os.ReadFile(captured)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "secret\n")
	assert.Contains(t, out, "-d jobscraps")
	assert.NotContains(t, out[len("secret\n"):], "secret", "password must not appear in argv")
}

func TestRestoreMissingDumpFile(t *testing.T) {
	d := testDumper(1)
	d.RestoreTool = "psql"

	err := d.Restore(filepath.Join(t.TempDir(), "absent.sql.gz"))
	assert.Error(t, err)
}
