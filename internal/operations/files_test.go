package operations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLinesSkipsBlanksAndComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delete_companies.txt")
	content := `# staffing agencies
%teksystems%

%robert half%
  # inline-indented comment
  %cybercoders%
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"%teksystems%", "%robert half%", "%cybercoders%"}, lines)
}

func TestReadLinesMissingFile(t *testing.T) {
	_, err := ReadLines(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestWriteIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delete_ids.txt")
	ids := []string{"indeed_abc", "linkedin_def", "google_ghi"}
	require.NoError(t, WriteIDFile(path, ids))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, ids, lines)
}

func TestWriteIDFileOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delete_ids.txt")
	require.NoError(t, WriteIDFile(path, []string{"old_1", "old_2", "old_3"}))
	require.NoError(t, WriteIDFile(path, []string{"new_1"}))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"new_1"}, lines)
}
