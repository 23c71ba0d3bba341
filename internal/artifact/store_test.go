package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var artifactNameRe = regexp.MustCompile(`^generated_\d{8}_\d{6}(_[0-9a-f]{8})?\.(musicxml|wav|svg)$`)

func TestSaveNamesArtifactsByTimestamp(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	path, err := store.SaveAt(ts, KindMusicXML, []byte("<score/>"))
	require.NoError(t, err)

	assert.Equal(t, "generated_20250314_150926.musicxml", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("<score/>"), data)
}

func TestSaveAtSameSecondGetsSuffix(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	first, err := store.SaveAt(ts, KindSVG, []byte("a"))
	require.NoError(t, err)
	second, err := store.SaveAt(ts, KindSVG, []byte("b"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Regexp(t, artifactNameRe, filepath.Base(first))
	assert.Regexp(t, artifactNameRe, filepath.Base(second))
}

func TestConcurrentSavesNeverCollide(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	const writers = 3
	paths := make([]string, writers)

	var g errgroup.Group
	for i := 0; i < writers; i++ {
		i := i
		g.Go(func() error {
			p, err := store.SaveAt(ts, KindWAV, []byte(fmt.Sprintf("track-%d", i)))
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool)
	for i, p := range paths {
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true

		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("track-%d", i), string(data))
	}
}

func TestListReturnsFilesSorted(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	_, err = store.SaveAt(time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), KindWAV, []byte("late"))
	require.NoError(t, err)
	_, err = store.SaveAt(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), KindMusicXML, []byte("early"))
	require.NoError(t, err)

	// Subdirectories are not artifacts.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "generated_20250101_100000.musicxml", entries[0].Name)
	assert.Equal(t, "generated_20250102_100000.wav", entries[1].Name)
	assert.Equal(t, int64(5), entries[0].Size)
}

func TestNewStoreRequiresDir(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}
