// Package artifact manages the output directory of generated files.
// The store is the only component that writes final artifacts; every
// other stage hands it bytes and gets back a unique path.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Supported artifact kinds map 1:1 to file extensions.
const (
	KindMusicXML = "musicxml"
	KindWAV      = "wav"
	KindSVG      = "svg"
)

// TimestampLayout is the artifact naming time format, exposed so
// callers can parse user-supplied naming overrides.
const TimestampLayout = "20060102_150405"

// Store writes timestamped artifacts into a single output directory.
// Concurrent invocations share nothing but the directory itself;
// uniqueness is guaranteed by O_EXCL creation plus a random suffix.
type Store struct {
	dir string
}

// Entry describes one file in the output directory.
type Entry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// NewStore creates the output directory if needed and returns a store
// bound to it.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("artifact store: output directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the output directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data as a new artifact named after the current time.
func (s *Store) Save(ext string, data []byte) (string, error) {
	return s.SaveAt(time.Now(), ext, data)
}

// SaveAt writes data under generated_<timestamp>.<ext>. When the plain
// name is taken (another invocation within the same second), a short
// random suffix keeps the name collision-free without any shared
// counter.
func (s *Store) SaveAt(ts time.Time, ext string, data []byte) (string, error) {
	base := fmt.Sprintf("generated_%s", ts.Format(TimestampLayout))

	path := filepath.Join(s.dir, base+"."+ext)
	if err := writeExclusive(path, data); err == nil {
		return path, nil
	} else if !os.IsExist(err) {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		suffix := uuid.NewString()[:8]
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%s.%s", base, suffix, ext))
		err := writeExclusive(path, data)
		if err == nil {
			return path, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("write artifact: %w", err)
		}
	}
	return "", fmt.Errorf("write artifact: could not find a free name for %s", base)
}

// List returns the directory contents sorted by name, files only.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list output dir: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:     info.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
