// Package catalog lists the candidate input files for one session cycle and
// assigns each a 1-based display index.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrInvalidSelection is returned when an index matches no catalog entry
var ErrInvalidSelection = errors.New("no file with that index")

// Entry is one listed input file. Entries are only built by List, so Index
// is always in 1..N and FileName is never empty.
type Entry struct {
	Index    int
	FileName string
	Path     string
	Size     int64
}

func newEntry(index int, dir, name string, size int64) (Entry, error) {
	if index < 1 {
		return Entry{}, fmt.Errorf("catalog index %d out of range", index)
	}
	if name == "" {
		return Entry{}, errors.New("catalog entry without a name")
	}
	return Entry{
		Index:    index,
		FileName: name,
		Path:     JoinPath(dir, name),
		Size:     size,
	}, nil
}

// JoinPath joins dir and name without cleaning dir, so "./input" stays
// "./input/clip.mp4" in messages rather than "input/clip.mp4".
func JoinPath(dir, name string) string {
	dir = strings.TrimRight(dir, `/\`)
	if dir == "" {
		return name
	}
	return dir + string(filepath.Separator) + name
}

// List returns the files in dir, indexed from 1 in directory-listing order.
// Directories are skipped; symlinks count when they resolve to a regular
// file. An empty directory yields an empty, non-nil slice and no error.
func List(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list input directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, ok := candidateInfo(dir, de)
		if !ok {
			continue
		}
		entry, err := newEntry(len(entries)+1, dir, de.Name(), info.Size())
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func candidateInfo(dir string, de os.DirEntry) (os.FileInfo, bool) {
	switch {
	case de.Type().IsRegular():
		info, err := de.Info()
		if err != nil {
			return nil, false
		}
		return info, true
	case de.Type()&os.ModeSymlink != 0:
		// Stat follows the link
		info, err := os.Stat(filepath.Join(dir, de.Name()))
		if err != nil || !info.Mode().IsRegular() {
			return nil, false
		}
		return info, true
	default:
		return nil, false
	}
}

// ParseIndex parses a user-entered decimal index
func ParseIndex(text string) (int, error) {
	text = strings.TrimSpace(text)
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidSelection, text)
	}
	return n, nil
}

// Find returns the entry with the given display index
func Find(entries []Entry, index int) (Entry, error) {
	for _, e := range entries {
		if e.Index == index {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %d", ErrInvalidSelection, index)
}
