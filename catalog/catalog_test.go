package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"testing/quick"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListAssignsSequentialIndices(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.mkv", "a.mp4", "c.mov")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Index != i+1 {
			t.Errorf("entry %d has index %d", i, e.Index)
		}
		if e.Path != JoinPath(dir, e.FileName) {
			t.Errorf("entry %q has path %q", e.FileName, e.Path)
		}
		if e.Size != 4 {
			t.Errorf("entry %q has size %d", e.FileName, e.Size)
		}
		if e.FileName == "nested" {
			t.Error("directory listed as a candidate")
		}
	}
}

func TestListEmptyDirectory(t *testing.T) {
	entries, err := List(t.TempDir())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", entries)
	}
}

func TestListMissingDirectory(t *testing.T) {
	if _, err := List(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestListFollowsFileSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "real.mp4")
	if err := os.WriteFile(target, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, filepath.Join(dir, "link.mp4")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(t.TempDir(), filepath.Join(dir, "dirlink")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].FileName != "link.mp4" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Size != 5 {
		t.Errorf("symlink size = %d, want target size 5", entries[0].Size)
	}
}

// Indices are exactly 1..N for any number of files
func TestListIndices_Property(t *testing.T) {
	f := func(n uint8) bool {
		count := int(n % 40)
		dir := t.TempDir()
		for i := 0; i < count; i++ {
			if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%03d", i)), nil, 0o644); err != nil {
				return false
			}
		}
		entries, err := List(dir)
		if err != nil || len(entries) != count {
			return false
		}
		for i, e := range entries {
			if e.Index != i+1 {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 50}); err != nil {
		t.Error(err)
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		dir, name, expected string
	}{
		{"./output", "clip.mp4", "./output/clip.mp4"},
		{"./output/", "clip.mp4", "./output/clip.mp4"},
		{"/abs/dir", "a b.mkv", "/abs/dir/a b.mkv"},
		{"", "clip.mp4", "clip.mp4"},
	}
	for _, tc := range tests {
		if got := JoinPath(tc.dir, tc.name); got != filepath.FromSlash(tc.expected) {
			t.Errorf("JoinPath(%q, %q) = %q, want %q", tc.dir, tc.name, got, tc.expected)
		}
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{" 12 \n", 12, false},
		{"-3", -3, false},
		{"abc", 0, true},
		{"", 0, true},
		{"1.5", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseIndex(tc.input)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidSelection) {
				t.Errorf("ParseIndex(%q) error = %v, want ErrInvalidSelection", tc.input, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseIndex(%q) = %d, %v; want %d", tc.input, got, err, tc.want)
		}
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "clip.mp4", "other.mp4")
	entries, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}

	e, err := Find(entries, 2)
	if err != nil {
		t.Fatalf("Find(2): %v", err)
	}
	if e.Index != 2 {
		t.Errorf("Find(2) returned index %d", e.Index)
	}

	for _, idx := range []int{0, 3, -1} {
		if _, err := Find(entries, idx); !errors.Is(err, ErrInvalidSelection) {
			t.Errorf("Find(%d) error = %v, want ErrInvalidSelection", idx, err)
		}
	}
}
