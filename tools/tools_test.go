package tools

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ecopia-map/globe_tiler/internal/tiler"
)

func writeEmpty(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0666); err != nil {
		t.Fatal(err)
	}
}

func TestGetImageFilesToLoad(t *testing.T) {
	root := t.TempDir()
	writeEmpty(t, filepath.Join(root, "Front_0.png"))
	writeEmpty(t, filepath.Join(root, "Back_1.JPG"))
	writeEmpty(t, filepath.Join(root, "notes.txt"))
	writeEmpty(t, filepath.Join(root, "nested", "Top_2.webp"))

	tests := []struct {
		recursive bool
		want      []string
	}{
		{false, []string{"Back_1.JPG", "Front_0.png"}},
		{true, []string{"Back_1.JPG", "Front_0.png", "Top_2.webp"}},
	}

	for _, tt := range tests {
		opts := &tiler.TilerOptions{
			TilerLoadImageryOptions: &tiler.TilerLoadImageryOptions{Input: root, Recursive: tt.recursive},
		}
		files, err := NewStandardFileFinder().GetImageFilesToLoad(opts)
		if err != nil {
			t.Fatal(err)
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, filepath.Base(f))
		}
		sort.Strings(names)
		if len(names) != len(tt.want) {
			t.Fatalf("recursive=%v: got %v, want %v", tt.recursive, names, tt.want)
		}
		for i := range names {
			if names[i] != tt.want[i] {
				t.Errorf("recursive=%v: got %v, want %v", tt.recursive, names, tt.want)
				break
			}
		}
	}
}

func TestGetImageFilesToLoadSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Left_3.png")
	writeEmpty(t, path)

	opts := &tiler.TilerOptions{TilerLoadImageryOptions: &tiler.TilerLoadImageryOptions{Input: path}}
	files, err := NewStandardFileFinder().GetImageFilesToLoad(opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != path {
		t.Errorf("got %v", files)
	}
}

func TestGetImageFilesToLoadMissingInput(t *testing.T) {
	opts := &tiler.TilerOptions{TilerLoadImageryOptions: &tiler.TilerLoadImageryOptions{Input: filepath.Join(t.TempDir(), "missing")}}
	if _, err := NewStandardFileFinder().GetImageFilesToLoad(opts); err == nil {
		t.Error("expected an error for a missing input")
	}
}

func TestGetRootFolderFromEnv(t *testing.T) {
	t.Setenv("GLOBE_TILER_WORKDIR", "/tmp/globe")
	if got := GetRootFolder(); got != "/tmp/globe" {
		t.Errorf("got %s", got)
	}
	if got := DefaultCachePath(); got != filepath.Join("/tmp/globe", "cache", "tiles.db") {
		t.Errorf("got %s", got)
	}
}
