package ingest

import (
	"os"
	"path/filepath"
	"strings"
)

// Discover lists the CSV files directly inside dir, sorted by name. Hidden
// entries and anything that is not a regular file are ignored; the
// extension match is case-insensitive.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &IOError{Op: "discover", Path: dir, Err: err}
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		path := filepath.Join(dir, name)
		// Stat rather than entry.Type so symlinks to files are followed.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}
