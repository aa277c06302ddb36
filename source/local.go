package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalFetcher lists a directory on disk in name order. Download URLs are file:// URLs.
type LocalFetcher struct {
	path string
}

func NewLocalFetcher(path string) *LocalFetcher {
	return &LocalFetcher{path: path}
}

func (l *LocalFetcher) Fetch(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(l.path)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve directory, %s, %w", l.path, err)
	}

	dirs, err := os.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read directory, %s, %w", absPath, err)
	}

	entries := make([]Entry, 0, len(dirs))
	for _, dir := range dirs {
		entry := Entry{Name: dir.Name(), Type: "file"}
		if dir.IsDir() {
			entry.Type = "dir"
		} else {
			entry.DownloadURL = "file://" + filepath.ToSlash(filepath.Join(absPath, dir.Name()))
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
