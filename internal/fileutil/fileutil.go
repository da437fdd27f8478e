// Package fileutil provides deterministic filesystem discovery helpers for
// working copies: sorted output, hidden directories and tool caches skipped.
package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// excludedDirs are never descended into. Hidden directories (leading dot)
// are excluded as well.
var excludedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
}

// FindMarkdown returns the markdown files under dir, relative to dir and
// sorted lexicographically. maxDepth limits recursion: 1 scans dir itself
// only, 0 means unlimited. A missing dir yields an empty result, not an
// error.
func FindMarkdown(dir string, maxDepth int) ([]string, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || excludedDirs[name] {
				return filepath.SkipDir
			}
			if maxDepth > 0 && strings.Count(rel, string(filepath.Separator))+1 >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if isMarkdown(d.Name()) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func isMarkdown(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
