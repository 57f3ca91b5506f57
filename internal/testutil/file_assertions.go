package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// FileAssertions provides utilities for asserting file system state in tests.
type FileAssertions struct {
	t       testing.TB
	baseDir string
}

// NewFileAssertions creates a new file assertions helper.
func NewFileAssertions(t testing.TB, baseDir string) *FileAssertions {
	return &FileAssertions{t: t, baseDir: baseDir}
}

// AssertFileExists validates that a file exists.
func (fa *FileAssertions) AssertFileExists(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, filepath.FromSlash(relativePath))
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		fa.t.Errorf("Expected file to exist: %s", relativePath)
	}
	return fa
}

// AssertFileNotExists validates that a file does not exist.
func (fa *FileAssertions) AssertFileNotExists(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, filepath.FromSlash(relativePath))
	if _, err := os.Stat(fullPath); err == nil {
		fa.t.Errorf("Expected file to not exist: %s", relativePath)
	}
	return fa
}

// AssertFileContains validates that a file contains expected content.
func (fa *FileAssertions) AssertFileContains(relativePath, expectedContent string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, filepath.FromSlash(relativePath))

	// #nosec G304 -- test helper, paths are controlled by test code
	content, err := os.ReadFile(fullPath)
	if err != nil {
		fa.t.Errorf("Failed to read file %s: %v", relativePath, err)
		return fa
	}
	if !strings.Contains(string(content), expectedContent) {
		fa.t.Errorf("Expected file %s to contain %q\nActual content:\n%s",
			relativePath, expectedContent, string(content))
	}
	return fa
}

// AssertFileCount validates the exact number of files directly inside a directory.
func (fa *FileAssertions) AssertFileCount(relativePath string, count int) *FileAssertions {
	fa.t.Helper()
	if got := len(fa.ListFiles(relativePath)); got != count {
		fa.t.Errorf("Expected %d files in %s, found %d: %v", count, relativePath, got, fa.ListFiles(relativePath))
	}
	return fa
}

// ListFiles returns the sorted names of files directly inside a directory.
func (fa *FileAssertions) ListFiles(relativePath string) []string {
	fa.t.Helper()
	entries, err := os.ReadDir(filepath.Join(fa.baseDir, filepath.FromSlash(relativePath)))
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files
}

// Tree returns every file beneath the base directory as slash paths mapped to their info.
func (fa *FileAssertions) Tree() map[string]fs.FileInfo {
	fa.t.Helper()
	out := map[string]fs.FileInfo{}
	_ = filepath.WalkDir(fa.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // a missing tree is an empty tree
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // vanished between listing and stat
		}
		rel, _ := filepath.Rel(fa.baseDir, p)
		out[filepath.ToSlash(rel)] = info
		return nil
	})
	return out
}

// Snapshot returns the contents of every file beneath the base directory.
func (fa *FileAssertions) Snapshot() map[string]string {
	fa.t.Helper()
	out := map[string]string{}
	for rel := range fa.Tree() {
		// #nosec G304 -- test helper, paths are controlled by test code
		data, err := os.ReadFile(filepath.Join(fa.baseDir, filepath.FromSlash(rel)))
		if err != nil {
			fa.t.Fatalf("Failed to read file %s: %v", rel, err)
		}
		out[rel] = string(data)
	}
	return out
}
