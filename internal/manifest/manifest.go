// Package manifest reads the backup list file: one absolute path per
// line, # comments and blank lines ignored.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Entry struct {
	// Line is the 1-based line number in the list file.
	Line int
	Path string
}

// UnsupportedPatternError reports a list line that is not a plain
// absolute path.
type UnsupportedPatternError struct {
	File   string
	Line   int
	Text   string
	Reason string
}

func (e *UnsupportedPatternError) Error() string {
	return fmt.Sprintf("%s:%d: unsupported entry %q: %s", e.File, e.Line, e.Text, e.Reason)
}

// EnsureExists creates an empty list file (and its parent directory) if
// none exists yet. Returns true if the file was created.
func EnsureExists(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create manifest directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to create manifest: %w", err)
	}
	return true, f.Close()
}

// Read parses the list file into ordered entries. Duplicate paths keep
// their first occurrence. Read has no side effects; pair it with
// EnsureExists when auto-provisioning is wanted.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if strings.Contains(text, "*") {
			return nil, &UnsupportedPatternError{
				File: path, Line: lineNo, Text: text,
				Reason: "glob patterns are not supported",
			}
		}
		if !filepath.IsAbs(text) {
			return nil, &UnsupportedPatternError{
				File: path, Line: lineNo, Text: text,
				Reason: "path must be absolute",
			}
		}

		clean := filepath.Clean(text)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		entries = append(entries, Entry{Line: lineNo, Path: clean})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	return entries, nil
}
