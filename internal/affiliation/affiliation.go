// Package affiliation maintains the mapping between archive subpaths and
// the original source paths they were copied from. The mapping is
// persisted as affiliation.json at the archive root: keys are
// archive-relative paths, values are absolute source paths. Restore
// depends on this direction, so it is fixed here and nowhere else.
package affiliation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the index file at the archive root.
const FileName = "affiliation.json"

type Record struct {
	ArchivePath string
	SourcePath  string
}

// Index is an insertion-ordered set of records. A valid index is
// bijective: no archive path appears twice and no source path appears
// twice.
type Index struct {
	records  []Record
	bySource map[string]string
	byTarget map[string]string
}

// CorruptIndexError reports an index file that exists but cannot be
// trusted: invalid JSON, duplicate keys, or duplicate source values.
type CorruptIndexError struct {
	Path   string
	Reason string
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("corrupt affiliation index %s: %s", e.Path, e.Reason)
}

// IncompleteArchiveError reports an archive without an affiliation
// index, e.g. a staging tree left behind by a terminated backup.
type IncompleteArchiveError struct {
	ArchiveRoot string
}

func (e *IncompleteArchiveError) Error() string {
	return fmt.Sprintf("incomplete archive %s: %s is missing", e.ArchiveRoot, FileName)
}

func New() *Index {
	return &Index{
		bySource: make(map[string]string),
		byTarget: make(map[string]string),
	}
}

// Add appends a record. Both sides must be new to the index.
func (idx *Index) Add(archivePath, sourcePath string) error {
	if prev, ok := idx.byTarget[archivePath]; ok {
		return fmt.Errorf("duplicate archive path %s (already mapped from %s)", archivePath, prev)
	}
	if prev, ok := idx.bySource[sourcePath]; ok {
		return fmt.Errorf("duplicate source path %s (already mapped to %s)", sourcePath, prev)
	}
	idx.byTarget[archivePath] = sourcePath
	idx.bySource[sourcePath] = archivePath
	idx.records = append(idx.records, Record{ArchivePath: archivePath, SourcePath: sourcePath})
	return nil
}

func (idx *Index) Len() int { return len(idx.records) }

// Records returns the records in insertion order. The returned slice is
// shared; callers must not modify it.
func (idx *Index) Records() []Record { return idx.records }

// Source returns the original path recorded for an archive subpath.
func (idx *Index) Source(archivePath string) (string, bool) {
	src, ok := idx.byTarget[archivePath]
	return src, ok
}

// MarshalJSON writes the records as a JSON object in insertion order.
// encoding/json maps would reorder keys, so the object is built by hand.
func (idx *Index) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, r := range idx.records {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(r.ArchivePath)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.SourcePath)
		if err != nil {
			return nil, err
		}
		buf.WriteString("\n  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
	}
	if len(idx.records) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

// WriteFile persists the index at the archive root.
func (idx *Index) WriteFile(archiveRoot string) error {
	data, err := idx.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode affiliation index: %w", err)
	}
	path := filepath.Join(archiveRoot, FileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Load reads and validates the index of an archive root.
func Load(archiveRoot string) (*Index, error) {
	path := filepath.Join(archiveRoot, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &IncompleteArchiveError{ArchiveRoot: archiveRoot}
		}
		return nil, err
	}

	idx, err := decode(data)
	if err != nil {
		return nil, &CorruptIndexError{Path: path, Reason: err.Error()}
	}
	return idx, nil
}

// decode parses a JSON object token by token so that key order is kept
// and duplicate keys are caught rather than silently collapsed.
func decode(data []byte) (*Index, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("not valid JSON: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("not a JSON object")
	}

	idx := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("not valid JSON: %v", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("non-string key %v", keyTok)
		}

		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("value for %q is not a string: %v", key, err)
		}

		if err := idx.Add(key, value); err != nil {
			return nil, err
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("not valid JSON: %v", err)
	}
	return idx, nil
}
