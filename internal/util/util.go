package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ArchiveBaseName returns the stem of a backup archive created at the
// given time, without a format extension.
func ArchiveBaseName(timestamp time.Time) string {
	return "backup_" + timestamp.Format("20060102_150405")
}

func BackupsDir(baseDir string) string {
	return filepath.Join(baseDir, "backups")
}

func RunDir(baseDir string) string {
	return filepath.Join(baseDir, "run")
}

func LogDir(baseDir string) string {
	return filepath.Join(baseDir, "logs")
}

func SetupDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
