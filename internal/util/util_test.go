package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveBaseName(t *testing.T) {
	tests := []struct {
		name      string
		timestamp time.Time
		want      string
	}{
		{
			name:      "morning backup",
			timestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			want:      "backup_20240115_103000",
		},
		{
			name:      "end of year",
			timestamp: time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
			want:      "backup_20241231_235959",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ArchiveBaseName(tt.timestamp)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirLayout(t *testing.T) {
	assert.Equal(t, "/var/lib/ragbak/backups", BackupsDir("/var/lib/ragbak"))
	assert.Equal(t, "/var/lib/ragbak/run", RunDir("/var/lib/ragbak"))
	assert.Equal(t, "/var/lib/ragbak/logs", LogDir("/var/lib/ragbak"))
}

func TestSetupDirectories(t *testing.T) {
	base := t.TempDir()
	dirs := []string{
		filepath.Join(base, "a"),
		filepath.Join(base, "b", "nested"),
	}
	require.NoError(t, SetupDirectories(dirs...))
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
