package list

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"ragbak/internal/compress"
	"ragbak/internal/config"
	"ragbak/internal/remote"
	"ragbak/internal/util"
)

type Info struct {
	Name        string `json:"name"`
	Format      string `json:"format"`
	SizeBytes   int64  `json:"size_bytes"`
	Modified    int64  `json:"modified,omitempty"`
	ModifiedStr string `json:"modified_str,omitempty"`
	Path        string `json:"path,omitempty"`
	S3Path      string `json:"s3_path,omitempty"`
	Blake3Hash  string `json:"blake3_hash,omitempty"`
}

type Output struct {
	Source   string `json:"source"`
	Archives []Info `json:"archives"`
	Summary  struct {
		TotalArchives  int   `json:"total_archives"`
		TotalSizeBytes int64 `json:"total_size_bytes"`
	} `json:"summary"`
}

// Run lists backup archives from the local backups directory, or from
// S3 when source is "s3", and writes the result as indented JSON.
func Run(ctx context.Context, cfg *config.Config, source string, out io.Writer) error {
	output := Output{
		Source:   source,
		Archives: []Info{},
	}

	var err error
	if source == "s3" {
		output.Archives, err = gatherRemote(ctx, cfg)
	} else {
		output.Archives, err = gatherLocal(util.BackupsDir(cfg.BaseDir))
	}
	if err != nil {
		return err
	}

	output.Summary.TotalArchives = len(output.Archives)
	for _, a := range output.Archives {
		output.Summary.TotalSizeBytes += a.SizeBytes
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

func gatherLocal(backupsDir string) ([]Info, error) {
	entries, err := os.ReadDir(backupsDir)
	if os.IsNotExist(err) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backups directory: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(backupsDir, entry.Name())
		algo, err := compress.Detect(path)
		if err != nil {
			// Not an archive; logs or other stray files live alongside.
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		size := fi.Size()
		if entry.IsDir() {
			size, err = dirSize(path)
			if err != nil {
				return nil, err
			}
		}

		infos = append(infos, Info{
			Name:        entry.Name(),
			Format:      string(algo),
			SizeBytes:   size,
			Modified:    fi.ModTime().Unix(),
			ModifiedStr: fi.ModTime().Format("2006-01-02 15:04:05"),
			Path:        path,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func gatherRemote(ctx context.Context, cfg *config.Config) ([]Info, error) {
	if !cfg.S3.Enabled {
		return nil, fmt.Errorf("S3 is not enabled in config")
	}

	backend, err := remote.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Region,
		cfg.S3.Prefix, cfg.S3.Endpoint, cfg.S3.StorageClass, cfg.S3RetryAttempts())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 backend: %w", err)
	}

	if err := backend.VerifyCredentials(ctx); err != nil {
		return nil, fmt.Errorf("AWS credentials verification failed: %w", err)
	}

	objects, err := backend.List(ctx, "archives")
	if err != nil {
		return nil, fmt.Errorf("failed to list archives from S3: %w", err)
	}

	infos := make([]Info, 0, len(objects))
	for _, obj := range objects {
		name := filepath.Base(obj.Key)
		algo, err := compress.Detect(name)
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:       name,
			Format:     string(algo),
			SizeBytes:  obj.Size,
			S3Path:     obj.Key,
			Blake3Hash: obj.Blake3,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to size %s: %w", root, err)
	}
	return total, nil
}

