// Package metadata captures system package state alongside a backup.
// The collector is an interface so the archive builder can treat it as
// an opaque source of text lines.
package metadata

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

const (
	Dir            = "metadata"
	PackagesFile   = "packages.list"
	AptSourcesFile = "apt_sources.list"
)

type Collector interface {
	// Packages lists installed packages, one entry per line.
	Packages(ctx context.Context) ([]string, error)
	// AptSources lists the configured APT repositories.
	AptSources(ctx context.Context) ([]string, error)
}

// Snapshot holds the collected metadata for one backup run.
type Snapshot struct {
	Packages   []string
	AptSources []string
}

// Collect gathers a snapshot, degrading collection failures into a
// commented placeholder line so a backup never fails on metadata.
func Collect(ctx context.Context, c Collector) Snapshot {
	var snap Snapshot

	pkgs, err := c.Packages(ctx)
	if err != nil {
		snap.Packages = []string{fmt.Sprintf("# could not collect installed packages: %v", err)}
	} else {
		snap.Packages = pkgs
	}

	sources, err := c.AptSources(ctx)
	if err != nil {
		snap.AptSources = []string{fmt.Sprintf("# could not collect apt repositories: %v", err)}
	} else {
		snap.AptSources = sources
	}

	return snap
}

// AptCollector shells out to the Debian package tooling.
type AptCollector struct{}

// Packages returns the dpkg status lines of manually installed packages.
func (AptCollector) Packages(ctx context.Context) ([]string, error) {
	manual, err := aptMark(ctx, "showmanual")
	if err != nil {
		return nil, err
	}
	auto, err := aptMark(ctx, "showauto")
	if err != nil {
		return nil, err
	}

	autoSet := make(map[string]bool, len(auto))
	for _, pkg := range auto {
		autoSet[pkg] = true
	}
	manualSet := make(map[string]bool, len(manual))
	for _, pkg := range manual {
		if !autoSet[pkg] {
			manualSet[pkg] = true
		}
	}
	if len(manualSet) == 0 {
		return nil, fmt.Errorf("no manually installed packages found; not a Debian-based system?")
	}

	out, err := exec.CommandContext(ctx, "dpkg", "-l").Output()
	if err != nil {
		return nil, fmt.Errorf("dpkg -l failed: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "ii") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && manualSet[fields[1]] {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// AptSources concatenates /etc/apt/sources.list and every *.list file
// under /etc/apt/sources.list.d, each preceded by a header naming it.
func (AptCollector) AptSources(ctx context.Context) ([]string, error) {
	var lines []string

	if data, err := os.ReadFile("/etc/apt/sources.list"); err == nil {
		lines = append(lines, "### /etc/apt/sources.list")
		lines = append(lines, strings.Split(strings.TrimRight(string(data), "\n"), "\n")...)
	}

	lines = append(lines, "### /etc/apt/sources.list.d/")
	matches, err := filepath.Glob("/etc/apt/sources.list.d/*.list")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		lines = append(lines, "## "+path)
		lines = append(lines, strings.Split(strings.TrimRight(string(data), "\n"), "\n")...)
	}

	return lines, nil
}

func aptMark(ctx context.Context, mode string) ([]string, error) {
	out, err := exec.CommandContext(ctx, "apt-mark", mode).Output()
	if err != nil {
		return nil, fmt.Errorf("apt-mark %s failed: %w", mode, err)
	}
	var pkgs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			pkgs = append(pkgs, line)
		}
	}
	return pkgs, nil
}
