package metadata

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCollector struct {
	packages   []string
	sources    []string
	packageErr error
	sourceErr  error
}

func (f fakeCollector) Packages(ctx context.Context) ([]string, error) {
	return f.packages, f.packageErr
}

func (f fakeCollector) AptSources(ctx context.Context) ([]string, error) {
	return f.sources, f.sourceErr
}

func TestCollect(t *testing.T) {
	snap := Collect(context.Background(), fakeCollector{
		packages: []string{"ii  curl  8.5.0  amd64"},
		sources:  []string{"### /etc/apt/sources.list", "deb http://deb.debian.org/debian trixie main"},
	})

	assert.Equal(t, []string{"ii  curl  8.5.0  amd64"}, snap.Packages)
	assert.Len(t, snap.AptSources, 2)
}

func TestCollectDegradesFailures(t *testing.T) {
	snap := Collect(context.Background(), fakeCollector{
		packageErr: fmt.Errorf("apt-mark not found"),
		sourceErr:  fmt.Errorf("permission denied"),
	})

	assert.Len(t, snap.Packages, 1)
	assert.Contains(t, snap.Packages[0], "# could not collect installed packages")
	assert.Contains(t, snap.Packages[0], "apt-mark not found")

	assert.Len(t, snap.AptSources, 1)
	assert.Contains(t, snap.AptSources[0], "# could not collect apt repositories")
}
