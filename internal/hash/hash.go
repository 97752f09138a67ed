package hash

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// BLAKE3File computes the BLAKE3 hash of a file
func BLAKE3File(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// VerifyFile checks a file against an expected BLAKE3 hash.
func VerifyFile(filename, expected string) error {
	actual, err := BLAKE3File(filename)
	if err != nil {
		return fmt.Errorf("failed to calculate BLAKE3: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("BLAKE3 mismatch for %s: expected %s, got %s", filename, expected, actual)
	}
	return nil
}
