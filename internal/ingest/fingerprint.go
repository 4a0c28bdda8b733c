package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const fingerprintChunk = 1 << 20

// Fingerprint returns the lowercase hex SHA-256 of the file's raw bytes.
// The digest is the deduplication key: identical content under any name maps
// to the same value.
func Fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &IOError{Op: "fingerprint", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("fingerprint %s: %w", path, ErrNotAFile)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", &IOError{Op: "fingerprint", Path: path, Err: err}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, fingerprintChunk)); err != nil {
		return "", &IOError{Op: "fingerprint", Path: path, Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
