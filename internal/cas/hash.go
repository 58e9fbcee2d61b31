package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

const hashBlockSize = 4096

// hashStream consumes r in hashBlockSize chunks and returns the hex-encoded
// SHA-256 of everything read, matching storage.py's calculate_file_hash
// streaming approach (never loads a whole file into memory to hash it).
func hashStream(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, hashBlockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashFile hashes the file at path without holding it open any longer than
// necessary.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashStream(f)
}
