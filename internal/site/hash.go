package site

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"

	"github.com/ochronus/goneocities/internal/services/neocities"
)

// HashBytes returns the lowercase hex SHA-1 of data, the digest the service
// reports as sha1_hash.
func HashBytes(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// HashString hashes the UTF-8 bytes of s.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// HashLocal hashes the contents of a local file.
func HashLocal(path string) (string, error) {
	data, err := readLocal(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// readLocal reads the whole file and closes it before returning.
func readLocal(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, neocities.LocalIOError("read "+path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, neocities.LocalIOError("read "+path, err)
	}
	return data, nil
}
