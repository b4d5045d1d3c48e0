package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// HashAlgorithms is a list of supported hashing algorithms.
var HashAlgorithms = []string{"md5", "sha1", "sha256", "sha512", "blake3"}

// IsValidHashAlgo checks if the provided algorithm string is supported.
func IsValidHashAlgo(algo string) bool {
	for _, validAlgo := range HashAlgorithms {
		if strings.ToLower(algo) == validAlgo {
			return true
		}
	}
	return false
}

func newHash(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	case "blake3":
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

// GenerateHashFromReader hashes everything read from r using the specified algorithm.
func GenerateHashFromReader(r io.Reader, algo string) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// GenerateHash calculates the hash of a file using the specified algorithm.
func GenerateHash(filePath, algo string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return GenerateHashFromReader(file, algo)
}

// ParseDigest splits a release-asset digest of the form "sha256:<hex>".
func ParseDigest(digest string) (algo, sum string, err error) {
	algo, sum, ok := strings.Cut(strings.TrimSpace(digest), ":")
	if !ok || sum == "" {
		return "", "", fmt.Errorf("malformed digest %q", digest)
	}
	algo = strings.ToLower(algo)
	if !IsValidHashAlgo(algo) {
		return "", "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
	if _, err := hex.DecodeString(sum); err != nil {
		return "", "", fmt.Errorf("malformed digest %q: %w", digest, err)
	}
	return algo, strings.ToLower(sum), nil
}

// VerifyFile checks filePath against a digest of the form "sha256:<hex>".
func VerifyFile(filePath, digest string) error {
	algo, want, err := ParseDigest(digest)
	if err != nil {
		return err
	}
	got, err := GenerateHash(filePath, algo)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%s mismatch for %s: expected %s, got %s", algo, filePath, want, got)
	}
	return nil
}

// Key derives a short, filesystem-safe cache key from s.
func Key(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
