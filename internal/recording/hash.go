package recording

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainInput = "contracttape/input/v1"
	DomainName  = "contracttape/name/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashInput computes the content hash of a use-case input.
// Inputs that differ only in key order or Unicode normalization hash equally.
func HashInput(input any) (string, error) {
	canonical, err := MarshalCanonical(input)
	if err != nil {
		return "", fmt.Errorf("HashInput: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInput, canonical), nil
}

// HashName computes the content hash of a test name.
func HashName(name string) string {
	return hashWithDomain(DomainName, []byte(name))
}

// MustHashInput is like HashInput but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHashInput(input any) string {
	hash, err := HashInput(input)
	if err != nil {
		panic(err)
	}
	return hash
}
