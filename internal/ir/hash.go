package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainExpr = "eagerpath/expr/v1"
	DomainPath = "eagerpath/path/v1"
	DomainSpec = "eagerpath/spec/v1"
)

// Digest is a domain-separated SHA-256 digest.
type Digest [sha256.Size]byte

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Uint64 folds the digest to its first eight bytes, big endian.
// Used as a map key where a full digest is unnecessary.
func (d Digest) Uint64() uint64 {
	return binary.BigEndian.Uint64(d[:8])
}

// HashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) Digest {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// HashValue canonically marshals v and hashes it under domain.
func HashValue(domain string, v IRValue) (Digest, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return Digest{}, fmt.Errorf("hash %s: %w", domain, err)
	}
	return HashWithDomain(domain, canonical), nil
}

// MustHashValue is like HashValue but panics on error.
// Use only when v is known to be canonical-safe.
func MustHashValue(domain string, v IRValue) Digest {
	d, err := HashValue(domain, v)
	if err != nil {
		panic(err)
	}
	return d
}
