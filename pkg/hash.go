package dirblockcheck

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"hash/crc32"
	"strings"

	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
)

// HashAlgorithm represents a whole-file digest algorithm configuration
type HashAlgorithm struct {
	Name    string
	Size    int
	NewFunc func() hash.Hash
}

// GetHashAlgorithm returns the hash algorithm configuration for the given name
func GetHashAlgorithm(name string) (*HashAlgorithm, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return &HashAlgorithm{
			Name:    "sha1",
			Size:    HashSizeSHA1,
			NewFunc: func() hash.Hash { return sha1.New() },
		}, nil
	case "sha256":
		return &HashAlgorithm{
			Name:    "sha256",
			Size:    HashSizeSHA256,
			NewFunc: func() hash.Hash { return sha256.New() },
		}, nil
	case "sha512":
		return &HashAlgorithm{
			Name:    "sha512",
			Size:    HashSizeSHA512,
			NewFunc: func() hash.Hash { return sha512.New() },
		}, nil
	case "blake3":
		return &HashAlgorithm{
			Name:    "blake3",
			Size:    HashSizeBLAKE3,
			NewFunc: func() hash.Hash { return blake3.New() },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", name)
	}
}

// EncodedLen returns the length of an encoded digest for this algorithm
func (ha *HashAlgorithm) EncodedLen() int {
	return base64.RawStdEncoding.EncodedLen(ha.Size)
}

// EncodeDigest renders raw digest bytes as unpadded standard base64
func EncodeDigest(sum []byte) string {
	return base64.RawStdEncoding.EncodeToString(sum)
}

// DecodeDigest parses a digest produced by EncodeDigest
func DecodeDigest(digest string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(digest)
}

// ChecksumAlgorithm represents a per-block checksum configuration.
// Block checksums only localize changes; they are not an integrity guarantee.
type ChecksumAlgorithm struct {
	Name string
	Sum  func(block []byte) uint32
}

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// GetChecksumAlgorithm returns the block checksum configuration for the given name
func GetChecksumAlgorithm(name string) (*ChecksumAlgorithm, error) {
	switch strings.ToLower(name) {
	case "crc32c":
		return &ChecksumAlgorithm{
			Name: "crc32c",
			Sum:  func(b []byte) uint32 { return crc32.Checksum(b, castagnoliTable) },
		}, nil
	case "crc32":
		return &ChecksumAlgorithm{
			Name: "crc32",
			Sum:  crc32.ChecksumIEEE,
		}, nil
	case "xxh3":
		return &ChecksumAlgorithm{
			Name: "xxh3",
			Sum:  func(b []byte) uint32 { return uint32(xxh3.Hash(b)) },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm: %s", name)
	}
}

// Algorithms pairs the digest and block checksum used for one snapshot
type Algorithms struct {
	Hash     *HashAlgorithm
	Checksum *ChecksumAlgorithm
}

// DefaultAlgorithms returns sha256 digests with crc32c block checksums
func DefaultAlgorithms() Algorithms {
	h, _ := GetHashAlgorithm("sha256")
	c, _ := GetChecksumAlgorithm("crc32c")
	return Algorithms{Hash: h, Checksum: c}
}

// ResolveAlgorithms looks up both algorithms by name, empty names select the defaults
func ResolveAlgorithms(hashName, checksumName string) (Algorithms, error) {
	algs := DefaultAlgorithms()
	if hashName != "" {
		h, err := GetHashAlgorithm(hashName)
		if err != nil {
			return Algorithms{}, err
		}
		algs.Hash = h
	}
	if checksumName != "" {
		c, err := GetChecksumAlgorithm(checksumName)
		if err != nil {
			return Algorithms{}, err
		}
		algs.Checksum = c
	}
	return algs, nil
}
