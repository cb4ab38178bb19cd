// Package hash computes content fingerprints for change detection.
//
// Digests are rendered as "<algo>:<lowercase hex>". They identify content
// changes and are not meant for adversarial security.
package hash

import (
	"context"
	"crypto/md5"  //nolint:gosec // fingerprinting only
	"crypto/sha1" //nolint:gosec // fingerprinting only
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	gohash "hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// ChunkSize is the fixed read buffer used when streaming files.
const ChunkSize = 64 * 1024

// Algorithm names a fingerprint algorithm.
type Algorithm string

const (
	SHA256   Algorithm = "sha256"
	SHA1     Algorithm = "sha1"
	MD5      Algorithm = "md5"
	BLAKE3   Algorithm = "blake3"
	XXHash64 Algorithm = "xxhash64"
)

// Default is used when no algorithm is given.
const Default = SHA256

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, SHA1, MD5, BLAKE3, XXHash64}
}

// ParseAlgorithm validates s. An empty string selects Default.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return Default, nil
	}
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Algorithms() {
		if a == known {
			return a, nil
		}
	}
	return "", fserrors.ValidationError(fmt.Sprintf("unsupported hash algorithm %q", s), nil).
		WithDetail("algorithm", s).
		WithSuggestion("Use one of: sha256, sha1, md5, blake3, xxhash64")
}

func newHasher(a Algorithm) (gohash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil //nolint:gosec
	case MD5:
		return md5.New(), nil //nolint:gosec
	case BLAKE3:
		return blake3.New(), nil
	case XXHash64:
		return xxhash.New(), nil
	default:
		return nil, fserrors.ValidationError(fmt.Sprintf("unsupported hash algorithm %q", a), nil)
	}
}

func format(a Algorithm, h gohash.Hash) string {
	return string(a) + ":" + hex.EncodeToString(h.Sum(nil))
}

// HashBuffer fingerprints data in memory.
func HashBuffer(data []byte, a Algorithm) (string, error) {
	h, err := newHasher(a)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return format(a, h), nil
}

// HashReader streams r through the algorithm in ChunkSize pieces, checking ctx
// between chunks. A positive maxBytes aborts once more than maxBytes were read.
func HashReader(ctx context.Context, r io.Reader, a Algorithm, maxBytes int64) (string, error) {
	h, err := newHasher(a)
	if err != nil {
		return "", err
	}

	buf := make([]byte, ChunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return "", fserrors.HashError("hashing interrupted", err)
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if maxBytes > 0 && total > maxBytes {
				return "", fserrors.HashError(fmt.Sprintf("content exceeds %d bytes", maxBytes), nil)
			}
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", fserrors.HashError("read failed", rerr)
		}
	}
	return format(a, h), nil
}

// HashFile fingerprints the file at path. Memory use is bounded by ChunkSize
// regardless of file size.
func HashFile(ctx context.Context, path string, a Algorithm, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fserrors.HashError("open failed", err).WithDetail("path", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fserrors.HashError("stat failed", err).WithDetail("path", path)
	}
	if info.IsDir() {
		return "", fserrors.HashError("cannot hash a directory", nil).WithDetail("path", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return "", fserrors.HashError(fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), maxBytes), nil).
			WithDetail("path", path)
	}

	digest, err := HashReader(ctx, f, a, maxBytes)
	if err != nil {
		if fe, ok := err.(*fserrors.FsError); ok {
			return "", fe.WithDetail("path", path)
		}
		return "", err
	}
	return digest, nil
}
