// Package checksum computes the content digests declared to the netdisk provider.
// The same algorithm is used for whole files and for individual chunks.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"io"
)

// Size is the length of a hex-encoded digest.
const Size = md5.Size * 2

// Empty is the digest of zero-length content.
const Empty = "d41d8cd98f00b204e9800998ecf8427e"

// Digest returns the lowercase hex MD5 of b.
func Digest(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// DigestReader streams r into the hash and returns the digest and the number of bytes read.
func DigestReader(r io.Reader) (string, int64, error) {
	hash := md5.New()
	n, err := io.Copy(hash, r)
	if err != nil {
		return "", n, err
	}

	return hex.EncodeToString(hash.Sum(nil)), n, nil
}

// Valid reports whether s looks like a digest produced by this package.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
