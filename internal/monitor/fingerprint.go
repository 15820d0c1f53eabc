package monitor

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a compact, comparable summary of fetched content.
// The zero value means "absent": no baseline has been observed yet.
type Digest string

// IsZero reports whether no baseline has been recorded.
func (d Digest) IsZero() bool { return d == "" }

// Short returns a display-friendly prefix of the digest.
func (d Digest) Short() string {
	if len(d) <= 12 {
		return string(d)
	}
	return string(d[:12])
}

// Fingerprint reduces raw content to a digest. Deterministic, pure;
// distinct content reliably produces a distinct digest. No semantic
// normalization is applied: a byte change is a change.
func Fingerprint(content []byte) Digest {
	sum := sha256.Sum256(content)
	return Digest(hex.EncodeToString(sum[:]))
}
