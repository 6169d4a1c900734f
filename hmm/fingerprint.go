package hmm

import (
	"bytes"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Fingerprint returns a hex-encoded blake3 hash of the container's
// canonical serialization. Two containers fingerprint identically exactly
// when their files would be byte-identical, which makes it a cheap check
// for EM convergence stalls and for deduplicating models across runs.
func Fingerprint(h Hmm) (string, error) {
	var buffer bytes.Buffer
	if err := h.WriteTo(&buffer); err != nil {
		return "", err
	}
	sum := blake3.Sum256(buffer.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
