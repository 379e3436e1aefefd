// Package checksum fingerprints dataset files and cached event payloads so
// reloads and refreshes can tell whether anything actually changed.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// JSON encodes v and returns the encoding together with its digest.
func JSON(v any) ([]byte, string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return data, Sum(data), nil
}
