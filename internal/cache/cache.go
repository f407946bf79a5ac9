package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// VerdictKey derives a cache key for a verification request.
// The prompt document is byte-stable, so identical (sources, candidate) pairs
// checked with the same model and instructions share a key.
func VerdictKey(model, instructions, document string) string {
	h := sha256.New()
	for _, part := range []string{model, instructions, document} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "verifact:v1:verdict:" + hex.EncodeToString(h.Sum(nil))
}
