package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the stable cache key for a system prompt: the hex
// SHA-256 of its concatenated text blocks (spec §5.2 "Fingerprinting"). Two
// requests with byte-identical system prompts hash identically regardless
// of how many content blocks they were split across.
func Fingerprint(systemBlocks []string) string {
	h := sha256.New()
	for _, b := range systemBlocks {
		h.Write([]byte(b))
	}
	return hex.EncodeToString(h.Sum(nil))
}
