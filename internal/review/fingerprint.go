// Package review implements the asynchronous code-review pipeline: content
// fingerprinting, prompt construction, provider orchestration with retries,
// and feedback validation.
package review

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a deterministic digest over (language, code). A NUL
// separator between the fields keeps distinct pairs from colliding on a
// naive concatenation ("go"+"od code" vs "good"+" code").
func Fingerprint(language, code string) string {
	h := sha256.New()
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(code))
	return hex.EncodeToString(h.Sum(nil))
}
