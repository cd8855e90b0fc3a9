// AngelaMos | 2026
// security.go

package core

import (
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

const pseudonymBytes = 8

// Pseudonymizer maps chat handles to stable opaque tokens so operational
// logs can correlate events without recording who sent them.
type Pseudonymizer struct {
	key []byte
}

func NewPseudonymizer(salt string) *Pseudonymizer {
	if salt == "" {
		return &Pseudonymizer{}
	}

	// blake2b accepts keys up to 64 bytes
	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}

	return &Pseudonymizer{key: key}
}

func (p *Pseudonymizer) Handle(handle int64) string {
	return p.String(strconv.FormatInt(handle, 10))
}

func (p *Pseudonymizer) String(value string) string {
	h, err := blake2b.New256(p.key)
	if err != nil {
		// unreachable: key length is bounded in NewPseudonymizer
		return "unknown"
	}

	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil)[:pseudonymBytes])
}
