package resultset

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest returns the hex BLAKE3 digest of the compact canonical encoding of
// s. Equal sets have equal digests.
func Digest(s *Set) (string, error) {
	b, err := EncodeCompact(s)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
