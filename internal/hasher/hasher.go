// Package hasher computes the xxHash64 content hashes stored in repair
// reports.
package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// ContentHash returns the hex xxHash64 of data truncated to hexLen
// characters (0 or >=16 keeps all 16).
func ContentHash(data []byte, hexLen int) string {
	return format(xxhash.Sum64(data), hexLen)
}

// ContentHashReader computes the same hash as ContentHash while streaming r.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return format(h.Sum64(), hexLen), nil
}

// FileHash hashes the file at path.
func FileHash(path string, hexLen int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ContentHashReader(f, hexLen)
}

func format(sum uint64, hexLen int) string {
	full := hex.EncodeToString(binary.BigEndian.AppendUint64(nil, sum))
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}
