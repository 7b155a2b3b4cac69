package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"wavefront/internal/gpu"
	"wavefront/internal/sir"
)

// Digest identifies a translation input.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d was never computed.
func (d Digest) IsZero() bool { return d == Digest{} }

// FuncDigest hashes everything a translation depends on: the encoded
// function, the target and whether buffer accesses are bounds checked.
func FuncDigest(fn *sir.Func, target gpu.Target, robust bool) (Digest, error) {
	data, err := msgpack.Marshal(fn)
	if err != nil {
		return Digest{}, err
	}
	h := sha256.New()
	_, _ = h.Write([]byte(strconv.Itoa(int(cacheSchemaVersion))))
	_, _ = h.Write([]byte(target.String()))
	_, _ = h.Write([]byte(strconv.FormatBool(robust)))
	_, _ = h.Write(data)
	var out Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}
