package compressor

import (
	"encoding/binary"

	"github.com/pierrec/lz4"
)

// Lz4Codec trades compression ratio for speed, useful when cmd_new output is
// large but cheap to re-derive, so a fast decode on the matching path
// matters more than a small Resource.data footprint.
//
// lz4.CompressBlock/UncompressBlock operate on raw blocks with no framing or
// length header, so Compress prepends a one-byte mode flag (0 = stored
// as-is, 1 = compressed) and, for the compressed case, a 4-byte
// little-endian original length UncompressBlock needs to size its
// destination buffer.
type Lz4Codec struct{}

func (Lz4Codec) Name() string { return "lz4" }

func (Lz4Codec) Compress(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, ErrIncompressible
	}
	if n == 0 || n >= len(src) {
		// CompressBlock returns n == 0 when the input doesn't shrink, and a
		// block that grows isn't worth keeping either; store it as-is.
		out := make([]byte, 1+len(src))
		out[0] = 0
		copy(out[1:], src)
		return out, nil
	}

	out := make([]byte, 5+n)
	out[0] = 1
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(src)))
	copy(out[5:], dst[:n])
	return out, nil
}

func (Lz4Codec) Decompress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return src, nil
	}
	switch src[0] {
	case 0:
		return src[1:], nil
	case 1:
		if len(src) < 5 {
			return nil, ErrIncompressible
		}
		origLen := binary.LittleEndian.Uint32(src[1:5])
		dst := make([]byte, origLen)
		n, err := lz4.UncompressBlock(src[5:], dst)
		if err != nil {
			return nil, ErrIncompressible
		}
		return dst[:n], nil
	default:
		return nil, ErrIncompressible
	}
}
