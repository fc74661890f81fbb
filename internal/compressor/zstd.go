package compressor

import (
	"github.com/klauspost/compress/zstd"
)

// ZstdCodec uses klauspost/compress's pure-Go zstd implementation, keeping
// this daemon entirely cgo-free (its other backend, modernc.org/sqlite, is
// pure Go too).
type ZstdCodec struct{}

func (ZstdCodec) Name() string { return "zstd" }

func (ZstdCodec) Compress(src []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(src, make([]byte, 0, len(src))), nil
}

func (ZstdCodec) Decompress(src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(src, nil)
	if err != nil {
		return nil, ErrIncompressible
	}
	return out, nil
}
