// Package compressor provides optional codecs for Resource.data, the
// captured stdout prefix AllocWorker stores (spec.md §3, §4.3). None is the
// default; a pool may opt into a codec when cmd_new output is large and
// compresses well. Adapted from anyotin-valley-pkg/compressor, generalized
// from a single hardcoded zstd implementation to a small Codec registry.
package compressor

import "github.com/cockroachdb/errors"

// ErrIncompressible is returned when a codec cannot compress the input at
// all (corrupt stream, unsupported format on decompress).
var ErrIncompressible = errors.New("compressor: incompressible input")

// Codec compresses and decompresses Resource.data. All codecs must round-
// trip exactly: Decompress(Compress(b)) == b.
type Codec interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// registry maps configured codec names (pools.yaml "data_codec" field) to
// implementations.
var registry = map[string]Codec{
	"none": NoneCodec{},
	"zstd": ZstdCodec{},
	"lz4":  Lz4Codec{},
}

// Lookup resolves a codec by name, defaulting to NoneCodec for "" or
// "none". Returns false for an unrecognized name so callers can surface a
// ConfigWarning instead of silently losing data.
func Lookup(name string) (Codec, bool) {
	if name == "" {
		return NoneCodec{}, true
	}
	c, ok := registry[name]
	return c, ok
}
