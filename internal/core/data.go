package core

import "github.com/giantswarm/resallocd/internal/compressor"

// decodeData reverses the compression AllocWorker applied to captured
// cmd_new stdout before handing it back to a hook as RESALLOC_RESOURCE_DATA.
// Falls back to the raw bytes on any decode failure so a later hook still
// gets something rather than nothing.
func decodeData(pool PoolConfig, data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	codec, ok := compressor.Lookup(pool.DataCodec)
	if !ok {
		return data
	}
	out, err := codec.Decompress(data)
	if err != nil {
		Logger().Warn("data: decompression failed, passing raw bytes", "pool", pool.ID, "codec", codec.Name(), "error", err)
		return data
	}
	return out
}
