package compressor

// NoneCodec passes bytes through unchanged. Default for pools that don't
// configure a data_codec.
type NoneCodec struct{}

func (NoneCodec) Name() string { return "none" }

func (NoneCodec) Compress(src []byte) ([]byte, error) { return src, nil }

func (NoneCodec) Decompress(src []byte) ([]byte, error) { return src, nil }
