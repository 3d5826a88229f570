package network

import (
	"github.com/klauspost/compress/zstd"
)

// CodecManager owns the compression codecs shared by every destination that
// negotiated compression. Initialization can fail; callers treat a missing
// manager as "compression unavailable" and disable it per endpoint rather
// than failing pool construction.
type CodecManager struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewCodecManager() (*CodecManager, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}

	return &CodecManager{enc: enc, dec: dec}, nil
}

func (c *CodecManager) Compress(b []byte) []byte {
	return c.enc.EncodeAll(b, nil)
}

func (c *CodecManager) Decompress(b []byte) ([]byte, error) {
	return c.dec.DecodeAll(b, nil)
}

func (c *CodecManager) Close() {
	c.enc.Close()
	c.dec.Close()
}
