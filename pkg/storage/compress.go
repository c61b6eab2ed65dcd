package storage

import (
	"strings"

	"github.com/klauspost/compress/zstd"
)

const zstdEncoding = "zstd"

// compressZstd compresses data using zstd.
func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// maxBodyBytes bounds a transferred file, compressed or decoded.
const maxBodyBytes = 256 << 20

// decompressZstd decompresses zstd-compressed data, failing once the output
// would exceed limit bytes.
func decompressZstd(data []byte, limit uint64) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(limit))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// isZstdEncoded checks if the content encoding includes zstd.
func isZstdEncoded(contentEncoding string) bool {
	return strings.Contains(contentEncoding, zstdEncoding)
}
