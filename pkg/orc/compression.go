package orc

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/orcbridge/pkg/bridgeerrors"
)

// CompressionKind identifies the stripe payload compression.
type CompressionKind uint32

const (
	NONE CompressionKind = iota
	ZLIB
	SNAPPY
	LZO
	LZ4
	ZSTD
)

var compressionNames = map[string]CompressionKind{
	"":       NONE,
	"none":   NONE,
	"zlib":   ZLIB,
	"snappy": SNAPPY,
	"lz4":    LZ4,
	"zstd":   ZSTD,
}

// ParseCompression maps a configuration string to a CompressionKind.
func ParseCompression(name string) (CompressionKind, error) {
	kind, ok := compressionNames[name]
	if !ok {
		return NONE, bridgeerrors.Newf(bridgeerrors.ErrorTypeConfig, "unsupported compression: %s", name)
	}
	return kind, nil
}

// String returns the configuration name of the kind.
func (k CompressionKind) String() string {
	switch k {
	case NONE:
		return "none"
	case ZLIB:
		return "zlib"
	case SNAPPY:
		return "snappy"
	case LZO:
		return "lzo"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

// compressor returns the compression function for the kind, or an error for
// kinds this codec cannot produce.
func compressor(kind CompressionKind) (func([]byte) ([]byte, error), error) {
	switch kind {
	case NONE:
		return func(data []byte) ([]byte, error) { return data, nil }, nil
	case SNAPPY:
		return compressSnappy, nil
	case ZLIB:
		return compressZlib, nil
	case LZ4:
		return compressLZ4, nil
	case ZSTD:
		return compressZstd, nil
	default:
		return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeConfig, "unsupported compression: %s", kind)
	}
}

// decompressor returns the decompression function for the kind.
func decompressor(kind CompressionKind) (func([]byte) ([]byte, error), error) {
	switch kind {
	case NONE:
		return func(data []byte) ([]byte, error) { return data, nil }, nil
	case SNAPPY:
		return decompressSnappy, nil
	case ZLIB:
		return decompressZlib, nil
	case LZ4:
		return decompressLZ4, nil
	case ZSTD:
		return decompressZstd, nil
	default:
		return nil, bridgeerrors.Newf(bridgeerrors.ErrorTypeData, "unsupported compression: %s", kind)
	}
}

func compressSnappy(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func decompressSnappy(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

func compressZstd(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(data, nil)
}
