package rpc

import (
	"encoding/base64"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/mr-tron/base58"
)

// EncodeProgram encodes program bytes according to the specified encoding.
func EncodeProgram(data []byte, encoding Encoding) (string, error) {
	switch encoding {
	case EncodingBase58:
		return base58.Encode(data), nil

	case EncodingBase64, "":
		return base64.StdEncoding.EncodeToString(data), nil

	case EncodingBase64Zstd:
		compressed, err := compressZstd(data)
		if err != nil {
			return "", fmt.Errorf("zstd compression failed: %w", err)
		}
		return base64.StdEncoding.EncodeToString(compressed), nil

	default:
		return "", fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// DecodeProgram decodes program bytes from the specified encoding.
func DecodeProgram(encoded string, encoding Encoding) ([]byte, error) {
	switch encoding {
	case EncodingBase58:
		return base58.Decode(encoded)

	case EncodingBase64, "":
		return base64.StdEncoding.DecodeString(encoded)

	case EncodingBase64Zstd:
		compressed, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("base64 decode failed: %w", err)
		}
		return decompressZstd(compressed)

	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// compressZstd compresses data using zstd.
func compressZstd(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

// decompressZstd decompresses zstd-compressed data.
func decompressZstd(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}
