// Package compress frames stored entry bytes with a one-byte algorithm tag so
// that entries written under one compression setting stay readable after the
// setting changes.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the algorithm applied to a stored blob. Tag values are part
// of the on-disk format.
type Tag uint8

const (
	// None stores the bytes as they are.
	None Tag = 0
	// LZ4 is LZ4 block compression.
	LZ4 Tag = 1
	// Zstd is zstd at the default level.
	Zstd Tag = 2
)

func (t Tag) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// ParseTag parses the name of an algorithm as used in configuration files.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode frames data as [tag][uvarint length][body]. When the requested
// algorithm does not make the data smaller the blob is stored with the None
// tag instead.
func Encode(data []byte, tag Tag) ([]byte, error) {
	var (
		body []byte
		err  error
	)

	switch tag {
	case None:
		body = data
	case LZ4:
		body, err = compressLZ4(data)
	case Zstd:
		body, err = compressZstd(data)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}

	if errors.Is(err, errIncompressible) {
		tag, body, err = None, data, nil
	}
	if err != nil {
		return nil, err
	}

	header := make([]byte, 1+binary.MaxVarintLen64, 1+binary.MaxVarintLen64+len(body))
	header[0] = byte(tag)
	n := binary.PutUvarint(header[1:], uint64(len(data)))

	return append(header[:1+n], body...), nil
}

// Decode reverses Encode.
func Decode(blob []byte) ([]byte, error) {
	if len(blob) < 2 {
		return nil, errors.New("compressed blob too short")
	}

	tag := Tag(blob[0])

	size, n := binary.Uvarint(blob[1:])
	if n <= 0 {
		return nil, errors.New("compressed blob has a bad length header")
	}
	body := blob[1+n:]

	switch tag {
	case None:
		if uint64(len(body)) != size {
			return nil, fmt.Errorf("uncompressed blob: size %d does not match expected %d", len(body), size)
		}
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case LZ4:
		return decompressLZ4(body, int(size))
	case Zstd:
		return decompressZstd(body, int(size))
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	written, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// 0 means lz4 itself gave up
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}

	return dst[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	dst := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return dst, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
	}
	return out, nil
}
