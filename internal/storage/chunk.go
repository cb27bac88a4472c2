package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/prometheus/prometheus/tsdb/chunkenc"
)

var (
	ErrInvalidChecksum = errors.New("storage: checksum mismatch, path data is corrupted")
	ErrTooSmall        = errors.New("storage: blob too small to be a valid chunk")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodePath compresses one simulated path into a Gorilla XOR chunk. Samples
// are keyed by day number starting at 1. The blob layout is
// encoding byte | chunk bytes | big-endian CRC32-C of everything before it.
func EncodePath(values []float64) ([]byte, error) {
	if len(values) > math.MaxUint16 {
		return nil, fmt.Errorf("storage: path of %d days exceeds chunk capacity", len(values))
	}
	c := chunkenc.NewXORChunk()
	app, err := c.Appender()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		app.Append(int64(i)+1, v)
	}
	return wrapChunk(c), nil
}

// DecodePath validates and decompresses a blob written by EncodePath.
func DecodePath(data []byte) ([]float64, error) {
	c, err := readChunk(data)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, c.NumSamples())
	it := c.Iterator(nil)
	for it.Next() != chunkenc.ValNone {
		_, v := it.At()
		out = append(out, v)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("storage: failed to iterate chunk: %w", err)
	}
	return out, nil
}

func wrapChunk(c chunkenc.Chunk) []byte {
	raw := c.Bytes()
	res := make([]byte, 1+len(raw)+4)
	res[0] = byte(c.Encoding())
	copy(res[1:], raw)
	binary.BigEndian.PutUint32(res[1+len(raw):], crc32.Checksum(res[:1+len(raw)], castagnoli))
	return res
}

func readChunk(data []byte) (chunkenc.Chunk, error) {
	if len(data) < 5 {
		return nil, ErrTooSmall
	}
	payload := data[:len(data)-4]
	if crc32.Checksum(payload, castagnoli) != binary.BigEndian.Uint32(data[len(data)-4:]) {
		return nil, ErrInvalidChecksum
	}
	if enc := chunkenc.Encoding(payload[0]); enc != chunkenc.EncXOR {
		return nil, fmt.Errorf("storage: unsupported chunk encoding %s", enc)
	}
	c := chunkenc.NewXORChunk()
	c.Reset(payload[1:])
	return c, nil
}
