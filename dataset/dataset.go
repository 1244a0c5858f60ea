// Package dataset reads and writes collections of binary vectors.
//
// A file holds vectors of one bit length:
//
//	magic       [4]byte  "HLSD"
//	version     uint8
//	compression uint8    none, lz4 or zstd
//	dimension   uint32   bits per vector
//	count       uint32   number of vectors
//	rawLen      uint32   uncompressed body length
//	storedLen   uint32   body length on disk
//	checksum    uint32   CRC32-Castagnoli of the uncompressed body
//	body        count * ceil(dimension/64) little-endian uint64 words
//
// All integers are little-endian.
package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/hupe1980/hamlsh/bitvec"
)

// Version is the current file format version.
const Version = 1

const headerSize = 26

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

var magic = [4]byte{'H', 'L', 'S', 'D'}

var (
	// ErrInvalidMagic is returned when the input is not a dataset file.
	ErrInvalidMagic = errors.New("dataset: invalid magic")

	// ErrUnsupportedVersion is returned for files written by a newer format.
	ErrUnsupportedVersion = errors.New("dataset: unsupported version")

	// ErrCorrupt is returned when header and body disagree.
	ErrCorrupt = errors.New("dataset: corrupt file")

	// ErrMixedLengths is returned when vectors of different bit lengths are written together.
	ErrMixedLengths = errors.New("dataset: vectors have different lengths")
)

type header struct {
	compression Compression
	dimension   uint32
	count       uint32
	rawLen      uint32
	storedLen   uint32
	checksum    uint32
}

func (h header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic[:])
	buf[4] = Version
	buf[5] = byte(h.compression)
	binary.LittleEndian.PutUint32(buf[6:], h.dimension)
	binary.LittleEndian.PutUint32(buf[10:], h.count)
	binary.LittleEndian.PutUint32(buf[14:], h.rawLen)
	binary.LittleEndian.PutUint32(buf[18:], h.storedLen)
	binary.LittleEndian.PutUint32(buf[22:], h.checksum)
	return buf
}

func unmarshalHeader(buf []byte) (header, error) {
	if [4]byte(buf[0:4]) != magic {
		return header{}, ErrInvalidMagic
	}
	if buf[4] != Version {
		return header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, buf[4])
	}
	return header{
		compression: Compression(buf[5]),
		dimension:   binary.LittleEndian.Uint32(buf[6:]),
		count:       binary.LittleEndian.Uint32(buf[10:]),
		rawLen:      binary.LittleEndian.Uint32(buf[14:]),
		storedLen:   binary.LittleEndian.Uint32(buf[18:]),
		checksum:    binary.LittleEndian.Uint32(buf[22:]),
	}, nil
}

// validate checks the header fields against each other.
func (h header) validate() error {
	if h.dimension == 0 && h.count > 0 {
		return fmt.Errorf("%w: %d vectors of 0 bits", ErrCorrupt, h.count)
	}
	if need := uint64(h.count) * uint64(wordsPerVector(int(h.dimension))) * 8; need != uint64(h.rawLen) {
		return fmt.Errorf("%w: %d vectors of %d bits need %d bytes, header says %d",
			ErrCorrupt, h.count, h.dimension, need, h.rawLen)
	}
	switch h.compression {
	case CompressionNone:
		if h.storedLen != h.rawLen {
			return fmt.Errorf("%w: uncompressed body is %d bytes, want %d", ErrCorrupt, h.storedLen, h.rawLen)
		}
	case CompressionLZ4:
		if uint64(h.rawLen) > maxLZ4Expansion*uint64(h.storedLen)+lz4Slack {
			return fmt.Errorf("%w: %d lz4 bytes cannot expand to %d", ErrCorrupt, h.storedLen, h.rawLen)
		}
	case CompressionZSTD:
	default:
		return fmt.Errorf("%w: unknown compression %d", ErrCorrupt, uint8(h.compression))
	}
	return nil
}

func wordsPerVector(dimension int) int { return (dimension + 63) / 64 }

// Write encodes vectors to w. All vectors must have the same length.
func Write(w io.Writer, vectors []bitvec.Vector, c Compression) error {
	var dimension int
	if len(vectors) > 0 {
		dimension = vectors[0].Len()
	}
	for i, v := range vectors {
		if v.Len() != dimension {
			return fmt.Errorf("%w: vector %d has %d bits, want %d", ErrMixedLengths, i, v.Len(), dimension)
		}
	}

	words := wordsPerVector(dimension)
	rawLen := uint64(len(vectors)) * uint64(words) * 8
	if rawLen > math.MaxUint32 || uint64(len(vectors)) > math.MaxUint32 || uint64(dimension) > math.MaxUint32 {
		return fmt.Errorf("dataset: %d vectors of %d bits exceed the format limits", len(vectors), dimension)
	}

	body := make([]byte, rawLen)
	off := 0
	for _, v := range vectors {
		for _, word := range v.Words() {
			binary.LittleEndian.PutUint64(body[off:], word)
			off += 8
		}
	}

	stored, applied, err := compress(body, c)
	if err != nil {
		return err
	}

	h := header{
		compression: applied,
		dimension:   uint32(dimension),
		count:       uint32(len(vectors)),
		rawLen:      uint32(rawLen),
		storedLen:   uint32(len(stored)),
		checksum:    crc32.Checksum(body, crc32cTable),
	}

	if _, err := w.Write(h.marshal()); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// Read decodes a dataset written by Write.
func Read(r io.Reader) ([]bitvec.Vector, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}

	h, err := unmarshalHeader(buf)
	if err != nil {
		return nil, err
	}

	if err := h.validate(); err != nil {
		return nil, err
	}
	words := wordsPerVector(int(h.dimension))

	// The body is read before anything is sized from count, so a lying
	// header costs at most the bytes actually present.
	stored, err := io.ReadAll(io.LimitReader(r, int64(h.storedLen)))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrCorrupt, err)
	}
	if uint64(len(stored)) != uint64(h.storedLen) {
		return nil, fmt.Errorf("%w: body is %d bytes, header says %d", ErrCorrupt, len(stored), h.storedLen)
	}

	body, err := decompress(stored, h.compression, int(h.rawLen))
	if err != nil {
		return nil, err
	}
	if sum := crc32.Checksum(body, crc32cTable); sum != h.checksum {
		return nil, fmt.Errorf("%w: checksum %08x, want %08x", ErrCorrupt, sum, h.checksum)
	}

	vectors := make([]bitvec.Vector, h.count)
	packed := make([]uint64, words)
	off := 0
	for i := range vectors {
		for j := range packed {
			packed[j] = binary.LittleEndian.Uint64(body[off:])
			off += 8
		}
		v, err := bitvec.FromWords(int(h.dimension), packed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		vectors[i] = v
	}

	return vectors, nil
}

// WriteFile writes vectors to the named file, creating or truncating it.
func WriteFile(name string, vectors []bitvec.Vector, c Compression) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Write(bw, vectors, c); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadFile reads the vectors stored in the named file.
func ReadFile(name string) ([]bitvec.Vector, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(bufio.NewReader(f))
}
