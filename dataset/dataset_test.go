package dataset

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/hupe1980/hamlsh/bitvec"
	"github.com/hupe1980/hamlsh/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSameVectors(t *testing.T, want, got []bitvec.Vector) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "vector %d: want %s, got %s", i, want[i], got[i])
	}
}

func TestWriteRead(t *testing.T) {
	random := testutil.NewRNG(1).BinaryVectors(300, 100)

	zeros := make([]bitvec.Vector, 512)
	for i := range zeros {
		zeros[i] = bitvec.Zero(32)
	}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			for name, data := range map[string][]bitvec.Vector{"random": random, "zeros": zeros} {
				var buf bytes.Buffer
				require.NoError(t, Write(&buf, data, c))

				got, err := Read(&buf)
				require.NoError(t, err, name)
				assertSameVectors(t, data, got)
			}
		})
	}
}

func TestWrite_CompressesRedundantData(t *testing.T) {
	zeros := make([]bitvec.Vector, 1024)
	for i := range zeros {
		zeros[i] = bitvec.Zero(64)
	}

	var plain, packed bytes.Buffer
	require.NoError(t, Write(&plain, zeros, CompressionNone))
	require.NoError(t, Write(&packed, zeros, CompressionZSTD))

	assert.Equal(t, headerSize+1024*8, plain.Len())
	assert.Less(t, packed.Len(), plain.Len()/10)
	assert.Equal(t, byte(CompressionZSTD), packed.Bytes()[5])
}

func TestWrite_IncompressibleFallsBack(t *testing.T) {
	data := testutil.NewRNG(3).BinaryVectors(64, 64)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, data, CompressionLZ4))
	assert.Equal(t, byte(CompressionNone), buf.Bytes()[5])

	got, err := Read(&buf)
	require.NoError(t, err)
	assertSameVectors(t, data, got)
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, CompressionZSTD))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWrite_MixedLengths(t *testing.T) {
	err := Write(&bytes.Buffer{}, []bitvec.Vector{bitvec.Zero(8), bitvec.Zero(9)}, CompressionNone)
	assert.ErrorIs(t, err, ErrMixedLengths)
}

func TestRead_Errors(t *testing.T) {
	var good bytes.Buffer
	require.NoError(t, Write(&good, testutil.NewRNG(1).BinaryVectors(4, 16), CompressionNone))

	tests := []struct {
		name   string
		mutate func(b []byte) []byte
		want   error
	}{
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrInvalidMagic},
		{"version", func(b []byte) []byte { b[4] = 9; return b }, ErrUnsupportedVersion},
		{"raw length", func(b []byte) []byte { b[14]++; return b }, ErrCorrupt},
		{"truncated body", func(b []byte) []byte { return b[:len(b)-3] }, ErrCorrupt},
		{"compression", func(b []byte) []byte { b[5] = 7; return b }, ErrCorrupt},
		{"checksum", func(b []byte) []byte { b[headerSize] ^= 0x01; return b }, ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.mutate(bytes.Clone(good.Bytes()))
			_, err := Read(bytes.NewReader(b))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Read(bytes.NewReader([]byte("HLS")))
	assert.Error(t, err)
}

func TestRead_HeaderSizesAreBounded(t *testing.T) {
	tests := []struct {
		name string
		h    header
		body []byte
	}{
		{"zero dimension with huge count", header{dimension: 0, count: 10_000_000}, nil},
		{"huge stored length with short body", header{dimension: 64, count: 1 << 25, rawLen: 1 << 28, storedLen: 1 << 28}, make([]byte, 16)},
		{"huge count without body", header{dimension: 1 << 20, count: 1 << 12, rawLen: 1 << 29, storedLen: 1 << 29}, nil},
		{"lz4 expansion beyond block limit", header{compression: CompressionLZ4, dimension: 64, count: 1 << 20, rawLen: 8 << 20, storedLen: 8}, make([]byte, 8)},
		{"uncompressed length mismatch", header{dimension: 64, count: 2, rawLen: 16, storedLen: 8}, make([]byte, 8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append(tt.h.marshal(), tt.body...)
			got, err := Read(bytes.NewReader(b))
			assert.ErrorIs(t, err, ErrCorrupt)
			assert.Nil(t, got)
		})
	}
}

func TestRead_ZstdRawLengthMismatch(t *testing.T) {
	data := make([]bitvec.Vector, 64)
	for i := range data {
		data[i] = bitvec.Zero(128)
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, data, CompressionZSTD))
	b := buf.Bytes()
	require.Equal(t, byte(CompressionZSTD), b[5])

	h, err := unmarshalHeader(b[:headerSize])
	require.NoError(t, err)
	h.count *= 1024
	h.rawLen *= 1024

	_, err = Read(bytes.NewReader(append(h.marshal(), b[headerSize:]...)))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFile(t *testing.T) {
	data := testutil.NewRNG(9).BinaryVectors(100, 32)
	name := filepath.Join(t.TempDir(), "data.hlsd")

	require.NoError(t, WriteFile(name, data, CompressionLZ4))

	got, err := ReadFile(name)
	require.NoError(t, err)
	assertSameVectors(t, data, got)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, got)

	_, err = ParseCompression("gzip")
	assert.Error(t, err)
	assert.Equal(t, "Compression(9)", Compression(9).String())
}
